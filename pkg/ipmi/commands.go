package ipmi

import "time"

// DeviceID is the decoded Get Device ID response (IPMI v2 §20.1).
type DeviceID struct {
	DeviceID                byte
	DeviceRevision          byte
	FwRevMajor              byte
	FwRevMinor              byte
	IPMIVersion             byte
	AdditionalDeviceSupport byte
	ManufacturerID          [3]byte
	ProductID               [2]byte
}

// ProvidesDevSDRs reports the "device provides device SDRs" capability
// bit (DeviceRevision bit 7).
func (d *DeviceID) ProvidesDevSDRs() bool { return d.DeviceRevision&0x80 != 0 }

// UpdateInProgress reports whether the BMC is mid firmware update, SDR
// update, or self-initialization (FwRevMajor bit 7).
func (d *DeviceID) UpdateInProgress() bool { return d.FwRevMajor&0x80 != 0 }

// FWMajor is the device's major firmware revision.
func (d *DeviceID) FWMajor() byte { return d.FwRevMajor & 0x7F }

// SupportsSensor reports the "Sensor Device" capability bit.
func (d *DeviceID) SupportsSensor() bool { return d.AdditionalDeviceSupport&0x01 != 0 }

// SupportsSDRRepo reports the "SDR Repository Device" capability bit.
func (d *DeviceID) SupportsSDRRepo() bool { return d.AdditionalDeviceSupport&0x02 != 0 }

// GetDeviceID issues App/0x01. If the BMC reports it's mid-update,
// surfaces a synthesized FwUpdateInProgress error per spec §7 rather than
// the (generally zero) wire completion code.
func (c *Client) GetDeviceID() (*DeviceID, error) {
	resp, err := c.exchange(&Request{NetFn: NetFnApp, Cmd: 0x01})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &CommandError{NetFn: byte(NetFnApp), Cmd: 0x01, CCode: resp.CCode}
	}
	if len(resp.Data) < 11 {
		return nil, &ParseError{Struct: "DeviceID", Reason: "short response"}
	}
	d := &DeviceID{
		DeviceID:                resp.Data[0],
		DeviceRevision:          resp.Data[1],
		FwRevMajor:              resp.Data[2],
		FwRevMinor:              resp.Data[3],
		IPMIVersion:             resp.Data[4],
		AdditionalDeviceSupport: resp.Data[5],
	}
	copy(d.ManufacturerID[:], resp.Data[6:9])
	copy(d.ProductID[:], resp.Data[9:11])
	if d.UpdateInProgress() {
		return d, &CommandError{NetFn: byte(NetFnApp), Cmd: 0x01, CCode: FwUpdateInProgress}
	}
	return d, nil
}

// RepoInfo is the decoded Get SDR Repository Info response (IPMI v2
// §33.9), restricted to the fields the scanner and change detector need.
type RepoInfo struct {
	Version     byte
	RecordCount uint16
	LastAdd     uint32
	LastDel     uint32
}

// GetSDRRepoInfo issues Storage/0x20 against the LUN-0 repository.
func (c *Client) GetSDRRepoInfo() (*RepoInfo, error) {
	resp, err := c.exchange(&Request{NetFn: NetFnStorage, Cmd: 0x20})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &CommandError{NetFn: byte(NetFnStorage), Cmd: 0x20, CCode: resp.CCode}
	}
	if len(resp.Data) < 13 {
		return nil, &ParseError{Struct: "RepoInfo", Reason: "short response"}
	}
	return &RepoInfo{
		Version:     resp.Data[0],
		RecordCount: le16(resp.Data, 1),
		LastAdd:     le32(resp.Data, 5),
		LastDel:     le32(resp.Data, 9),
	}, nil
}

// ReserveSDRRepo issues Storage/0x22 and returns the new reservation id.
func (c *Client) ReserveSDRRepo() (uint16, error) {
	resp, err := c.exchange(&Request{NetFn: NetFnStorage, Cmd: 0x22})
	if err != nil {
		return 0, err
	}
	if !resp.OK() {
		return 0, &CommandError{NetFn: byte(NetFnStorage), Cmd: 0x22, CCode: resp.CCode}
	}
	if len(resp.Data) < 2 {
		return 0, &ParseError{Struct: "ReserveSDRRepo", Reason: "short response"}
	}
	return le16(resp.Data, 0), nil
}

// Thresholds is the decoded Get Sensor Thresholds response (IPMI v2
// §35.13).
type Thresholds struct {
	ReadableMask              byte
	LowerNC, LowerCR, LowerNR byte
	UpperNC, UpperCR, UpperNR byte
}

func (t *Thresholds) LowerNCReadable() bool { return t.ReadableMask&0x01 != 0 }
func (t *Thresholds) LowerCRReadable() bool { return t.ReadableMask&0x02 != 0 }
func (t *Thresholds) LowerNRReadable() bool { return t.ReadableMask&0x04 != 0 }
func (t *Thresholds) UpperNCReadable() bool { return t.ReadableMask&0x08 != 0 }
func (t *Thresholds) UpperCRReadable() bool { return t.ReadableMask&0x10 != 0 }
func (t *Thresholds) UpperNRReadable() bool { return t.ReadableMask&0x20 != 0 }

// GetSensorThresholds issues SensorEvt/0x27. SensorNotFound and
// IllegalCmd are quiet failures: the caller gets the CommandError back
// but should not log it as a warning.
func (c *Client) GetSensorThresholds(ownerID, ownerLUN, sensorNum byte) (*Thresholds, error) {
	resp, err := c.exchange(&Request{NetFn: NetFnSensorEvt, Cmd: 0x27, Data: []byte{sensorNum}})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &CommandError{NetFn: byte(NetFnSensorEvt), Cmd: 0x27, CCode: resp.CCode}
	}
	if len(resp.Data) < 7 {
		return nil, &ParseError{Struct: "Thresholds", Reason: "short response"}
	}
	return &Thresholds{
		ReadableMask: resp.Data[0],
		LowerNC:      resp.Data[1],
		LowerCR:      resp.Data[2],
		LowerNR:      resp.Data[3],
		UpperNC:      resp.Data[4],
		UpperCR:      resp.Data[5],
		UpperNR:      resp.Data[6],
	}, nil
}

// SensorReading is the decoded Get Sensor Reading response (IPMI v2
// §35.14).
type SensorReading struct {
	Value           byte
	EventsEnabled   bool
	ScanningEnabled bool
	Unavailable     bool
	ThresholdState0 byte
	ThresholdState1 byte
	HasState1       bool
}

// GetSensorReading issues SensorEvt/0x2D. SensorNotFound (hardware not
// populated) and CmdTempUnsupported are quiet failures the scanner uses
// to prune sensors.
func (c *Client) GetSensorReading(sensorNum byte) (*SensorReading, error) {
	resp, err := c.exchange(&Request{NetFn: NetFnSensorEvt, Cmd: 0x2D, Data: []byte{sensorNum}})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &CommandError{NetFn: byte(NetFnSensorEvt), Cmd: 0x2D, CCode: resp.CCode}
	}
	if len(resp.Data) < 2 {
		return nil, &ParseError{Struct: "SensorReading", Reason: "short response"}
	}
	r := &SensorReading{
		Value:           resp.Data[0],
		EventsEnabled:   resp.Data[1]&0x80 != 0,
		ScanningEnabled: resp.Data[1]&0x40 != 0,
		Unavailable:     resp.Data[1]&0x20 != 0,
	}
	if len(resp.Data) >= 3 {
		r.ThresholdState0 = resp.Data[2]
	}
	if len(resp.Data) >= 4 {
		r.ThresholdState1 = resp.Data[3]
		r.HasState1 = true
	}
	return r, nil
}

// GetSensorFactors issues SensorEvt/0x23. Used only when a sensor's
// linearization marks it non-linear, so fresh factors must be pulled for
// each reading rather than cached at scan time.
func (c *Client) GetSensorFactors(sensorNum, readingByte byte) (*Factors, error) {
	resp, err := c.exchange(&Request{NetFn: NetFnSensorEvt, Cmd: 0x23, Data: []byte{sensorNum, readingByte}})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &CommandError{NetFn: byte(NetFnSensorEvt), Cmd: 0x23, CCode: resp.CCode}
	}
	if len(resp.Data) < 7 {
		return nil, &ParseError{Struct: "Factors", Reason: "short response"}
	}
	return decodeFactors(resp.Data[1:], 0), nil
}

// DCMIPowerReading is the decoded DCMI Get Power Reading response (DCMI
// v1.5 §6.6.1).
type DCMIPowerReading struct {
	Current      uint16
	Minimum      uint16
	Maximum      uint16
	Average      uint16
	Timestamp    uint32
	SampleWindow time.Duration
	Activated    bool
}

// GetDCMIPowerReading issues Group/0x02 with DCMI's group extension
// identifier. An InvalidCmd completion here means the BMC has no DCMI
// support at all; the collector uses that to disable DCMI for the rest
// of the session.
func (c *Client) GetDCMIPowerReading() (*DCMIPowerReading, error) {
	resp, err := c.exchange(&Request{NetFn: NetFnGroup, Cmd: 0x02, Data: []byte{0xDC, 0x01, 0x00, 0x00}})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &CommandError{NetFn: byte(NetFnGroup), Cmd: 0x02, CCode: resp.CCode}
	}
	if len(resp.Data) < 18 {
		return nil, &ParseError{Struct: "DCMIPowerReading", Reason: "short response"}
	}
	return &DCMIPowerReading{
		Current:      le16(resp.Data, 1),
		Minimum:      le16(resp.Data, 3),
		Maximum:      le16(resp.Data, 5),
		Average:      le16(resp.Data, 7),
		Timestamp:    le32(resp.Data, 9),
		SampleWindow: time.Duration(le32(resp.Data, 13)) * time.Millisecond,
		Activated:    resp.Data[17]&0x40 != 0,
	}, nil
}
