package ipmi

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Factors are the decoded reading-factor fields of a full SDR (IPMI v2
// table 43-1): the linear transform coefficients plus the metadata that
// decides whether they can be trusted as-is.
type Factors struct {
	M             int16
	B             int16
	Bexp          int8
	Rexp          int8
	Accuracy      int16
	AccuracyExp   int8
	Tolerance     uint8
	Direction     uint8
	Linearization uint8
}

// nonLinearLow and nonLinearHigh bound the linearization codes that mean
// "non-linear": factors must be re-fetched per reading rather than cached
// at scan time.
const (
	nonLinearLow  = 0x70
	nonLinearHigh = 0x7F
)

// IsNonLinear reports whether f's linearization code requires a fresh
// GetSensorFactors call per reading instead of using cached values.
func (f *Factors) IsNonLinear() bool {
	return f.Linearization >= nonLinearLow && f.Linearization <= nonLinearHigh
}

// decodeFactors unpacks the 6-byte reading-factors block (M, B, exponents,
// tolerance, accuracy, direction) shared by the full SDR layout and the
// Get Sensor Reading Factors response. linearization comes from the SDR
// itself when decoding a scanned record, or is threaded through unchanged
// when re-decoding factors for a non-linear sensor's fresh reading.
func decodeFactors(raw []byte, linearization uint8) *Factors {
	mLo, mHiTol := raw[0], raw[1]
	bLo, bHiAcc := raw[2], raw[3]
	accDir := raw[4]
	rexpBexp := raw[5]

	return &Factors{
		M:             decodeSigned10(mHiTol>>6, mLo),
		Tolerance:     mHiTol & 0x3F,
		B:             decodeSigned10(bHiAcc>>6, bLo),
		Accuracy:      int16(bHiAcc&0x3F) | int16(accDir&0xC0)>>2,
		AccuracyExp:   int8((accDir >> 4) & 0x3),
		Direction:     (accDir >> 2) & 0x3,
		Bexp:          decodeSigned4(rexpBexp & 0xF),
		Rexp:          decodeSigned4(rexpBexp >> 4),
		Linearization: linearization,
	}
}

// SDR is a decoded full SDR record (IPMI v2 table 43-1), retaining only
// the fields a threshold-based analog sensor needs; discrete/event SDRs
// and non-full SDR types are filtered out before this decode ever runs.
type SDR struct {
	RecordID      uint16
	RecordType    byte
	OwnerID       byte
	OwnerLUN      byte
	SensorNum     byte
	Category      byte
	EventReadType byte
	AnalogFmt     byte
	Rate          byte
	ModifierPre   byte
	IsPercent     bool
	BaseUnit      byte
	ModifierUnit  byte
	Disabled      bool
	Factors       Factors
	Name          string
}

// minFullSDRLen is the shortest a full sensor SDR body can be and still
// carry every fixed field this decoder reads through the name
// format/length byte (body offset 42).
const minFullSDRLen = 43

// DecodeSDR decodes a full SDR record, including its 5-byte common header
// (record id, version, type, length), as returned by GetSDR when offset 0
// and the full record length are requested. Returns a ParseError if the
// buffer is too short for a common header or if RecordType != 0x01 (the
// scanner filters non-full records before this, but DecodeSDR double
// checks since it's also usable standalone, e.g. in tests).
func DecodeSDR(full []byte) (*SDR, error) {
	if len(full) < 5 {
		return nil, &ParseError{Struct: "SDR", Reason: "shorter than the common header"}
	}
	recordID := le16(full, 0)
	recordType := full[3]
	if recordType != 0x01 {
		return nil, &ParseError{Struct: "SDR", Reason: "not a full sensor record"}
	}
	return decodeSDR(recordID, recordType, full[5:])
}

// DecodeSDRIdentity extracts just the (owner_id, owner_lun, sensor_num)
// triple from the first bytes of a full SDR record, for the change
// detector's cheap per-sensor identity check (8 bytes suffice: 5-byte
// common header plus the 3 leading body bytes).
func DecodeSDRIdentity(head []byte) (ownerID, ownerLUN, sensorNum byte, err error) {
	if len(head) < 8 {
		return 0, 0, 0, &ParseError{Struct: "SDR", Reason: "shorter than an identity probe"}
	}
	return head[5], head[6] & 0x3, head[7], nil
}

// decodeSDR decodes raw (the SDR body following the 5-byte common header:
// record id, version, type, length) per table 43-1's byte offsets.
// Callers must have already checked RecordType == 0x01 (full sensor).
func decodeSDR(recordID uint16, recordType byte, body []byte) (*SDR, error) {
	if len(body) < minFullSDRLen {
		return nil, &ParseError{Struct: "SDR", Reason: "body shorter than a full sensor record"}
	}

	s := &SDR{
		RecordID:   recordID,
		RecordType: recordType,
		OwnerID:    body[0],
		OwnerLUN:   body[1] & 0x3,
		SensorNum:  body[2],
		Category:   body[7],
	}

	s.EventReadType = body[8]

	// body[6] is the sensor capabilities byte; bit 7 flags the sensor as
	// disabled via the ignore-sensor capability.
	s.Disabled = body[6]&0x80 != 0

	unit1 := body[15]
	s.AnalogFmt = (unit1 >> 6) & 0x3
	s.Rate = (unit1 >> 3) & 0x7
	s.ModifierPre = (unit1 >> 1) & 0x3
	s.IsPercent = unit1&0x1 != 0
	s.BaseUnit = body[16]
	s.ModifierUnit = body[17]

	s.Factors = *decodeFactors(body[19:25], body[18]&0x7F)

	nameLenByte := body[42]
	nameFmt := NameFormat((nameLenByte >> 6) & 0x3)
	nameLen := int(nameLenByte & 0x1F)
	nameStart := 43
	if nameStart+nameLen > len(body) {
		nameLen = len(body) - nameStart
	}
	if nameLen > 0 && nameStart < len(body) {
		s.Name = DecodeName(body[nameStart:], nameLen, nameFmt)
	}

	return s, nil
}

const (
	maxReservationRetries = 4
	reservationRetryDelay = time.Second
)

// retryDelay returns c's reservation-retry sleep: the production 1s
// unless a test shrank it via SetReservationRetryDelay.
func (c *Client) retryDelay() time.Duration {
	if c.resRetryDelay == 0 {
		return reservationRetryDelay
	}
	return c.resRetryDelay
}

// sdrLog is shared by GetSDR's retry ladder.
var sdrLog = logrus.WithField("component", "sdr")

// GetSDR fetches the SDR body starting at recordID (0 for the first
// record) with the given request length (0xFF for "give me everything").
// It returns the decoded next-record link and the raw body, implementing
// the reservation/retry controller of spec §4.4: a ReservationCanceled
// response triggers a fresh reservation and a bounded number of retries;
// BufferTooSmall returns the partial payload instead of failing.
func (c *Client) GetSDR(recordID uint16, length byte) (nextID uint16, body []byte, err error) {
	for attempt := 0; attempt < maxReservationRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(c.retryDelay())
		}

		c.mu.Lock()
		if !c.haveRes {
			resID, rerr := c.reserveLocked()
			if rerr != nil {
				c.mu.Unlock()
				return 0, nil, rerr
			}
			c.resID = resID
			c.haveRes = true
		}
		req := &Request{
			NetFn: NetFnStorage,
			Cmd:   0x23,
			Data:  []byte{byte(c.resID), byte(c.resID >> 8), byte(recordID), byte(recordID >> 8), 0x00, length},
		}
		resp, serr := c.exchangeLocked(req)
		c.mu.Unlock()
		if serr != nil {
			return 0, nil, serr
		}

		switch {
		case resp.OK():
			if len(resp.Data) < 2 {
				return 0, nil, &ParseError{Struct: "GetSDR", Reason: "short response"}
			}
			next := le16(resp.Data, 0)
			payload := resp.Data[2:]

			if recordID != 0 && len(payload) >= 2 {
				got := le16(payload, 0)
				if got != recordID {
					sdrLog.WithFields(logrus.Fields{"requested": recordID, "got": got}).
						Warn("BMC returned mismatched SDR record id, overriding")
					payload[0] = byte(recordID)
					payload[1] = byte(recordID >> 8)
				}
			}
			return next, payload, nil

		case resp.CCode == ReservationCanceled:
			c.mu.Lock()
			c.haveRes = false
			c.mu.Unlock()
			continue

		case resp.CCode == BufferTooSmall:
			if len(resp.Data) < 2 {
				return 0, nil, &CommandError{NetFn: byte(NetFnStorage), Cmd: 0x23, CCode: resp.CCode}
			}
			return le16(resp.Data, 0), resp.Data[2:], nil

		default:
			return 0, nil, &CommandError{NetFn: byte(NetFnStorage), Cmd: 0x23, CCode: resp.CCode}
		}
	}
	return 0, nil, &CommandError{NetFn: byte(NetFnStorage), Cmd: 0x23, CCode: ReservationCanceled}
}

// reserveLocked issues Storage/0x22 with c.mu already held.
func (c *Client) reserveLocked() (uint16, error) {
	resp, err := c.exchangeLocked(&Request{NetFn: NetFnStorage, Cmd: 0x22})
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
