package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jelmd/ipmimex/pkg/ipmi"
)

func buildShortSDR(recordID uint16) []byte {
	// 5-byte common header + a 5-byte body: far short of the 48 bytes a
	// full sensor record needs.
	full := make([]byte, 10)
	full[0], full[1] = byte(recordID), byte(recordID>>8)
	full[2] = 0x51
	full[3] = 0x01
	full[4] = 5
	return full
}

// TestScanFiltersNonThresholdRecords is spec.md §8 property 6, first
// case: a repo with one record each of type!=full, too-short, discrete
// event type, discrete analog format, a disabled record (flag off), and
// one valid threshold-based record yields exactly the valid record.
func TestScanFiltersNonThresholdRecords(t *testing.T) {
	records := []sdrSpec{
		{recordID: 1, recordType: 0x02, sensorNum: 1, evtType: 0x01, analogFmt: 0, name: "NotFull"},
		{},
		{recordID: 3, recordType: 0x01, sensorNum: 3, evtType: 0x02, analogFmt: 0, name: "Discrete"},
		{recordID: 4, recordType: 0x01, sensorNum: 4, evtType: 0x01, analogFmt: 0x03, name: "DiscreteFmt"},
		{recordID: 5, recordType: 0x01, sensorNum: 5, evtType: 0x01, analogFmt: 0, disabled: true, name: "Disabled"},
		{recordID: 6, recordType: 0x01, sensorNum: 6, evtType: 0x01, analogFmt: 0, name: "Valid"},
	}

	responses := []*ipmi.Response{
		reserveResponse(0x1111),
		sdrResponse(2, buildSDR(records[0])),
		sdrResponse(3, buildShortSDR(2)),
		sdrResponse(4, buildSDR(records[2])),
		sdrResponse(5, buildSDR(records[3])),
		sdrResponse(6, buildSDR(records[4])),
		sdrResponse(0xFFFF, buildSDR(records[5])),
		sensorReadingResponse(0x40), // GetSensorReading for the valid record
	}
	client := newTestClient(responses...)

	list, err := Scan(client, Options{IgnoreDisabled: false, NoThresholds: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Valid", list[0].Name)
}

// TestScanKeepsDisabledWhenIgnored is property 6's second case: with
// IgnoreDisabled on, the disabled record survives alongside the valid
// one.
func TestScanKeepsDisabledWhenIgnored(t *testing.T) {
	records := []sdrSpec{
		{recordID: 1, recordType: 0x02, sensorNum: 1, evtType: 0x01, analogFmt: 0, name: "NotFull"},
		{},
		{recordID: 3, recordType: 0x01, sensorNum: 3, evtType: 0x02, analogFmt: 0, name: "Discrete"},
		{recordID: 4, recordType: 0x01, sensorNum: 4, evtType: 0x01, analogFmt: 0x03, name: "DiscreteFmt"},
		{recordID: 5, recordType: 0x01, sensorNum: 5, evtType: 0x01, analogFmt: 0, disabled: true, name: "Disabled"},
		{recordID: 6, recordType: 0x01, sensorNum: 6, evtType: 0x01, analogFmt: 0, name: "Valid"},
	}

	responses := []*ipmi.Response{
		reserveResponse(0x1111),
		sdrResponse(2, buildSDR(records[0])),
		sdrResponse(3, buildShortSDR(2)),
		sdrResponse(4, buildSDR(records[2])),
		sdrResponse(5, buildSDR(records[3])),
		sdrResponse(6, buildSDR(records[4])),
		sensorReadingResponse(0x10), // GetSensorReading for the disabled record
		sdrResponse(0xFFFF, buildSDR(records[5])),
		sensorReadingResponse(0x40), // GetSensorReading for the valid record
	}
	client := newTestClient(responses...)

	list, err := Scan(client, Options{IgnoreDisabled: true, NoThresholds: true})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Disabled", list[0].Name)
	require.Equal(t, "Valid", list[1].Name)
}

func TestScanDropsSensorNotFound(t *testing.T) {
	valid := sdrSpec{recordID: 1, recordType: 0x01, sensorNum: 1, evtType: 0x01, analogFmt: 0, name: "Ghost"}
	responses := []*ipmi.Response{
		reserveResponse(0x1111),
		sdrResponse(0xFFFF, buildSDR(valid)),
		{CCode: ipmi.SensorNotFound},
	}
	client := newTestClient(responses...)

	list, err := Scan(client, Options{})
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestScanDropsUnreadableWhenConfigured(t *testing.T) {
	valid := sdrSpec{recordID: 1, recordType: 0x01, sensorNum: 1, evtType: 0x01, analogFmt: 0, name: "Unsupported"}
	responses := []*ipmi.Response{
		reserveResponse(0x1111),
		sdrResponse(0xFFFF, buildSDR(valid)),
		{CCode: ipmi.CmdTempUnsupported},
	}
	client := newTestClient(responses...)

	list, err := Scan(client, Options{DropNoRead: true, NoThresholds: true})
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestScanRepoTemporarilyUnavailableRetriesThenSucceeds(t *testing.T) {
	valid := sdrSpec{recordID: 1, recordType: 0x01, sensorNum: 1, evtType: 0x01, analogFmt: 0, name: "Late"}
	responses := []*ipmi.Response{
		reserveResponse(0x1111),
		{CCode: ipmi.RepoTempUnavailLo},
		sdrResponse(0xFFFF, buildSDR(valid)),
		sensorReadingResponse(0x40),
	}
	client := newTestClient(responses...)

	list, err := Scan(client, Options{NoThresholds: true, RepoUnavailRetryDelay: time.Microsecond})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func thresholdsResponse(mask byte, vals [6]byte) *ipmi.Response {
	data := append([]byte{mask}, vals[:]...)
	return &ipmi.Response{CCode: ipmi.Success, Data: data}
}

func TestScanFetchesThresholdsForKeptSensors(t *testing.T) {
	valid := sdrSpec{recordID: 1, recordType: 0x01, sensorNum: 1, evtType: 0x01, analogFmt: 0, name: "CPU Temp"}
	responses := []*ipmi.Response{
		reserveResponse(0x1111),
		sdrResponse(0xFFFF, buildSDR(valid)),
		sensorReadingResponse(0x40),
		thresholdsResponse(0x18, [6]byte{0, 0, 0, 80, 90, 0}), // unc+ucr readable
	}
	client := newTestClient(responses...)

	list, err := Scan(client, Options{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Thresholds)
	require.Equal(t, "unc=80,ucr=90", list[0].ThresholdDump)
}

func TestScanExcludedSensorIsDropped(t *testing.T) {
	valid := sdrSpec{recordID: 1, recordType: 0x01, sensorNum: 1, evtType: 0x01, analogFmt: 0, name: "PSU Noise"}
	responses := []*ipmi.Response{
		reserveResponse(0x1111),
		sdrResponse(0xFFFF, buildSDR(valid)),
		sensorReadingResponse(0x40),
	}
	client := newTestClient(responses...)

	list, err := Scan(client, Options{
		NoThresholds:   true,
		ExcludeSensors: func(name string) bool { return name == "PSU Noise" },
	})
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestScanIncludePredicateOverridesExclude(t *testing.T) {
	valid := sdrSpec{recordID: 1, recordType: 0x01, sensorNum: 1, evtType: 0x01, analogFmt: 0, category: 0x01, name: "CPU Temp"}
	responses := []*ipmi.Response{
		reserveResponse(0x1111),
		sdrResponse(0xFFFF, buildSDR(valid)),
		sensorReadingResponse(0x40),
	}
	client := newTestClient(responses...)

	list, err := Scan(client, Options{
		NoThresholds:   true,
		ExcludeSensors: func(string) bool { return true },
		IncludeMetrics: func(metric string) bool { return metric == "ipmi_temperature_celsius" },
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "ipmi_temperature_celsius", list[0].MetricName)
}
