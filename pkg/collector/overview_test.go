package collector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jelmd/ipmimex/pkg/ipmi"
	"github.com/jelmd/ipmimex/pkg/sensor"
)

func TestOverviewTableRendersOKLine(t *testing.T) {
	client := newTestClient(sensorReadingResponse(0x40, 0x00))
	c := New(client, sensor.List{tempSensor()})
	sink := NewStringSink()

	c.Overview(sink, false)

	require.Contains(t, sink.String(), "CPU Temp")
	require.Contains(t, sink.String(), "ok")
}

func TestOverviewNoReadingRow(t *testing.T) {
	client := newTestClient(&ipmi.Response{CCode: ipmi.SensorNotFound})
	c := New(client, sensor.List{tempSensor()})
	sink := NewStringSink()

	c.Overview(sink, false)

	require.Contains(t, sink.String(), "no reading")
}

func TestOverviewVerboseIncludesSDRAndSensorNum(t *testing.T) {
	client := newTestClient(sensorReadingResponse(0x40, 0x00))
	s := tempSensor()
	s.RecordID = 0x0042
	c := New(client, sensor.List{s})
	sink := NewStringSink()

	c.Overview(sink, true)

	require.Contains(t, sink.String(), "sdr=0x0042")
	require.Contains(t, sink.String(), "sensor=0x01")
}

func TestOverviewIncludesCachedThresholdDump(t *testing.T) {
	client := newTestClient(sensorReadingResponse(0x40, 0x00))
	s := tempSensor()
	s.Thresholds = &ipmi.Thresholds{}
	s.ThresholdDump = "unc=80,ucr=90"
	c := New(client, sensor.List{s})
	sink := NewStringSink()

	c.Overview(sink, false)

	require.Contains(t, sink.String(), "unc=80,ucr=90")
}

func TestOverviewLazilyFetchesThresholds(t *testing.T) {
	client := newTestClient(
		sensorReadingResponse(0x40, 0x00),
		&ipmi.Response{CCode: ipmi.Success, Data: []byte{0x01, 0x0A, 0, 0, 0, 0, 0}}, // lnc=10 readable
	)
	s := tempSensor()
	c := New(client, sensor.List{s})
	sink := NewStringSink()

	c.Overview(sink, false)

	require.Contains(t, sink.String(), "lnc=10")
	require.NotNil(t, s.Thresholds)
}
