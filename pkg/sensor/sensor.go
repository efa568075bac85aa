// Package sensor materializes the IPMI SDR repository into a list of
// readable threshold-based analog sensors and converts their raw
// readings into engineering units.
package sensor

import (
	"fmt"
	"strings"

	"github.com/jelmd/ipmimex/pkg/ipmi"
)

// UnitDescriptor captures a sensor's unit encoding exactly as carried in
// its SDR (IPMI v2 table 43-1 bytes 21-23): the analog format, optional
// rate, and base/modifier unit codes.
type UnitDescriptor struct {
	AnalogFmt      byte
	Rate           byte
	ModifierPrefix byte
	IsPercent      bool
	Base           byte
	ModifierUnit   byte
}

// Sensor is a materialized, readable full SDR: everything the collector
// facade needs to issue a reading and render it, decoupled from the
// transport-owned response buffer it was decoded from.
type Sensor struct {
	Name      string
	RecordID  uint16
	OwnerID   byte
	OwnerLUN  byte
	SensorNum byte
	Category  byte
	Unit      UnitDescriptor

	// Factors is nil for a non-linear sensor: the collector must call
	// GetSensorFactors fresh for every reading instead of reusing this.
	Factors *ipmi.Factors

	UnitString string

	// MetricName is the metric family this sensor's readings are emitted
	// under, composed from category and unit at scan time. The scan
	// configuration's include/exclude metric predicates match against it.
	MetricName string

	// Thresholds are the sensor's raw threshold bytes, fetched once at
	// scan time unless thresholds are configured off. Nil when the sensor
	// provides none.
	Thresholds *ipmi.Thresholds

	// ThresholdDump is the pre-formatted "name=value" list the overview
	// sink displays; the text-format collector never reads it.
	ThresholdDump string
}

// Key returns the (owner_id, owner_lun, sensor_num) triple spec.md
// requires to be unique within a List.
func (s *Sensor) Key() (byte, byte, byte) { return s.OwnerID, s.OwnerLUN, s.SensorNum }

// List is the ordered sequence of materialized sensors the scanner
// produces. The source represents this as a singly linked list; a
// slice is the idiomatic Go substitute and every consumer here only ever
// walks it forward.
type List []*Sensor

// FindKey returns the sensor with the given owner/lun/sensor-number
// triple, or nil if none matches.
func (l List) FindKey(ownerID, ownerLUN, sensorNum byte) *Sensor {
	for _, s := range l {
		if s.OwnerID == ownerID && s.OwnerLUN == ownerLUN && s.SensorNum == sensorNum {
			return s
		}
	}
	return nil
}

// FormatThresholds renders raw thresholds as the comma-joined
// "name=value" list the overview sink displays. Only the six threshold
// kinds flagged readable are included.
func FormatThresholds(t *ipmi.Thresholds) string {
	if t == nil {
		return ""
	}
	var b strings.Builder
	add := func(readable bool, name string, value byte) {
		if !readable {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%d", name, value)
	}
	add(t.LowerNCReadable(), "lnc", t.LowerNC)
	add(t.LowerCRReadable(), "lcr", t.LowerCR)
	add(t.LowerNRReadable(), "lnr", t.LowerNR)
	add(t.UpperNCReadable(), "unc", t.UpperNC)
	add(t.UpperCRReadable(), "ucr", t.UpperCR)
	add(t.UpperNRReadable(), "unr", t.UpperNR)
	return b.String()
}
