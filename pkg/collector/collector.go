// Package collector implements the text-format and tabular-overview
// output facades over a materialized sensor list.
package collector

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jelmd/ipmimex/pkg/ipmi"
	"github.com/jelmd/ipmimex/pkg/sensor"
)

// Sink is the output interface supplied by the external HTTP layer
// (spec §6): a string builder the collector appends lines to. Kept
// deliberately minimal since serialization itself is out of the core's
// scope.
type Sink interface {
	AppendString(s string)
}

// Options toggles what the facade emits (spec §4.8 / §6's scan config).
type Options struct {
	Compact      bool
	NoState      bool
	NoThresholds bool
	NoIPMI       bool
	NoDCMI       bool
	NoPowerStats bool
}

var collectLog = logrus.WithField("component", "collector")

// Collector owns the IPMI client, the current sensor list, and whether
// DCMI has been disabled for the session (spec §7: InvalidCmd on
// GetDCMIPowerReading disables DCMI for the remainder of the run).
type Collector struct {
	client       *ipmi.Client
	list         sensor.List
	dcmiDisabled bool
}

// New wraps an already-open client and an already-scanned list.
func New(client *ipmi.Client, list sensor.List) *Collector {
	return &Collector{client: client, list: list}
}

// SetList swaps in a freshly rebuilt sensor list, e.g. after the change
// detector reports a positive verdict. Per spec §5, callers must stop
// readers before calling this.
func (c *Collector) SetList(list sensor.List) { c.list = list }

// List returns the collector's current sensor list, e.g. for the change
// detector's per-sensor identity walk.
func (c *Collector) List() sensor.List { return c.list }

// Collect emits one text-format metric line per readable sensor, plus
// DCMI power-reading lines unless disabled, to sink.
func (c *Collector) Collect(sink Sink, opts Options) {
	if !opts.NoIPMI {
		for _, s := range c.list {
			c.collectSensor(sink, s, opts)
		}
	}
	if !opts.NoDCMI && !c.dcmiDisabled {
		c.collectDCMI(sink, opts)
	}
}

func (c *Collector) collectSensor(sink Sink, s *sensor.Sensor, opts Options) {
	reading, err := c.client.GetSensorReading(s.SensorNum)
	if err != nil {
		collectLog.WithFields(logrus.Fields{"sensor": s.Name, "err": err}).Debug("reading unavailable")
		return
	}
	if reading.Unavailable || !reading.ScanningEnabled {
		return
	}

	factors := s.Factors
	if factors == nil {
		fresh, err := c.client.GetSensorFactors(s.SensorNum, reading.Value)
		if err != nil {
			collectLog.WithFields(logrus.Fields{"sensor": s.Name, "err": err}).Warn("could not refresh non-linear factors")
			return
		}
		factors = fresh
	}

	value := sensor.Convert(reading.Value, s.Unit.AnalogFmt, factors)
	name := s.MetricName
	if name == "" {
		name = "ipmi_sensor_value"
	}

	sink.AppendString(fmt.Sprintf("%s{name=%q,unit=%q} %g\n", name, s.Name, s.UnitString, value))

	if !opts.NoState {
		sink.AppendString(fmt.Sprintf("ipmi_sensor_state{name=%q} %d\n", s.Name, thresholdState(reading.ThresholdState0)))
	}

	if !opts.NoThresholds && s.Thresholds != nil {
		c.collectThresholds(sink, s, name)
	}
}

// collectThresholds emits one line per readable threshold bound, converted
// to engineering units with the sensor's cached factors. Non-linear
// sensors carry nil factors; their bounds are emitted raw.
func (c *Collector) collectThresholds(sink Sink, s *sensor.Sensor, name string) {
	th := s.Thresholds
	emit := func(readable bool, bound string, raw byte) {
		if !readable {
			return
		}
		v := sensor.Convert(raw, s.Unit.AnalogFmt, s.Factors)
		sink.AppendString(fmt.Sprintf("%s_threshold{name=%q,bound=%q} %g\n", name, s.Name, bound, v))
	}
	emit(th.LowerNRReadable(), "lnr", th.LowerNR)
	emit(th.LowerCRReadable(), "lcr", th.LowerCR)
	emit(th.LowerNCReadable(), "lnc", th.LowerNC)
	emit(th.UpperNCReadable(), "unc", th.UpperNC)
	emit(th.UpperCRReadable(), "ucr", th.UpperCR)
	emit(th.UpperNRReadable(), "unr", th.UpperNR)
}

// thresholdState derives the small signed "nearest exceeded threshold"
// integer from the raw threshold-comparison byte, masked to its 6
// meaningful bits: 0 means no threshold exceeded; an upper-threshold
// exceedance (any of bits 3..5 set, i.e. tstate >= 8) yields tstate>>3,
// a positive 1..7; a lower-threshold exceedance (bits 0..2 only) yields
// -tstate, a negative -1..-7.
func thresholdState(raw byte) int {
	tstate := int(raw & 0x3F)
	switch {
	case tstate == 0:
		return 0
	case tstate >= 8:
		return tstate >> 3
	default:
		return -tstate
	}
}

func (c *Collector) collectDCMI(sink Sink, opts Options) {
	p, err := c.client.GetDCMIPowerReading()
	if err != nil {
		if ipmi.IsCommandError(err, ipmi.InvalidCmd) {
			collectLog.Info("BMC has no DCMI support, disabling for remainder of session")
			c.dcmiDisabled = true
		}
		return
	}

	if !opts.Compact {
		sink.AppendString("# HELP ipmi_dcmi_power_watts DCMI power reading in watts.\n")
		sink.AppendString("# TYPE ipmi_dcmi_power_watts gauge\n")
	}
	sink.AppendString(fmt.Sprintf("ipmi_dcmi_power_watts %d\n", p.Current))
	if !opts.NoPowerStats {
		sink.AppendString(fmt.Sprintf("ipmi_dcmi_power_min_watts %d\n", p.Minimum))
		sink.AppendString(fmt.Sprintf("ipmi_dcmi_power_max_watts %d\n", p.Maximum))
		sink.AppendString(fmt.Sprintf("ipmi_dcmi_power_avg_watts %d\n", p.Average))
		if !opts.Compact {
			sink.AppendString("# HELP ipmi_dcmi_power_sample_window_seconds DCMI sample period for min, max and average power.\n")
			sink.AppendString("# TYPE ipmi_dcmi_power_sample_window_seconds gauge\n")
		}
		sink.AppendString(fmt.Sprintf("ipmi_dcmi_power_sample_window_seconds %g\n", p.SampleWindow.Seconds()))
	}
}

// StringSink is the trivial in-memory Sink implementation tests and
// cmd/ipmimex use.
type StringSink struct {
	b strings.Builder
}

func NewStringSink() *StringSink { return &StringSink{} }

func (s *StringSink) AppendString(str string) { s.b.WriteString(str) }

func (s *StringSink) String() string { return s.b.String() }
