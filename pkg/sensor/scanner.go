package sensor

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jelmd/ipmimex/pkg/ipmi"
)

// Options controls which SDR records the scanner keeps (spec §4.5, §6's
// scan configuration).
type Options struct {
	IgnoreDisabled bool
	DropNoRead     bool

	// NoThresholds skips the per-sensor threshold fetch at scan time.
	NoThresholds bool

	// Include/exclude predicates from the scan configuration. A sensor is
	// dropped when an exclude predicate matches (its metric name or its
	// display name) and no include predicate does. Nil predicates never
	// match.
	ExcludeMetrics func(string) bool
	ExcludeSensors func(string) bool
	IncludeMetrics func(string) bool
	IncludeSensors func(string) bool

	// RepoUnavailRetryDelay overrides the sleep between "repository
	// temporarily unavailable" retries. Zero means repoUnavailRetryDelay
	// (10s). Tests shrink this; production callers leave it unset.
	RepoUnavailRetryDelay time.Duration
}

func match(pred func(string) bool, s string) bool {
	return pred != nil && pred(s)
}

// excluded applies the configured predicates to a materialized sensor.
func (o *Options) excluded(s *Sensor) bool {
	return (match(o.ExcludeMetrics, s.MetricName) || match(o.ExcludeSensors, s.Name)) &&
		!(match(o.IncludeMetrics, s.MetricName) || match(o.IncludeSensors, s.Name))
}

const (
	repoUnavailRetryDelay = 10 * time.Second
	repoUnavailMaxRetries = 30

	fullSensorType   = 0x01
	thresholdEvtType = 0x01
	discreteAnalog   = 0x03

	minCommonHeaderLen = 6
	// minFullRecordLen bounds the whole record, 5-byte header included.
	minFullRecordLen = 48
)

var scanLog = logrus.WithField("component", "scanner")

// Scan walks the SDR repository via client, following next-record
// linkage from record id 0 until it reaches the 0xFFFF terminator,
// filtering and materializing threshold-based analog full SDRs per
// spec §4.5. Order is the repository's own insertion order; callers
// that want a presentation order re-sort by (category, unit, name).
func Scan(client *ipmi.Client, opts Options) (List, error) {
	var list List
	recordID := uint16(0)
	retries := 0

	for recordID != 0xFFFF {
		next, raw, err := client.GetSDR(recordID, 0xFF)
		if err != nil {
			if ce, ok := err.(*ipmi.CommandError); ok && ce.CCode.IsTemporarilyUnavailable() {
				retries++
				if retries > repoUnavailMaxRetries {
					return nil, err
				}
				scanLog.WithField("attempt", retries).Warn("SDR repository temporarily unavailable, retrying")
				delay := opts.RepoUnavailRetryDelay
				if delay == 0 {
					delay = repoUnavailRetryDelay
				}
				time.Sleep(delay)
				continue
			}
			return nil, err
		}
		retries = 0

		if len(raw) < minCommonHeaderLen {
			recordID = next
			continue
		}

		sdr, derr := ipmi.DecodeSDR(raw)
		if derr != nil || sdr.RecordType != fullSensorType || len(raw) < minFullRecordLen ||
			sdr.EventReadType != thresholdEvtType || sdr.AnalogFmt == discreteAnalog {
			recordID = next
			continue
		}

		if sdr.Disabled && !opts.IgnoreDisabled {
			recordID = next
			continue
		}

		s := &Sensor{
			Name:      sdr.Name,
			RecordID:  sdr.RecordID,
			OwnerID:   sdr.OwnerID,
			OwnerLUN:  sdr.OwnerLUN,
			SensorNum: sdr.SensorNum,
			Category:  sdr.Category,
			Unit: UnitDescriptor{
				AnalogFmt:      sdr.AnalogFmt,
				Rate:           sdr.Rate,
				ModifierPrefix: sdr.ModifierPre,
				IsPercent:      sdr.IsPercent,
				Base:           sdr.BaseUnit,
				ModifierUnit:   sdr.ModifierUnit,
			},
		}
		s.UnitString = UnitString(s.Unit)
		s.MetricName = MetricName(s.Category, s.Unit)
		if !sdr.Factors.IsNonLinear() {
			f := sdr.Factors
			s.Factors = &f
		}

		if _, err := client.GetSensorReading(s.SensorNum); err != nil {
			if ipmi.IsCommandError(err, ipmi.SensorNotFound) {
				recordID = next
				continue
			}
			if ipmi.IsCommandError(err, ipmi.CmdTempUnsupported) && opts.DropNoRead {
				recordID = next
				continue
			}
		}

		if opts.excluded(s) {
			scanLog.WithFields(logrus.Fields{"sensor": s.Name, "metric": s.MetricName}).
				Info("dropping excluded sensor")
			recordID = next
			continue
		}

		if !opts.NoThresholds {
			th, terr := client.GetSensorThresholds(s.OwnerID, s.OwnerLUN, s.SensorNum)
			if terr == nil {
				s.Thresholds = th
				s.ThresholdDump = FormatThresholds(th)
			} else {
				scanLog.WithFields(logrus.Fields{"sensor": s.Name, "err": terr}).
					Debug("sensor provides no thresholds")
			}
		}

		list = append(list, s)
		recordID = next
	}

	return list, nil
}
