package collector

import (
	"fmt"

	"github.com/jelmd/ipmimex/pkg/sensor"
)

// Overview renders the same sensor list as a fixed-width ipmitool-style
// table for operator troubleshooting, grounded on the original
// command-line tool's "sensor list" layout. Extended columns (SDR id,
// sensor number, threshold state) are included when verbose is true.
func (c *Collector) Overview(sink Sink, verbose bool) {
	for _, s := range c.list {
		reading, err := c.client.GetSensorReading(s.SensorNum)
		if err != nil {
			sink.AppendString(fmt.Sprintf("%-16s | %-10s | %-6s | %s\n", s.Name, "na", s.UnitString, "no reading"))
			continue
		}
		if reading.Unavailable {
			sink.AppendString(fmt.Sprintf("%-16s | %-10s | %-6s | %s\n", s.Name, "na", s.UnitString, "unavailable"))
			continue
		}

		factors := s.Factors
		if factors == nil {
			factors, err = c.client.GetSensorFactors(s.SensorNum, reading.Value)
			if err != nil {
				sink.AppendString(fmt.Sprintf("%-16s | %-10s | %-6s | %s\n", s.Name, "na", s.UnitString, "factors unavailable"))
				continue
			}
		}

		value := sensor.Convert(reading.Value, s.Unit.AnalogFmt, factors)
		state := thresholdStateLabel(thresholdState(reading.ThresholdState0))
		line := fmt.Sprintf("%-16s | %10.3f | %-6s | %-3s", s.Name, value, s.UnitString, state)

		if s.ThresholdDump == "" && s.Thresholds == nil {
			if th, terr := c.client.GetSensorThresholds(s.OwnerID, s.OwnerLUN, s.SensorNum); terr == nil {
				s.Thresholds = th
				s.ThresholdDump = sensor.FormatThresholds(th)
			}
		}
		if th := s.ThresholdDump; th != "" {
			line += " | " + th
		}
		if verbose {
			line += fmt.Sprintf(" | sdr=0x%04x sensor=0x%02x tstate=%d", s.RecordID, s.SensorNum, thresholdState(reading.ThresholdState0))
		}
		sink.AppendString(line + "\n")
	}
}

func thresholdStateLabel(state int) string {
	switch {
	case state == 0:
		return "ok"
	case state > 0:
		return "uc" // upper threshold crossed, severity in state (1..7)
	default:
		return "lc" // lower threshold crossed
	}
}
