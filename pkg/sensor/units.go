package sensor

import "strings"

// Category names sensor type codes (IPMI v2 table 42-3), used to group
// and order sensors the way the overview sink and metric naming do.
var categoryTable = map[byte]string{
	0x01: "temperature",
	0x02: "voltage",
	0x03: "current",
	0x04: "fan",
	0x05: "chassis_intrusion",
	0x06: "platform_security",
	0x07: "processor",
	0x08: "power_supply",
	0x09: "power_unit",
	0x0A: "cooling_device",
	0x0B: "other_units",
	0x0C: "memory",
	0x0D: "drive_slot",
	0x0E: "power_system",
	0x0F: "system_event",
	0x10: "critical_interrupt",
	0x11: "button",
	0x12: "module_board",
	0x13: "microcontroller",
	0x14: "add_in_card",
	0x15: "chassis",
	0x16: "chip_set",
	0x17: "other_fru",
	0x18: "cable_interconnect",
	0x19: "terminator",
	0x1A: "system_boot",
	0x1B: "boot_error",
	0x1C: "os_boot",
	0x1D: "os_critical_stop",
	0x1E: "slot_connector",
	0x1F: "system_acpi_power",
	0x20: "watchdog1",
	0x21: "platform_alert",
	0x22: "entity_presence",
	0x23: "monitor_asic",
	0x24: "lan",
	0x25: "management_subsystem_health",
	0x26: "battery",
}

// Category returns the human-readable sensor category name for code, or
// "unknown" if code isn't in the table.
func Category(code byte) string {
	if s, ok := categoryTable[code]; ok {
		return s
	}
	return "unknown"
}

// unitEntry describes one IPMI base/modifier unit code (table 43-15): its
// display string.
type unitEntry struct {
	name string
}

var unitTable = map[byte]unitEntry{
	0:  {""},
	1:  {"degrees C"},
	2:  {"degrees F"},
	3:  {"degrees K"},
	4:  {"volts"},
	5:  {"amps"},
	6:  {"watts"},
	7:  {"joules"},
	8:  {"coulombs"},
	9:  {"VA"},
	10: {"nits"},
	11: {"lumen"},
	12: {"lux"},
	13: {"candela"},
	14: {"kPa"},
	15: {"PSI"},
	16: {"newton"},
	17: {"CFM"},
	18: {"RPM"},
	19: {"Hz"},
	20: {"microsecond"},
	21: {"millisecond"},
	22: {"second"},
	23: {"minute"},
	24: {"hour"},
	25: {"day"},
	26: {"week"},
	27: {"mil"},
	28: {"inches"},
	29: {"feet"},
	30: {"cu in"},
	31: {"cu feet"},
	32: {"mm"},
	33: {"cm"},
	34: {"m"},
	35: {"cu cm"},
	36: {"cu m"},
	37: {"liters"},
	38: {"fluid ounce"},
	39: {"radians"},
	40: {"steradians"},
	41: {"revolutions"},
	42: {"cycles"},
	43: {"gravities"},
	44: {"ounce"},
	45: {"pound"},
	46: {"ft-lb"},
	47: {"oz-in"},
	48: {"gauss"},
	49: {"gilberts"},
	50: {"henry"},
	51: {"millihenry"},
	52: {"farad"},
	53: {"microfarad"},
	54: {"ohms"},
	55: {"siemens"},
	56: {"mole"},
	57: {"becquerel"},
	58: {"PPM"},
	60: {"decibels"},
	61: {"DbA"},
	62: {"DbC"},
	63: {"gray"},
	64: {"sievert"},
	65: {"color temp deg K"},
	66: {"bit"},
	67: {"kilobit"},
	68: {"megabit"},
	69: {"gigabit"},
	70: {"byte"},
	71: {"kilobyte"},
	72: {"megabyte"},
	73: {"gigabyte"},
	74: {"word"},
	75: {"dword"},
	76: {"qword"},
	77: {"line"},
	78: {"hit"},
	79: {"miss"},
	80: {"retry"},
	81: {"reset"},
	82: {"overrun"},
	83: {"underrun"},
	84: {"collision"},
	85: {"packets"},
	86: {"messages"},
	87: {"characters"},
	88: {"error"},
	89: {"correctable error"},
	90: {"uncorrectable error"},
}

var rateModifierSuffix = map[byte]string{
	0: "",
	1: "/ms",
	2: "/s",
	3: "/min",
	4: "/hr",
	5: "/day",
}

// metricCategory overrides Category for metric naming where the display
// name and the metric family name diverge.
var metricCategory = map[byte]string{
	0x04: "fan_speed",
	0x05: "physical_security",
	0x0B: "sensor",
	0x0D: "bay",
}

// promUnitTable maps unit codes to the suffix used in metric names.
// Codes without an entry fall back to a sanitized form of the display
// name from unitTable.
var promUnitTable = map[byte]string{
	1:  "celsius",
	2:  "fahrenheit",
	3:  "kelvin",
	4:  "volts",
	5:  "amperes",
	6:  "watts",
	7:  "joules",
	14: "kpa",
	15: "psi",
	18: "rpm",
	19: "hertz",
	22: "seconds",
	58: "ppm",
	70: "bytes",
}

func promUnit(code byte) string {
	if s, ok := promUnitTable[code]; ok {
		return s
	}
	name := unitTable[code].name
	name = strings.ToLower(name)
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, name)
}

// MetricName composes the metric family name the collector emits a
// sensor's readings under: ipmi_<category>[_<unit>], e.g.
// ipmi_temperature_celsius or ipmi_fan_speed_rpm. The scan
// configuration's metric predicates match against this name.
func MetricName(category byte, desc UnitDescriptor) string {
	cat, ok := metricCategory[category]
	if !ok {
		cat = Category(category)
	}
	name := "ipmi_" + cat

	var unit string
	if desc.IsPercent {
		unit = "percent"
	} else {
		unit = promUnit(desc.Base)
		if mod := promUnit(desc.ModifierUnit); desc.ModifierUnit != 0 && mod != "" {
			switch desc.ModifierPrefix {
			case 1:
				unit += "_per_" + mod
			case 2:
				unit += "x" + mod
			}
		}
	}
	if unit != "" {
		name += "_" + unit
	}
	return name
}

// UnitString composes the human-readable unit string the overview and
// collector sinks emit, the same way sdr_unit2str does: the literal
// "percent" when the SDR's is-percent bit is set, otherwise base [+
// modifier] [+ rate suffix].
func UnitString(desc UnitDescriptor) string {
	if desc.IsPercent {
		return "percent"
	}
	s := unitTable[desc.Base].name
	if desc.ModifierUnit != 0 {
		if mod, ok := unitTable[desc.ModifierUnit]; ok && mod.name != "" {
			switch desc.ModifierPrefix {
			case 1: // base / modifier
				s = s + "/" + mod.name
			case 2: // base * modifier
				s = s + "*" + mod.name
			}
		}
	}
	if suffix, ok := rateModifierSuffix[desc.Rate]; ok {
		s += suffix
	}
	return s
}
