package sensor

import (
	"math"

	"github.com/jelmd/ipmimex/pkg/ipmi"
)

// reinterpret maps a raw reading byte into its signed/unsigned domain per
// IPMI's analog format code (table 43-1 byte 21 bits 7:6).
func reinterpret(value byte, analogFmt byte) float64 {
	switch analogFmt {
	case 1: // 1's-complement (sign-magnitude storage quirk, not true 1's complement)
		if value&0x80 != 0 {
			return float64(int8(value + 1))
		}
		return float64(int8(value))
	case 2: // 2's complement
		return float64(int8(value))
	default: // unsigned
		return float64(value)
	}
}

// Convert computes y = L((M*x + B*10^Bexp) * 10^Rexp) for a raw reading,
// per spec §4.7. A nil Factors (non-linear sensor whose factors weren't
// supplied, or a sensor the scanner never resolved factors for) returns
// the raw value unchanged.
func Convert(raw byte, analogFmt byte, f *ipmi.Factors) float64 {
	if f == nil {
		return float64(raw)
	}

	x := reinterpret(raw, analogFmt)
	y := (float64(f.M)*x + float64(f.B)*math.Pow(10, float64(f.Bexp))) * math.Pow(10, float64(f.Rexp))
	return linearize(f.Linearization, y)
}

// linearize applies the post-conversion transfer function selected by
// code (table 43-1's Linearization byte, low 7 bits). Codes in
// [0x70,0x7F] mean "non-linear" and must never reach here — callers
// re-fetch factors per reading for those sensors instead.
func linearize(code uint8, y float64) float64 {
	switch code {
	case 0:
		return y
	case 1:
		return math.Log(y)
	case 2:
		return math.Log10(y)
	case 3:
		return math.Log(y) / math.Log(2)
	case 4:
		return math.Exp(y)
	case 5:
		return math.Pow(10, y)
	case 6:
		return math.Pow(2, y)
	case 7:
		return 1 / y
	case 8:
		return y * y
	case 9:
		return y * y * y
	case 10:
		return math.Sqrt(y)
	case 11:
		return math.Cbrt(y)
	default:
		return y
	}
}
