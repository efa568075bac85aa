package ipmi

import "unicode/utf8"

// NameFormat is the 2-bit ID-string format field carried in a full SDR's
// name header (IPMI v2, table 43-1, byte 48 bits [7:6]).
type NameFormat uint8

const (
	NameFormatUnicode NameFormat = 0
	NameFormatBCDPlus NameFormat = 1
	NameFormatASCII6  NameFormat = 2
	NameFormatLatin1  NameFormat = 3
)

// bcdPlusTable is the fixed 16-entry BCD+ alphabet (IPMI v2, table 43-16).
var bcdPlusTable = [16]byte{
	'0', '1', '2', '3', '4', '5', '6', '7',
	'8', '9', ' ', '-', '.', ':', ',', '-',
}

// DecodeName dispatches on fmtCode and returns raw decoded as UTF-8. length
// is the declared byte length of raw (which may be longer, e.g. a fixed
// 16-byte SDR name field); only the first length bytes are consumed.
func DecodeName(raw []byte, length int, fmtCode NameFormat) string {
	if length <= 0 || length > len(raw) {
		length = len(raw)
	}
	raw = raw[:length]
	if length == 0 || (length == 1 && raw[0] == 0) {
		return ""
	}
	switch fmtCode {
	case NameFormatUnicode:
		return decodeUnicode32(raw)
	case NameFormatBCDPlus:
		return decodeBCDPlus(raw)
	case NameFormatASCII6:
		return decodeASCII6(raw)
	default:
		return decodeLatin1(raw)
	}
}

// decodeUnicode32 treats raw as a sequence of little-endian 32-bit code
// points. Values beyond the Unicode range (> 0x10FFFF) become U+FFFD.
// Whether the BMC really emits UTF-32 (as opposed to UTF-16) is
// undocumented upstream; this follows the original C implementation
// literally (see DESIGN.md).
func decodeUnicode32(raw []byte) string {
	n := len(raw) / 4
	buf := make([]byte, 0, n*4)
	var enc [utf8.UTFMax]byte
	for i := 0; i < n; i++ {
		cp := le32(raw, i*4)
		r := rune(utf8.RuneError)
		if cp <= 0x10FFFF {
			r = rune(cp)
		}
		w := utf8.EncodeRune(enc[:], r)
		buf = append(buf, enc[:w]...)
	}
	return string(buf)
}

func decodeBCDPlus(raw []byte) string {
	buf := make([]byte, 0, len(raw)*2)
	for _, b := range raw {
		buf = append(buf, bcdPlusTable[b>>4], bcdPlusTable[b&0x0F])
	}
	return string(buf)
}

// decodeASCII6 unpacks groups of 3 input bytes into 4 output characters,
// each offset by 0x20 (IPMI v2, table 43-15, 6-bit packed ASCII). The final
// partial group, if any, is zero-padded.
func decodeASCII6(raw []byte) string {
	padded := raw
	if rem := len(raw) % 3; rem != 0 {
		padded = make([]byte, len(raw)+(3-rem))
		copy(padded, raw)
	}
	buf := make([]byte, 0, (len(padded)/3)*4)
	for i := 0; i+3 <= len(padded); i += 3 {
		b0, b1, b2 := padded[i], padded[i+1], padded[i+2]
		buf = append(buf,
			0x20+(b0&0x3F),
			0x20+((b0>>6)|((b1&0x0F)<<2)),
			0x20+((b1>>4)|((b2&0x03)<<4)),
			0x20+(b2>>2),
		)
	}
	return string(buf)
}

// decodeLatin1 widens ISO-8859-1 bytes to UTF-8.
func decodeLatin1(raw []byte) string {
	buf := make([]byte, 0, len(raw)*2)
	var enc [utf8.UTFMax]byte
	for _, b := range raw {
		w := utf8.EncodeRune(enc[:], rune(b))
		buf = append(buf, enc[:w]...)
	}
	return string(buf)
}
