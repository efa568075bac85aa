package ipmi

// NetFn identifies an IPMI network function code, selecting a command
// family (IPMI v2 table 5-1).
type NetFn uint8

const (
	NetFnApp       NetFn = 0x06
	NetFnStorage   NetFn = 0x0A
	NetFnSensorEvt NetFn = 0x04
	NetFnGroup     NetFn = 0x2C
)

// MsgID identifies one outstanding request/response round trip. Its
// concrete width is platform-native: the STREAMS backend uses a 32-bit
// sequence number, the ioctl backend whatever msgid width the kernel
// driver returns; both fit in a uint32 in practice.
type MsgID uint32

// Request is a single IPMI request frame: network function, logical unit,
// command byte, and up to 256 bytes of command-specific data.
type Request struct {
	NetFn NetFn
	LUN   uint8
	Cmd   uint8
	Data  []byte
}

// MaxRequestData is the wire limit on a single request's data field.
const MaxRequestData = 256

// MaxResponseData is the wire limit on a single response's data field.
const MaxResponseData = 1024

// Response is a single IPMI response frame. CCode 0 means success; Data
// holds the command payload with the completion code byte already
// stripped off by the transport.
type Response struct {
	CCode CompletionCode
	Data  []byte
}

// OK reports whether the response completed successfully.
func (r *Response) OK() bool { return r.CCode == Success }
