package sensor

import (
	"time"

	"github.com/jelmd/ipmimex/pkg/ipmi"
)

// fakeTransport replays a fixed queue of canned responses, one per
// Send/Recv round trip in call order, standing in for a real BMC device.
type fakeTransport struct {
	responses []*ipmi.Response
	next      int
	seq       int
}

func (f *fakeTransport) Open(string) error { return nil }
func (f *fakeTransport) Close() error      { return nil }

func (f *fakeTransport) Send(*ipmi.Request) (ipmi.MsgID, error) {
	f.seq++
	return ipmi.MsgID(f.seq), nil
}

func (f *fakeTransport) Recv(ipmi.MsgID, time.Duration) (*ipmi.Response, error) {
	if f.next >= len(f.responses) {
		return nil, &ipmi.TimeoutError{Op: "recv"}
	}
	r := f.responses[f.next]
	f.next++
	return r, nil
}

func newTestClient(responses ...*ipmi.Response) *ipmi.Client {
	return ipmi.NewClientForTesting(&fakeTransport{responses: responses}, time.Second)
}

// buildSDR constructs a full-sensor SDR record (record header + body) the
// way GetSDR's payload carries it: 5-byte common header followed by the
// full-sensor body at table 43-1's byte offsets.
type sdrSpec struct {
	recordID   uint16
	recordType byte
	ownerID    byte
	sensorNum  byte
	category   byte
	evtType    byte
	analogFmt  byte
	disabled   bool
	name       string
}

func buildSDR(s sdrSpec) []byte {
	body := make([]byte, 43+len(s.name))
	body[0] = s.ownerID
	body[2] = s.sensorNum
	if s.disabled {
		body[6] = 0x80 // sensor capabilities: disabled
	}
	body[7] = s.category
	body[8] = s.evtType
	body[15] = s.analogFmt << 6
	body[16] = 1                        // base unit: degrees C, arbitrary but non-zero
	body[42] = 3<<6 | byte(len(s.name)) // Latin-1 name format
	copy(body[43:], s.name)

	full := make([]byte, 5+len(body))
	full[0] = byte(s.recordID)
	full[1] = byte(s.recordID >> 8)
	full[2] = 0x51
	full[3] = s.recordType
	full[4] = byte(len(body))
	copy(full[5:], body)
	return full
}

// sdrResponse wraps a built SDR record as the GetSDR response payload:
// the 2-byte next-record link followed by the record itself.
func sdrResponse(next uint16, record []byte) *ipmi.Response {
	data := append([]byte{byte(next), byte(next >> 8)}, record...)
	return &ipmi.Response{CCode: ipmi.Success, Data: data}
}

func reserveResponse(id uint16) *ipmi.Response {
	return &ipmi.Response{CCode: ipmi.Success, Data: []byte{byte(id), byte(id >> 8)}}
}

func sensorReadingResponse(value byte) *ipmi.Response {
	return &ipmi.Response{CCode: ipmi.Success, Data: []byte{value, 0xC0, 0x00}}
}
