package collector

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

func sensorReadingResponse(value, tstate byte) *ipmi.Response {
	return &ipmi.Response{CCode: ipmi.Success, Data: []byte{value, 0xC0, tstate}}
}

func factorsResponse(m, b int16) *ipmi.Response {
	data := make([]byte, 7)
	data[1] = byte(m)
	data[2] = byte((m>>8)&0x3) << 6
	data[3] = byte(b)
	data[4] = byte((b>>8)&0x3) << 6
	data[5] = 0
	data[6] = 0 // Bexp=0, Rexp=0
	return &ipmi.Response{CCode: ipmi.Success, Data: data}
}

func dcmiPowerResponse(current, min, max, avg uint16) *ipmi.Response {
	data := make([]byte, 18)
	data[0] = 0xDC
	data[1], data[2] = byte(current), byte(current>>8)
	data[3], data[4] = byte(min), byte(min>>8)
	data[5], data[6] = byte(max), byte(max>>8)
	data[7], data[8] = byte(avg), byte(avg>>8)
	data[13], data[14] = 0xE8, 0x03 // 1000ms sample window
	data[17] = 0x40                 // reading active
	return &ipmi.Response{CCode: ipmi.Success, Data: data}
}
