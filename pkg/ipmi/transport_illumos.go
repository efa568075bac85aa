//go:build illumos || solaris

package ipmi

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Message types carried in bmc_msg_t.m_type, mirroring the illumos bmc
// STREAMS driver's private protocol (sys/bmc_intf.h).
const (
	bmcMsgRequest  = 1
	bmcMsgResponse = 2
	bmcMsgError    = 3
)

// bmc_msg_t layout: m_type at 0, m_id at 4 (3 bytes alignment padding),
// 32 reserved bytes, then the bmc_req_t/bmc_rsp_t body. The body is
// marshaled field-by-field rather than through a mirrored Go struct;
// host struct layout is never relied on.
const (
	bmcMsgIDOffset      = 4
	bmcMsgPayloadOffset = 40

	// bmc_req_t: fn, lun, cmd, datalength, data[...]
	bmcReqFixedLen = 4
	// bmc_rsp_t: fn, lun, cmd, ccode, datalength, data[...]
	bmcRspCCodeOffset   = 3
	bmcRspDataLenOffset = 4
	bmcRspFixedLen      = 5
)

const (
	sendRetryInterval = time.Millisecond
	sendMaxRetries    = 2000
)

type strbuf struct {
	maxlen int32
	len    int32
	buf    unsafe.Pointer
}

// streamsTransport is the illumos backend: putmsg/getmsg against
// /dev/bmc, matching responses by sequence id the way the Linux ioctl
// backend matches by msgid.
type streamsTransport struct {
	mu  sync.Mutex
	f   *os.File
	seq int64
	log *logrus.Entry
}

func newPlatformTransport() Transport {
	return &streamsTransport{log: logrus.WithField("transport", "streams")}
}

func defaultDevicePath() string {
	return DefaultIllumosPath
}

func (t *streamsTransport) Open(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	t.f = f
	return nil
}

func (t *streamsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	return err
}

func putmsg(fd uintptr, data *strbuf, flags int) error {
	_, _, errno := unix.Syscall6(unix.SYS_PUTMSG, fd, 0, uintptr(unsafe.Pointer(data)), uintptr(flags), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func getmsg(fd uintptr, data *strbuf, flags *int32) error {
	_, _, errno := unix.Syscall6(unix.SYS_GETMSG, fd, 0, uintptr(unsafe.Pointer(data)), uintptr(unsafe.Pointer(flags)), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// Send builds a REQUEST-tagged bmc_msg_t and puts it on the stream. If
// the queue reports a transient would-block, sleep 1ms and retry up to
// 2000 times (2s total) before giving up.
func (t *streamsTransport) Send(req *Request) (MsgID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return 0, &TransportError{Op: "send", Err: fmt.Errorf("transport not opened")}
	}

	id := uint32(atomic.AddInt64(&t.seq, 1))
	buf := make([]byte, bmcMsgPayloadOffset+bmcReqFixedLen+len(req.Data))
	buf[0] = bmcMsgRequest
	binary.LittleEndian.PutUint32(buf[bmcMsgIDOffset:], id)
	body := buf[bmcMsgPayloadOffset:]
	body[0] = byte(req.NetFn)
	body[1] = req.LUN & 0x3
	body[2] = req.Cmd
	body[3] = byte(len(req.Data))
	copy(body[bmcReqFixedLen:], req.Data)

	data := strbuf{len: int32(len(buf)), buf: unsafe.Pointer(&buf[0])}

	var lastErr error
	for i := 0; i < sendMaxRetries; i++ {
		err := putmsg(t.f.Fd(), &data, 0)
		if err == nil {
			return MsgID(id), nil
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			return 0, &TransportError{Op: "putmsg", Path: t.f.Name(), Err: err}
		}
		lastErr = err
		time.Sleep(sendRetryInterval)
	}
	return 0, &TransportError{Op: "putmsg", Path: t.f.Name(), Err: fmt.Errorf("send queue full after %d retries: %w", sendMaxRetries, lastErr)}
}

// Recv polls for a RESPONSE-tagged bmc_msg_t matching id, 1ms per poll,
// up to timeout. Messages with a mismatching id are discarded; an
// ERROR-tagged message fails immediately with its embedded errno.
func (t *streamsTransport) Recv(id MsgID, timeout time.Duration) (*Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return nil, &TransportError{Op: "recv", Err: fmt.Errorf("transport not opened")}
	}

	buf := make([]byte, bmcMsgPayloadOffset+bmcRspFixedLen+MaxResponseData)

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		data := strbuf{maxlen: int32(len(buf)), buf: unsafe.Pointer(&buf[0])}
		var flags int32
		if err := getmsg(t.f.Fd(), &data, &flags); err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				time.Sleep(sendRetryInterval)
				continue
			}
			return nil, &TransportError{Op: "getmsg", Err: err}
		}
		if data.len < bmcMsgPayloadOffset+1 {
			return nil, &ParseError{Struct: "bmc_msg", Reason: "short STREAMS message"}
		}

		gotID := binary.LittleEndian.Uint32(buf[bmcMsgIDOffset:])
		if gotID != uint32(id) {
			t.log.WithFields(logrus.Fields{"want": id, "got": gotID}).Debug("discarding mismatched response")
			continue
		}
		body := buf[bmcMsgPayloadOffset:data.len]
		switch buf[0] {
		case bmcMsgError:
			return nil, &TransportError{Op: "getmsg", Err: fmt.Errorf("bmc stream error %d", body[0])}
		case bmcMsgResponse:
			if len(body) < bmcRspFixedLen {
				return nil, &ParseError{Struct: "bmc_rsp", Reason: "short response body"}
			}
			n := int(body[bmcRspDataLenOffset])
			if n > len(body)-bmcRspFixedLen {
				n = len(body) - bmcRspFixedLen
			}
			return &Response{
				CCode: CompletionCode(body[bmcRspCCodeOffset]),
				Data:  append([]byte(nil), body[bmcRspFixedLen:bmcRspFixedLen+n]...),
			}, nil
		default:
			continue
		}
	}
	return nil, &TimeoutError{Op: "recv"}
}
