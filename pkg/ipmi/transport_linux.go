// Copyright 2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package ipmi

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/sirupsen/logrus"
	"github.com/vtolstov/go-ioctl"
	"golang.org/x/sys/unix"
)

const (
	ipmiBMCChannel              = 0xf
	ipmiBMCSlaveAddr            = 0x20
	ipmiBufSize                 = 1024
	ipmiIOCMagic                = 'i'
	ipmiSystemInterfaceAddrType = 0x0c
)

var (
	ipmictlReceiveMsg    = ioctl.IOWR(ipmiIOCMagic, 12, uintptr(unsafe.Sizeof(ipmiRecv{})))
	ipmictlSendCommand   = ioctl.IOR(ipmiIOCMagic, 13, uintptr(unsafe.Sizeof(ipmiReq{})))
	ipmictlSetGetsEvents = ioctl.IOR(ipmiIOCMagic, 16, 4)
	ipmictlSetMyAddress  = ioctl.IOR(ipmiIOCMagic, 17, 4)
)

// ipmiMsg, ipmiReq and ipmiRecv mirror struct ipmi_msg/ipmi_req/ipmi_recv
// from <linux/ipmi.h>. Unlike the wire records this package decodes by
// byte offset, these are a kernel ABI and must match the C layout the
// ioctls expect.
type ipmiMsg struct {
	netfn   byte
	cmd     byte
	dataLen uint16
	data    unsafe.Pointer
}

type ipmiSystemInterfaceAddr struct {
	addrType int32
	channel  int16
	lun      byte
}

type ipmiReq struct {
	addr    *ipmiSystemInterfaceAddr
	addrLen uint32
	msgid   int64
	msg     ipmiMsg
}

type ipmiRecv struct {
	recvType int32
	addr     *ipmiSystemInterfaceAddr
	addrLen  uint32
	msgid    int64
	msg      ipmiMsg
}

// ioctlTransport is the Linux OpenIPMI backend: a single in-flight
// request protected by mu, matched to its response by a monotonically
// increasing msgid.
type ioctlTransport struct {
	mu  sync.Mutex
	f   *os.File
	seq int64
	log *logrus.Entry
}

func newPlatformTransport() Transport {
	return &ioctlTransport{log: logrus.WithField("transport", "ioctl")}
}

func defaultDevicePath() string {
	return DefaultLinuxPath
}

// Open opens the OpenIPMI device, disables the event receiver (we never
// read events, so don't let the driver queue them) and sets the BMC
// slave address the send path addresses commands from.
func (t *ioctlTransport) Open(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	t.f = f

	val := uint32(0)
	if err := ioctlSetUint32(f.Fd(), ipmictlSetGetsEvents, &val); err != nil {
		t.log.WithError(err).Warn("could not explicitly disable event receiver")
	}
	val = ipmiBMCSlaveAddr
	if err := ioctlSetUint32(f.Fd(), ipmictlSetMyAddress, &val); err != nil {
		f.Close()
		t.f = nil
		return &TransportError{Op: "IPMICTL_SET_MY_ADDRESS_CMD", Path: path, Err: err}
	}
	return nil
}

func (t *ioctlTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	return err
}

// Send issues the send-command ioctl for req and returns the msgid the
// matching Recv call must wait for. Only one request may be outstanding;
// callers serialize through the Client's own mutex, not this one, but mu
// is still held here to guard the fd and seq counter.
func (t *ioctlTransport) Send(req *Request) (MsgID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return 0, &TransportError{Op: "send", Err: fmt.Errorf("transport not opened")}
	}

	id := atomic.AddInt64(&t.seq, 1)
	addr := ipmiSystemInterfaceAddr{
		addrType: ipmiSystemInterfaceAddrType,
		channel:  ipmiBMCChannel,
		lun:      req.LUN & 0x3,
	}
	ireq := &ipmiReq{
		addr:    &addr,
		addrLen: uint32(unsafe.Sizeof(addr)),
		msgid:   id,
		msg: ipmiMsg{
			netfn: byte(req.NetFn),
			cmd:   req.Cmd,
		},
	}
	if len(req.Data) > 0 {
		ireq.msg.data = unsafe.Pointer(&req.Data[0])
		ireq.msg.dataLen = uint16(len(req.Data))
	}

	if err := ioctlSetReq(t.f.Fd(), ipmictlSendCommand, ireq); err != nil {
		return 0, &TransportError{Op: "IPMICTL_SEND_COMMAND", Path: t.f.Name(), Err: err}
	}
	return MsgID(id), nil
}

// Recv waits up to timeout for a response matching id, using a
// level-triggered select on the device fd as the readiness signal, then
// drains the receive-message ioctl. Responses with a mismatching msgid
// are discarded and the wait continues for whatever time remains.
func (t *ioctlTransport) Recv(id MsgID, timeout time.Duration) (*Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return nil, &TransportError{Op: "recv", Err: fmt.Errorf("transport not opened")}
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, &TimeoutError{Op: "recv"}
		}

		fd := int(t.f.Fd())
		rset := &unix.FdSet{}
		fdZero(rset)
		fdSetBit(rset, fd)
		tv := unix.NsecToTimeval(remaining.Nanoseconds())
		n, err := unix.Select(fd+1, rset, nil, nil, &tv)
		if err != nil {
			return nil, &TransportError{Op: "select", Err: err}
		}
		if n == 0 {
			return nil, &TimeoutError{Op: "recv"}
		}

		buf := make([]byte, ipmiBufSize)
		recv := &ipmiRecv{
			addr:    &ipmiSystemInterfaceAddr{},
			addrLen: uint32(unsafe.Sizeof(ipmiSystemInterfaceAddr{})),
		}
		recv.msg.data = unsafe.Pointer(&buf[0])
		recv.msg.dataLen = ipmiBufSize

		// EMSGSIZE means the kernel truncated the payload to our buffer;
		// the partial data is still valid and kept.
		err = ioctlGetRecv(fd, ipmictlReceiveMsg, recv)
		if err != nil && err != unix.EMSGSIZE {
			return nil, &TransportError{Op: "IPMICTL_RECEIVE_MSG", Err: err}
		}

		if recv.msgid != int64(id) {
			t.log.WithFields(logrus.Fields{"want": id, "got": recv.msgid}).Debug("discarding mismatched response")
			continue
		}

		n2 := int(recv.msg.dataLen)
		if n2 > len(buf) {
			n2 = len(buf)
		}
		if n2 < 1 {
			return nil, &ParseError{Struct: "ipmi_recv", Reason: "empty payload, missing completion code"}
		}
		return &Response{CCode: CompletionCode(buf[0]), Data: append([]byte(nil), buf[1:n2]...)}, nil
	}
}

func fdZero(set *unix.FdSet) {
	for i := range set.Bits {
		set.Bits[i] = 0
	}
}

func fdSetBit(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func ioctlSetUint32(fd uintptr, name uintptr, val *uint32) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, name, uintptr(unsafe.Pointer(val)))
	runtime.KeepAlive(val)
	if errno != 0 {
		return errno
	}
	return nil
}

func ioctlSetReq(fd uintptr, name uintptr, req *ipmiReq) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, name, uintptr(unsafe.Pointer(req)))
	runtime.KeepAlive(req)
	if errno != 0 {
		return errno
	}
	return nil
}

func ioctlGetRecv(fd int, name uintptr, recv *ipmiRecv) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), name, uintptr(unsafe.Pointer(recv)))
	runtime.KeepAlive(recv)
	if errno != 0 {
		return errno
	}
	return nil
}
