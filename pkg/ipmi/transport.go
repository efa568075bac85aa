package ipmi

import (
	"time"
)

// DefaultTimeout is the wall-clock deadline for a recv when the caller
// doesn't specify one.
const DefaultTimeout = 5 * time.Second

// Transport is the contract both BMC device backends satisfy: open the
// device, send at most one outstanding request, wait for its matching
// response, and close. Re-architected from the source's process-global
// device handle into an explicit, non-reentrant object a Client owns.
type Transport interface {
	Open(path string) error
	Send(req *Request) (MsgID, error)
	Recv(id MsgID, timeout time.Duration) (*Response, error)
	Close() error
}

// DefaultLinuxPath is the OpenIPMI character device path.
const DefaultLinuxPath = "/dev/ipmi0"

// DefaultIllumosPath is the illumos STREAMS bmc driver path.
const DefaultIllumosPath = "/dev/bmc"

// OpenTransport opens path (falling back to the platform default device
// path when empty) against the backend built for the current platform.
// The two backends are mutually exclusive at the OS level (an illumos
// box has no OpenIPMI ioctl device and a Linux box has no bmc STREAMS
// node), so the build-tagged file compiled for GOOS already is the
// runtime probe: newPlatformTransport/defaultDevicePath resolve to
// whichever of transport_linux.go / transport_illumos.go was compiled in.
func OpenTransport(path string) (Transport, error) {
	if path == "" {
		path = defaultDevicePath()
	}
	t := newPlatformTransport()
	if err := t.Open(path); err != nil {
		return nil, &TransportError{Op: "open", Path: path, Err: err}
	}
	return t, nil
}
