package ipmi

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Client is the IPMI command layer: it owns a Transport, the current SDR
// reservation id, and the single mutex that serializes all BMC access.
// Re-architected from the source's process-global transport/reservation
// state into an explicit object the scanner and collector are handed.
type Client struct {
	mu      sync.Mutex
	t       Transport
	timeout time.Duration
	resID   uint16
	haveRes bool
	log     *logrus.Entry

	// resRetryDelay overrides the reservation-retry sleep in GetSDR; zero
	// means use reservationRetryDelay. Only ever shrunk by tests that
	// build a Client directly instead of going through NewClient.
	resRetryDelay time.Duration
}

// NewClient opens the BMC device at path (platform default if empty) and
// returns a ready Client.
func NewClient(path string) (*Client, error) {
	t, err := OpenTransport(path)
	if err != nil {
		return nil, err
	}
	return &Client{
		t:       t,
		timeout: DefaultTimeout,
		log:     logrus.WithField("component", "ipmi"),
	}, nil
}

// NewClientForTesting builds a Client around an already-open Transport,
// bypassing OpenTransport's real device probe. Exported so pkg/sensor and
// pkg/collector tests can drive the command layer against a fake BMC
// without an actual device node; production code always goes through
// NewClient.
func NewClientForTesting(t Transport, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{t: t, timeout: timeout, log: logrus.WithField("component", "ipmi")}
}

// SetReservationRetryDelay overrides GetSDR's sleep between reservation
// retries. Exported for tests that need the retry ladder to run without
// real wall-clock delay; production code relies on the 1s default.
func (c *Client) SetReservationRetryDelay(d time.Duration) { c.resRetryDelay = d }

// Close releases the underlying transport.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t.Close()
}

// exchange sends req and waits for its matching response. Holding c.mu
// for the whole round trip is what gives the transport its single
// outstanding request at a time guarantee across concurrent collector
// invocations.
func (c *Client) exchange(req *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exchangeLocked(req)
}

func (c *Client) exchangeLocked(req *Request) (*Response, error) {
	id, err := c.t.Send(req)
	if err != nil {
		return nil, err
	}
	return c.t.Recv(id, c.timeout)
}
