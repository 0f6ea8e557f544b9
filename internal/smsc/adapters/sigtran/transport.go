package sigtran

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ishidawataru/sctp"
)

// Dialer opens the transport association to an operator endpoint. The
// session pool only depends on this interface; tests plug in an in-memory
// pipe, production uses SCTP.
type Dialer interface {
	Dial(ctx context.Context, host string, port int, timeout time.Duration) (net.Conn, error)
}

// SCTPDialer dials a real SCTP association.
type SCTPDialer struct{}

func (SCTPDialer) Dial(ctx context.Context, host string, port int, timeout time.Duration) (net.Conn, error) {
	ip, err := net.ResolveIPAddr("ip", host)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", host, err)
	}

	raddr := &sctp.SCTPAddr{
		IPAddrs: []net.IPAddr{*ip},
		Port:    port,
	}

	type dialResult struct {
		conn *sctp.SCTPConn
		err  error
	}
	resultChan := make(chan dialResult, 1)
	go func() {
		conn, err := sctp.DialSCTP("sctp", nil, raddr)
		resultChan <- dialResult{conn: conn, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("dial %s:%d timed out after %s", host, port, timeout)
	case res := <-resultChan:
		if res.err != nil {
			return nil, fmt.Errorf("failed to dial %s:%d: %w", host, port, res.err)
		}
		return &sctpConn{SCTPConn: res.conn}, nil
	}
}

// sctpConn adapts *sctp.SCTPConn to net.Conn; the deadline methods delegate
// when the underlying connection supports them.
type sctpConn struct {
	*sctp.SCTPConn
}

func (c *sctpConn) SetDeadline(t time.Time) error {
	if d, ok := interface{}(c.SCTPConn).(interface{ SetDeadline(time.Time) error }); ok {
		return d.SetDeadline(t)
	}
	return nil
}

func (c *sctpConn) SetReadDeadline(t time.Time) error {
	if d, ok := interface{}(c.SCTPConn).(interface{ SetReadDeadline(time.Time) error }); ok {
		return d.SetReadDeadline(t)
	}
	return nil
}

func (c *sctpConn) SetWriteDeadline(t time.Time) error {
	if d, ok := interface{}(c.SCTPConn).(interface{ SetWriteDeadline(time.Time) error }); ok {
		return d.SetWriteDeadline(t)
	}
	return nil
}

func (c *sctpConn) LocalAddr() net.Addr {
	if a, ok := interface{}(c.SCTPConn).(interface{ LocalAddr() net.Addr }); ok {
		return a.LocalAddr()
	}
	return nil
}

func (c *sctpConn) RemoteAddr() net.Addr {
	if a, ok := interface{}(c.SCTPConn).(interface{ RemoteAddr() net.Addr }); ok {
		return a.RemoteAddr()
	}
	return nil
}
