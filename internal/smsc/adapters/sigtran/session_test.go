package sigtran

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradit/smsc-gateway/internal/smsc/domain"
)

// fakeDialer hands out one side of an in-memory pipe and runs the peer
// script against the other side.
type fakeDialer struct {
	mu    sync.Mutex
	dials int
	peer  func(conn net.Conn)
}

func (d *fakeDialer) Dial(ctx context.Context, host string, port int, timeout time.Duration) (net.Conn, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()

	client, server := net.Pipe()
	go d.peer(server)
	return client, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// signalingPeer answers the bring-up handshake, heartbeats and data frames
// the way a cooperating signaling gateway would.
func signalingPeer(conn net.Conn) {
	defer conn.Close()
	for {
		f, err := readFrame(conn)
		if err != nil {
			return
		}
		var reply frame
		switch f.Type {
		case frameASPUP:
			reply = frame{Type: frameASPUPAck}
		case frameASPAC:
			reply = frame{Type: frameASPACAck}
		case frameBeat:
			reply = frame{Type: frameBeatAck}
		case frameData:
			reply = frame{Type: frameDataAck}
		default:
			return
		}
		if err := writeFrame(conn, reply); err != nil {
			return
		}
	}
}

// refusingPeer completes bring-up but rejects every data frame.
func refusingPeer(conn net.Conn) {
	defer conn.Close()
	for {
		f, err := readFrame(conn)
		if err != nil {
			return
		}
		var reply frame
		switch f.Type {
		case frameASPUP:
			reply = frame{Type: frameASPUPAck}
		case frameASPAC:
			reply = frame{Type: frameASPACAck}
		case frameBeat:
			reply = frame{Type: frameBeatAck}
		case frameData:
			reply = frame{Type: "ERR"}
		default:
			return
		}
		if err := writeFrame(conn, reply); err != nil {
			return
		}
	}
}

func testParams() domain.ConnectionParams {
	return domain.ConnectionParams{
		Host: "10.0.0.1",
		Port: 2905,
		M3UA: domain.M3UAParams{ASPID: 1, TrafficMode: "loadshare"},
		SCCP: domain.SCCPParams{LocalGT: "98912000000", RemoteGT: "98912000001", SSN: 8},
	}
}

func newTestPool(dialer Dialer, maxAge time.Duration) *SessionPool {
	return NewSessionPool(dialer, NewStaticIMSIResolver(), 2*time.Second, maxAge, testLogger())
}

func TestDeliver_EstablishesSessionAndReturnsReference(t *testing.T) {
	dialer := &fakeDialer{peer: signalingPeer}
	pool := newTestPool(dialer, 5*time.Minute)

	ref, err := pool.Deliver(context.Background(), "5000", "+989121234567", "hello", testParams())

	require.NoError(t, err)
	n, convErr := strconv.Atoi(ref)
	require.NoError(t, convErr)
	assert.GreaterOrEqual(t, n, 0)
	assert.LessOrEqual(t, n, 255)
	assert.Equal(t, 1, dialer.dialCount())
}

func TestDeliver_ReusesSessionAfterHeartbeat(t *testing.T) {
	dialer := &fakeDialer{peer: signalingPeer}
	pool := newTestPool(dialer, 5*time.Minute)

	_, err := pool.Deliver(context.Background(), "5000", "+989121234567", "first", testParams())
	require.NoError(t, err)

	_, err = pool.Deliver(context.Background(), "5000", "+989121234567", "second", testParams())
	require.NoError(t, err)

	assert.Equal(t, 1, dialer.dialCount())
}

func TestDeliver_StaleSessionIsReestablished(t *testing.T) {
	dialer := &fakeDialer{peer: signalingPeer}
	pool := newTestPool(dialer, 20*time.Millisecond)

	_, err := pool.Deliver(context.Background(), "5000", "+989121234567", "first", testParams())
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, err = pool.Deliver(context.Background(), "5000", "+989121234567", "second", testParams())
	require.NoError(t, err)

	assert.Equal(t, 2, dialer.dialCount())
}

func TestDeliver_HandshakeFailure(t *testing.T) {
	dialer := &fakeDialer{peer: func(conn net.Conn) {
		defer conn.Close()
		if _, err := readFrame(conn); err != nil {
			return
		}
		_ = writeFrame(conn, frame{Type: "ERR"})
	}}
	pool := newTestPool(dialer, 5*time.Minute)

	_, err := pool.Deliver(context.Background(), "5000", "+989121234567", "hello", testParams())

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "10.0.0.1:2905", connErr.Endpoint)
}

func TestDeliver_RejectedSubmitKeepsSessionCached(t *testing.T) {
	dialer := &fakeDialer{peer: refusingPeer}
	pool := newTestPool(dialer, 5*time.Minute)

	_, err := pool.Deliver(context.Background(), "5000", "+989121234567", "first", testParams())
	var delErr *DeliveryError
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, "ack", delErr.Stage)

	// The association survives a rejected submit; the retry must not redial.
	_, err = pool.Deliver(context.Background(), "5000", "+989121234567", "second", testParams())
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, 1, dialer.dialCount())
}

// mutePeer completes bring-up and heartbeats but never acknowledges data,
// leaving the sender to hit its ack deadline.
func mutePeer(conn net.Conn) {
	defer conn.Close()
	for {
		f, err := readFrame(conn)
		if err != nil {
			return
		}
		var reply frame
		switch f.Type {
		case frameASPUP:
			reply = frame{Type: frameASPUPAck}
		case frameASPAC:
			reply = frame{Type: frameASPACAck}
		case frameBeat:
			reply = frame{Type: frameBeatAck}
		case frameData:
			continue
		default:
			return
		}
		if err := writeFrame(conn, reply); err != nil {
			return
		}
	}
}

func TestDeliver_AckTimeoutKeepsSessionCached(t *testing.T) {
	dialer := &fakeDialer{peer: mutePeer}
	pool := NewSessionPool(dialer, NewStaticIMSIResolver(), 100*time.Millisecond, 5*time.Minute, testLogger())

	_, err := pool.Deliver(context.Background(), "5000", "+989121234567", "first", testParams())
	var delErr *DeliveryError
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, "ack", delErr.Stage)

	// A timed-out ack is a delivery failure; the association is kept and
	// the next attempt heartbeats it instead of redialing.
	_, err = pool.Deliver(context.Background(), "5000", "+989121234567", "second", testParams())
	require.ErrorAs(t, err, &delErr)
	assert.Equal(t, "ack", delErr.Stage)
	assert.Equal(t, 1, dialer.dialCount())
}

func TestInvalidate_ForcesFreshBringUp(t *testing.T) {
	dialer := &fakeDialer{peer: signalingPeer}
	pool := newTestPool(dialer, 5*time.Minute)
	params := testParams()

	_, err := pool.Deliver(context.Background(), "5000", "+989121234567", "first", params)
	require.NoError(t, err)

	pool.Invalidate(params.Endpoint())

	_, err = pool.Deliver(context.Background(), "5000", "+989121234567", "second", params)
	require.NoError(t, err)
	assert.Equal(t, 2, dialer.dialCount())
}
