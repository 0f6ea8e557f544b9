package sigtran

import "fmt"

// ConnectionError means the transport association or the M3UA bring-up
// handshake could not be completed; no session is cached after it.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// HeartbeatError means a cached session failed its BEAT/BEAT_ACK exchange
// and was invalidated.
type HeartbeatError struct {
	Endpoint string
	Err      error
}

func (e *HeartbeatError) Error() string {
	return fmt.Sprintf("heartbeat on %s failed: %v", e.Endpoint, e.Err)
}

func (e *HeartbeatError) Unwrap() error { return e.Err }

// DeliveryError means the message could not be encoded, written or
// acknowledged. It does not invalidate the session it happened on.
type DeliveryError struct {
	Stage string // "encode", "write", "ack"
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed at %s: %v", e.Stage, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
