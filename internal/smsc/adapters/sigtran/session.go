package sigtran

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/aradit/smsc-gateway/internal/smsc/domain"
)

// session is one established association with its SCCP addressing context
// attached. Access is serialized by the owning endpoint's lock.
type session struct {
	conn     net.Conn
	sccp     domain.SCCPParams
	lastUsed time.Time
}

// endpoint owns the session lifecycle for one host:port key. Its mutex is
// held across validate/establish/deliver, which both prevents two workers
// from re-establishing the same endpoint and keeps at most one outstanding
// delivery per session so MAP references never interleave on the wire.
type endpoint struct {
	mu   sync.Mutex
	sess *session
}

// SessionPool maintains one reusable session per operator endpoint and
// performs MAP SMS-SUBMIT deliveries over them. It implements the delivery
// contract consumed by the lifecycle coordinator.
type SessionPool struct {
	dialer   Dialer
	resolver IMSIResolver
	timeout  time.Duration // bound on dial, handshake, heartbeat and ack waits
	maxAge   time.Duration // hard staleness bound on cached sessions
	logger   *slog.Logger

	mu        sync.Mutex
	endpoints map[string]*endpoint
}

// NewSessionPool creates a SessionPool. The reference configuration uses a
// 5-second protocol timeout and a 300-second session age bound.
func NewSessionPool(dialer Dialer, resolver IMSIResolver, timeout, maxAge time.Duration, logger *slog.Logger) *SessionPool {
	return &SessionPool{
		dialer:    dialer,
		resolver:  resolver,
		timeout:   timeout,
		maxAge:    maxAge,
		logger:    logger.With("component", "sigtran_pool"),
		endpoints: make(map[string]*endpoint),
	}
}

// Deliver sends one SMS-SUBMIT over the endpoint's session, establishing or
// refreshing it as needed, and returns the message reference on success.
// Handshake problems surface as *ConnectionError, a failed or missing
// acknowledgment as *DeliveryError; the latter leaves the session cached.
func (p *SessionPool) Deliver(ctx context.Context, sender, recipient, content string, params domain.ConnectionParams) (string, error) {
	ep := p.endpoint(params.Endpoint())
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.sess != nil && !p.validate(ctx, params.Endpoint(), ep.sess) {
		p.closeSession(ep)
	}
	if ep.sess == nil {
		sess, err := p.establish(ctx, params)
		if err != nil {
			return "", err
		}
		ep.sess = sess
	}

	ref, err := p.submit(ctx, ep.sess, sender, recipient, content)
	if err != nil {
		// A missed ack is a delivery failure, not a connection failure;
		// the session stays cached for the next attempt.
		return "", err
	}

	ep.sess.lastUsed = time.Now()
	return ref, nil
}

// Invalidate drops the cached session for an endpoint, forcing a fresh
// bring-up on next use.
func (p *SessionPool) Invalidate(endpointKey string) {
	p.mu.Lock()
	ep, ok := p.endpoints[endpointKey]
	p.mu.Unlock()
	if !ok {
		return
	}

	ep.mu.Lock()
	defer ep.mu.Unlock()
	p.closeSession(ep)
}

func (p *SessionPool) endpoint(key string) *endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	ep, ok := p.endpoints[key]
	if !ok {
		ep = &endpoint{}
		p.endpoints[key] = ep
	}
	return ep
}

func (p *SessionPool) closeSession(ep *endpoint) {
	if ep.sess == nil {
		return
	}
	if err := ep.sess.conn.Close(); err != nil {
		p.logger.Debug("error closing session", "error", err)
	}
	ep.sess = nil
}

// validate re-checks a cached session before reuse: sessions past the age
// bound are stale outright, anything younger must answer a heartbeat.
func (p *SessionPool) validate(ctx context.Context, endpointKey string, sess *session) bool {
	if time.Since(sess.lastUsed) > p.maxAge {
		p.logger.InfoContext(ctx, "session past age bound, reconnecting", "endpoint", endpointKey)
		return false
	}

	if err := sess.conn.SetDeadline(time.Now().Add(p.timeout)); err != nil {
		return false
	}
	if _, err := exchange(sess.conn, frame{Type: frameBeat}, frameBeatAck); err != nil {
		hbErr := &HeartbeatError{Endpoint: endpointKey, Err: err}
		p.logger.WarnContext(ctx, "session heartbeat failed, invalidating", "error", hbErr)
		return false
	}
	return true
}

// establish runs the full bring-up: dial, ASPUP/ASPUP_ACK, ASPAC/ASPAC_ACK,
// then attaches the SCCP addressing context. Nothing is cached on failure.
func (p *SessionPool) establish(ctx context.Context, params domain.ConnectionParams) (*session, error) {
	endpointKey := params.Endpoint()

	conn, err := p.dialer.Dial(ctx, params.Host, params.Port, p.timeout)
	if err != nil {
		return nil, &ConnectionError{Endpoint: endpointKey, Err: err}
	}

	asp := aspParamsFrom(params.M3UA)
	if err := conn.SetDeadline(time.Now().Add(p.timeout)); err != nil {
		_ = conn.Close()
		return nil, &ConnectionError{Endpoint: endpointKey, Err: err}
	}
	if _, err := exchange(conn, frame{Type: frameASPUP, Params: &asp}, frameASPUPAck); err != nil {
		_ = conn.Close()
		return nil, &ConnectionError{Endpoint: endpointKey, Err: fmt.Errorf("ASPUP handshake: %w", err)}
	}

	if err := conn.SetDeadline(time.Now().Add(p.timeout)); err != nil {
		_ = conn.Close()
		return nil, &ConnectionError{Endpoint: endpointKey, Err: err}
	}
	if _, err := exchange(conn, frame{Type: frameASPAC, Params: &asp}, frameASPACAck); err != nil {
		_ = conn.Close()
		return nil, &ConnectionError{Endpoint: endpointKey, Err: fmt.Errorf("ASPAC handshake: %w", err)}
	}

	p.logger.InfoContext(ctx, "session established", "endpoint", endpointKey, "asp_id", params.M3UA.ASPID)
	return &session{
		conn:     conn,
		sccp:     params.SCCP,
		lastUsed: time.Now(),
	}, nil
}

// submit encodes and writes one SMS-SUBMIT and blocks for the acknowledgment.
func (p *SessionPool) submit(ctx context.Context, sess *session, sender, recipient, content string) (string, error) {
	imsi, err := p.resolver.ResolveIMSI(ctx, recipient)
	if err != nil {
		return "", &DeliveryError{Stage: "encode", Err: fmt.Errorf("IMSI resolution: %w", err)}
	}

	ref := newMessageReference()
	payload, err := encodeSubmit(buildSubmit(imsi, sender, recipient, content, ref))
	if err != nil {
		return "", &DeliveryError{Stage: "encode", Err: err}
	}

	if err := sess.conn.SetDeadline(time.Now().Add(p.timeout)); err != nil {
		return "", &DeliveryError{Stage: "write", Err: err}
	}
	if err := writeFrame(sess.conn, frame{Type: frameData, Payload: payload}); err != nil {
		return "", &DeliveryError{Stage: "write", Err: err}
	}

	reply, err := readFrame(sess.conn)
	if err != nil {
		return "", &DeliveryError{Stage: "ack", Err: err}
	}
	if reply.Type != frameDataAck {
		return "", &DeliveryError{Stage: "ack", Err: fmt.Errorf("expected %s, got %s", frameDataAck, reply.Type)}
	}

	return fmt.Sprintf("%d", ref), nil
}
