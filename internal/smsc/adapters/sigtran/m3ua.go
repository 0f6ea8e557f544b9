package sigtran

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"

	"github.com/aradit/smsc-gateway/internal/smsc/domain"
)

// frameType identifies one message on the association. ASPUP/ASPAC and
// their ACKs are the M3UA bring-up handshake, BEAT/BEAT_ACK the heartbeat,
// DATA carries a MAP payload.
type frameType string

const (
	frameASPUP    frameType = "ASPUP"
	frameASPUPAck frameType = "ASPUP_ACK"
	frameASPAC    frameType = "ASPAC"
	frameASPACAck frameType = "ASPAC_ACK"
	frameBeat     frameType = "BEAT"
	frameBeatAck  frameType = "BEAT_ACK"
	frameData     frameType = "DATA"
	frameDataAck  frameType = "DATA_ACK"
)

// aspParams carries the signaling-point identity during bring-up.
type aspParams struct {
	ASPID          int    `json:"asp_id"`
	RoutingContext *int   `json:"routing_context,omitempty"`
	TrafficMode    string `json:"traffic_mode"`
}

func aspParamsFrom(p domain.M3UAParams) aspParams {
	return aspParams{
		ASPID:          p.ASPID,
		RoutingContext: p.RoutingContext,
		TrafficMode:    p.TrafficMode,
	}
}

// frame is the unit exchanged on the wire: a 4-byte big-endian length
// prefix followed by the JSON body. Full M3UA wire fidelity is out of
// scope; the framing keeps the exchange message-oriented and inspectable.
type frame struct {
	Type    frameType  `json:"type"`
	Params  *aspParams `json:"params,omitempty"`
	Payload []byte     `json:"payload,omitempty"`
}

const maxFrameSize = 64 * 1024

func writeFrame(conn net.Conn, f frame) error {
	body, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", f.Type, err)
	}
	if len(body) > maxFrameSize {
		return fmt.Errorf("%s frame exceeds %d bytes", f.Type, maxFrameSize)
	}

	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(body)))
	copy(buf[4:], body)

	if _, err := conn.Write(buf); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", f.Type, err)
	}
	return nil
}

func readFrame(conn net.Conn) (frame, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return frame{}, fmt.Errorf("failed to read frame header: %w", err)
	}

	size := binary.BigEndian.Uint32(header)
	if size == 0 || size > maxFrameSize {
		return frame{}, fmt.Errorf("invalid frame size %d", size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(conn, body); err != nil {
		return frame{}, fmt.Errorf("failed to read frame body: %w", err)
	}

	var f frame
	if err := json.Unmarshal(body, &f); err != nil {
		return frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	return f, nil
}

// exchange writes one frame and requires a reply of the expected type.
func exchange(conn net.Conn, out frame, want frameType) (frame, error) {
	if err := writeFrame(conn, out); err != nil {
		return frame{}, err
	}
	reply, err := readFrame(conn)
	if err != nil {
		return frame{}, err
	}
	if reply.Type != want {
		return frame{}, fmt.Errorf("expected %s, got %s", want, reply.Type)
	}
	return reply, nil
}
