package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// OperatorStatus is the administrative state of a carrier.
type OperatorStatus string

const (
	OperatorStatusActive   OperatorStatus = "active"
	OperatorStatusInactive OperatorStatus = "inactive"
)

// M3UAParams configures the signaling-point bring-up for one association.
type M3UAParams struct {
	ASPID          int    `json:"asp_id"`
	RoutingContext *int   `json:"routing_context,omitempty"`
	TrafficMode    string `json:"traffic_mode"`
}

// SCCPParams configures the addressing context attached after bring-up.
type SCCPParams struct {
	LocalGT  string `json:"local_gt"`
	RemoteGT string `json:"remote_gt"`
	SSN      int    `json:"ssn"`
}

// ConnectionParams is the typed form of an operator's connection_params
// column. Validation happens at decode time so missing keys surface when an
// operator is loaded, not in the middle of an encode.
type ConnectionParams struct {
	Host string     `json:"host"`
	Port int        `json:"port"`
	M3UA M3UAParams `json:"m3ua"`
	SCCP SCCPParams `json:"sccp"`
}

// Endpoint is the session-pool key for these params.
func (p ConnectionParams) Endpoint() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// Validate fills defaults and rejects params a session cannot be built from.
func (p *ConnectionParams) Validate() error {
	if p.Host == "" {
		return fmt.Errorf("connection params: host is required")
	}
	if p.Port <= 0 || p.Port > 65535 {
		return fmt.Errorf("connection params: invalid port %d", p.Port)
	}
	if p.M3UA.ASPID == 0 {
		p.M3UA.ASPID = 1
	}
	if p.M3UA.TrafficMode == "" {
		p.M3UA.TrafficMode = "loadshare"
	}
	if p.SCCP.SSN == 0 {
		p.SCCP.SSN = 8
	}
	return nil
}

// ParseConnectionParams decodes the jsonb column into validated params.
func ParseConnectionParams(raw []byte) (ConnectionParams, error) {
	var params ConnectionParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return ConnectionParams{}, fmt.Errorf("failed to decode connection params: %w", err)
	}
	if err := params.Validate(); err != nil {
		return ConnectionParams{}, err
	}
	return params, nil
}

// Operator is a carrier endpoint traffic can be routed to. MaxTPS is the
// admission ceiling enforced by the capacity gate.
type Operator struct {
	ID               int64            `json:"id"`
	Name             string           `json:"name"`
	CountryCode      string           `json:"country_code"`
	ConnectionParams ConnectionParams `json:"connection_params"`
	Status           OperatorStatus   `json:"status"`
	Priority         int              `json:"priority"`
	MaxTPS           int              `json:"max_tps"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// IsActive reports whether the operator may carry traffic.
func (o *Operator) IsActive() bool {
	return o.Status == OperatorStatusActive
}
