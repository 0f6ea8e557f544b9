package domain

import "time"

// Route binds a destination prefix to an operator. Multiple routes may share
// a prefix; candidates are walked in priority desc, cost asc order.
type Route struct {
	ID         int64     `json:"id"`
	Prefix     string    `json:"prefix"`
	OperatorID int64     `json:"operator_id"`
	Priority   int       `json:"priority"`
	Cost       float64   `json:"cost"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RouteUpdate is one upsert item for route administration; the
// (prefix, operator_id) pair identifies the row.
type RouteUpdate struct {
	Prefix     string  `json:"prefix"`
	OperatorID int64   `json:"operator_id"`
	Priority   int     `json:"priority"`
	Cost       float64 `json:"cost"`
}
