package domain

import "errors"

// Accept-path failures. Routing and capacity errors abort a send before
// anything is persisted.
var (
	// ErrRouteNotFound means no configured prefix matches the recipient.
	ErrRouteNotFound = errors.New("no route found for recipient")

	// ErrNoAvailableOperator means a prefix matched but every candidate
	// operator is inactive or over its TPS ceiling.
	ErrNoAvailableOperator = errors.New("no active operator available for route")

	// ErrMessageNotFound is returned by lookups for an unknown message_id.
	ErrMessageNotFound = errors.New("message not found")

	// ErrOperatorNotFound is returned by lookups for an unknown operator id.
	ErrOperatorNotFound = errors.New("operator not found")
)
