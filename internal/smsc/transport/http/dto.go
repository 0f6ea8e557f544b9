package http

import (
	"time"

	"github.com/aradit/smsc-gateway/internal/smsc/domain"
)

// SendMessageRequest is the payload for POST /messages/send.
type SendMessageRequest struct {
	Sender      string  `json:"sender" validate:"required,max=20"`
	Recipient   string  `json:"recipient" validate:"required,max=20"`
	Content     string  `json:"content" validate:"required,min=1"`
	Priority    int     `json:"priority" validate:"omitempty,min=1,max=9"`
	CallbackURL *string `json:"callback_url,omitempty" validate:"omitempty,url"`
}

// BulkItemRequest is one message of a bulk send.
type BulkItemRequest struct {
	Sender    string `json:"sender" validate:"required,max=20"`
	Recipient string `json:"recipient" validate:"required,max=20"`
	Content   string `json:"content" validate:"required,min=1"`
	Priority  int    `json:"priority" validate:"omitempty,min=1,max=9"`
}

// BulkSendRequest is the payload for POST /messages/bulk. The batch size
// bound lives here, at the boundary, not in the coordinator.
type BulkSendRequest struct {
	Messages    []BulkItemRequest `json:"messages" validate:"required,min=1,max=1000,dive"`
	CallbackURL *string           `json:"callback_url,omitempty" validate:"omitempty,url"`
}

// MessageResponse mirrors one message's externally visible state.
type MessageResponse struct {
	MessageID    string               `json:"message_id"`
	Sender       string               `json:"sender"`
	Recipient    string               `json:"recipient"`
	Status       domain.MessageStatus `json:"status"`
	OperatorID   int64                `json:"operator_id"`
	ErrorMessage *string              `json:"error_message,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// CancelResponse is the payload for DELETE /messages/{message_id}.
type CancelResponse struct {
	MessageID string `json:"message_id"`
	Cancelled bool   `json:"cancelled"`
}

// RouteItemRequest is one route upsert of PUT /routes.
type RouteItemRequest struct {
	Prefix     string  `json:"prefix" validate:"required,max=20"`
	OperatorID int64   `json:"operator_id" validate:"required"`
	Priority   int     `json:"priority"`
	Cost       float64 `json:"cost" validate:"gte=0"`
}

// UpdateRoutesRequest is the payload for PUT /routes.
type UpdateRoutesRequest struct {
	Routes []RouteItemRequest `json:"routes" validate:"required,min=1,dive"`
}

// GenericErrorResponse is the error envelope for every endpoint.
type GenericErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toMessageResponse(msg *domain.Message) MessageResponse {
	return MessageResponse{
		MessageID:    msg.MessageID,
		Sender:       msg.Sender,
		Recipient:    msg.Recipient,
		Status:       msg.Status,
		OperatorID:   msg.OperatorID,
		ErrorMessage: msg.ErrorMessage,
		CreatedAt:    msg.CreatedAt,
		UpdatedAt:    msg.UpdatedAt,
	}
}
