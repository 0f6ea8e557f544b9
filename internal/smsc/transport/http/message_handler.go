package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aradit/smsc-gateway/internal/smsc/app"
	"github.com/aradit/smsc-gateway/internal/smsc/domain"
)

// MessageHandler exposes the message lifecycle over HTTP.
type MessageHandler struct {
	service  *app.MessageService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(service *app.MessageService, validate *validator.Validate, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		service:  service,
		validate: validate,
		logger:   logger.With("handler", "message"),
	}
}

// RegisterRoutes mounts the message endpoints on the router.
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Post("/messages/send", h.SendMessage)
	r.Post("/messages/bulk", h.SendBulk)
	r.Get("/messages/{messageID}", h.GetMessage)
	r.Delete("/messages/{messageID}", h.CancelMessage)
}

// SendMessage handles POST /messages/send.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	msg, err := h.service.Send(r.Context(), req.Sender, req.Recipient, req.Content, req.Priority, req.CallbackURL)
	if err != nil {
		h.respondSendError(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, toMessageResponse(msg))
}

// SendBulk handles POST /messages/bulk. Per-item outcomes come back in the
// order the items were submitted.
func (h *MessageHandler) SendBulk(w http.ResponseWriter, r *http.Request) {
	var req BulkSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	items := make([]app.BulkItem, 0, len(req.Messages))
	for _, m := range req.Messages {
		items = append(items, app.BulkItem{
			Sender:    m.Sender,
			Recipient: m.Recipient,
			Content:   m.Content,
			Priority:  m.Priority,
		})
	}

	results := h.service.SendBulk(r.Context(), items, req.CallbackURL)
	respondJSON(w, http.StatusAccepted, map[string]any{"results": results})
}

// GetMessage handles GET /messages/{messageID}.
func (h *MessageHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	msg, err := h.service.Status(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			respondError(w, http.StatusNotFound, "Message not found", "")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to fetch message", "message_id", messageID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch message", "")
		return
	}

	respondJSON(w, http.StatusOK, toMessageResponse(msg))
}

// CancelMessage handles DELETE /messages/{messageID}. A message past the
// cancellable window yields 409, an unknown one 404.
func (h *MessageHandler) CancelMessage(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	cancelled, err := h.service.Cancel(r.Context(), messageID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to cancel message", "message_id", messageID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to cancel message", "")
		return
	}
	if !cancelled {
		if _, statusErr := h.service.Status(r.Context(), messageID); errors.Is(statusErr, domain.ErrMessageNotFound) {
			respondError(w, http.StatusNotFound, "Message not found", "")
			return
		}
		respondError(w, http.StatusConflict, "Message is no longer cancellable", "")
		return
	}

	respondJSON(w, http.StatusOK, CancelResponse{MessageID: messageID, Cancelled: true})
}

func (h *MessageHandler) respondSendError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrRouteNotFound):
		respondError(w, http.StatusUnprocessableEntity, "No route configured for recipient", "")
	case errors.Is(err, domain.ErrNoAvailableOperator):
		respondError(w, http.StatusServiceUnavailable, "No operator currently available for recipient", "")
	default:
		h.logger.ErrorContext(r.Context(), "failed to accept message", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to accept message", "")
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message, details string) {
	respondJSON(w, status, GenericErrorResponse{Error: message, Details: details})
}
