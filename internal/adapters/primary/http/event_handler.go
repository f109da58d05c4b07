package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/sprauser-coder/Cataloro-sub005/internal/adapters/primary/http/middleware"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/domain"
	apperrors "github.com/sprauser-coder/Cataloro-sub005/internal/core/errors"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/ports"
)

// EventHandler exposes the producer API: emitting events into the router and
// managing room subscriptions.
type EventHandler struct {
	router       ports.EventRouter
	rooms        ports.RoomRegistry
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler(
	router ports.EventRouter,
	rooms ports.RoomRegistry,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *EventHandler {
	return &EventHandler{
		router:       router,
		rooms:        rooms,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// RegisterEventRoutes registers the producer routes
func (h *EventHandler) RegisterEventRoutes(r chi.Router) {
	r.Post("/", h.HandleEmit)
}

// RegisterRoomRoutes registers the subscription routes
func (h *EventHandler) RegisterRoomRoutes(r chi.Router) {
	r.Post("/{roomKey}/subscribe", h.HandleSubscribe)
	r.Post("/{roomKey}/unsubscribe", h.HandleUnsubscribe)
}

// EmitEventRequest is the payload for producing an event.
type EmitEventRequest struct {
	Type         string          `json:"type"`
	TargetUserID *uuid.UUID      `json:"targetUserId,omitempty"`
	RoomKey      string          `json:"roomKey,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Title        string          `json:"title,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// HandleEmit routes a producer event. A degraded durable write-through is
// reported as 202 so the caller can retry the write without re-delivering.
func (h *EventHandler) HandleEmit(w http.ResponseWriter, r *http.Request) {
	sourceUserID := mw.UserIDFromContext(r.Context())
	if sourceUserID == uuid.Nil {
		h.errorHandler.Handle(w, r, apperrors.NewUnauthorizedError("authentication required"))
		return
	}

	var req EmitEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid request body"))
		return
	}

	outcome, err := h.router.Emit(r.Context(), ports.EmitParams{
		Type:         domain.EventType(req.Type),
		SourceUserID: sourceUserID,
		TargetUserID: req.TargetUserID,
		RoomKey:      req.RoomKey,
		Payload:      req.Payload,
		Title:        req.Title,
		Message:      req.Message,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrPersistenceDegraded) {
			// Live delivery already happened; surface the partial outcome.
			WriteAccepted(w, outcome)
			return
		}
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteCreated(w, outcome)
}

// HandleSubscribe adds the authenticated user to a room.
func (h *EventHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	userID := mw.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		h.errorHandler.Handle(w, r, apperrors.NewUnauthorizedError("authentication required"))
		return
	}

	roomKey := chi.URLParam(r, "roomKey")
	if roomKey == "" {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(apperrors.ErrBadRequest, "Room key is required"))
		return
	}

	h.rooms.Subscribe(roomKey, userID)
	WriteNoContent(w)
}

// HandleUnsubscribe removes the authenticated user from a room.
func (h *EventHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := mw.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		h.errorHandler.Handle(w, r, apperrors.NewUnauthorizedError("authentication required"))
		return
	}

	roomKey := chi.URLParam(r, "roomKey")
	if roomKey == "" {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(apperrors.ErrBadRequest, "Room key is required"))
		return
	}

	h.rooms.Unsubscribe(roomKey, userID)
	WriteNoContent(w)
}
