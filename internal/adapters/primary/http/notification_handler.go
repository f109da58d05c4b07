package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/sprauser-coder/Cataloro-sub005/internal/adapters/primary/http/middleware"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/domain"
	apperrors "github.com/sprauser-coder/Cataloro-sub005/internal/core/errors"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/ports"
)

// NotificationHandler serves the per-user notification feed and the polling
// sync endpoint.
type NotificationHandler struct {
	service      ports.NotificationService
	syncLimiter  *mw.RateLimitByKey
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(
	service ports.NotificationService,
	syncLimiter *mw.RateLimitByKey,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *NotificationHandler {
	return &NotificationHandler{
		service:      service,
		syncLimiter:  syncLimiter,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// RegisterRoutes registers the notification routes
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Get("/unread-count", h.HandleUnreadCount)
	r.Get("/sync", h.HandleSync)
	r.Put("/read-all", h.HandleMarkAllRead)
	r.Put("/{notificationID}/read", h.HandleMarkRead)
	r.Delete("/{notificationID}", h.HandleDelete)
}

// HandleList returns the user's notifications, optionally filtered by read
// state via the `filter` query parameter (all, unread, read).
func (h *NotificationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := mw.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		h.errorHandler.Handle(w, r, apperrors.NewUnauthorizedError("authentication required"))
		return
	}

	filter := domain.NotificationFilter(r.URL.Query().Get("filter"))

	notifications, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteList(w, notifications)
}

// HandleUnreadCount returns the number of unread notifications.
func (h *NotificationHandler) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := mw.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		h.errorHandler.Handle(w, r, apperrors.NewUnauthorizedError("authentication required"))
		return
	}

	count, err := h.service.CountUnread(r.Context(), userID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteSuccess(w, map[string]int{"unreadCount": count})
}

// HandleSync serves the polling fallback. It is rate limited per user, not
// per IP, so one client stuck in a tight retry loop cannot starve others
// behind the same NAT.
func (h *NotificationHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	userID := mw.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		h.errorHandler.Handle(w, r, apperrors.NewUnauthorizedError("authentication required"))
		return
	}

	if h.syncLimiter != nil && !h.syncLimiter.Allow(userID.String()) {
		retryAfter := h.syncLimiter.Reserve(userID.String())
		h.logger.WarnContext(r.Context(), "sync rate limit exceeded",
			slog.String("user_id", userID.String()),
			slog.Duration("retry_after", retryAfter))
		mw.WriteRateLimited(w, retryAfter)
		return
	}

	feed, err := h.service.Sync(r.Context(), userID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteSuccess(w, feed)
}

// HandleMarkRead marks a single notification as read.
func (h *NotificationHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID := mw.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		h.errorHandler.Handle(w, r, apperrors.NewUnauthorizedError("authentication required"))
		return
	}

	notificationID, err := uuid.Parse(chi.URLParam(r, "notificationID"))
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid notification ID"))
		return
	}

	if err := h.service.MarkRead(r.Context(), userID, notificationID); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteNoContent(w)
}

// HandleMarkAllRead marks every unread notification as read and reports how
// many were affected.
func (h *NotificationHandler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := mw.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		h.errorHandler.Handle(w, r, apperrors.NewUnauthorizedError("authentication required"))
		return
	}

	updated, err := h.service.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteSuccess(w, map[string]int64{"updated": updated})
}

// HandleDelete removes a notification from the user's feed.
func (h *NotificationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID := mw.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		h.errorHandler.Handle(w, r, apperrors.NewUnauthorizedError("authentication required"))
		return
	}

	notificationID, err := uuid.Parse(chi.URLParam(r, "notificationID"))
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(err, "Invalid notification ID"))
		return
	}

	if err := h.service.Delete(r.Context(), userID, notificationID); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteNoContent(w)
}
