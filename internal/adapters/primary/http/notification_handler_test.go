package http

import (
	"encoding/json"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mw "github.com/sprauser-coder/Cataloro-sub005/internal/adapters/primary/http/middleware"
	"github.com/sprauser-coder/Cataloro-sub005/internal/auth"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/domain"
	apperrors "github.com/sprauser-coder/Cataloro-sub005/internal/core/errors"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/mocks"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/ports"
)

func newNotificationRouter(svc *mocks.MockNotificationService, syncLimiter *mw.RateLimitByKey) (*chi.Mux, *auth.TokenManager) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokenManager := auth.NewTokenManager("test-secret")
	errorHandler := NewErrorHandler(logger)
	handler := NewNotificationHandler(svc, syncLimiter, errorHandler, logger)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(mw.TokenMiddleware(tokenManager))
		r.Route("/notifications", handler.RegisterRoutes)
	})
	return r, tokenManager
}

func TestNotificationHandler_HandleList(t *testing.T) {
	userID := uuid.New()

	t.Run("returns the feed", func(t *testing.T) {
		mockSvc := mocks.NewMockNotificationService()
		router, tm := newNotificationRouter(mockSvc, mw.NewRateLimitByKey(1, 1))

		feed := []*domain.Notification{
			{ID: uuid.New(), UserID: userID, Title: "New message"},
		}
		mockSvc.On("List", mock.Anything, userID, domain.NotificationFilter("unread")).
			Return(feed, nil)

		req := authedRequest(t, tm, userID, stdhttp.MethodGet, "/notifications/?filter=unread", nil)
		recorder := httptest.NewRecorder()

		router.ServeHTTP(recorder, req)

		require.Equal(t, stdhttp.StatusOK, recorder.Code)

		var response ListResponse[domain.Notification]
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Equal(t, 1, response.Count)
		assert.Equal(t, "New message", response.Data[0].Title)
		mockSvc.AssertExpectations(t)
	})

	t.Run("unknown filter returns 400", func(t *testing.T) {
		mockSvc := mocks.NewMockNotificationService()
		router, tm := newNotificationRouter(mockSvc, mw.NewRateLimitByKey(1, 1))

		mockSvc.On("List", mock.Anything, userID, domain.NotificationFilter("archived")).
			Return(nil, domain.ErrUnknownFilter)

		req := authedRequest(t, tm, userID, stdhttp.MethodGet, "/notifications/?filter=archived", nil)
		recorder := httptest.NewRecorder()

		router.ServeHTTP(recorder, req)

		require.Equal(t, stdhttp.StatusBadRequest, recorder.Code)
	})
}

func TestNotificationHandler_HandleUnreadCount(t *testing.T) {
	userID := uuid.New()

	mockSvc := mocks.NewMockNotificationService()
	router, tm := newNotificationRouter(mockSvc, mw.NewRateLimitByKey(1, 1))

	mockSvc.On("CountUnread", mock.Anything, userID).Return(7, nil)

	req := authedRequest(t, tm, userID, stdhttp.MethodGet, "/notifications/unread-count", nil)
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)

	var response struct {
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, 7, response.Data["unreadCount"])
}

func TestNotificationHandler_HandleMarkRead(t *testing.T) {
	userID := uuid.New()
	notificationID := uuid.New()

	t.Run("success", func(t *testing.T) {
		mockSvc := mocks.NewMockNotificationService()
		router, tm := newNotificationRouter(mockSvc, mw.NewRateLimitByKey(1, 1))

		mockSvc.On("MarkRead", mock.Anything, userID, notificationID).Return(nil)

		req := authedRequest(t, tm, userID, stdhttp.MethodPut, "/notifications/"+notificationID.String()+"/read", nil)
		recorder := httptest.NewRecorder()

		router.ServeHTTP(recorder, req)

		require.Equal(t, stdhttp.StatusNoContent, recorder.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc := mocks.NewMockNotificationService()
		router, tm := newNotificationRouter(mockSvc, mw.NewRateLimitByKey(1, 1))

		mockSvc.On("MarkRead", mock.Anything, userID, notificationID).
			Return(apperrors.ErrNotificationNotFound)

		req := authedRequest(t, tm, userID, stdhttp.MethodPut, "/notifications/"+notificationID.String()+"/read", nil)
		recorder := httptest.NewRecorder()

		router.ServeHTTP(recorder, req)

		require.Equal(t, stdhttp.StatusNotFound, recorder.Code)

		var response ErrorResponse
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Equal(t, "NOTIFICATION_NOT_FOUND", response.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		mockSvc := mocks.NewMockNotificationService()
		router, tm := newNotificationRouter(mockSvc, mw.NewRateLimitByKey(1, 1))

		req := authedRequest(t, tm, userID, stdhttp.MethodPut, "/notifications/not-a-uuid/read", nil)
		recorder := httptest.NewRecorder()

		router.ServeHTTP(recorder, req)

		require.Equal(t, stdhttp.StatusBadRequest, recorder.Code)
		mockSvc.AssertNotCalled(t, "MarkRead")
	})
}

func TestNotificationHandler_HandleSync(t *testing.T) {
	userID := uuid.New()

	t.Run("returns the feed with a watermark", func(t *testing.T) {
		mockSvc := mocks.NewMockNotificationService()
		router, tm := newNotificationRouter(mockSvc, mw.NewRateLimitByKey(1, 1))

		serverTime := time.Now().UTC().Truncate(time.Second)
		mockSvc.On("Sync", mock.Anything, userID).Return(&ports.SyncFeed{
			Notifications: []*domain.Notification{},
			UnreadCount:   2,
			ServerTime:    serverTime,
		}, nil)

		req := authedRequest(t, tm, userID, stdhttp.MethodGet, "/notifications/sync", nil)
		recorder := httptest.NewRecorder()

		router.ServeHTTP(recorder, req)

		require.Equal(t, stdhttp.StatusOK, recorder.Code)

		var response struct {
			Data ports.SyncFeed `json:"data"`
		}
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
		assert.Equal(t, 2, response.Data.UnreadCount)
		assert.True(t, serverTime.Equal(response.Data.ServerTime))
	})

	t.Run("per-user rate limit returns 429 with retry hint", func(t *testing.T) {
		mockSvc := mocks.NewMockNotificationService()
		// Burst of one: the second sync in a row is throttled.
		limiter := mw.NewRateLimitByKey(0.01, 1)
		router, tm := newNotificationRouter(mockSvc, limiter)

		mockSvc.On("Sync", mock.Anything, userID).Return(&ports.SyncFeed{
			Notifications: []*domain.Notification{},
			ServerTime:    time.Now().UTC(),
		}, nil)

		first := httptest.NewRecorder()
		router.ServeHTTP(first, authedRequest(t, tm, userID, stdhttp.MethodGet, "/notifications/sync", nil))
		require.Equal(t, stdhttp.StatusOK, first.Code)

		second := httptest.NewRecorder()
		router.ServeHTTP(second, authedRequest(t, tm, userID, stdhttp.MethodGet, "/notifications/sync", nil))

		require.Equal(t, stdhttp.StatusTooManyRequests, second.Code)
		assert.NotEmpty(t, second.Header().Get("Retry-After"))

		var response ErrorResponse
		require.NoError(t, json.NewDecoder(second.Body).Decode(&response))
		assert.Equal(t, "RATE_LIMITED", response.Code)

		mockSvc.AssertNumberOfCalls(t, "Sync", 1)
	})
}

func TestNotificationHandler_HandleDelete(t *testing.T) {
	userID := uuid.New()
	notificationID := uuid.New()

	mockSvc := mocks.NewMockNotificationService()
	router, tm := newNotificationRouter(mockSvc, mw.NewRateLimitByKey(1, 1))

	mockSvc.On("Delete", mock.Anything, userID, notificationID).Return(nil)

	req := authedRequest(t, tm, userID, stdhttp.MethodDelete, "/notifications/"+notificationID.String(), nil)
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusNoContent, recorder.Code)
	mockSvc.AssertExpectations(t)
}

func TestNotificationHandler_HandleMarkAllRead(t *testing.T) {
	userID := uuid.New()

	mockSvc := mocks.NewMockNotificationService()
	router, tm := newNotificationRouter(mockSvc, mw.NewRateLimitByKey(1, 1))

	mockSvc.On("MarkAllRead", mock.Anything, userID).Return(int64(4), nil)

	req := authedRequest(t, tm, userID, stdhttp.MethodPut, "/notifications/read-all", nil)
	recorder := httptest.NewRecorder()

	router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)

	var response struct {
		Data map[string]int64 `json:"data"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
	assert.Equal(t, int64(4), response.Data["updated"])
}
