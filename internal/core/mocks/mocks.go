package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/domain"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockNotificationRepository is a mock implementation of ports.NotificationRepository
type MockNotificationRepository struct {
	mock.Mock
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{}
}

func (m *MockNotificationRepository) CreateIfAbsent(ctx context.Context, n *domain.Notification) (*domain.Notification, bool, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Notification), args.Bool(1), args.Error(2)
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

func (m *MockNotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationRepository) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

func (m *MockNotificationRepository) List(ctx context.Context, userID uuid.UUID, filter domain.NotificationFilter) ([]*domain.Notification, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

func (m *MockNotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockNotificationRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// MockPresenceRegistry is a mock implementation of ports.PresenceRegistry
type MockPresenceRegistry struct {
	mock.Mock
}

func NewMockPresenceRegistry() *MockPresenceRegistry {
	return &MockPresenceRegistry{}
}

func (m *MockPresenceRegistry) Register(conn ports.Connection) (uuid.UUID, error) {
	args := m.Called(conn)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockPresenceRegistry) Unregister(connID uuid.UUID) {
	m.Called(connID)
}

func (m *MockPresenceRegistry) Heartbeat(connID uuid.UUID) {
	m.Called(connID)
}

func (m *MockPresenceRegistry) IsOnline(userID uuid.UUID) bool {
	args := m.Called(userID)
	return args.Bool(0)
}

func (m *MockPresenceRegistry) SendToUser(userID uuid.UUID, event domain.Event) (domain.DeliveryResult, int) {
	args := m.Called(userID, event)
	return args.Get(0).(domain.DeliveryResult), args.Int(1)
}

func (m *MockPresenceRegistry) ConnectionCount(userID uuid.UUID) int {
	args := m.Called(userID)
	return args.Int(0)
}

// MockRoomRegistry is a mock implementation of ports.RoomRegistry
type MockRoomRegistry struct {
	mock.Mock
}

func NewMockRoomRegistry() *MockRoomRegistry {
	return &MockRoomRegistry{}
}

func (m *MockRoomRegistry) Subscribe(roomKey string, userID uuid.UUID) {
	m.Called(roomKey, userID)
}

func (m *MockRoomRegistry) Unsubscribe(roomKey string, userID uuid.UUID) {
	m.Called(roomKey, userID)
}

func (m *MockRoomRegistry) Broadcast(roomKey string, event domain.Event, excludeUserID *uuid.UUID) int {
	args := m.Called(roomKey, event, excludeUserID)
	return args.Int(0)
}

func (m *MockRoomRegistry) Members(roomKey string) []uuid.UUID {
	args := m.Called(roomKey)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]uuid.UUID)
}

func (m *MockRoomRegistry) RoomsOf(userID uuid.UUID) []string {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

func (m *MockRoomRegistry) RoomCount() int {
	args := m.Called()
	return args.Int(0)
}

// MockEventRouter is a mock implementation of ports.EventRouter
type MockEventRouter struct {
	mock.Mock
}

func NewMockEventRouter() *MockEventRouter {
	return &MockEventRouter{}
}

func (m *MockEventRouter) Emit(ctx context.Context, params ports.EmitParams) (domain.RouteOutcome, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(domain.RouteOutcome), args.Error(1)
}

func (m *MockEventRouter) Route(ctx context.Context, event domain.Event) (domain.RouteOutcome, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(domain.RouteOutcome), args.Error(1)
}

// MockNotificationService is a mock implementation of ports.NotificationService
type MockNotificationService struct {
	mock.Mock
}

func NewMockNotificationService() *MockNotificationService {
	return &MockNotificationService{}
}

func (m *MockNotificationService) List(ctx context.Context, userID uuid.UUID, filter domain.NotificationFilter) ([]*domain.Notification, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

func (m *MockNotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationService) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

func (m *MockNotificationService) Sync(ctx context.Context, userID uuid.UUID) (*ports.SyncFeed, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.SyncFeed), args.Error(1)
}
