package mocks

import (
	"context"

	"github.com/dukex/rentflow/pkg/protocol"
	"github.com/stretchr/testify/mock"
)

// MockNotificationSink is a mock implementation of protocol.NotificationSink interface.
type MockNotificationSink struct {
	mock.Mock
}

func (m *MockNotificationSink) CreateNotification(ctx context.Context, notification protocol.Notification) (string, error) {
	args := m.Called(ctx, notification)

	return args.String(0), args.Error(1)
}

// MockTaskStore is a mock implementation of protocol.TaskStore interface.
type MockTaskStore struct {
	mock.Mock
}

func (m *MockTaskStore) CreateTask(ctx context.Context, task protocol.Task) (string, error) {
	args := m.Called(ctx, task)

	return args.String(0), args.Error(1)
}

// MockMailer is a mock implementation of protocol.Mailer interface.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendMail(ctx context.Context, mail protocol.Mail) error {
	args := m.Called(ctx, mail)

	return args.Error(0)
}

// MockRecordStore is a mock implementation of protocol.RecordStore interface.
type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) UpdateField(ctx context.Context, update protocol.RecordUpdate) error {
	args := m.Called(ctx, update)

	return args.Error(0)
}

// MockIncidentStore is a mock implementation of protocol.IncidentStore interface.
type MockIncidentStore struct {
	mock.Mock
}

func (m *MockIncidentStore) CreateIncident(ctx context.Context, incident protocol.Incident) (string, error) {
	args := m.Called(ctx, incident)

	return args.String(0), args.Error(1)
}
