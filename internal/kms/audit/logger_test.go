package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/keymint/rsa-kms/internal/kms/audit"
	"github.com/keymint/rsa-kms/internal/kms/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// auditStore 仅实现审计写入，其余方法走内嵌接口（未实现即 panic）
type auditStore struct {
	storage.MetadataStore
	events  []*storage.AuditEvent
	saveErr error
}

func (s *auditStore) SaveAuditLog(_ context.Context, event *storage.AuditEvent) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.events = append(s.events, event)
	return nil
}

func TestLogEvent(t *testing.T) {
	store := &auditStore{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	logger := audit.NewLogger(store, time2.NewMockClock(now))

	err := logger.LogEvent(context.Background(), &audit.AuditEvent{
		EventType: audit.EventTypeCryptographic,
		KeyID:     "key-123",
		Operation: "sign",
		Result:    audit.ResultSuccess,
	})
	require.NoError(t, err)

	require.Len(t, store.events, 1)
	event := store.events[0]
	assert.Equal(t, audit.EventTypeCryptographic, event.EventType)
	assert.Equal(t, "key-123", event.KeyID)
	assert.Equal(t, "sign", event.Operation)
	assert.Equal(t, audit.ResultSuccess, event.Result)
	// 未设置时间戳时由时钟补齐
	assert.Equal(t, now, event.Timestamp)
}

func TestLogEvent_PreservesExplicitTimestamp(t *testing.T) {
	store := &auditStore{}
	logger := audit.NewLogger(store, time2.NewMockClock(time.Now()))

	explicit := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	err := logger.LogEvent(context.Background(), &audit.AuditEvent{
		Timestamp: explicit,
		EventType: audit.EventTypeKeyManagement,
		Operation: "create_key",
		Result:    audit.ResultSuccess,
	})
	require.NoError(t, err)

	require.Len(t, store.events, 1)
	assert.Equal(t, explicit, store.events[0].Timestamp)
}

func TestLogEvent_PersistFailure(t *testing.T) {
	persistErr := errors.New("connection refused")
	store := &auditStore{saveErr: persistErr}
	logger := audit.NewLogger(store, time2.NewMockClock(time.Now()))

	err := logger.LogEvent(context.Background(), &audit.AuditEvent{
		EventType: audit.EventTypeKeyManagement,
		Operation: "delete_key",
		Result:    audit.ResultFailure,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, persistErr))
}
