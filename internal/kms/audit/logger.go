package audit

import (
	"context"

	"github.com/dropbox/godropbox/time2"
	"github.com/keymint/rsa-kms/internal/kms/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Logger 审计日志接口
type Logger interface {
	LogEvent(ctx context.Context, event *AuditEvent) error
}

// logger 审计日志实现
type logger struct {
	metadataStore storage.MetadataStore
	clock         time2.Clock
}

// NewLogger 创建新的审计日志
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewLogger(metadataStore storage.MetadataStore, clock time2.Clock) Logger {
	return &logger{
		metadataStore: metadataStore,
		clock:         clock,
	}
}

// LogEvent 记录审计事件
// 持久化失败时事件仍会输出到结构化日志，避免丢失审计轨迹
func (l *logger) LogEvent(ctx context.Context, event *AuditEvent) error {
	// 设置时间戳（如果未设置）
	if event.Timestamp.IsZero() {
		event.Timestamp = l.clock.Now()
	}

	storageEvent := &storage.AuditEvent{
		Timestamp: event.Timestamp,
		EventType: event.EventType,
		UserID:    event.UserID,
		KeyID:     event.KeyID,
		Operation: event.Operation,
		Result:    event.Result,
		Details:   event.Details,
		IPAddress: event.IPAddress,
	}

	if err := l.metadataStore.SaveAuditLog(ctx, storageEvent); err != nil {
		log.Ctx(ctx).Error().
			Err(err).
			Str("operation", event.Operation).
			Str("key_id", event.KeyID).
			Str("result", event.Result).
			Msg("Failed to persist audit event")
		return errors.Wrap(err, "failed to save audit log")
	}

	return nil
}
