package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrKeyNotFound 密钥记录不存在
	ErrKeyNotFound = errors.New("key record not found")
	// ErrPolicyNotFound 策略不存在
	ErrPolicyNotFound = errors.New("policy not found")
	// ErrAliasConflict 别名已被占用
	ErrAliasConflict = errors.New("key alias already in use")
)

// MetadataStore 定义元数据存储接口
// 所有存储后端实现（PostgreSQL、文件系统等）都必须实现此接口
//
//nolint:interfacebloat // MetadataStore intentionally has many methods for comprehensive storage operations
type MetadataStore interface {
	// 密钥记录操作
	SaveKeyRecord(ctx context.Context, record *KeyRecord) error
	GetKeyRecord(ctx context.Context, keyID string) (*KeyRecord, error)
	GetKeyRecordByAlias(ctx context.Context, alias string) (*KeyRecord, error)
	UpdateKeyState(ctx context.Context, keyID string, state string, updatedAt time.Time) error
	DeleteKeyRecord(ctx context.Context, keyID string) error
	ListKeyRecords(ctx context.Context, filter *KeyFilter) ([]*KeyRecord, error)

	// 策略操作
	SavePolicy(ctx context.Context, policy *Policy) error
	GetPolicy(ctx context.Context, policyID string) (*Policy, error)
	ListPolicies(ctx context.Context) ([]*Policy, error)
	DeletePolicy(ctx context.Context, policyID string) error

	// 审计日志操作
	SaveAuditLog(ctx context.Context, event *AuditEvent) error
	QueryAuditLogs(ctx context.Context, filter *AuditLogFilter) ([]*AuditEvent, error)
}

// KeyFilter 密钥查询过滤器
type KeyFilter struct {
	State  string // 密钥状态过滤
	Alias  string // 别名过滤（前缀匹配）
	Limit  int    // 返回数量限制
	Offset int    // 偏移量
}

// AuditLogFilter 审计日志查询过滤器
type AuditLogFilter struct {
	StartTime *time.Time
	EndTime   *time.Time
	KeyID     string
	UserID    string
	EventType string
	Operation string
	Result    string
	Limit     int
	Offset    int
}
