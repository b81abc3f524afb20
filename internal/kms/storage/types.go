package storage

import (
	"time"
)

// KeyRecord 密钥持久化记录
// Material 是 HSM 引擎导出的不透明 key blob，
// Authorizations 是密钥授权集合的 JSON 编码
type KeyRecord struct {
	KeyID          string
	Alias          string
	Description    string
	KeyState       string
	Material       []byte
	Authorizations []byte
	PolicyID       string
	Tags           map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Policy 策略定义
type Policy struct {
	PolicyID    string
	Description string
	Document    []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AuditEvent 审计事件
type AuditEvent struct {
	Timestamp time.Time
	EventType string
	UserID    string
	KeyID     string
	Operation string
	Result    string
	Details   map[string]interface{}
	IPAddress string
}
