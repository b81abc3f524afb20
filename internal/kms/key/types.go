package key

import (
	"time"

	"github.com/keymint/rsa-kms/internal/kms/authset"
)

// KeyState 密钥状态
//
//nolint:revive // KeyState is the standard naming for key states
type KeyState string

const (
	KeyStateEnabled  KeyState = "Enabled"
	KeyStateDisabled KeyState = "Disabled"
	KeyStateDeleted  KeyState = "Deleted"
)

// KeyMetadata 密钥元数据
// KeySize 和 PublicExponent 从授权集合派生，总是描述实际密钥材料
//
//nolint:revive // KeyMetadata is the standard naming for key metadata
type KeyMetadata struct {
	KeyID          string
	Alias          string
	Description    string
	KeyState       KeyState
	KeySize        uint32
	PublicExponent uint64
	Authorizations *authset.Set
	PolicyID       string
	Tags           map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateKeyRequest 创建密钥请求
// Authorizations 中缺失的密钥长度和公钥指数由生成逻辑补默认值
type CreateKeyRequest struct {
	Alias          string
	Description    string
	Authorizations *authset.Set
	PolicyID       string
	Tags           map[string]string
}

// ImportKeyRequest 导入密钥请求
// KeyMaterial 是 DER 编码的 RSA 私钥（PKCS#8 或 PKCS#1）
type ImportKeyRequest struct {
	Alias          string
	Description    string
	Authorizations *authset.Set
	KeyMaterial    []byte
	PolicyID       string
	Tags           map[string]string
}

// KeyFilter 密钥查询过滤器
//
//nolint:revive // KeyFilter is the standard naming for key filters
type KeyFilter struct {
	State  string
	Alias  string
	Limit  int
	Offset int
}
