package types

import (
	"strconv"

	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
)

// 密钥用途
var supportedPurposes = []string{"SIGN", "VERIFY", "ENCRYPT", "DECRYPT"}

// 填充模式
var supportedPaddings = []string{"NONE", "RSA_OAEP", "RSA_PKCS1_V1_5_ENCRYPT"}

// 摘要算法
var supportedDigests = []string{"NONE", "SHA256", "SHA512"}

// PostGenerateKeyPayload 生成密钥请求
// key_size 和 public_exponent 缺省时由服务端补默认值
type PostGenerateKeyPayload struct {
	// 密钥别名
	Alias string `json:"alias,omitempty"`

	// 描述
	Description string `json:"description,omitempty"`

	// 密钥长度（比特）
	KeySize int64 `json:"key_size,omitempty"`

	// RSA 公钥指数
	PublicExponent int64 `json:"public_exponent,omitempty"`

	// 密钥用途
	// Required: true
	Purposes []string `json:"purposes"`

	// 填充模式
	Padding string `json:"padding,omitempty"`

	// 摘要算法
	Digest string `json:"digest,omitempty"`

	// 绑定的策略 ID
	PolicyID string `json:"policy_id,omitempty"`

	// 标签
	Tags map[string]string `json:"tags,omitempty"`
}

// Validate validates this post generate key payload
func (m *PostGenerateKeyPayload) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("purposes", "body", m.Purposes); err != nil {
		res = append(res, err)
	}

	for i, purpose := range m.Purposes {
		if err := validate.EnumCase("purposes."+strconv.Itoa(i), "body", purpose, toInterfaceSlice(supportedPurposes), true); err != nil {
			res = append(res, err)
		}
	}

	if m.Padding != "" {
		if err := validate.EnumCase("padding", "body", m.Padding, toInterfaceSlice(supportedPaddings), true); err != nil {
			res = append(res, err)
		}
	}

	if m.Digest != "" {
		if err := validate.EnumCase("digest", "body", m.Digest, toInterfaceSlice(supportedDigests), true); err != nil {
			res = append(res, err)
		}
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}

	return nil
}

// PostImportKeyPayload 导入密钥请求
// 显式指定的 key_size 和 public_exponent 必须与材料一致
type PostImportKeyPayload struct {
	// 密钥别名
	Alias string `json:"alias,omitempty"`

	// 描述
	Description string `json:"description,omitempty"`

	// DER 编码的 RSA 私钥（PKCS#8 或 PKCS#1），base64
	// Required: true
	KeyMaterial *strfmt.Base64 `json:"key_material"`

	// 密钥长度（比特）
	KeySize int64 `json:"key_size,omitempty"`

	// RSA 公钥指数
	PublicExponent int64 `json:"public_exponent,omitempty"`

	// 密钥用途
	// Required: true
	Purposes []string `json:"purposes"`

	// 填充模式
	Padding string `json:"padding,omitempty"`

	// 摘要算法
	Digest string `json:"digest,omitempty"`

	// 绑定的策略 ID
	PolicyID string `json:"policy_id,omitempty"`

	// 标签
	Tags map[string]string `json:"tags,omitempty"`
}

// Validate validates this post import key payload
func (m *PostImportKeyPayload) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("key_material", "body", m.KeyMaterial); err != nil {
		res = append(res, err)
	}
	if err := validate.Required("purposes", "body", m.Purposes); err != nil {
		res = append(res, err)
	}

	for i, purpose := range m.Purposes {
		if err := validate.EnumCase("purposes."+strconv.Itoa(i), "body", purpose, toInterfaceSlice(supportedPurposes), true); err != nil {
			res = append(res, err)
		}
	}

	if m.Padding != "" {
		if err := validate.EnumCase("padding", "body", m.Padding, toInterfaceSlice(supportedPaddings), true); err != nil {
			res = append(res, err)
		}
	}

	if m.Digest != "" {
		if err := validate.EnumCase("digest", "body", m.Digest, toInterfaceSlice(supportedDigests), true); err != nil {
			res = append(res, err)
		}
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}

	return nil
}

// KeyResponse 密钥元数据响应
type KeyResponse struct {
	// 密钥 ID
	// Required: true
	KeyID *string `json:"key_id"`

	// 别名
	Alias string `json:"alias,omitempty"`

	// 描述
	Description string `json:"description,omitempty"`

	// 密钥状态
	// Required: true
	KeyState *string `json:"key_state"`

	// 密钥长度（比特）
	KeySize int64 `json:"key_size,omitempty"`

	// RSA 公钥指数
	PublicExponent int64 `json:"public_exponent,omitempty"`

	// 绑定的策略 ID
	PolicyID string `json:"policy_id,omitempty"`

	// 标签
	Tags map[string]string `json:"tags,omitempty"`

	// 创建时间
	CreatedAt strfmt.DateTime `json:"created_at,omitempty"`

	// 更新时间
	UpdatedAt strfmt.DateTime `json:"updated_at,omitempty"`
}

// Validate validates this key response
func (m *KeyResponse) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("key_id", "body", m.KeyID); err != nil {
		res = append(res, err)
	}
	if err := validate.Required("key_state", "body", m.KeyState); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}

	return nil
}

// ListKeysResponse 密钥列表响应
type ListKeysResponse struct {
	// 密钥列表
	// Required: true
	Keys []*KeyResponse `json:"keys"`
}

// Validate validates this list keys response
func (m *ListKeysResponse) Validate(formats strfmt.Registry) error {
	var res []error

	if m.Keys == nil {
		if err := validate.Required("keys", "body", m.Keys); err != nil {
			res = append(res, err)
		}
	}

	for i := range m.Keys {
		if m.Keys[i] == nil {
			continue
		}
		if err := m.Keys[i].Validate(formats); err != nil {
			res = append(res, err)
		}
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}

	return nil
}

func toInterfaceSlice(values []string) []interface{} {
	result := make([]interface{}, 0, len(values))
	for _, v := range values {
		result = append(result, v)
	}
	return result
}
