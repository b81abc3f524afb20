package types

import (
	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
)

// PostSignPayload 签名请求
// message 必须恰好等于密钥模数长度（无填充签名）
type PostSignPayload struct {
	// 待签名消息，base64
	// Required: true
	Message *strfmt.Base64 `json:"message"`
}

// Validate validates this post sign payload
func (m *PostSignPayload) Validate(_ strfmt.Registry) error {
	if err := validate.Required("message", "body", m.Message); err != nil {
		return errors.CompositeValidationError(err)
	}

	return nil
}

// SignResponse 签名响应
type SignResponse struct {
	// 密钥 ID
	// Required: true
	KeyID *string `json:"key_id"`

	// 签名，base64
	// Required: true
	Signature strfmt.Base64 `json:"signature"`
}

// Validate validates this sign response
func (m *SignResponse) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("key_id", "body", m.KeyID); err != nil {
		res = append(res, err)
	}
	if err := validate.Required("signature", "body", m.Signature); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}

	return nil
}

// PostVerifyPayload 验签请求
type PostVerifyPayload struct {
	// 原始消息，base64
	// Required: true
	Message *strfmt.Base64 `json:"message"`

	// 待验证签名，base64
	// Required: true
	Signature *strfmt.Base64 `json:"signature"`
}

// Validate validates this post verify payload
func (m *PostVerifyPayload) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("message", "body", m.Message); err != nil {
		res = append(res, err)
	}
	if err := validate.Required("signature", "body", m.Signature); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}

	return nil
}

// VerifyResponse 验签响应
type VerifyResponse struct {
	// 密钥 ID
	// Required: true
	KeyID *string `json:"key_id"`

	// 签名是否有效
	// Required: true
	Valid *bool `json:"valid"`
}

// Validate validates this verify response
func (m *VerifyResponse) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("key_id", "body", m.KeyID); err != nil {
		res = append(res, err)
	}
	if err := validate.Required("valid", "body", m.Valid); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}

	return nil
}

// PostEncryptPayload 加密请求
type PostEncryptPayload struct {
	// 明文，base64
	// Required: true
	Plaintext *strfmt.Base64 `json:"plaintext"`
}

// Validate validates this post encrypt payload
func (m *PostEncryptPayload) Validate(_ strfmt.Registry) error {
	if err := validate.Required("plaintext", "body", m.Plaintext); err != nil {
		return errors.CompositeValidationError(err)
	}

	return nil
}

// EncryptResponse 加密响应
type EncryptResponse struct {
	// 密钥 ID
	// Required: true
	KeyID *string `json:"key_id"`

	// 密文，base64
	// Required: true
	Ciphertext strfmt.Base64 `json:"ciphertext"`
}

// Validate validates this encrypt response
func (m *EncryptResponse) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("key_id", "body", m.KeyID); err != nil {
		res = append(res, err)
	}
	if err := validate.Required("ciphertext", "body", m.Ciphertext); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}

	return nil
}

// PostDecryptPayload 解密请求
type PostDecryptPayload struct {
	// 密文，base64
	// Required: true
	Ciphertext *strfmt.Base64 `json:"ciphertext"`
}

// Validate validates this post decrypt payload
func (m *PostDecryptPayload) Validate(_ strfmt.Registry) error {
	if err := validate.Required("ciphertext", "body", m.Ciphertext); err != nil {
		return errors.CompositeValidationError(err)
	}

	return nil
}

// DecryptResponse 解密响应
type DecryptResponse struct {
	// 密钥 ID
	// Required: true
	KeyID *string `json:"key_id"`

	// 明文，base64
	// Required: true
	Plaintext strfmt.Base64 `json:"plaintext"`
}

// Validate validates this decrypt response
func (m *DecryptResponse) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("key_id", "body", m.KeyID); err != nil {
		res = append(res, err)
	}
	if err := validate.Required("plaintext", "body", m.Plaintext); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}

	return nil
}
