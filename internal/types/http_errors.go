package types

import (
	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
)

// 公共错误类型标识
const (
	PublicHTTPErrorTypeGeneric = "generic"
)

// PublicHTTPError 对外暴露的错误负载
type PublicHTTPError struct {
	// HTTP 状态码
	// Required: true
	Code *int64 `json:"status"`

	// 错误类型标识
	// Required: true
	Type *string `json:"type"`

	// 错误描述
	// Required: true
	Title *string `json:"title"`

	// 补充细节
	Detail string `json:"detail,omitempty"`
}

// Validate validates this public http error
func (m *PublicHTTPError) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("status", "body", m.Code); err != nil {
		res = append(res, err)
	}
	if err := validate.Required("type", "body", m.Type); err != nil {
		res = append(res, err)
	}
	if err := validate.Required("title", "body", m.Title); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}

	return nil
}

// HTTPValidationErrorDetail 单个字段的校验错误
type HTTPValidationErrorDetail struct {
	// 出错的字段名
	// Required: true
	Key *string `json:"key"`

	// 字段位置（body、query、path）
	// Required: true
	In *string `json:"in"`

	// 错误描述
	// Required: true
	Error *string `json:"error"`
}

// Validate validates this http validation error detail
func (m *HTTPValidationErrorDetail) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("key", "body", m.Key); err != nil {
		res = append(res, err)
	}
	if err := validate.Required("in", "body", m.In); err != nil {
		res = append(res, err)
	}
	if err := validate.Required("error", "body", m.Error); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}

	return nil
}

// PublicHTTPValidationError 带字段级细节的校验错误负载
type PublicHTTPValidationError struct {
	PublicHTTPError

	// 字段级校验错误列表
	ValidationErrors []*HTTPValidationErrorDetail `json:"validationErrors"`
}

// Validate validates this public http validation error
func (m *PublicHTTPValidationError) Validate(formats strfmt.Registry) error {
	var res []error

	if err := m.PublicHTTPError.Validate(formats); err != nil {
		res = append(res, err)
	}

	for i := range m.ValidationErrors {
		if m.ValidationErrors[i] == nil {
			continue
		}
		if err := m.ValidationErrors[i].Validate(formats); err != nil {
			res = append(res, err)
		}
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}

	return nil
}
