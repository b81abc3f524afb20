package util

import (
	"net/http"

	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github.com/keymint/rsa-kms/internal/api/httperrors"
	"github.com/keymint/rsa-kms/internal/types"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// Validatable 可自校验的请求或响应负载
type Validatable interface {
	Validate(formats strfmt.Registry) error
}

// BindAndValidateBody 绑定请求体并执行负载自校验
// 绑定或校验失败时返回带校验细节的 400
func BindAndValidateBody(c echo.Context, v Validatable) error {
	if err := c.Bind(v); err != nil {
		return httperrors.NewHTTPError(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, "Failed to bind request body")
	}

	if err := v.Validate(strfmt.Default); err != nil {
		return httperrors.NewHTTPValidationError(
			http.StatusBadRequest,
			types.PublicHTTPErrorTypeGeneric,
			"Request body validation failed",
			[]*types.HTTPValidationErrorDetail{
				{
					Key:   swag.String("body"),
					In:    swag.String("body"),
					Error: swag.String(err.Error()),
				},
			},
		)
	}

	return nil
}

// ValidateAndReturn 校验响应负载后序列化为 JSON 返回
func ValidateAndReturn(c echo.Context, code int, v Validatable) error {
	if err := v.Validate(strfmt.Default); err != nil {
		return errors.Wrap(err, "response payload validation failed")
	}

	return c.JSON(code, v)
}
