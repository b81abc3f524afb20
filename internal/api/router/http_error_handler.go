package router

import (
	"net/http"

	"github.com/go-openapi/swag"
	"github.com/keymint/rsa-kms/internal/api/httperrors"
	"github.com/keymint/rsa-kms/internal/types"
	"github.com/keymint/rsa-kms/internal/util"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

// HTTPErrorHandlerConfig 错误处理器配置
type HTTPErrorHandlerConfig struct {
	HideInternalServerErrorDetails bool
}

// HTTPErrorHandlerWithConfig 统一的 echo 错误处理器
// 将内部错误类型序列化为 types.PublicHTTPError 负载
func HTTPErrorHandlerWithConfig(config HTTPErrorHandlerConfig) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var payload interface{}
		code := http.StatusInternalServerError

		switch e := err.(type) { //nolint:errorlint // echo error handling switches on the concrete top-level type
		case *httperrors.HTTPError:
			code = int(*e.Code)
			if e.Internal != nil && config.HideInternalServerErrorDetails {
				e.Detail = ""
			}
			payload = &e.PublicHTTPError
		case *httperrors.HTTPValidationError:
			code = int(*e.Code)
			payload = &e.PublicHTTPValidationError
		case *echo.HTTPError:
			code = e.Code
			title := http.StatusText(e.Code)
			if msg, ok := e.Message.(string); ok && !config.HideInternalServerErrorDetails {
				title = msg
			}
			payload = &types.PublicHTTPError{
				Code:  swag.Int64(int64(e.Code)),
				Type:  swag.String(types.PublicHTTPErrorTypeGeneric),
				Title: swag.String(title),
			}
		default:
			title := http.StatusText(code)
			if !config.HideInternalServerErrorDetails {
				title = err.Error()
			}
			payload = &types.PublicHTTPError{
				Code:  swag.Int64(int64(code)),
				Type:  swag.String(types.PublicHTTPErrorTypeGeneric),
				Title: swag.String(title),
			}
		}

		util.LogFromContext(c.Request().Context()).Debug().Err(err).Int("status", code).Msg("Handling request error")

		if c.Request().Method == http.MethodHead {
			if err := c.NoContent(code); err != nil {
				log.Error().Err(err).Msg("Failed to write HEAD error response")
			}
			return
		}

		if err := c.JSON(code, payload); err != nil {
			log.Error().Err(err).Msg("Failed to write error response")
		}
	}
}

func requestLoggerConfig() middleware.RequestLoggerConfig {
	return middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogRemoteIP: true,
		LogLatency:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Str("remote_ip", v.RemoteIP).
				Dur("latency", v.Latency).
				Msg("Handled request")

			return nil
		},
	}
}
