package keys

import (
	"errors"
	"net/http"

	"github.com/keymint/rsa-kms/internal/api"
	"github.com/keymint/rsa-kms/internal/api/httperrors"
	"github.com/keymint/rsa-kms/internal/kms/key"
	"github.com/keymint/rsa-kms/internal/kms/policy"
	"github.com/keymint/rsa-kms/internal/types"
	"github.com/keymint/rsa-kms/internal/util"
	"github.com/labstack/echo/v4"
)

func DeleteKeyRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1KMS.DELETE("/keys/:keyID", deleteKeyHandler(s))
}

func deleteKeyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)

		if err := s.KeyService.DeleteKey(ctx, c.Param("keyID")); err != nil {
			log.Error().Err(err).Msg("Failed to delete key")
			switch {
			case errors.Is(err, key.ErrKeyNotFound):
				return notFoundError()
			case errors.Is(err, policy.ErrPolicyDenied):
				return httperrors.NewHTTPError(http.StatusForbidden, types.PublicHTTPErrorTypeGeneric, "Policy denied")
			default:
				return httperrors.NewHTTPError(http.StatusInternalServerError, types.PublicHTTPErrorTypeGeneric, "Failed to delete key")
			}
		}

		return c.NoContent(http.StatusNoContent)
	}
}
