package keys

import (
	"errors"
	"net/http"

	"github.com/keymint/rsa-kms/internal/api"
	"github.com/keymint/rsa-kms/internal/api/httperrors"
	"github.com/keymint/rsa-kms/internal/kms/key"
	"github.com/keymint/rsa-kms/internal/types"
	"github.com/keymint/rsa-kms/internal/util"
	"github.com/labstack/echo/v4"
)

func PostEnableKeyRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1KMS.POST("/keys/:keyID/enable", postKeyStateHandler(s, key.KeyStateEnabled))
}

func PostDisableKeyRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1KMS.POST("/keys/:keyID/disable", postKeyStateHandler(s, key.KeyStateDisabled))
}

func postKeyStateHandler(s *api.Server, target key.KeyState) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)
		keyID := c.Param("keyID")

		var err error
		switch target {
		case key.KeyStateEnabled:
			err = s.KeyService.EnableKey(ctx, keyID)
		case key.KeyStateDisabled:
			err = s.KeyService.DisableKey(ctx, keyID)
		case key.KeyStateDeleted:
			err = errors.New("deletion is not a state transition")
		}

		if err != nil {
			log.Error().Err(err).Str("target_state", string(target)).Msg("Failed to change key state")
			switch {
			case errors.Is(err, key.ErrKeyNotFound):
				return notFoundError()
			case errors.Is(err, key.ErrKeyDeleted):
				return httperrors.NewHTTPError(http.StatusConflict, types.PublicHTTPErrorTypeGeneric, "Key is deleted")
			default:
				return httperrors.NewHTTPError(http.StatusInternalServerError, types.PublicHTTPErrorTypeGeneric, "Failed to change key state")
			}
		}

		return c.NoContent(http.StatusNoContent)
	}
}
