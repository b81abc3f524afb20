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

func GetKeyRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1KMS.GET("/keys/:keyID", getKeyHandler(s))
}

func getKeyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		keyMetadata, err := s.KeyService.GetKey(ctx, c.Param("keyID"))
		if err != nil {
			if errors.Is(err, key.ErrKeyNotFound) {
				return notFoundError()
			}
			return httperrors.NewHTTPError(http.StatusInternalServerError, types.PublicHTTPErrorTypeGeneric, "Failed to get key")
		}

		return util.ValidateAndReturn(c, http.StatusOK, metadataToKeyResponse(keyMetadata))
	}
}
