package crypto

import (
	"net/http"

	"github.com/go-openapi/swag"
	"github.com/keymint/rsa-kms/internal/api"
	"github.com/keymint/rsa-kms/internal/kms/crypto"
	"github.com/keymint/rsa-kms/internal/types"
	"github.com/keymint/rsa-kms/internal/util"
	"github.com/labstack/echo/v4"
)

func PostSignRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1KMS.POST("/keys/:keyID/sign", postSignHandler(s))
}

func postSignHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)
		keyID := c.Param("keyID")

		var body types.PostSignPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		result, err := s.CryptoService.Sign(ctx, &crypto.SignRequest{
			KeyID:   keyID,
			Message: *body.Message,
		})
		if err != nil {
			log.Error().Err(err).Str("key_id", keyID).Msg("Failed to sign")
			return mapOperationError(err, "Failed to sign")
		}

		return util.ValidateAndReturn(c, http.StatusOK, &types.SignResponse{
			KeyID:     swag.String(result.KeyID),
			Signature: result.Signature,
		})
	}
}
