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

func PostVerifyRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1KMS.POST("/keys/:keyID/verify", postVerifyHandler(s))
}

func postVerifyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)
		keyID := c.Param("keyID")

		var body types.PostVerifyPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		result, err := s.CryptoService.Verify(ctx, &crypto.VerifyRequest{
			KeyID:     keyID,
			Message:   *body.Message,
			Signature: *body.Signature,
		})
		if err != nil {
			log.Error().Err(err).Str("key_id", keyID).Msg("Failed to verify")
			return mapOperationError(err, "Failed to verify")
		}

		return util.ValidateAndReturn(c, http.StatusOK, &types.VerifyResponse{
			KeyID: swag.String(result.KeyID),
			Valid: swag.Bool(result.Valid),
		})
	}
}
