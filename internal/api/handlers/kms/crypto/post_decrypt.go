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

func PostDecryptRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1KMS.POST("/keys/:keyID/decrypt", postDecryptHandler(s))
}

func postDecryptHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)
		keyID := c.Param("keyID")

		var body types.PostDecryptPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		result, err := s.CryptoService.Decrypt(ctx, &crypto.DecryptRequest{
			KeyID:      keyID,
			Ciphertext: *body.Ciphertext,
		})
		if err != nil {
			log.Error().Err(err).Str("key_id", keyID).Msg("Failed to decrypt")
			return mapOperationError(err, "Failed to decrypt")
		}

		return util.ValidateAndReturn(c, http.StatusOK, &types.DecryptResponse{
			KeyID:     swag.String(result.KeyID),
			Plaintext: result.Plaintext,
		})
	}
}
