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

func PostEncryptRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1KMS.POST("/keys/:keyID/encrypt", postEncryptHandler(s))
}

func postEncryptHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)
		keyID := c.Param("keyID")

		var body types.PostEncryptPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		result, err := s.CryptoService.Encrypt(ctx, &crypto.EncryptRequest{
			KeyID:     keyID,
			Plaintext: *body.Plaintext,
		})
		if err != nil {
			log.Error().Err(err).Str("key_id", keyID).Msg("Failed to encrypt")
			return mapOperationError(err, "Failed to encrypt")
		}

		return util.ValidateAndReturn(c, http.StatusOK, &types.EncryptResponse{
			KeyID:      swag.String(result.KeyID),
			Ciphertext: result.Ciphertext,
		})
	}
}
