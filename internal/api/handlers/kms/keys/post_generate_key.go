package keys

import (
	"errors"
	"net/http"

	"github.com/keymint/rsa-kms/internal/api"
	"github.com/keymint/rsa-kms/internal/api/httperrors"
	"github.com/keymint/rsa-kms/internal/kms/key"
	"github.com/keymint/rsa-kms/internal/kms/policy"
	"github.com/keymint/rsa-kms/internal/kms/rsakey"
	"github.com/keymint/rsa-kms/internal/kms/storage"
	"github.com/keymint/rsa-kms/internal/types"
	"github.com/keymint/rsa-kms/internal/util"
	"github.com/labstack/echo/v4"
)

func PostGenerateKeyRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1KMS.POST("/keys", postGenerateKeyHandler(s))
}

func postGenerateKeyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)

		var body types.PostGenerateKeyPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		auths, err := buildAuthorizations(body.Purposes, body.KeySize, body.PublicExponent, body.Padding, body.Digest)
		if err != nil {
			return httperrors.NewHTTPError(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, err.Error())
		}

		req := &key.CreateKeyRequest{
			Alias:          body.Alias,
			Description:    body.Description,
			Authorizations: auths,
			PolicyID:       body.PolicyID,
			Tags:           body.Tags,
		}

		keyMetadata, err := s.KeyService.CreateKey(ctx, req)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create key")
			switch {
			case errors.Is(err, policy.ErrPolicyDenied):
				return httperrors.NewHTTPError(http.StatusForbidden, types.PublicHTTPErrorTypeGeneric, "Policy denied")
			case errors.Is(err, storage.ErrAliasConflict):
				return httperrors.NewHTTPError(http.StatusConflict, types.PublicHTTPErrorTypeGeneric, "Key alias already in use")
			case errors.Is(err, rsakey.ErrAllocationFailed):
				return httperrors.NewHTTPError(http.StatusInsufficientStorage, types.PublicHTTPErrorTypeGeneric, "Key generation failed")
			default:
				return httperrors.NewHTTPError(http.StatusInternalServerError, types.PublicHTTPErrorTypeGeneric, "Failed to create key")
			}
		}

		return util.ValidateAndReturn(c, http.StatusCreated, metadataToKeyResponse(keyMetadata))
	}
}
