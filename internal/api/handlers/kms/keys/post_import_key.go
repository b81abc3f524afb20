package keys

import (
	"errors"
	"net/http"

	"github.com/go-openapi/swag"
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

func PostImportKeyRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1KMS.POST("/keys/import", postImportKeyHandler(s))
}

func postImportKeyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)

		var body types.PostImportKeyPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		auths, err := buildAuthorizations(body.Purposes, body.KeySize, body.PublicExponent, body.Padding, body.Digest)
		if err != nil {
			return httperrors.NewHTTPError(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, err.Error())
		}

		req := &key.ImportKeyRequest{
			Alias:          body.Alias,
			Description:    body.Description,
			Authorizations: auths,
			KeyMaterial:    *body.KeyMaterial,
			PolicyID:       body.PolicyID,
			Tags:           body.Tags,
		}

		keyMetadata, err := s.KeyService.ImportKey(ctx, req)
		if err != nil {
			log.Error().Err(err).Msg("Failed to import key")
			switch {
			case errors.Is(err, rsakey.ErrImportParameterMismatch):
				return httperrors.NewHTTPValidationError(
					http.StatusBadRequest,
					types.PublicHTTPErrorTypeGeneric,
					"Import parameters do not match key material",
					[]*types.HTTPValidationErrorDetail{
						{
							Key:   swag.String("key_material"),
							In:    swag.String("body"),
							Error: swag.String(err.Error()),
						},
					},
				)
			case errors.Is(err, policy.ErrPolicyDenied):
				return httperrors.NewHTTPError(http.StatusForbidden, types.PublicHTTPErrorTypeGeneric, "Policy denied")
			case errors.Is(err, storage.ErrAliasConflict):
				return httperrors.NewHTTPError(http.StatusConflict, types.PublicHTTPErrorTypeGeneric, "Key alias already in use")
			default:
				return httperrors.NewHTTPError(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, "Failed to import key")
			}
		}

		return util.ValidateAndReturn(c, http.StatusCreated, metadataToKeyResponse(keyMetadata))
	}
}
