package keys

import (
	"net/http"
	"strconv"

	"github.com/keymint/rsa-kms/internal/api"
	"github.com/keymint/rsa-kms/internal/api/httperrors"
	"github.com/keymint/rsa-kms/internal/kms/key"
	"github.com/keymint/rsa-kms/internal/types"
	"github.com/keymint/rsa-kms/internal/util"
	"github.com/labstack/echo/v4"
)

func GetListKeysRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1KMS.GET("/keys", getListKeysHandler(s))
}

func getListKeysHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)

		filter := &key.KeyFilter{
			State: c.QueryParam("state"),
			Alias: c.QueryParam("alias"),
		}

		if raw := c.QueryParam("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				return httperrors.NewHTTPError(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, "Invalid limit parameter")
			}
			filter.Limit = limit
		}
		if raw := c.QueryParam("offset"); raw != "" {
			offset, err := strconv.Atoi(raw)
			if err != nil || offset < 0 {
				return httperrors.NewHTTPError(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, "Invalid offset parameter")
			}
			filter.Offset = offset
		}

		keyMetadatas, err := s.KeyService.ListKeys(ctx, filter)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list keys")
			return httperrors.NewHTTPError(http.StatusInternalServerError, types.PublicHTTPErrorTypeGeneric, "Failed to list keys")
		}

		response := &types.ListKeysResponse{
			Keys: make([]*types.KeyResponse, 0, len(keyMetadatas)),
		}
		for _, keyMetadata := range keyMetadatas {
			response.Keys = append(response.Keys, metadataToKeyResponse(keyMetadata))
		}

		return util.ValidateAndReturn(c, http.StatusOK, response)
	}
}
