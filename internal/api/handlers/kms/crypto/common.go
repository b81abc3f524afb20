package crypto

import (
	"net/http"

	"github.com/keymint/rsa-kms/internal/api/httperrors"
	"github.com/keymint/rsa-kms/internal/kms/crypto"
	"github.com/keymint/rsa-kms/internal/kms/key"
	"github.com/keymint/rsa-kms/internal/kms/operation"
	"github.com/keymint/rsa-kms/internal/kms/policy"
	"github.com/keymint/rsa-kms/internal/kms/rsakey"
	"github.com/keymint/rsa-kms/internal/types"
	"github.com/pkg/errors"
)

// mapOperationError 将服务层错误映射为对外的 HTTP 错误
func mapOperationError(err error, fallback string) error {
	switch {
	case errors.Is(err, key.ErrKeyNotFound):
		return httperrors.NewHTTPError(http.StatusNotFound, types.PublicHTTPErrorTypeGeneric, "Key not found")
	case errors.Is(err, crypto.ErrKeyDisabled):
		return httperrors.NewHTTPError(http.StatusConflict, types.PublicHTTPErrorTypeGeneric, "Key is disabled")
	case errors.Is(err, crypto.ErrKeyDeleted):
		return httperrors.NewHTTPError(http.StatusConflict, types.PublicHTTPErrorTypeGeneric, "Key is deleted")
	case errors.Is(err, policy.ErrPolicyDenied):
		return httperrors.NewHTTPError(http.StatusForbidden, types.PublicHTTPErrorTypeGeneric, "Policy denied")
	case errors.Is(err, rsakey.ErrUnsupportedPurpose):
		return httperrors.NewHTTPError(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, "Key does not authorize this operation")
	case errors.Is(err, rsakey.ErrUnsupportedPaddingMode):
		return httperrors.NewHTTPError(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, "Key padding mode does not support this operation")
	case errors.Is(err, rsakey.ErrUnsupportedDigest):
		return httperrors.NewHTTPError(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, "Key digest does not support this operation")
	case errors.Is(err, operation.ErrInvalidInputLength):
		return httperrors.NewHTTPError(http.StatusBadRequest, types.PublicHTTPErrorTypeGeneric, "Input length must equal the key modulus length")
	default:
		return httperrors.NewHTTPError(http.StatusInternalServerError, types.PublicHTTPErrorTypeGeneric, fallback)
	}
}
