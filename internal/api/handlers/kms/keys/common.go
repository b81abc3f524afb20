package keys

import (
	"net/http"

	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github.com/keymint/rsa-kms/internal/api/httperrors"
	"github.com/keymint/rsa-kms/internal/kms/authset"
	"github.com/keymint/rsa-kms/internal/kms/key"
	"github.com/keymint/rsa-kms/internal/types"
	"github.com/pkg/errors"
)

// buildAuthorizations 将请求负载中的密钥参数转换为授权集合
// 枚举值已通过负载校验，这里的转换失败意味着负载校验和转换表不同步
func buildAuthorizations(purposes []string, keySize, publicExponent int64, padding, digest string) (*authset.Set, error) {
	auths := authset.New()

	for _, raw := range purposes {
		purpose := authset.PurposeFromString(raw)
		if purpose == authset.PurposeInvalid {
			return nil, errors.Errorf("unknown purpose %q", raw)
		}
		auths.AddPurpose(purpose)
	}

	auths.AddAlgorithm(authset.AlgorithmRSA)

	if keySize > 0 {
		//nolint:gosec // key size is validated against the supported range
		auths.AddKeySize(uint32(keySize))
	}
	if publicExponent > 0 {
		//nolint:gosec // public exponent is a positive JSON number
		auths.AddPublicExponent(uint64(publicExponent))
	}

	if padding != "" {
		p := authset.PaddingFromString(padding)
		if p == authset.PaddingInvalid {
			return nil, errors.Errorf("unknown padding %q", padding)
		}
		auths.AddPadding(p)
	}

	if digest != "" {
		d := authset.DigestFromString(digest)
		if d == authset.DigestInvalid {
			return nil, errors.Errorf("unknown digest %q", digest)
		}
		auths.AddDigest(d)
	}

	return auths, nil
}

// metadataToKeyResponse 将密钥元数据转换为响应负载
func metadataToKeyResponse(metadata *key.KeyMetadata) *types.KeyResponse {
	response := &types.KeyResponse{
		KeyID:       swag.String(metadata.KeyID),
		Alias:       metadata.Alias,
		Description: metadata.Description,
		KeyState:    swag.String(string(metadata.KeyState)),
		KeySize:     int64(metadata.KeySize),
		PolicyID:    metadata.PolicyID,
		Tags:        metadata.Tags,
	}

	//nolint:gosec // public exponents in practice fit int64
	response.PublicExponent = int64(metadata.PublicExponent)

	if !metadata.CreatedAt.IsZero() {
		response.CreatedAt = strfmt.DateTime(metadata.CreatedAt)
	}
	if !metadata.UpdatedAt.IsZero() {
		response.UpdatedAt = strfmt.DateTime(metadata.UpdatedAt)
	}

	return response
}

func notFoundError() *httperrors.HTTPError {
	return httperrors.NewHTTPError(http.StatusNotFound, types.PublicHTTPErrorTypeGeneric, "Key not found")
}
