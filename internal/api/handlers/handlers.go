package handlers

import (
	"github.com/keymint/rsa-kms/internal/api"
	"github.com/keymint/rsa-kms/internal/api/handlers/kms/crypto"
	"github.com/keymint/rsa-kms/internal/api/handlers/kms/keys"
	"github.com/labstack/echo/v4"
)

// AttachAllRoutes registers all server routes
func AttachAllRoutes(s *api.Server) {
	// attach our routes
	s.Router.Routes = []*echo.Route{
		keys.PostGenerateKeyRoute(s),
		keys.PostImportKeyRoute(s),
		keys.GetKeyRoute(s),
		keys.GetListKeysRoute(s),
		keys.DeleteKeyRoute(s),
		keys.PostEnableKeyRoute(s),
		keys.PostDisableKeyRoute(s),
		crypto.PostSignRoute(s),
		crypto.PostVerifyRoute(s),
		crypto.PostEncryptRoute(s),
		crypto.PostDecryptRoute(s),
	}
}
