package api

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/keymint/rsa-kms/internal/config"
	"github.com/keymint/rsa-kms/internal/kms/audit"
	"github.com/keymint/rsa-kms/internal/kms/crypto"
	"github.com/keymint/rsa-kms/internal/kms/hsm"
	"github.com/keymint/rsa-kms/internal/kms/hsm/pkcs11hsm"
	"github.com/keymint/rsa-kms/internal/kms/hsm/software"
	"github.com/keymint/rsa-kms/internal/kms/key"
	"github.com/keymint/rsa-kms/internal/kms/policy"
	"github.com/keymint/rsa-kms/internal/kms/storage"
)

// PROVIDERS - define here only providers that for various reasons (e.g. cyclic dependency) can't live in their corresponding packages
// or for wrapping providers that only accept sub-configs to prevent the requirements for defining providers for sub-configs.
// https://github.com/google/wire/blob/main/docs/guide.md#defining-providers

func NewClock(t ...*testing.T) time2.Clock {
	var clock time2.Clock

	useMock := len(t) > 0 && t[0] != nil

	if useMock {
		clock = time2.NewMockClock(time.Now())
	} else {
		clock = time2.DefaultClock
	}

	return clock
}

func NewDB(config config.Server) (*sql.DB, error) {
	db, err := sql.Open("postgres", config.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(config.Database.MaxOpenConns)
	db.SetMaxIdleConns(config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(config.Database.ConnMaxLifetime) * time.Second)

	return db, nil
}

func NoTest() []*testing.T {
	return nil
}

// KMS Providers

// NewHSMEngine creates the RSA engine based on configuration
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewHSMEngine(cfg config.Server) (hsm.Engine, error) {
	switch cfg.KMS.HSMType {
	case "software":
		return software.NewEngine(), nil
	case "pkcs11":
		//nolint:gosec // HSMSlot is a configuration value, overflow is acceptable
		return pkcs11hsm.NewEngine(cfg.KMS.HSMLibrary, uint(cfg.KMS.HSMSlot), cfg.KMS.HSMPIN)
	default:
		return nil, fmt.Errorf("unsupported HSM type: %s", cfg.KMS.HSMType)
	}
}

// NewMetadataStore creates metadata store based on configuration
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewMetadataStore(cfg config.Server, db *sql.DB) (storage.MetadataStore, error) {
	switch cfg.KMS.StorageBackend {
	case "postgresql":
		return storage.NewPostgreSQLStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.KMS.StorageBackend)
	}
}

// NewPolicyEngine creates policy engine
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewPolicyEngine(metadataStore storage.MetadataStore) policy.Engine {
	return policy.NewEngine(metadataStore)
}

// NewAuditLogger creates audit logger
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewAuditLogger(metadataStore storage.MetadataStore, clock time2.Clock) audit.Logger {
	return audit.NewLogger(metadataStore, clock)
}

// NewKeyService creates key service
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewKeyService(
	engine hsm.Engine,
	metadataStore storage.MetadataStore,
	policyEngine policy.Engine,
	auditLogger audit.Logger,
	clock time2.Clock,
) (key.Service, error) {
	return key.NewService(engine, metadataStore, policyEngine, auditLogger, clock)
}

// NewCryptoService creates cryptographic operation service
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewCryptoService(
	keyService key.Service,
	policyEngine policy.Engine,
	auditLogger audit.Logger,
) (crypto.Service, error) {
	return crypto.NewService(keyService, policyEngine, auditLogger)
}
