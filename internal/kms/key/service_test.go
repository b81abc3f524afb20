package key_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"testing"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/keymint/rsa-kms/internal/kms/audit"
	"github.com/keymint/rsa-kms/internal/kms/authset"
	"github.com/keymint/rsa-kms/internal/kms/hsm/software"
	"github.com/keymint/rsa-kms/internal/kms/key"
	"github.com/keymint/rsa-kms/internal/kms/policy"
	"github.com/keymint/rsa-kms/internal/kms/rsakey"
	"github.com/keymint/rsa-kms/internal/kms/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockMetadataStore 内存实现，用于测试
type mockMetadataStore struct {
	records  map[string]*storage.KeyRecord
	policies map[string]*storage.Policy
	events   []*storage.AuditEvent
}

func newMockMetadataStore() *mockMetadataStore {
	return &mockMetadataStore{
		records:  make(map[string]*storage.KeyRecord),
		policies: make(map[string]*storage.Policy),
	}
}

func (m *mockMetadataStore) SaveKeyRecord(_ context.Context, record *storage.KeyRecord) error {
	if record.Alias != "" {
		for _, existing := range m.records {
			if existing.Alias == record.Alias {
				return storage.ErrAliasConflict
			}
		}
	}
	clone := *record
	m.records[record.KeyID] = &clone
	return nil
}

func (m *mockMetadataStore) GetKeyRecord(_ context.Context, keyID string) (*storage.KeyRecord, error) {
	record, ok := m.records[keyID]
	if !ok {
		return nil, storage.ErrKeyNotFound
	}
	clone := *record
	return &clone, nil
}

func (m *mockMetadataStore) GetKeyRecordByAlias(_ context.Context, alias string) (*storage.KeyRecord, error) {
	for _, record := range m.records {
		if record.Alias == alias {
			clone := *record
			return &clone, nil
		}
	}
	return nil, storage.ErrKeyNotFound
}

func (m *mockMetadataStore) UpdateKeyState(_ context.Context, keyID string, state string, updatedAt time.Time) error {
	record, ok := m.records[keyID]
	if !ok {
		return storage.ErrKeyNotFound
	}
	record.KeyState = state
	record.UpdatedAt = updatedAt
	return nil
}

func (m *mockMetadataStore) DeleteKeyRecord(_ context.Context, keyID string) error {
	if _, ok := m.records[keyID]; !ok {
		return storage.ErrKeyNotFound
	}
	delete(m.records, keyID)
	return nil
}

func (m *mockMetadataStore) ListKeyRecords(_ context.Context, filter *storage.KeyFilter) ([]*storage.KeyRecord, error) {
	result := []*storage.KeyRecord{}
	for _, record := range m.records {
		if filter != nil && filter.State != "" && record.KeyState != filter.State {
			continue
		}
		clone := *record
		result = append(result, &clone)
	}
	return result, nil
}

func (m *mockMetadataStore) SavePolicy(_ context.Context, p *storage.Policy) error {
	m.policies[p.PolicyID] = p
	return nil
}

func (m *mockMetadataStore) GetPolicy(_ context.Context, policyID string) (*storage.Policy, error) {
	p, ok := m.policies[policyID]
	if !ok {
		return nil, storage.ErrPolicyNotFound
	}
	return p, nil
}

func (m *mockMetadataStore) ListPolicies(_ context.Context) ([]*storage.Policy, error) {
	result := make([]*storage.Policy, 0, len(m.policies))
	for _, p := range m.policies {
		result = append(result, p)
	}
	return result, nil
}

func (m *mockMetadataStore) DeletePolicy(_ context.Context, policyID string) error {
	delete(m.policies, policyID)
	return nil
}

func (m *mockMetadataStore) SaveAuditLog(_ context.Context, event *storage.AuditEvent) error {
	m.events = append(m.events, event)
	return nil
}

func (m *mockMetadataStore) QueryAuditLogs(_ context.Context, _ *storage.AuditLogFilter) ([]*storage.AuditEvent, error) {
	return m.events, nil
}

//nolint:ireturn // test helper hands out the service interface
func newTestService(t *testing.T) (key.Service, *mockMetadataStore) {
	t.Helper()

	store := newMockMetadataStore()
	clock := time2.NewMockClock(time.Now())
	policyEngine := policy.NewEngine(store)
	auditLogger := audit.NewLogger(store, clock)

	service, err := key.NewService(software.NewEngine(), store, policyEngine, auditLogger, clock)
	require.NoError(t, err)

	return service, store
}

func signAuthorizations() *authset.Set {
	auths := authset.New()
	auths.AddPurpose(authset.PurposeSign)
	auths.AddPurpose(authset.PurposeVerify)
	auths.AddKeySize(1024)
	auths.AddPadding(authset.PaddingNone)
	auths.AddDigest(authset.DigestNone)
	return auths
}

func TestCreateKey(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)

	metadata, err := service.CreateKey(ctx, &key.CreateKeyRequest{
		Alias:          "signing-key",
		Authorizations: signAuthorizations(),
	})
	require.NoError(t, err)

	assert.Contains(t, metadata.KeyID, "key-")
	assert.Equal(t, key.KeyStateEnabled, metadata.KeyState)
	assert.Equal(t, uint32(1024), metadata.KeySize)
	// 未指定的公钥指数补默认值
	assert.Equal(t, uint64(65537), metadata.PublicExponent)

	record, err := store.GetKeyRecord(ctx, metadata.KeyID)
	require.NoError(t, err)
	assert.NotEmpty(t, record.Material)
	assert.NotEmpty(t, record.Authorizations)

	// 创建事件被审计
	require.NotEmpty(t, store.events)
	assert.Equal(t, "create_key", store.events[len(store.events)-1].Operation)
}

func TestCreateKey_AliasConflict(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	_, err := service.CreateKey(ctx, &key.CreateKeyRequest{Alias: "dup", Authorizations: signAuthorizations()})
	require.NoError(t, err)

	_, err = service.CreateKey(ctx, &key.CreateKeyRequest{Alias: "dup", Authorizations: signAuthorizations()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrAliasConflict))
}

func TestCreateKey_PolicyDenied(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)

	require.NoError(t, store.SavePolicy(ctx, &storage.Policy{
		PolicyID: "deny-all",
		Document: []byte(`{"statements":[{"effect":"Deny","actions":["*"]}]}`),
	}))

	_, err := service.CreateKey(ctx, &key.CreateKeyRequest{
		Authorizations: signAuthorizations(),
		PolicyID:       "deny-all",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, policy.ErrPolicyDenied))
}

func TestImportKey(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	rsaKey, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	metadata, err := service.ImportKey(ctx, &key.ImportKeyRequest{
		Authorizations: signAuthorizations(),
		KeyMaterial:    x509.MarshalPKCS1PrivateKey(rsaKey),
	})
	require.NoError(t, err)

	assert.Equal(t, uint32(1024), metadata.KeySize)
	assert.Equal(t, uint64(65537), metadata.PublicExponent)
}

func TestImportKey_ParameterMismatch(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t)

	rsaKey, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	auths := signAuthorizations()
	auths.AddPublicExponent(3)

	_, err = service.ImportKey(ctx, &key.ImportKeyRequest{
		Authorizations: auths,
		KeyMaterial:    x509.MarshalPKCS1PrivateKey(rsaKey),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, rsakey.ErrImportParameterMismatch))

	// 导入失败不落库
	assert.Empty(t, store.records)
}

func TestGetKey_NotFound(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	_, err := service.GetKey(ctx, "key-missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, key.ErrKeyNotFound))
}

func TestDeleteKey_SoftDelete(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	metadata, err := service.CreateKey(ctx, &key.CreateKeyRequest{Authorizations: signAuthorizations()})
	require.NoError(t, err)

	require.NoError(t, service.DeleteKey(ctx, metadata.KeyID))

	// 软删除后记录仍可读取
	deleted, err := service.GetKey(ctx, metadata.KeyID)
	require.NoError(t, err)
	assert.Equal(t, key.KeyStateDeleted, deleted.KeyState)

	// 已删除的密钥不允许再改状态
	err = service.EnableKey(ctx, metadata.KeyID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, key.ErrKeyDeleted))
}

func TestEnableDisableKey(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	metadata, err := service.CreateKey(ctx, &key.CreateKeyRequest{Authorizations: signAuthorizations()})
	require.NoError(t, err)

	require.NoError(t, service.DisableKey(ctx, metadata.KeyID))
	disabled, err := service.GetKey(ctx, metadata.KeyID)
	require.NoError(t, err)
	assert.Equal(t, key.KeyStateDisabled, disabled.KeyState)

	require.NoError(t, service.EnableKey(ctx, metadata.KeyID))
	enabled, err := service.GetKey(ctx, metadata.KeyID)
	require.NoError(t, err)
	assert.Equal(t, key.KeyStateEnabled, enabled.KeyState)
}

func TestListKeys_FilterByState(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	first, err := service.CreateKey(ctx, &key.CreateKeyRequest{Authorizations: signAuthorizations()})
	require.NoError(t, err)
	_, err = service.CreateKey(ctx, &key.CreateKeyRequest{Authorizations: signAuthorizations()})
	require.NoError(t, err)

	require.NoError(t, service.DisableKey(ctx, first.KeyID))

	enabled, err := service.ListKeys(ctx, &key.KeyFilter{State: string(key.KeyStateEnabled)})
	require.NoError(t, err)
	assert.Len(t, enabled, 1)

	all, err := service.ListKeys(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLoadKey(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	metadata, err := service.CreateKey(ctx, &key.CreateKeyRequest{Authorizations: signAuthorizations()})
	require.NoError(t, err)

	entity, loaded, err := service.LoadKey(ctx, metadata.KeyID)
	require.NoError(t, err)
	require.NotNil(t, entity)
	assert.Equal(t, metadata.KeyID, loaded.KeyID)
	assert.False(t, entity.Consumed())

	// 重建的实体可直接创建操作
	op, err := entity.CreateOperation(authset.PurposeSign)
	require.NoError(t, err)
	require.NotNil(t, op)
	assert.True(t, entity.Consumed())
}
