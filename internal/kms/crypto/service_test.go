package crypto_test

import (
	"context"
	"testing"
	"time"

	"github.com/dropbox/godropbox/time2"
	"github.com/keymint/rsa-kms/internal/kms/audit"
	"github.com/keymint/rsa-kms/internal/kms/authset"
	"github.com/keymint/rsa-kms/internal/kms/crypto"
	"github.com/keymint/rsa-kms/internal/kms/hsm/software"
	"github.com/keymint/rsa-kms/internal/kms/key"
	"github.com/keymint/rsa-kms/internal/kms/policy"
	"github.com/keymint/rsa-kms/internal/kms/rsakey"
	"github.com/keymint/rsa-kms/internal/kms/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyBits = 1024

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
	delete(m.records, keyID)
	return nil
}

func (m *mockMetadataStore) ListKeyRecords(_ context.Context, _ *storage.KeyFilter) ([]*storage.KeyRecord, error) {
	result := make([]*storage.KeyRecord, 0, len(m.records))
	for _, record := range m.records {
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

type testStack struct {
	keyService    key.Service
	cryptoService crypto.Service
	store         *mockMetadataStore
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	store := newMockMetadataStore()
	clock := time2.NewMockClock(time.Now())
	policyEngine := policy.NewEngine(store)
	auditLogger := audit.NewLogger(store, clock)

	keyService, err := key.NewService(software.NewEngine(), store, policyEngine, auditLogger, clock)
	require.NoError(t, err)

	cryptoService, err := crypto.NewService(keyService, policyEngine, auditLogger)
	require.NoError(t, err)

	return &testStack{
		keyService:    keyService,
		cryptoService: cryptoService,
		store:         store,
	}
}

func (ts *testStack) createSigningKey(t *testing.T, policyID string) string {
	t.Helper()

	auths := authset.New()
	auths.AddPurpose(authset.PurposeSign)
	auths.AddPurpose(authset.PurposeVerify)
	auths.AddKeySize(testKeyBits)
	auths.AddPadding(authset.PaddingNone)
	auths.AddDigest(authset.DigestNone)

	metadata, err := ts.keyService.CreateKey(context.Background(), &key.CreateKeyRequest{
		Authorizations: auths,
		PolicyID:       policyID,
	})
	require.NoError(t, err)

	return metadata.KeyID
}

func (ts *testStack) createEncryptionKey(t *testing.T) string {
	t.Helper()

	auths := authset.New()
	auths.AddPurpose(authset.PurposeEncrypt)
	auths.AddPurpose(authset.PurposeDecrypt)
	auths.AddKeySize(testKeyBits)
	auths.AddPadding(authset.PaddingRSAOAEP)

	metadata, err := ts.keyService.CreateKey(context.Background(), &key.CreateKeyRequest{
		Authorizations: auths,
	})
	require.NoError(t, err)

	return metadata.KeyID
}

func rawMessage() []byte {
	// 首字节置零，保证消息小于模数
	message := make([]byte, testKeyBits/8)
	for i := 1; i < len(message); i++ {
		message[i] = byte(i * 13)
	}
	return message
}

func TestSignVerify_Roundtrip(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	keyID := stack.createSigningKey(t, "")

	message := rawMessage()

	signResp, err := stack.cryptoService.Sign(ctx, &crypto.SignRequest{KeyID: keyID, Message: message})
	require.NoError(t, err)
	require.Len(t, signResp.Signature, testKeyBits/8)

	verifyResp, err := stack.cryptoService.Verify(ctx, &crypto.VerifyRequest{
		KeyID:     keyID,
		Message:   message,
		Signature: signResp.Signature,
	})
	require.NoError(t, err)
	assert.True(t, verifyResp.Valid)
}

func TestVerify_MismatchedSignature(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	keyID := stack.createSigningKey(t, "")

	message := rawMessage()

	signResp, err := stack.cryptoService.Sign(ctx, &crypto.SignRequest{KeyID: keyID, Message: message})
	require.NoError(t, err)

	tampered := make([]byte, len(message))
	copy(tampered, message)
	tampered[20] ^= 0x01

	// 签名不匹配不是服务错误
	verifyResp, err := stack.cryptoService.Verify(ctx, &crypto.VerifyRequest{
		KeyID:     keyID,
		Message:   tampered,
		Signature: signResp.Signature,
	})
	require.NoError(t, err)
	assert.False(t, verifyResp.Valid)
}

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	keyID := stack.createEncryptionKey(t)

	plaintext := []byte("sensitive payload")

	encryptResp, err := stack.cryptoService.Encrypt(ctx, &crypto.EncryptRequest{KeyID: keyID, Plaintext: plaintext})
	require.NoError(t, err)
	require.NotEqual(t, plaintext, encryptResp.Ciphertext)

	decryptResp, err := stack.cryptoService.Decrypt(ctx, &crypto.DecryptRequest{
		KeyID:      keyID,
		Ciphertext: encryptResp.Ciphertext,
	})
	require.NoError(t, err)
	assert.Equal(t, plaintext, decryptResp.Plaintext)
}

func TestDisabledKey_BlocksSignAllowsVerify(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	keyID := stack.createSigningKey(t, "")

	message := rawMessage()

	signResp, err := stack.cryptoService.Sign(ctx, &crypto.SignRequest{KeyID: keyID, Message: message})
	require.NoError(t, err)

	require.NoError(t, stack.keyService.DisableKey(ctx, keyID))

	// 停用密钥不再产生新签名
	_, err = stack.cryptoService.Sign(ctx, &crypto.SignRequest{KeyID: keyID, Message: message})
	require.Error(t, err)
	assert.True(t, errors.Is(err, crypto.ErrKeyDisabled))

	// 已有签名仍可验证
	verifyResp, err := stack.cryptoService.Verify(ctx, &crypto.VerifyRequest{
		KeyID:     keyID,
		Message:   message,
		Signature: signResp.Signature,
	})
	require.NoError(t, err)
	assert.True(t, verifyResp.Valid)
}

func TestDisabledKey_BlocksEncryptAllowsDecrypt(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	keyID := stack.createEncryptionKey(t)

	plaintext := []byte("retired key data")

	encryptResp, err := stack.cryptoService.Encrypt(ctx, &crypto.EncryptRequest{KeyID: keyID, Plaintext: plaintext})
	require.NoError(t, err)

	require.NoError(t, stack.keyService.DisableKey(ctx, keyID))

	_, err = stack.cryptoService.Encrypt(ctx, &crypto.EncryptRequest{KeyID: keyID, Plaintext: plaintext})
	require.Error(t, err)
	assert.True(t, errors.Is(err, crypto.ErrKeyDisabled))

	decryptResp, err := stack.cryptoService.Decrypt(ctx, &crypto.DecryptRequest{
		KeyID:      keyID,
		Ciphertext: encryptResp.Ciphertext,
	})
	require.NoError(t, err)
	assert.Equal(t, plaintext, decryptResp.Plaintext)
}

func TestDeletedKey_BlocksAllOperations(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	keyID := stack.createSigningKey(t, "")

	message := rawMessage()

	signResp, err := stack.cryptoService.Sign(ctx, &crypto.SignRequest{KeyID: keyID, Message: message})
	require.NoError(t, err)

	require.NoError(t, stack.keyService.DeleteKey(ctx, keyID))

	_, err = stack.cryptoService.Sign(ctx, &crypto.SignRequest{KeyID: keyID, Message: message})
	require.Error(t, err)
	assert.True(t, errors.Is(err, crypto.ErrKeyDeleted))

	// 验证在删除后同样被拒绝
	_, err = stack.cryptoService.Verify(ctx, &crypto.VerifyRequest{
		KeyID:     keyID,
		Message:   message,
		Signature: signResp.Signature,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, crypto.ErrKeyDeleted))
}

func TestSign_PolicyDenied(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)

	require.NoError(t, stack.store.SavePolicy(ctx, &storage.Policy{
		PolicyID: "verify-only",
		Document: []byte(`{"statements":[{"effect":"Allow","actions":["create_key","verify"]}]}`),
	}))

	keyID := stack.createSigningKey(t, "verify-only")

	_, err := stack.cryptoService.Sign(ctx, &crypto.SignRequest{KeyID: keyID, Message: rawMessage()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, policy.ErrPolicyDenied))
}

func TestSign_UnauthorizedPurpose(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	keyID := stack.createEncryptionKey(t)

	// 加密密钥不授权签名用途
	_, err := stack.cryptoService.Sign(ctx, &crypto.SignRequest{KeyID: keyID, Message: rawMessage()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, rsakey.ErrUnsupportedPurpose))
}

func TestSign_KeyNotFound(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)

	_, err := stack.cryptoService.Sign(ctx, &crypto.SignRequest{KeyID: "key-missing", Message: rawMessage()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, key.ErrKeyNotFound))
}

func TestCryptoOperations_AreAudited(t *testing.T) {
	ctx := context.Background()
	stack := newTestStack(t)
	keyID := stack.createSigningKey(t, "")

	before := len(stack.store.events)

	_, err := stack.cryptoService.Sign(ctx, &crypto.SignRequest{KeyID: keyID, Message: rawMessage()})
	require.NoError(t, err)

	require.Len(t, stack.store.events, before+1)
	event := stack.store.events[len(stack.store.events)-1]
	assert.Equal(t, "cryptographic", event.EventType)
	assert.Equal(t, "sign", event.Operation)
	assert.Equal(t, "success", event.Result)
	assert.Equal(t, keyID, event.KeyID)
}
