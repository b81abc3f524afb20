package software_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"testing"

	"github.com/keymint/rsa-kms/internal/kms/authset"
	"github.com/keymint/rsa-kms/internal/kms/hsm"
	"github.com/keymint/rsa-kms/internal/kms/hsm/software"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRSA(t *testing.T) {
	ctx := context.Background()
	engine := software.NewEngine()

	handle, err := engine.GenerateRSA(ctx, 1024, 65537)
	require.NoError(t, err)

	assert.Equal(t, 128, handle.ModulusBytes())

	exponent, ok := handle.PublicExponent()
	require.True(t, ok)
	assert.Equal(t, uint64(65537), exponent)
}

func TestGenerateRSA_RejectsUnsupportedExponent(t *testing.T) {
	ctx := context.Background()
	engine := software.NewEngine()

	_, err := engine.GenerateRSA(ctx, 1024, 3)
	require.Error(t, err)
}

func TestImportRSA_PKCS1(t *testing.T) {
	ctx := context.Background()
	engine := software.NewEngine()

	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	handle, err := engine.ImportRSA(ctx, x509.MarshalPKCS1PrivateKey(key))
	require.NoError(t, err)
	assert.Equal(t, 128, handle.ModulusBytes())
}

func TestImportRSA_PKCS8(t *testing.T) {
	ctx := context.Background()
	engine := software.NewEngine()

	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	handle, err := engine.ImportRSA(ctx, der)
	require.NoError(t, err)
	assert.Equal(t, 128, handle.ModulusBytes())
}

func TestImportRSA_RejectsGarbage(t *testing.T) {
	ctx := context.Background()
	engine := software.NewEngine()

	_, err := engine.ImportRSA(ctx, []byte("not a key"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, hsm.ErrInvalidKeyMaterial))
}

func TestImportRSA_RejectsNonRSAKey(t *testing.T) {
	ctx := context.Background()
	engine := software.NewEngine()

	// PKCS#8 封装的非 RSA 密钥
	der, err := x509.MarshalPKCS8PrivateKey(mustECDSAKey(t))
	require.NoError(t, err)

	_, err = engine.ImportRSA(ctx, der)
	require.Error(t, err)
	assert.True(t, errors.Is(err, hsm.ErrInvalidKeyMaterial))
}

func TestExportLoadRoundtrip(t *testing.T) {
	ctx := context.Background()
	engine := software.NewEngine()

	original, err := engine.GenerateRSA(ctx, 1024, 65537)
	require.NoError(t, err)

	blob, err := original.Export(ctx)
	require.NoError(t, err)

	restored, err := engine.LoadRSA(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, original.ModulusBytes(), restored.ModulusBytes())
}

func TestEncryptDecrypt_UnsupportedPadding(t *testing.T) {
	ctx := context.Background()
	engine := software.NewEngine()

	handle, err := engine.GenerateRSA(ctx, 1024, 65537)
	require.NoError(t, err)

	_, err = handle.Encrypt(ctx, authset.PaddingNone, []byte("data"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, hsm.ErrUnsupportedPadding))

	_, err = handle.Decrypt(ctx, authset.PaddingInvalid, []byte("data"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, hsm.ErrUnsupportedPadding))
}

func TestRelease_IsTerminal(t *testing.T) {
	ctx := context.Background()
	engine := software.NewEngine()

	handle, err := engine.GenerateRSA(ctx, 1024, 65537)
	require.NoError(t, err)

	handle.Release()
	handle.Release() // 幂等

	_, err = handle.Export(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, hsm.ErrHandleReleased))

	_, err = handle.SignRaw(ctx, make([]byte, 128))
	require.Error(t, err)
	assert.True(t, errors.Is(err, hsm.ErrHandleReleased))
}

func TestSignRaw_InputNotReduced(t *testing.T) {
	ctx := context.Background()
	engine := software.NewEngine()

	handle, err := engine.GenerateRSA(ctx, 1024, 65537)
	require.NoError(t, err)

	// 全 0xff 的输入必然大于模数
	input := make([]byte, 128)
	for i := range input {
		input[i] = 0xff
	}

	_, err = handle.SignRaw(ctx, input)
	require.Error(t, err)
}

func mustECDSAKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	return key
}
