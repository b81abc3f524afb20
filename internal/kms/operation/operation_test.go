package operation_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"testing"

	"github.com/keymint/rsa-kms/internal/kms/authset"
	"github.com/keymint/rsa-kms/internal/kms/hsm"
	"github.com/keymint/rsa-kms/internal/kms/hsm/software"
	"github.com/keymint/rsa-kms/internal/kms/operation"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyBits = 1024

//nolint:ireturn // test helper hands out the engine interface
func testHandle(t *testing.T) (hsm.KeyHandle, hsm.Engine) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, testKeyBits)
	require.NoError(t, err)

	engine := software.NewEngine()
	handle, err := engine.ImportRSA(context.Background(), x509.MarshalPKCS1PrivateKey(key))
	require.NoError(t, err)

	return handle, engine
}

func rawMessage(size int) []byte {
	// 首字节置零，保证消息小于模数
	message := make([]byte, size)
	for i := 1; i < size; i++ {
		message[i] = byte(i * 7)
	}
	return message
}

func TestSignVerify_RawRoundtrip(t *testing.T) {
	ctx := context.Background()
	signHandle, engine := testHandle(t)

	blob, err := signHandle.Export(ctx)
	require.NoError(t, err)

	message := rawMessage(testKeyBits / 8)

	signOp := operation.NewSign(authset.DigestNone, authset.PaddingNone, signHandle)
	assert.Equal(t, authset.PurposeSign, signOp.Purpose())

	// 分段 Update 累积输入
	signOp.Update(message[:50])
	signOp.Update(message[50:])

	signature, err := signOp.Finish(ctx, nil)
	require.NoError(t, err)
	require.Len(t, signature, testKeyBits/8)

	verifyHandle, err := engine.LoadRSA(ctx, blob)
	require.NoError(t, err)

	verifyOp := operation.NewVerify(authset.DigestNone, authset.PaddingNone, verifyHandle)
	verifyOp.Update(message)

	result, err := verifyOp.Finish(ctx, signature)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestVerify_RejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	handle, _ := testHandle(t)

	message := rawMessage(testKeyBits / 8)
	badSignature := rawMessage(testKeyBits / 8)
	badSignature[10] ^= 0xff

	verifyOp := operation.NewVerify(authset.DigestNone, authset.PaddingNone, handle)
	verifyOp.Update(message)

	_, err := verifyOp.Finish(ctx, badSignature)
	require.Error(t, err)
	assert.True(t, errors.Is(err, operation.ErrVerificationFailed))
}

func TestSign_InvalidInputLength(t *testing.T) {
	ctx := context.Background()
	handle, _ := testHandle(t)

	signOp := operation.NewSign(authset.DigestNone, authset.PaddingNone, handle)
	signOp.Update([]byte("too short"))

	_, err := signOp.Finish(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, operation.ErrInvalidInputLength))
}

func TestVerify_InvalidSignatureLength(t *testing.T) {
	ctx := context.Background()
	handle, _ := testHandle(t)

	verifyOp := operation.NewVerify(authset.DigestNone, authset.PaddingNone, handle)
	verifyOp.Update(rawMessage(testKeyBits / 8))

	_, err := verifyOp.Finish(ctx, []byte("short signature"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, operation.ErrInvalidInputLength))
}

func TestEncryptDecrypt_OAEPRoundtrip(t *testing.T) {
	ctx := context.Background()
	encryptHandle, engine := testHandle(t)

	blob, err := encryptHandle.Export(ctx)
	require.NoError(t, err)

	plaintext := []byte("attack at dawn")

	encryptOp := operation.NewEncrypt(authset.PaddingRSAOAEP, encryptHandle)
	encryptOp.Update(plaintext)

	ciphertext, err := encryptOp.Finish(ctx, nil)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	decryptHandle, err := engine.LoadRSA(ctx, blob)
	require.NoError(t, err)

	decryptOp := operation.NewDecrypt(authset.PaddingRSAOAEP, decryptHandle)
	decryptOp.Update(ciphertext)

	decrypted, err := decryptOp.Finish(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptDecrypt_PKCS1v15Roundtrip(t *testing.T) {
	ctx := context.Background()
	encryptHandle, engine := testHandle(t)

	blob, err := encryptHandle.Export(ctx)
	require.NoError(t, err)

	plaintext := []byte("legacy payload")

	encryptOp := operation.NewEncrypt(authset.PaddingRSAPKCS1v15Encrypt, encryptHandle)
	encryptOp.Update(plaintext)

	ciphertext, err := encryptOp.Finish(ctx, nil)
	require.NoError(t, err)

	decryptHandle, err := engine.LoadRSA(ctx, blob)
	require.NoError(t, err)

	decryptOp := operation.NewDecrypt(authset.PaddingRSAPKCS1v15Encrypt, decryptHandle)
	decryptOp.Update(ciphertext)

	decrypted, err := decryptOp.Finish(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestFinish_ReleasesHandleAndRejectsReuse(t *testing.T) {
	ctx := context.Background()
	handle, _ := testHandle(t)

	signOp := operation.NewSign(authset.DigestNone, authset.PaddingNone, handle)
	signOp.Update(rawMessage(testKeyBits / 8))

	_, err := signOp.Finish(ctx, nil)
	require.NoError(t, err)

	// Finish 之后操作实体不可复用
	_, err = signOp.Finish(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, operation.ErrAlreadyFinished))

	// 句柄已随 Finish 释放
	_, err = handle.SignRaw(ctx, rawMessage(testKeyBits/8))
	require.Error(t, err)
	assert.True(t, errors.Is(err, hsm.ErrHandleReleased))
}
