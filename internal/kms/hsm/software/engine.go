package software

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"math/big"

	"github.com/keymint/rsa-kms/internal/kms/authset"
	"github.com/keymint/rsa-kms/internal/kms/hsm"
	"github.com/pkg/errors"
)

// 软件引擎只能生成 F4 指数的密钥；其他指数需要 PKCS#11 后端
const supportedGenerateExponent = 65537

// engine 实现进程内软件 RSA 引擎
type engine struct{}

// NewEngine 创建新的软件 RSA 引擎
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewEngine() hsm.Engine {
	return &engine{}
}

// GenerateRSA 生成 RSA 密钥对
func (e *engine) GenerateRSA(_ context.Context, bits uint32, publicExponent uint64) (hsm.KeyHandle, error) {
	if publicExponent != supportedGenerateExponent {
		return nil, errors.Errorf("software engine only generates keys with public exponent %d, got %d",
			supportedGenerateExponent, publicExponent)
	}

	key, err := rsa.GenerateKey(rand.Reader, int(bits))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to generate %d-bit RSA key", bits)
	}

	return &keyHandle{key: key}, nil
}

// ImportRSA 解析 DER 编码的密钥材料（PKCS#8 或 PKCS#1）
func (e *engine) ImportRSA(_ context.Context, der []byte) (hsm.KeyHandle, error) {
	key, err := parseRSAPrivateKey(der)
	if err != nil {
		return nil, err
	}

	return &keyHandle{key: key}, nil
}

// LoadRSA 从持久化的 blob 重建句柄
// 软件引擎的 blob 就是 PKCS#1 DER
func (e *engine) LoadRSA(ctx context.Context, blob []byte) (hsm.KeyHandle, error) {
	return e.ImportRSA(ctx, blob)
}

// Close 关闭引擎
func (e *engine) Close() error {
	return nil
}

func parseRSAPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if parsed, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.WithStack(hsm.ErrInvalidKeyMaterial)
		}
		return key, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, errors.WithStack(hsm.ErrInvalidKeyMaterial)
	}

	if err := key.Validate(); err != nil {
		return nil, errors.WithStack(hsm.ErrInvalidKeyMaterial)
	}

	return key, nil
}

// keyHandle 软件引擎的密钥句柄，包装 crypto/rsa 私钥
type keyHandle struct {
	key *rsa.PrivateKey
}

// ModulusBytes 返回模数的字节长度
func (h *keyHandle) ModulusBytes() int {
	if h.key == nil {
		return 0
	}
	return (h.key.N.BitLen() + 7) / 8
}

// PublicExponent 返回公钥指数
// crypto/rsa 的指数是 int，总能用 uint64 表示
func (h *keyHandle) PublicExponent() (uint64, bool) {
	if h.key == nil || h.key.E <= 0 {
		return 0, false
	}
	return uint64(h.key.E), true
}

// Export 导出 PKCS#1 DER
func (h *keyHandle) Export(_ context.Context) ([]byte, error) {
	if h.key == nil {
		return nil, errors.WithStack(hsm.ErrHandleReleased)
	}
	return x509.MarshalPKCS1PrivateKey(h.key), nil
}

// SignRaw 私钥无填充模幂运算
func (h *keyHandle) SignRaw(_ context.Context, input []byte) ([]byte, error) {
	if h.key == nil {
		return nil, errors.WithStack(hsm.ErrHandleReleased)
	}

	m := new(big.Int).SetBytes(input)
	if m.Cmp(h.key.N) >= 0 {
		return nil, errors.New("input is not reduced modulo N")
	}

	s := new(big.Int).Exp(m, h.key.D, h.key.N)
	return s.FillBytes(make([]byte, h.ModulusBytes())), nil
}

// PublicRaw 公钥无填充模幂运算
func (h *keyHandle) PublicRaw(_ context.Context, input []byte) ([]byte, error) {
	if h.key == nil {
		return nil, errors.WithStack(hsm.ErrHandleReleased)
	}

	m := new(big.Int).SetBytes(input)
	if m.Cmp(h.key.N) >= 0 {
		return nil, errors.New("input is not reduced modulo N")
	}

	s := new(big.Int).Exp(m, big.NewInt(int64(h.key.E)), h.key.N)
	return s.FillBytes(make([]byte, h.ModulusBytes())), nil
}

// Encrypt 按填充模式加密
func (h *keyHandle) Encrypt(_ context.Context, padding authset.Padding, plaintext []byte) ([]byte, error) {
	if h.key == nil {
		return nil, errors.WithStack(hsm.ErrHandleReleased)
	}

	switch padding {
	case authset.PaddingRSAOAEP:
		ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, &h.key.PublicKey, plaintext, nil)
		if err != nil {
			return nil, errors.Wrap(err, "OAEP encryption failed")
		}
		return ciphertext, nil
	case authset.PaddingRSAPKCS1v15Encrypt:
		ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, &h.key.PublicKey, plaintext)
		if err != nil {
			return nil, errors.Wrap(err, "PKCS#1 v1.5 encryption failed")
		}
		return ciphertext, nil
	default:
		return nil, errors.WithStack(hsm.ErrUnsupportedPadding)
	}
}

// Decrypt 按填充模式解密
func (h *keyHandle) Decrypt(_ context.Context, padding authset.Padding, ciphertext []byte) ([]byte, error) {
	if h.key == nil {
		return nil, errors.WithStack(hsm.ErrHandleReleased)
	}

	switch padding {
	case authset.PaddingRSAOAEP:
		plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, h.key, ciphertext, nil)
		if err != nil {
			return nil, errors.Wrap(err, "OAEP decryption failed")
		}
		return plaintext, nil
	case authset.PaddingRSAPKCS1v15Encrypt:
		plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, h.key, ciphertext)
		if err != nil {
			return nil, errors.Wrap(err, "PKCS#1 v1.5 decryption failed")
		}
		return plaintext, nil
	default:
		return nil, errors.WithStack(hsm.ErrUnsupportedPadding)
	}
}

// Release 释放句柄
func (h *keyHandle) Release() {
	h.key = nil
}
