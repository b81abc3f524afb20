package hsm

import (
	"context"

	"github.com/keymint/rsa-kms/internal/kms/authset"
	"github.com/pkg/errors"
)

var (
	// ErrAllocationFailed 底层引擎无法分配工作状态
	ErrAllocationFailed = errors.New("hsm: allocation failed")
	// ErrInvalidKeyMaterial 导入的材料不是可用的 RSA 密钥
	ErrInvalidKeyMaterial = errors.New("hsm: key material is not a usable RSA key")
	// ErrUnsupportedPadding 句柄不支持请求的填充模式
	ErrUnsupportedPadding = errors.New("hsm: unsupported padding mode")
	// ErrHandleReleased 句柄已被释放
	ErrHandleReleased = errors.New("hsm: key handle has been released")
)

// Engine 定义 RSA 原语引擎接口
// 所有实现（软件、PKCS#11）都必须实现此接口
type Engine interface {
	// GenerateRSA 生成指定位长和公钥指数的 RSA 密钥，返回密钥句柄
	GenerateRSA(ctx context.Context, bits uint32, publicExponent uint64) (KeyHandle, error)

	// ImportRSA 解析外部提供的密钥材料（DER 编码，PKCS#8 或 PKCS#1）
	ImportRSA(ctx context.Context, der []byte) (KeyHandle, error)

	// LoadRSA 从持久化的 key blob 重建密钥句柄
	// blob 是此前通过 KeyHandle.Export 导出的内容
	LoadRSA(ctx context.Context, blob []byte) (KeyHandle, error)

	// Close 关闭引擎，释放底层资源
	Close() error
}

// KeyHandle RSA 密钥材料的不透明句柄
// 句柄是独占所有权的：同一时刻只有一个持有者，Release 之后不可再用
type KeyHandle interface {
	// ModulusBytes 返回模数的字节长度
	ModulusBytes() int

	// PublicExponent 返回公钥指数；指数无法用 uint64 表示时第二个返回值为 false
	PublicExponent() (uint64, bool)

	// Export 导出句柄用于持久化
	// 软件引擎返回 PKCS#1 DER；PKCS#11 引擎返回 token 内对象的引用
	Export(ctx context.Context) ([]byte, error)

	// SignRaw 用私钥对 input 做无填充的模幂运算
	// input 必须恰好等于模数长度
	SignRaw(ctx context.Context, input []byte) ([]byte, error)

	// PublicRaw 用公钥对 input 做无填充的模幂运算（用于裸签名验证）
	PublicRaw(ctx context.Context, input []byte) ([]byte, error)

	// Encrypt 按指定填充模式加密
	Encrypt(ctx context.Context, padding authset.Padding, plaintext []byte) ([]byte, error)

	// Decrypt 按指定填充模式解密
	Decrypt(ctx context.Context, padding authset.Padding, ciphertext []byte) ([]byte, error)

	// Release 释放句柄，幂等
	Release()
}
