package rsakey

import (
	"context"

	"github.com/keymint/rsa-kms/internal/kms/authset"
	"github.com/keymint/rsa-kms/internal/kms/hsm"
	"github.com/keymint/rsa-kms/internal/kms/operation"
	"github.com/pkg/errors"
)

// 生成密钥时未指定参数的默认值
// 作为命名常量传入生成逻辑，不是可变的模块级状态
const (
	DefaultKeySizeBits    uint32 = 2048
	DefaultPublicExponent uint64 = 65537
)

var (
	ErrAllocationFailed        = errors.New("allocation failed")
	ErrUnknown                 = errors.New("unknown cryptographic failure")
	ErrImportParameterMismatch = errors.New("import parameter mismatch")
	ErrUnsupportedPaddingMode  = errors.New("unsupported padding mode")
	ErrUnsupportedDigest       = errors.New("unsupported digest")
	ErrUnsupportedPurpose      = errors.New("unsupported purpose")
	ErrKeyMaterialConsumed     = errors.New("key material already consumed")
)

// Key 经过参数校验的 RSA 密钥实体
// 持有授权集合和（在被操作实体消费之前的）密钥句柄独占所有权
// 授权集合只在构造期间被填充，构造完成后不再变更
type Key struct {
	auths    *authset.Set
	material hsm.KeyHandle
}

// Generate 生成新的 RSA 密钥实体
// requested 中缺失的公钥指数和密钥长度用默认值补齐，并写回授权集合，
// 使实体的授权记录总是完整描述实际密钥
func Generate(ctx context.Context, engine hsm.Engine, requested *authset.Set) (*Key, error) {
	auths := requested.Clone()

	publicExponent, ok := auths.PublicExponent()
	if !ok {
		publicExponent = DefaultPublicExponent
		auths.AddPublicExponent(publicExponent)
	}

	keySize, ok := auths.KeySize()
	if !ok {
		keySize = DefaultKeySizeBits
		auths.AddKeySize(keySize)
	}

	material, err := engine.GenerateRSA(ctx, keySize, publicExponent)
	if err != nil {
		if errors.Is(err, hsm.ErrAllocationFailed) {
			return nil, errors.Wrapf(ErrAllocationFailed, "rsa key generation: %v", err)
		}
		return nil, errors.Wrapf(ErrUnknown, "rsa key generation: %v", err)
	}

	return &Key{auths: auths, material: material}, nil
}

// Import 从外部密钥材料构造 RSA 密钥实体
// 公钥指数、密钥长度、算法与实际材料逐项核对：显式指定的必须精确匹配，
// 缺失的从材料推导后写回授权集合
// 其余参数（padding、digest、purpose 等）此处不校验，留到创建操作时诊断
func Import(ctx context.Context, engine hsm.Engine, requested *authset.Set, material []byte) (*Key, error) {
	handle, err := engine.ImportRSA(ctx, material)
	if err != nil {
		return nil, errors.Wrapf(ErrUnknown, "parse key material: %v", err)
	}

	auths := requested.Clone()

	embedded, representable := handle.PublicExponent()
	if want, ok := auths.PublicExponent(); ok {
		if !representable || embedded != want {
			handle.Release()
			return nil, errors.Wrap(ErrImportParameterMismatch, "rsa_public_exponent does not match key material")
		}
	} else {
		if !representable {
			handle.Release()
			return nil, errors.Wrap(ErrImportParameterMismatch, "embedded public exponent is not representable")
		}
		auths.AddPublicExponent(embedded)
	}

	modulusBytes := handle.ModulusBytes()
	if bits, ok := auths.KeySize(); ok {
		if modulusBytes*8 != int(bits) {
			handle.Release()
			return nil, errors.Wrap(ErrImportParameterMismatch, "key_size does not match key material")
		}
	} else {
		//nolint:gosec // modulus length of a parsed RSA key always fits uint32
		auths.AddKeySize(uint32(modulusBytes * 8))
	}

	if algorithm, ok := auths.Algorithm(); ok {
		if algorithm != authset.AlgorithmRSA {
			handle.Release()
			return nil, errors.Wrap(ErrImportParameterMismatch, "algorithm must be RSA")
		}
	} else {
		auths.AddAlgorithm(authset.AlgorithmRSA)
	}

	return &Key{auths: auths, material: handle}, nil
}

// Load 从持久化的 key blob 重建密钥实体
func Load(ctx context.Context, engine hsm.Engine, blob []byte, auths *authset.Set) (*Key, error) {
	handle, err := engine.LoadRSA(ctx, blob)
	if err != nil {
		return nil, errors.Wrapf(ErrUnknown, "load key blob: %v", err)
	}

	return &Key{auths: auths.Clone(), material: handle}, nil
}

// Authorizations 返回实体的授权集合
func (k *Key) Authorizations() *authset.Set {
	return k.auths
}

// Consumed 报告密钥材料是否已被操作实体接管
func (k *Key) Consumed() bool {
	return k.material == nil
}

// Export 导出密钥材料用于持久化
func (k *Key) Export(ctx context.Context) ([]byte, error) {
	if k.material == nil {
		return nil, errors.WithStack(ErrKeyMaterialConsumed)
	}

	blob, err := k.material.Export(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to export key material")
	}

	return blob, nil
}

// Release 释放未被消费的密钥材料，幂等
func (k *Key) Release() {
	if k.material != nil {
		k.material.Release()
		k.material = nil
	}
}

// CreateOperation 为指定用途构造操作实体
// 校验 padding/digest 与用途的兼容性后，将密钥句柄的独占所有权
// 转移给新的操作实体；所有校验都在转移之前完成，失败时实体继续持有材料
// 材料已被消费时返回 ErrKeyMaterialConsumed
//
//nolint:ireturn // the factory dispatches to one of four operation variants
func (k *Key) CreateOperation(purpose authset.Purpose) (operation.Operation, error) {
	if k.material == nil {
		return nil, errors.WithStack(ErrKeyMaterialConsumed)
	}

	switch purpose {
	case authset.PurposeSign, authset.PurposeVerify, authset.PurposeEncrypt, authset.PurposeDecrypt:
	default:
		return nil, errors.Wrapf(ErrUnsupportedPurpose, "purpose %d", purpose)
	}

	// 缺失的 tag 视为无效哨兵值参与校验
	padding, ok := k.auths.Padding()
	if !ok {
		padding = authset.PaddingInvalid
	}
	if !supportedPadding(purpose, padding) {
		return nil, errors.Wrapf(ErrUnsupportedPaddingMode, "purpose %s with padding %s", purpose, padding)
	}

	digest, ok := k.auths.Digest()
	if !ok {
		digest = authset.DigestInvalid
	}
	if !supportedDigest(purpose, digest) {
		return nil, errors.Wrapf(ErrUnsupportedDigest, "purpose %s with digest %s", purpose, digest)
	}

	var op operation.Operation
	switch purpose {
	case authset.PurposeSign:
		op = operation.NewSign(digest, padding, k.material)
	case authset.PurposeVerify:
		op = operation.NewVerify(digest, padding, k.material)
	case authset.PurposeEncrypt:
		op = operation.NewEncrypt(padding, k.material)
	case authset.PurposeDecrypt:
		op = operation.NewDecrypt(padding, k.material)
	}

	// 所有权转移完成，实体进入 Consumed 状态
	k.material = nil

	return op, nil
}

func supportedPadding(purpose authset.Purpose, padding authset.Padding) bool {
	switch purpose {
	case authset.PurposeSign, authset.PurposeVerify:
		return padding == authset.PaddingNone
	case authset.PurposeEncrypt, authset.PurposeDecrypt:
		return padding == authset.PaddingRSAOAEP || padding == authset.PaddingRSAPKCS1v15Encrypt
	default:
		return false
	}
}

func supportedDigest(purpose authset.Purpose, digest authset.Digest) bool {
	switch purpose {
	case authset.PurposeSign, authset.PurposeVerify:
		return digest == authset.DigestNone
	case authset.PurposeEncrypt, authset.PurposeDecrypt:
		// 加解密不约束摘要
		return true
	default:
		return true
	}
}
