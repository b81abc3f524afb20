package operation

import (
	"context"
	"crypto/subtle"

	"github.com/keymint/rsa-kms/internal/kms/authset"
	"github.com/keymint/rsa-kms/internal/kms/hsm"
	"github.com/pkg/errors"
)

var (
	ErrVerificationFailed = errors.New("signature verification failed")
	ErrInvalidInputLength = errors.New("input length must equal the modulus length")
	ErrAlreadyFinished    = errors.New("operation already finished")
)

// Operation 一次性的密码学操作实体
// 构造时独占接管密钥句柄，Finish 之后句柄被释放，实体不可复用
//
// Finish 的 input 参数按用途解释：
//   - Sign/Encrypt/Decrypt 忽略 input，处理 Update 累积的数据
//   - Verify 将 input 作为待验证的签名
type Operation interface {
	Purpose() authset.Purpose
	Update(data []byte)
	Finish(ctx context.Context, input []byte) ([]byte, error)
}

// Sign 签名操作（无填充的私钥模幂运算）
type Sign struct {
	digest   authset.Digest
	padding  authset.Padding
	material hsm.KeyHandle
	buf      []byte
}

// NewSign 创建签名操作，接管密钥句柄所有权
func NewSign(digest authset.Digest, padding authset.Padding, material hsm.KeyHandle) *Sign {
	return &Sign{digest: digest, padding: padding, material: material}
}

func (o *Sign) Purpose() authset.Purpose {
	return authset.PurposeSign
}

func (o *Sign) Update(data []byte) {
	o.buf = append(o.buf, data...)
}

// Finish 对累积的输入签名
// 无填充模式要求输入恰好等于模数长度
func (o *Sign) Finish(ctx context.Context, _ []byte) ([]byte, error) {
	if o.material == nil {
		return nil, errors.WithStack(ErrAlreadyFinished)
	}
	defer o.release()

	if len(o.buf) != o.material.ModulusBytes() {
		return nil, errors.WithStack(ErrInvalidInputLength)
	}

	signature, err := o.material.SignRaw(ctx, o.buf)
	if err != nil {
		return nil, errors.Wrap(err, "raw signing failed")
	}

	return signature, nil
}

func (o *Sign) release() {
	o.material.Release()
	o.material = nil
}

// Verify 验签操作（无填充的公钥模幂运算）
type Verify struct {
	digest   authset.Digest
	padding  authset.Padding
	material hsm.KeyHandle
	buf      []byte
}

// NewVerify 创建验签操作，接管密钥句柄所有权
func NewVerify(digest authset.Digest, padding authset.Padding, material hsm.KeyHandle) *Verify {
	return &Verify{digest: digest, padding: padding, material: material}
}

func (o *Verify) Purpose() authset.Purpose {
	return authset.PurposeVerify
}

func (o *Verify) Update(data []byte) {
	o.buf = append(o.buf, data...)
}

// Finish 用 input 作为签名，与累积的消息比对
// 成功返回 (nil, nil)，签名不匹配返回 ErrVerificationFailed
func (o *Verify) Finish(ctx context.Context, input []byte) ([]byte, error) {
	if o.material == nil {
		return nil, errors.WithStack(ErrAlreadyFinished)
	}
	defer o.release()

	k := o.material.ModulusBytes()
	if len(o.buf) != k || len(input) != k {
		return nil, errors.WithStack(ErrInvalidInputLength)
	}

	recovered, err := o.material.PublicRaw(ctx, input)
	if err != nil {
		return nil, errors.Wrap(err, "raw public operation failed")
	}

	if subtle.ConstantTimeCompare(recovered, o.buf) != 1 {
		return nil, errors.WithStack(ErrVerificationFailed)
	}

	return nil, nil
}

func (o *Verify) release() {
	o.material.Release()
	o.material = nil
}

// Encrypt 加密操作
type Encrypt struct {
	padding  authset.Padding
	material hsm.KeyHandle
	buf      []byte
}

// NewEncrypt 创建加密操作，接管密钥句柄所有权
func NewEncrypt(padding authset.Padding, material hsm.KeyHandle) *Encrypt {
	return &Encrypt{padding: padding, material: material}
}

func (o *Encrypt) Purpose() authset.Purpose {
	return authset.PurposeEncrypt
}

func (o *Encrypt) Update(data []byte) {
	o.buf = append(o.buf, data...)
}

// Finish 按构造时的填充模式加密累积的明文
func (o *Encrypt) Finish(ctx context.Context, _ []byte) ([]byte, error) {
	if o.material == nil {
		return nil, errors.WithStack(ErrAlreadyFinished)
	}
	defer o.release()

	ciphertext, err := o.material.Encrypt(ctx, o.padding, o.buf)
	if err != nil {
		return nil, errors.Wrap(err, "encryption failed")
	}

	return ciphertext, nil
}

func (o *Encrypt) release() {
	o.material.Release()
	o.material = nil
}

// Decrypt 解密操作
type Decrypt struct {
	padding  authset.Padding
	material hsm.KeyHandle
	buf      []byte
}

// NewDecrypt 创建解密操作，接管密钥句柄所有权
func NewDecrypt(padding authset.Padding, material hsm.KeyHandle) *Decrypt {
	return &Decrypt{padding: padding, material: material}
}

func (o *Decrypt) Purpose() authset.Purpose {
	return authset.PurposeDecrypt
}

func (o *Decrypt) Update(data []byte) {
	o.buf = append(o.buf, data...)
}

// Finish 按构造时的填充模式解密累积的密文
func (o *Decrypt) Finish(ctx context.Context, _ []byte) ([]byte, error) {
	if o.material == nil {
		return nil, errors.WithStack(ErrAlreadyFinished)
	}
	defer o.release()

	plaintext, err := o.material.Decrypt(ctx, o.padding, o.buf)
	if err != nil {
		return nil, errors.Wrap(err, "decryption failed")
	}

	return plaintext, nil
}

func (o *Decrypt) release() {
	o.material.Release()
	o.material = nil
}
