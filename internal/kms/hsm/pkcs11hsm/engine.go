package pkcs11hsm

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/binary"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/keymint/rsa-kms/internal/kms/authset"
	"github.com/keymint/rsa-kms/internal/kms/hsm"
	"github.com/miekg/pkcs11"
	"github.com/pkg/errors"
)

// engine 实现 PKCS#11 后端的 RSA 引擎
// 密钥常驻 token，句柄通过 label 引用
type engine struct {
	ctx     *pkcs11.Ctx
	slot    uint
	pin     string
	session pkcs11.SessionHandle
	mu      sync.Mutex
}

// NewEngine 创建新的 PKCS#11 引擎
// libraryPath: PKCS#11 库路径（如 /usr/lib/softhsm/libsofthsm2.so）
// slot: token slot ID
// pin: 用户 PIN
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewEngine(libraryPath string, slot uint, pin string) (hsm.Engine, error) {
	if libraryPath == "" {
		return nil, errors.New("PKCS#11 library path is required, set KMS_HSM_LIBRARY environment variable")
	}

	if _, err := os.Stat(libraryPath); os.IsNotExist(err) {
		return nil, errors.Errorf("PKCS#11 library not found at path: %s", libraryPath)
	}

	ctx := pkcs11.New(libraryPath)
	if ctx == nil {
		return nil, errors.Errorf("failed to load PKCS#11 library from path: %s", libraryPath)
	}

	if err := ctx.Initialize(); err != nil {
		_ = ctx.Finalize()
		return nil, errors.Wrapf(err, "failed to initialize PKCS#11 on slot %d", slot)
	}

	slots, err := ctx.GetSlotList(true)
	if err != nil {
		_ = ctx.Finalize()
		return nil, errors.Wrap(err, "failed to get PKCS#11 slot list")
	}

	slotExists := false
	for _, s := range slots {
		if s == slot {
			slotExists = true
			break
		}
	}
	if !slotExists {
		_ = ctx.Finalize()
		return nil, errors.Errorf("PKCS#11 slot %d does not exist, available slots: %v", slot, slots)
	}

	session, err := ctx.OpenSession(slot, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		_ = ctx.Finalize()
		return nil, errors.Wrapf(err, "failed to open PKCS#11 session on slot %d", slot)
	}

	if err := ctx.Login(session, pkcs11.CKU_USER, pin); err != nil {
		_ = ctx.CloseSession(session)
		_ = ctx.Finalize()
		return nil, errors.Wrap(err, "failed to login to PKCS#11")
	}

	return &engine{
		ctx:     ctx,
		slot:    slot,
		pin:     pin,
		session: session,
	}, nil
}

// Close 关闭引擎，登出并结束会话
func (e *engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx == nil {
		return nil
	}

	_ = e.ctx.Logout(e.session)
	_ = e.ctx.CloseSession(e.session)
	_ = e.ctx.Finalize()
	e.ctx = nil
	return nil
}

// GenerateRSA 在 token 内生成 RSA 密钥对
func (e *engine) GenerateRSA(_ context.Context, bits uint32, publicExponent uint64) (hsm.KeyHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx == nil {
		return nil, errors.New("PKCS#11 session not available")
	}

	label := generateLabel()
	labelBytes := []byte(label)
	exponentBytes := exponentToBytes(publicExponent)

	publicKeyTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_ENCRYPT, true),
		pkcs11.NewAttribute(pkcs11.CKA_VERIFY, true),
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS_BITS, uint(bits)),
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, exponentBytes),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, labelBytes),
		pkcs11.NewAttribute(pkcs11.CKA_ID, labelBytes),
	}

	privateKeyTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_SIGN, true),
		pkcs11.NewAttribute(pkcs11.CKA_DECRYPT, true),
		pkcs11.NewAttribute(pkcs11.CKA_SENSITIVE, true),
		pkcs11.NewAttribute(pkcs11.CKA_EXTRACTABLE, false),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, labelBytes),
		pkcs11.NewAttribute(pkcs11.CKA_ID, labelBytes),
	}

	pubHandle, privHandle, err := e.ctx.GenerateKeyPair(e.session,
		[]*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS_KEY_PAIR_GEN, nil)},
		publicKeyTemplate,
		privateKeyTemplate,
	)
	if err != nil {
		return nil, wrapPKCS11Error(err, "failed to generate RSA key pair")
	}

	modulusBytes, err := e.modulusLength(pubHandle)
	if err != nil {
		return nil, err
	}

	return &keyHandle{
		engine:       e,
		label:        label,
		priv:         privHandle,
		pub:          pubHandle,
		modulusBytes: modulusBytes,
		exponent:     publicExponent,
		exponentOK:   true,
	}, nil
}

// ImportRSA 解析 DER 材料并作为 token 对象导入
func (e *engine) ImportRSA(_ context.Context, der []byte) (hsm.KeyHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx == nil {
		return nil, errors.New("PKCS#11 session not available")
	}

	key, err := parseRSAPrivateKey(der)
	if err != nil {
		return nil, err
	}

	label := generateLabel()
	labelBytes := []byte(label)
	exponentBytes := exponentToBytes(uint64(key.E))
	modulus := key.N.Bytes()

	privateKeyTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_SIGN, true),
		pkcs11.NewAttribute(pkcs11.CKA_DECRYPT, true),
		pkcs11.NewAttribute(pkcs11.CKA_SENSITIVE, true),
		pkcs11.NewAttribute(pkcs11.CKA_EXTRACTABLE, false),
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS, modulus),
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, exponentBytes),
		pkcs11.NewAttribute(pkcs11.CKA_PRIVATE_EXPONENT, key.D.Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_PRIME_1, key.Primes[0].Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_PRIME_2, key.Primes[1].Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_EXPONENT_1, key.Precomputed.Dp.Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_EXPONENT_2, key.Precomputed.Dq.Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_COEFFICIENT, key.Precomputed.Qinv.Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, labelBytes),
		pkcs11.NewAttribute(pkcs11.CKA_ID, labelBytes),
	}

	privHandle, err := e.ctx.CreateObject(e.session, privateKeyTemplate)
	if err != nil {
		return nil, wrapPKCS11Error(err, "failed to import RSA private key")
	}

	publicKeyTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_ENCRYPT, true),
		pkcs11.NewAttribute(pkcs11.CKA_VERIFY, true),
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS, modulus),
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, exponentBytes),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, labelBytes),
		pkcs11.NewAttribute(pkcs11.CKA_ID, labelBytes),
	}

	pubHandle, err := e.ctx.CreateObject(e.session, publicKeyTemplate)
	if err != nil {
		_ = e.ctx.DestroyObject(e.session, privHandle)
		return nil, wrapPKCS11Error(err, "failed to import RSA public key")
	}

	return &keyHandle{
		engine:       e,
		label:        label,
		priv:         privHandle,
		pub:          pubHandle,
		modulusBytes: len(modulus),
		exponent:     uint64(key.E),
		exponentOK:   true,
	}, nil
}

// LoadRSA 通过 label 引用重建句柄
func (e *engine) LoadRSA(_ context.Context, blob []byte) (hsm.KeyHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx == nil {
		return nil, errors.New("PKCS#11 session not available")
	}

	ref := string(blob)
	if !strings.HasPrefix(ref, "pkcs11:") {
		return nil, errors.Errorf("invalid PKCS#11 key reference: %q", ref)
	}
	label := strings.TrimPrefix(ref, "pkcs11:")

	priv, err := e.findObjectByLabel(pkcs11.CKO_PRIVATE_KEY, label)
	if err != nil {
		return nil, err
	}
	pub, err := e.findObjectByLabel(pkcs11.CKO_PUBLIC_KEY, label)
	if err != nil {
		return nil, err
	}

	modulusBytes, err := e.modulusLength(pub)
	if err != nil {
		return nil, err
	}

	exponent, exponentOK, err := e.publicExponent(pub)
	if err != nil {
		return nil, err
	}

	return &keyHandle{
		engine:       e,
		label:        label,
		priv:         priv,
		pub:          pub,
		modulusBytes: modulusBytes,
		exponent:     exponent,
		exponentOK:   exponentOK,
	}, nil
}

func (e *engine) findObjectByLabel(class uint, label string) (pkcs11.ObjectHandle, error) {
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, class),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, []byte(label)),
	}

	if err := e.ctx.FindObjectsInit(e.session, template); err != nil {
		return 0, errors.Wrap(err, "failed to initialize object search")
	}

	handles, _, err := e.ctx.FindObjects(e.session, 1)
	if err != nil {
		_ = e.ctx.FindObjectsFinal(e.session)
		return 0, errors.Wrap(err, "failed to find objects")
	}
	if err := e.ctx.FindObjectsFinal(e.session); err != nil {
		return 0, errors.Wrap(err, "failed to finalize object search")
	}

	if len(handles) == 0 {
		return 0, errors.Errorf("object with label %s not found", label)
	}

	return handles[0], nil
}

func (e *engine) modulusLength(pub pkcs11.ObjectHandle) (int, error) {
	attrs, err := e.ctx.GetAttributeValue(e.session, pub, []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS, nil),
	})
	if err != nil || len(attrs) == 0 {
		return 0, errors.Wrap(err, "failed to read modulus attribute")
	}

	modulus := new(big.Int).SetBytes(attrs[0].Value)
	return (modulus.BitLen() + 7) / 8, nil
}

//nolint:nonamedreturns // named returns are used for clarity
func (e *engine) publicExponent(pub pkcs11.ObjectHandle) (exponent uint64, representable bool, err error) {
	attrs, err := e.ctx.GetAttributeValue(e.session, pub, []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, nil),
	})
	if err != nil || len(attrs) == 0 {
		return 0, false, errors.Wrap(err, "failed to read public exponent attribute")
	}

	raw := attrs[0].Value
	if len(raw) > 8 {
		return 0, false, nil
	}

	padded := make([]byte, 8)
	copy(padded[8-len(raw):], raw)
	return binary.BigEndian.Uint64(padded), true, nil
}

func parseRSAPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if parsed, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.WithStack(hsm.ErrInvalidKeyMaterial)
		}
		key.Precompute()
		return key, nil
	}

	key, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, errors.WithStack(hsm.ErrInvalidKeyMaterial)
	}
	key.Precompute()
	return key, nil
}

func exponentToBytes(e uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, e)
	for i, b := range buf {
		if b != 0 {
			return buf[i:]
		}
	}
	return []byte{0}
}

func generateLabel() string {
	return fmt.Sprintf("rsa-key-%d", time.Now().UnixNano())
}

// wrapPKCS11Error 将内存类错误码映射为 hsm.ErrAllocationFailed
func wrapPKCS11Error(err error, msg string) error {
	var code pkcs11.Error
	if errors.As(err, &code) {
		if code == pkcs11.CKR_HOST_MEMORY || code == pkcs11.CKR_DEVICE_MEMORY {
			return errors.Wrapf(hsm.ErrAllocationFailed, "%s: %v", msg, err)
		}
	}
	return errors.Wrap(err, msg)
}

// keyHandle PKCS#11 token 内密钥对象的句柄
type keyHandle struct {
	engine       *engine
	label        string
	priv         pkcs11.ObjectHandle
	pub          pkcs11.ObjectHandle
	modulusBytes int
	exponent     uint64
	exponentOK   bool
	released     bool
}

// ModulusBytes 返回模数的字节长度
func (h *keyHandle) ModulusBytes() int {
	return h.modulusBytes
}

// PublicExponent 返回公钥指数
func (h *keyHandle) PublicExponent() (uint64, bool) {
	if !h.exponentOK {
		return 0, false
	}
	return h.exponent, true
}

// Export 返回 token 内对象的引用；材料本身不可导出
func (h *keyHandle) Export(_ context.Context) ([]byte, error) {
	if h.released {
		return nil, errors.WithStack(hsm.ErrHandleReleased)
	}
	return []byte("pkcs11:" + h.label), nil
}

// SignRaw 无填充私钥运算（CKM_RSA_X_509）
func (h *keyHandle) SignRaw(_ context.Context, input []byte) ([]byte, error) {
	e := h.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	if h.released || e.ctx == nil {
		return nil, errors.WithStack(hsm.ErrHandleReleased)
	}

	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_X_509, nil)}
	if err := e.ctx.SignInit(e.session, mech, h.priv); err != nil {
		return nil, errors.Wrap(err, "failed to initialize raw signing")
	}

	signature, err := e.ctx.Sign(e.session, input)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign")
	}

	return signature, nil
}

// PublicRaw 无填充公钥运算（CKM_RSA_X_509）
func (h *keyHandle) PublicRaw(_ context.Context, input []byte) ([]byte, error) {
	e := h.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	if h.released || e.ctx == nil {
		return nil, errors.WithStack(hsm.ErrHandleReleased)
	}

	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_X_509, nil)}
	if err := e.ctx.EncryptInit(e.session, mech, h.pub); err != nil {
		return nil, errors.Wrap(err, "failed to initialize raw public operation")
	}

	out, err := e.ctx.Encrypt(e.session, input)
	if err != nil {
		return nil, errors.Wrap(err, "failed to perform raw public operation")
	}

	return out, nil
}

// Encrypt 按填充模式加密
//
//nolint:dupl // Encrypt and Decrypt are intentionally similar
func (h *keyHandle) Encrypt(_ context.Context, padding authset.Padding, plaintext []byte) ([]byte, error) {
	e := h.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	if h.released || e.ctx == nil {
		return nil, errors.WithStack(hsm.ErrHandleReleased)
	}

	mech, err := paddingMechanism(padding)
	if err != nil {
		return nil, err
	}

	if err := e.ctx.EncryptInit(e.session, mech, h.pub); err != nil {
		return nil, errors.Wrap(err, "failed to initialize encryption")
	}

	ciphertext, err := e.ctx.Encrypt(e.session, plaintext)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encrypt")
	}

	return ciphertext, nil
}

// Decrypt 按填充模式解密
//
//nolint:dupl // Encrypt and Decrypt are intentionally similar
func (h *keyHandle) Decrypt(_ context.Context, padding authset.Padding, ciphertext []byte) ([]byte, error) {
	e := h.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	if h.released || e.ctx == nil {
		return nil, errors.WithStack(hsm.ErrHandleReleased)
	}

	mech, err := paddingMechanism(padding)
	if err != nil {
		return nil, err
	}

	if err := e.ctx.DecryptInit(e.session, mech, h.priv); err != nil {
		return nil, errors.Wrap(err, "failed to initialize decryption")
	}

	plaintext, err := e.ctx.Decrypt(e.session, ciphertext)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt")
	}

	return plaintext, nil
}

func paddingMechanism(padding authset.Padding) ([]*pkcs11.Mechanism, error) {
	switch padding {
	case authset.PaddingRSAOAEP:
		params := pkcs11.NewOAEPParams(pkcs11.CKM_SHA256, pkcs11.CKG_MGF1_SHA256, pkcs11.CKZ_DATA_SPECIFIED, nil)
		return []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS_OAEP, params)}, nil
	case authset.PaddingRSAPKCS1v15Encrypt:
		return []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS, nil)}, nil
	default:
		return nil, errors.WithStack(hsm.ErrUnsupportedPadding)
	}
}

// Release 释放句柄；token 内对象保留，仅失效本句柄
func (h *keyHandle) Release() {
	h.released = true
}
