package crypto

import (
	"context"

	"github.com/keymint/rsa-kms/internal/kms/audit"
	"github.com/keymint/rsa-kms/internal/kms/authset"
	"github.com/keymint/rsa-kms/internal/kms/key"
	"github.com/keymint/rsa-kms/internal/kms/operation"
	"github.com/keymint/rsa-kms/internal/kms/policy"
	"github.com/keymint/rsa-kms/internal/kms/rsakey"
	"github.com/pkg/errors"
)

var (
	ErrKeyDisabled = errors.New("key is disabled")
	ErrKeyDeleted  = errors.New("key is deleted")
)

// Service 密码学操作服务接口
type Service interface {
	Sign(ctx context.Context, req *SignRequest) (*SignResponse, error)
	Verify(ctx context.Context, req *VerifyRequest) (*VerifyResponse, error)
	Encrypt(ctx context.Context, req *EncryptRequest) (*EncryptResponse, error)
	Decrypt(ctx context.Context, req *DecryptRequest) (*DecryptResponse, error)
}

// service 密码学操作服务实现
type service struct {
	keyService   key.Service
	policyEngine policy.Engine
	auditLogger  audit.Logger
}

// NewService 创建新的密码学操作服务
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewService(
	keyService key.Service,
	policyEngine policy.Engine,
	auditLogger audit.Logger,
) (Service, error) {
	return &service{
		keyService:   keyService,
		policyEngine: policyEngine,
		auditLogger:  auditLogger,
	}, nil
}

// Sign 对消息进行签名
// 消息按无填充模幂运算处理，长度必须恰好等于模数长度
func (s *service) Sign(ctx context.Context, req *SignRequest) (*SignResponse, error) {
	op, err := s.beginOperation(ctx, req.KeyID, authset.PurposeSign, policy.ActionSign)
	if err != nil {
		return nil, err
	}

	op.Update(req.Message)

	signature, err := op.Finish(ctx, nil)
	if err != nil {
		s.logCryptoEvent(ctx, req.KeyID, policy.ActionSign, audit.ResultFailure)
		return nil, errors.Wrap(err, "signing failed")
	}

	s.logCryptoEvent(ctx, req.KeyID, policy.ActionSign, audit.ResultSuccess)

	return &SignResponse{KeyID: req.KeyID, Signature: signature}, nil
}

// Verify 验证签名
// 签名不匹配返回 Valid=false，不算服务错误
func (s *service) Verify(ctx context.Context, req *VerifyRequest) (*VerifyResponse, error) {
	op, err := s.beginOperation(ctx, req.KeyID, authset.PurposeVerify, policy.ActionVerify)
	if err != nil {
		return nil, err
	}

	op.Update(req.Message)

	if _, err := op.Finish(ctx, req.Signature); err != nil {
		if errors.Is(err, operation.ErrVerificationFailed) {
			s.logCryptoEvent(ctx, req.KeyID, policy.ActionVerify, audit.ResultFailure)
			return &VerifyResponse{KeyID: req.KeyID, Valid: false}, nil
		}
		s.logCryptoEvent(ctx, req.KeyID, policy.ActionVerify, audit.ResultFailure)
		return nil, errors.Wrap(err, "verification failed")
	}

	s.logCryptoEvent(ctx, req.KeyID, policy.ActionVerify, audit.ResultSuccess)

	return &VerifyResponse{KeyID: req.KeyID, Valid: true}, nil
}

// Encrypt 加密明文
func (s *service) Encrypt(ctx context.Context, req *EncryptRequest) (*EncryptResponse, error) {
	op, err := s.beginOperation(ctx, req.KeyID, authset.PurposeEncrypt, policy.ActionEncrypt)
	if err != nil {
		return nil, err
	}

	op.Update(req.Plaintext)

	ciphertext, err := op.Finish(ctx, nil)
	if err != nil {
		s.logCryptoEvent(ctx, req.KeyID, policy.ActionEncrypt, audit.ResultFailure)
		return nil, errors.Wrap(err, "encryption failed")
	}

	s.logCryptoEvent(ctx, req.KeyID, policy.ActionEncrypt, audit.ResultSuccess)

	return &EncryptResponse{KeyID: req.KeyID, Ciphertext: ciphertext}, nil
}

// Decrypt 解密密文
func (s *service) Decrypt(ctx context.Context, req *DecryptRequest) (*DecryptResponse, error) {
	op, err := s.beginOperation(ctx, req.KeyID, authset.PurposeDecrypt, policy.ActionDecrypt)
	if err != nil {
		return nil, err
	}

	op.Update(req.Ciphertext)

	plaintext, err := op.Finish(ctx, nil)
	if err != nil {
		s.logCryptoEvent(ctx, req.KeyID, policy.ActionDecrypt, audit.ResultFailure)
		return nil, errors.Wrap(err, "decryption failed")
	}

	s.logCryptoEvent(ctx, req.KeyID, policy.ActionDecrypt, audit.ResultSuccess)

	return &DecryptResponse{KeyID: req.KeyID, Plaintext: plaintext}, nil
}

// beginOperation 加载密钥实体并创建操作
// 状态、用途授权和策略检查都通过后，实体的密钥句柄所有权转移给返回的操作；
// 任何一步失败时实体被释放
// 用途授权在这一层执行，实体工厂本身只校验用途与 padding/digest 的兼容性
//
//nolint:ireturn // operation variant depends on the requested purpose
func (s *service) beginOperation(
	ctx context.Context,
	keyID string,
	purpose authset.Purpose,
	action string,
) (operation.Operation, error) {
	entity, metadata, err := s.keyService.LoadKey(ctx, keyID)
	if err != nil {
		s.logCryptoEvent(ctx, keyID, action, audit.ResultFailure)
		return nil, errors.Wrap(err, "failed to load key")
	}

	if err := checkKeyState(metadata.KeyState, purpose); err != nil {
		entity.Release()
		s.logCryptoEvent(ctx, keyID, action, audit.ResultFailure)
		return nil, err
	}

	if !entity.Authorizations().HasPurpose(purpose) {
		entity.Release()
		s.logCryptoEvent(ctx, keyID, action, audit.ResultFailure)
		return nil, errors.Wrapf(rsakey.ErrUnsupportedPurpose, "key does not authorize purpose %s", purpose)
	}

	if err := s.policyEngine.EvaluatePolicy(ctx, metadata.PolicyID, action); err != nil {
		entity.Release()
		s.logCryptoEvent(ctx, keyID, action, audit.ResultFailure)
		return nil, errors.Wrap(err, "policy evaluation failed")
	}

	op, err := entity.CreateOperation(purpose)
	if err != nil {
		entity.Release()
		s.logCryptoEvent(ctx, keyID, action, audit.ResultFailure)
		return nil, errors.Wrap(err, "failed to create operation")
	}

	return op, nil
}

// checkKeyState 校验密钥状态是否允许该用途
// 产生新密文或签名的操作要求 Enabled；
// 验证和解密在 Disabled 状态下仍然允许，便于密钥退役期间处理存量数据
func checkKeyState(state key.KeyState, purpose authset.Purpose) error {
	switch state {
	case key.KeyStateEnabled:
		return nil
	case key.KeyStateDisabled:
		if purpose == authset.PurposeVerify || purpose == authset.PurposeDecrypt {
			return nil
		}
		return errors.WithStack(ErrKeyDisabled)
	case key.KeyStateDeleted:
		return errors.WithStack(ErrKeyDeleted)
	default:
		return errors.Errorf("unknown key state %q", state)
	}
}

func (s *service) logCryptoEvent(ctx context.Context, keyID, operation, result string) {
	_ = s.auditLogger.LogEvent(ctx, &audit.AuditEvent{
		EventType: audit.EventTypeCryptographic,
		KeyID:     keyID,
		Operation: operation,
		Result:    result,
	})
}
