package policy

import (
	"context"
	"encoding/json"

	"github.com/keymint/rsa-kms/internal/kms/storage"
	"github.com/pkg/errors"
)

var (
	ErrPolicyNotFound = errors.New("policy not found")
	ErrPolicyDenied   = errors.New("policy denied")
)

// Engine 策略引擎接口
type Engine interface {
	EvaluatePolicy(ctx context.Context, policyID string, action string) error
	LoadPolicy(ctx context.Context, policyID string) (*Policy, error)
}

// engine 策略引擎实现
type engine struct {
	metadataStore storage.MetadataStore
}

// NewEngine 创建新的策略引擎
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewEngine(metadataStore storage.MetadataStore) Engine {
	return &engine{
		metadataStore: metadataStore,
	}
}

// EvaluatePolicy 评估策略
// Deny 优先于 Allow；没有任何 Allow 命中时默认拒绝
// policyID 为空表示密钥未绑定策略，直接放行
func (e *engine) EvaluatePolicy(ctx context.Context, policyID string, action string) error {
	if policyID == "" {
		return nil
	}

	policy, err := e.LoadPolicy(ctx, policyID)
	if err != nil {
		return errors.Wrap(err, "failed to load policy")
	}

	allowed := false
	for _, statement := range policy.Statements {
		if !statementMatches(statement, action) {
			continue
		}

		if statement.Effect == "Deny" {
			return errors.Wrapf(ErrPolicyDenied, "action %s denied by policy %s", action, policyID)
		}
		if statement.Effect == "Allow" {
			allowed = true
		}
	}

	if !allowed {
		return errors.Wrapf(ErrPolicyDenied, "action %s not allowed by policy %s", action, policyID)
	}

	return nil
}

// LoadPolicy 加载并解析策略
func (e *engine) LoadPolicy(ctx context.Context, policyID string) (*Policy, error) {
	storagePolicy, err := e.metadataStore.GetPolicy(ctx, policyID)
	if err != nil {
		if errors.Is(err, storage.ErrPolicyNotFound) {
			return nil, errors.Wrapf(ErrPolicyNotFound, "policy %s", policyID)
		}
		return nil, errors.Wrap(err, "failed to get policy from storage")
	}

	var doc policyDocument
	if err := json.Unmarshal(storagePolicy.Document, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal policy document")
	}

	return &Policy{
		PolicyID:    storagePolicy.PolicyID,
		Description: storagePolicy.Description,
		Statements:  doc.Statements,
	}, nil
}

func statementMatches(statement *PolicyStatement, action string) bool {
	for _, candidate := range statement.Actions {
		if candidate == action || candidate == ActionWildcard {
			return true
		}
	}
	return false
}
