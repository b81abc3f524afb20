package key

import (
	"context"
	"encoding/json"

	"github.com/dropbox/godropbox/time2"
	"github.com/google/uuid"
	"github.com/keymint/rsa-kms/internal/kms/audit"
	"github.com/keymint/rsa-kms/internal/kms/authset"
	"github.com/keymint/rsa-kms/internal/kms/hsm"
	"github.com/keymint/rsa-kms/internal/kms/policy"
	"github.com/keymint/rsa-kms/internal/kms/rsakey"
	"github.com/keymint/rsa-kms/internal/kms/storage"
	"github.com/pkg/errors"
)

var (
	ErrKeyNotFound     = errors.New("key not found")
	ErrInvalidKeyState = errors.New("invalid key state")
	ErrKeyDeleted      = errors.New("key is deleted")
)

// Service 密钥管理服务接口
type Service interface {
	CreateKey(ctx context.Context, req *CreateKeyRequest) (*KeyMetadata, error)
	ImportKey(ctx context.Context, req *ImportKeyRequest) (*KeyMetadata, error)
	GetKey(ctx context.Context, keyID string) (*KeyMetadata, error)
	ListKeys(ctx context.Context, filter *KeyFilter) ([]*KeyMetadata, error)
	DeleteKey(ctx context.Context, keyID string) error
	EnableKey(ctx context.Context, keyID string) error
	DisableKey(ctx context.Context, keyID string) error
	LoadKey(ctx context.Context, keyID string) (*rsakey.Key, *KeyMetadata, error)
}

// service 密钥管理服务实现
type service struct {
	engine        hsm.Engine
	metadataStore storage.MetadataStore
	policyEngine  policy.Engine
	auditLogger   audit.Logger
	clock         time2.Clock
}

// NewService 创建新的密钥管理服务
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewService(
	engine hsm.Engine,
	metadataStore storage.MetadataStore,
	policyEngine policy.Engine,
	auditLogger audit.Logger,
	clock time2.Clock,
) (Service, error) {
	return &service{
		engine:        engine,
		metadataStore: metadataStore,
		policyEngine:  policyEngine,
		auditLogger:   auditLogger,
		clock:         clock,
	}, nil
}

// CreateKey 创建密钥
// 授权集合中缺失的密钥长度和公钥指数补默认值后持久化
func (s *service) CreateKey(ctx context.Context, req *CreateKeyRequest) (*KeyMetadata, error) {
	if err := s.policyEngine.EvaluatePolicy(ctx, req.PolicyID, policy.ActionCreateKey); err != nil {
		s.logKeyEvent(ctx, "", policy.ActionCreateKey, audit.ResultFailure)
		return nil, errors.Wrap(err, "policy evaluation failed")
	}

	requested := req.Authorizations
	if requested == nil {
		requested = authset.New()
	}

	entity, err := rsakey.Generate(ctx, s.engine, requested)
	if err != nil {
		s.logKeyEvent(ctx, "", policy.ActionCreateKey, audit.ResultFailure)
		return nil, errors.Wrap(err, "failed to generate key")
	}
	defer entity.Release()

	metadata, err := s.persistEntity(ctx, entity, req.Alias, req.Description, req.PolicyID, req.Tags)
	if err != nil {
		s.logKeyEvent(ctx, "", policy.ActionCreateKey, audit.ResultFailure)
		return nil, err
	}

	s.logKeyEvent(ctx, metadata.KeyID, policy.ActionCreateKey, audit.ResultSuccess)

	return metadata, nil
}

// ImportKey 导入外部密钥材料
// 请求的授权参数与材料不一致时整个导入失败，不落库
func (s *service) ImportKey(ctx context.Context, req *ImportKeyRequest) (*KeyMetadata, error) {
	if err := s.policyEngine.EvaluatePolicy(ctx, req.PolicyID, policy.ActionImportKey); err != nil {
		s.logKeyEvent(ctx, "", policy.ActionImportKey, audit.ResultFailure)
		return nil, errors.Wrap(err, "policy evaluation failed")
	}

	requested := req.Authorizations
	if requested == nil {
		requested = authset.New()
	}

	entity, err := rsakey.Import(ctx, s.engine, requested, req.KeyMaterial)
	if err != nil {
		s.logKeyEvent(ctx, "", policy.ActionImportKey, audit.ResultFailure)
		return nil, errors.Wrap(err, "failed to import key")
	}
	defer entity.Release()

	metadata, err := s.persistEntity(ctx, entity, req.Alias, req.Description, req.PolicyID, req.Tags)
	if err != nil {
		s.logKeyEvent(ctx, "", policy.ActionImportKey, audit.ResultFailure)
		return nil, err
	}

	s.logKeyEvent(ctx, metadata.KeyID, policy.ActionImportKey, audit.ResultSuccess)

	return metadata, nil
}

// GetKey 获取密钥元数据
func (s *service) GetKey(ctx context.Context, keyID string) (*KeyMetadata, error) {
	record, err := s.metadataStore.GetKeyRecord(ctx, keyID)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, errors.Wrapf(ErrKeyNotFound, "key %s", keyID)
		}
		return nil, errors.Wrap(err, "failed to get key record")
	}

	return recordToMetadata(record)
}

// ListKeys 列出密钥元数据
func (s *service) ListKeys(ctx context.Context, filter *KeyFilter) ([]*KeyMetadata, error) {
	var storageFilter *storage.KeyFilter
	if filter != nil {
		storageFilter = &storage.KeyFilter{
			State:  filter.State,
			Alias:  filter.Alias,
			Limit:  filter.Limit,
			Offset: filter.Offset,
		}
	}

	records, err := s.metadataStore.ListKeyRecords(ctx, storageFilter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list key records")
	}

	result := make([]*KeyMetadata, 0, len(records))
	for _, record := range records {
		metadata, err := recordToMetadata(record)
		if err != nil {
			return nil, err
		}
		result = append(result, metadata)
	}

	return result, nil
}

// DeleteKey 删除密钥（软删除）
// 记录保留但状态置为 Deleted，之后所有密码学操作都会被拒绝
func (s *service) DeleteKey(ctx context.Context, keyID string) error {
	record, err := s.metadataStore.GetKeyRecord(ctx, keyID)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return errors.Wrapf(ErrKeyNotFound, "key %s", keyID)
		}
		return errors.Wrap(err, "failed to get key record")
	}

	if err := s.policyEngine.EvaluatePolicy(ctx, record.PolicyID, policy.ActionDeleteKey); err != nil {
		s.logKeyEvent(ctx, keyID, policy.ActionDeleteKey, audit.ResultFailure)
		return errors.Wrap(err, "policy evaluation failed")
	}

	if err := s.metadataStore.UpdateKeyState(ctx, keyID, string(KeyStateDeleted), s.clock.Now()); err != nil {
		s.logKeyEvent(ctx, keyID, policy.ActionDeleteKey, audit.ResultFailure)
		return errors.Wrap(err, "failed to update key state")
	}

	s.logKeyEvent(ctx, keyID, policy.ActionDeleteKey, audit.ResultSuccess)

	return nil
}

// EnableKey 启用密钥
func (s *service) EnableKey(ctx context.Context, keyID string) error {
	return s.transitionState(ctx, keyID, KeyStateEnabled)
}

// DisableKey 停用密钥
func (s *service) DisableKey(ctx context.Context, keyID string) error {
	return s.transitionState(ctx, keyID, KeyStateDisabled)
}

// LoadKey 从持久化记录重建密钥实体
// 调用方负责状态检查和实体的释放或消费
func (s *service) LoadKey(ctx context.Context, keyID string) (*rsakey.Key, *KeyMetadata, error) {
	record, err := s.metadataStore.GetKeyRecord(ctx, keyID)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil, errors.Wrapf(ErrKeyNotFound, "key %s", keyID)
		}
		return nil, nil, errors.Wrap(err, "failed to get key record")
	}

	metadata, err := recordToMetadata(record)
	if err != nil {
		return nil, nil, err
	}

	entity, err := rsakey.Load(ctx, s.engine, record.Material, metadata.Authorizations)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load key material")
	}

	return entity, metadata, nil
}

// persistEntity 导出实体材料并写入存储
//
//nolint:funcorder // helper methods are grouped at the end
func (s *service) persistEntity(
	ctx context.Context,
	entity *rsakey.Key,
	alias, description, policyID string,
	tags map[string]string,
) (*KeyMetadata, error) {
	material, err := entity.Export(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to export key material")
	}

	authsJSON, err := json.Marshal(entity.Authorizations())
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal authorizations")
	}

	keyID := "key-" + uuid.New().String()
	now := s.clock.Now()

	record := &storage.KeyRecord{
		KeyID:          keyID,
		Alias:          alias,
		Description:    description,
		KeyState:       string(KeyStateEnabled),
		Material:       material,
		Authorizations: authsJSON,
		PolicyID:       policyID,
		Tags:           tags,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.metadataStore.SaveKeyRecord(ctx, record); err != nil {
		return nil, errors.Wrap(err, "failed to save key record")
	}

	return recordToMetadata(record)
}

func (s *service) transitionState(ctx context.Context, keyID string, state KeyState) error {
	record, err := s.metadataStore.GetKeyRecord(ctx, keyID)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return errors.Wrapf(ErrKeyNotFound, "key %s", keyID)
		}
		return errors.Wrap(err, "failed to get key record")
	}

	// 已删除的密钥不允许再改状态
	if record.KeyState == string(KeyStateDeleted) {
		return errors.Wrapf(ErrKeyDeleted, "key %s", keyID)
	}

	if err := s.metadataStore.UpdateKeyState(ctx, keyID, string(state), s.clock.Now()); err != nil {
		return errors.Wrap(err, "failed to update key state")
	}

	return nil
}

func (s *service) logKeyEvent(ctx context.Context, keyID, operation, result string) {
	_ = s.auditLogger.LogEvent(ctx, &audit.AuditEvent{
		EventType: audit.EventTypeKeyManagement,
		KeyID:     keyID,
		Operation: operation,
		Result:    result,
	})
}

func recordToMetadata(record *storage.KeyRecord) (*KeyMetadata, error) {
	auths := authset.New()
	if err := json.Unmarshal(record.Authorizations, auths); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal authorizations")
	}

	metadata := &KeyMetadata{
		KeyID:          record.KeyID,
		Alias:          record.Alias,
		Description:    record.Description,
		KeyState:       KeyState(record.KeyState),
		Authorizations: auths,
		PolicyID:       record.PolicyID,
		Tags:           record.Tags,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}

	if keySize, ok := auths.KeySize(); ok {
		metadata.KeySize = keySize
	}
	if publicExponent, ok := auths.PublicExponent(); ok {
		metadata.PublicExponent = publicExponent
	}

	return metadata, nil
}
