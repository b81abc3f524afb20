package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// postgresqlStore 实现 PostgreSQL 存储后端
type postgresqlStore struct {
	db *sql.DB
}

// NewPostgreSQLStore 创建新的 PostgreSQL 存储后端
//
//nolint:ireturn // returning interface is intentional for abstraction
func NewPostgreSQLStore(db *sql.DB) MetadataStore {
	return &postgresqlStore{db: db}
}

// SaveKeyRecord 保存密钥记录
func (s *postgresqlStore) SaveKeyRecord(ctx context.Context, record *KeyRecord) error {
	var tagsJSON []byte
	if record.Tags != nil {
		var err error
		tagsJSON, err = json.Marshal(record.Tags)
		if err != nil {
			return errors.Wrap(err, "failed to marshal tags")
		}
	}

	query := `
		INSERT INTO keys (key_id, alias, description, key_state, material, authorizations, policy_id, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.KeyID,
		nullString(record.Alias),
		nullString(record.Description),
		record.KeyState,
		record.Material,
		record.Authorizations,
		nullString(record.PolicyID),
		nullBytes(tagsJSON),
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return errors.Wrapf(ErrAliasConflict, "alias %q", record.Alias)
		}
		return errors.Wrap(err, "failed to insert key record")
	}

	return nil
}

// GetKeyRecord 获取密钥记录
func (s *postgresqlStore) GetKeyRecord(ctx context.Context, keyID string) (*KeyRecord, error) {
	return s.getKeyRecordWhere(ctx, "key_id = $1", keyID)
}

// GetKeyRecordByAlias 按别名获取密钥记录
func (s *postgresqlStore) GetKeyRecordByAlias(ctx context.Context, alias string) (*KeyRecord, error) {
	return s.getKeyRecordWhere(ctx, "alias = $1", alias)
}

// UpdateKeyState 更新密钥状态
func (s *postgresqlStore) UpdateKeyState(ctx context.Context, keyID string, state string, updatedAt time.Time) error {
	query := `UPDATE keys SET key_state = $1, updated_at = $2 WHERE key_id = $3`
	result, err := s.db.ExecContext(ctx, query, state, updatedAt, keyID)
	if err != nil {
		return errors.Wrap(err, "failed to update key state")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return errors.Wrapf(ErrKeyNotFound, "key %s", keyID)
	}

	return nil
}

// DeleteKeyRecord 删除密钥记录
func (s *postgresqlStore) DeleteKeyRecord(ctx context.Context, keyID string) error {
	query := `DELETE FROM keys WHERE key_id = $1`
	result, err := s.db.ExecContext(ctx, query, keyID)
	if err != nil {
		return errors.Wrap(err, "failed to delete key record")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return errors.Wrapf(ErrKeyNotFound, "key %s", keyID)
	}

	return nil
}

// ListKeyRecords 列出密钥记录
func (s *postgresqlStore) ListKeyRecords(ctx context.Context, filter *KeyFilter) ([]*KeyRecord, error) {
	query := `
		SELECT key_id, alias, description, key_state, material, authorizations, policy_id, tags, created_at, updated_at
		FROM keys
	`
	conditions := []string{}
	args := []interface{}{}

	if filter != nil {
		if filter.State != "" {
			args = append(args, filter.State)
			conditions = append(conditions, fmt.Sprintf("key_state = $%d", len(args)))
		}
		if filter.Alias != "" {
			args = append(args, filter.Alias+"%")
			conditions = append(conditions, fmt.Sprintf("alias LIKE $%d", len(args)))
		}
	}

	for i, condition := range conditions {
		if i == 0 {
			query += " WHERE " + condition
		} else {
			query += " AND " + condition
		}
	}

	query += " ORDER BY created_at DESC"

	if filter != nil {
		if filter.Limit > 0 {
			args = append(args, filter.Limit)
			query += fmt.Sprintf(" LIMIT $%d", len(args))
		}
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list key records")
	}
	defer rows.Close()

	result := []*KeyRecord{}
	for rows.Next() {
		record, err := scanKeyRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate key records")
	}

	return result, nil
}

// SavePolicy 保存策略
func (s *postgresqlStore) SavePolicy(ctx context.Context, policy *Policy) error {
	query := `
		INSERT INTO policies (policy_id, description, policy_document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (policy_id) DO UPDATE
		SET description = EXCLUDED.description, policy_document = EXCLUDED.policy_document, updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		policy.PolicyID,
		nullString(policy.Description),
		policy.Document,
		policy.CreatedAt,
		policy.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert policy")
	}

	return nil
}

// GetPolicy 获取策略
func (s *postgresqlStore) GetPolicy(ctx context.Context, policyID string) (*Policy, error) {
	query := `
		SELECT policy_id, description, policy_document, created_at, updated_at
		FROM policies
		WHERE policy_id = $1
	`
	var policy Policy
	var description sql.NullString
	err := s.db.QueryRowContext(ctx, query, policyID).Scan(
		&policy.PolicyID,
		&description,
		&policy.Document,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrPolicyNotFound, "policy %s", policyID)
		}
		return nil, errors.Wrap(err, "failed to get policy")
	}
	policy.Description = description.String

	return &policy, nil
}

// ListPolicies 列出所有策略
func (s *postgresqlStore) ListPolicies(ctx context.Context) ([]*Policy, error) {
	query := `
		SELECT policy_id, description, policy_document, created_at, updated_at
		FROM policies
		ORDER BY policy_id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list policies")
	}
	defer rows.Close()

	result := []*Policy{}
	for rows.Next() {
		var policy Policy
		var description sql.NullString
		if err := rows.Scan(
			&policy.PolicyID,
			&description,
			&policy.Document,
			&policy.CreatedAt,
			&policy.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan policy")
		}
		policy.Description = description.String
		result = append(result, &policy)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate policies")
	}

	return result, nil
}

// DeletePolicy 删除策略
func (s *postgresqlStore) DeletePolicy(ctx context.Context, policyID string) error {
	query := `DELETE FROM policies WHERE policy_id = $1`
	result, err := s.db.ExecContext(ctx, query, policyID)
	if err != nil {
		return errors.Wrap(err, "failed to delete policy")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rowsAffected == 0 {
		return errors.Wrapf(ErrPolicyNotFound, "policy %s", policyID)
	}

	return nil
}

// SaveAuditLog 保存审计日志
func (s *postgresqlStore) SaveAuditLog(ctx context.Context, event *AuditEvent) error {
	var detailsJSON []byte
	if event.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(event.Details)
		if err != nil {
			return errors.Wrap(err, "failed to marshal audit log details")
		}
	}

	query := `
		INSERT INTO audit_logs (timestamp, event_type, user_id, key_id, operation, result, details, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.Timestamp,
		event.EventType,
		nullString(event.UserID),
		nullString(event.KeyID),
		event.Operation,
		event.Result,
		nullBytes(detailsJSON),
		nullString(event.IPAddress),
	)
	if err != nil {
		return errors.Wrap(err, "failed to insert audit log")
	}

	return nil
}

// QueryAuditLogs 查询审计日志
//
//nolint:nestif // Filter building requires nested conditionals
func (s *postgresqlStore) QueryAuditLogs(ctx context.Context, filter *AuditLogFilter) ([]*AuditEvent, error) {
	query := `
		SELECT timestamp, event_type, user_id, key_id, operation, result, details, ip_address
		FROM audit_logs
	`
	conditions := []string{}
	args := []interface{}{}

	if filter != nil {
		if filter.StartTime != nil {
			args = append(args, *filter.StartTime)
			conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", len(args)))
		}
		if filter.EndTime != nil {
			args = append(args, *filter.EndTime)
			conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", len(args)))
		}
		if filter.KeyID != "" {
			args = append(args, filter.KeyID)
			conditions = append(conditions, fmt.Sprintf("key_id = $%d", len(args)))
		}
		if filter.UserID != "" {
			args = append(args, filter.UserID)
			conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
		}
		if filter.EventType != "" {
			args = append(args, filter.EventType)
			conditions = append(conditions, fmt.Sprintf("event_type = $%d", len(args)))
		}
		if filter.Operation != "" {
			args = append(args, filter.Operation)
			conditions = append(conditions, fmt.Sprintf("operation = $%d", len(args)))
		}
		if filter.Result != "" {
			args = append(args, filter.Result)
			conditions = append(conditions, fmt.Sprintf("result = $%d", len(args)))
		}
	}

	for i, condition := range conditions {
		if i == 0 {
			query += " WHERE " + condition
		} else {
			query += " AND " + condition
		}
	}

	query += " ORDER BY timestamp DESC"

	if filter != nil {
		if filter.Limit > 0 {
			args = append(args, filter.Limit)
			query += fmt.Sprintf(" LIMIT $%d", len(args))
		}
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query audit logs")
	}
	defer rows.Close()

	result := []*AuditEvent{}
	for rows.Next() {
		var event AuditEvent
		var userID, keyID, ipAddress sql.NullString
		var detailsJSON []byte
		if err := rows.Scan(
			&event.Timestamp,
			&event.EventType,
			&userID,
			&keyID,
			&event.Operation,
			&event.Result,
			&detailsJSON,
			&ipAddress,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan audit log")
		}
		event.UserID = userID.String
		event.KeyID = keyID.String
		event.IPAddress = ipAddress.String

		if detailsJSON != nil {
			if err := json.Unmarshal(detailsJSON, &event.Details); err != nil {
				event.Details = nil
			}
		}

		result = append(result, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate audit logs")
	}

	return result, nil
}

// getKeyRecordWhere 按条件获取单条密钥记录
//
//nolint:funcorder // getKeyRecordWhere is a helper method, should be at the end
func (s *postgresqlStore) getKeyRecordWhere(ctx context.Context, condition string, arg interface{}) (*KeyRecord, error) {
	query := `
		SELECT key_id, alias, description, key_state, material, authorizations, policy_id, tags, created_at, updated_at
		FROM keys
		WHERE ` + condition

	record, err := scanKeyRecord(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrKeyNotFound, "key %v", arg)
		}
		return nil, err
	}

	return record, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanKeyRecord(row rowScanner) (*KeyRecord, error) {
	var record KeyRecord
	var alias, description, policyID sql.NullString
	var tagsJSON []byte

	err := row.Scan(
		&record.KeyID,
		&alias,
		&description,
		&record.KeyState,
		&record.Material,
		&record.Authorizations,
		&policyID,
		&tagsJSON,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan key record")
	}

	record.Alias = alias.String
	record.Description = description.String
	record.PolicyID = policyID.String

	if tagsJSON != nil {
		if err := json.Unmarshal(tagsJSON, &record.Tags); err != nil {
			record.Tags = nil
		}
	}

	return &record, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullBytes(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return b
}
