package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"admin-service/internal/encryption"
	"admin-service/internal/model"
	"admin-service/internal/util"
)

// AdminRepository persists administrator rows. Email and phone number are
// envelope-encrypted before they reach a column; the listing projection never
// selects them.
type AdminRepository struct {
	client *PostgresClient
	enc    *encryption.Manager
}

func NewAdminRepository(client *PostgresClient, enc *encryption.Manager) *AdminRepository {
	return &AdminRepository{
		client: client,
		enc:    enc,
	}
}

var _ model.AdminRepository = (*AdminRepository)(nil)

func (r *AdminRepository) Create(ctx context.Context, account *model.AdminAccount) (int64, error) {
	emailEnc, err := r.sealField(ctx, account.Email)
	if err != nil {
		return 0, err
	}
	phoneEnc, err := r.sealField(ctx, account.PhoneNumber)
	if err != nil {
		return 0, err
	}

	query := `INSERT INTO admin_accounts
		(username, password_hash, status, full_name, email, phone_country_code,
		 phone_number, language, timezone, require_2fa, require_2fa_phone, secondary_auth_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	err = r.client.Pool.QueryRow(ctx, query,
		account.Username, account.PasswordHash, account.Status, account.FullName,
		emailEnc, account.PhoneCountryCode, phoneEnc, account.Language,
		account.Timezone, account.Require2FA, account.Require2FAPhone,
		account.SecondaryAuthHash,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		util.Error("failed to create administrator",
			util.String("username", account.Username),
			util.ErrorField(err))
		return 0, fmt.Errorf("failed to create administrator: %w", err)
	}

	util.Info("administrator created",
		util.Int64("admin_id", account.ID),
		util.String("username", account.Username))

	return account.ID, nil
}

func (r *AdminRepository) GetByID(ctx context.Context, id int64) (*model.AdminAccount, error) {
	query := `SELECT id, username, password_hash, status, full_name, email,
		phone_country_code, phone_number, language, timezone, require_2fa,
		require_2fa_phone, secondary_auth_hash, created_at, updated_at
		FROM admin_accounts WHERE id = $1`

	account := &model.AdminAccount{}
	var emailEnc, phoneEnc string

	err := r.client.Pool.QueryRow(ctx, query, id).Scan(
		&account.ID, &account.Username, &account.PasswordHash, &account.Status,
		&account.FullName, &emailEnc, &account.PhoneCountryCode, &phoneEnc,
		&account.Language, &account.Timezone, &account.Require2FA,
		&account.Require2FAPhone, &account.SecondaryAuthHash,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &model.NotFoundError{ID: id}
		}
		util.Error("failed to get administrator",
			util.Int64("admin_id", id),
			util.ErrorField(err))
		return nil, fmt.Errorf("failed to get administrator: %w", err)
	}

	if account.Email, err = r.openField(ctx, emailEnc); err != nil {
		return nil, err
	}
	if account.PhoneNumber, err = r.openField(ctx, phoneEnc); err != nil {
		return nil, err
	}

	return account, nil
}

func (r *AdminRepository) UpdateFields(ctx context.Context, id int64, patch *model.AdminPatch) error {
	if patch.Empty() {
		return nil
	}

	// Encrypt PII fields before the patch turns into SQL.
	if patch.Email != nil {
		sealed, err := r.sealField(ctx, *patch.Email)
		if err != nil {
			return err
		}
		patch = patchWith(patch, func(p *model.AdminPatch) { p.Email = &sealed })
	}
	if patch.PhoneNumber != nil {
		sealed, err := r.sealField(ctx, *patch.PhoneNumber)
		if err != nil {
			return err
		}
		patch = patchWith(patch, func(p *model.AdminPatch) { p.PhoneNumber = &sealed })
	}

	setClauses, args := buildUpdateSet(patch)
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE admin_accounts SET %s, updated_at = now() WHERE id = $%d`,
		strings.Join(setClauses, ", "), len(args))

	tag, err := r.client.Pool.Exec(ctx, query, args...)
	if err != nil {
		util.Error("failed to update administrator",
			util.Int64("admin_id", id),
			util.ErrorField(err))
		return fmt.Errorf("failed to update administrator: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{ID: id}
	}

	util.Info("administrator updated",
		util.Int64("admin_id", id),
		util.Int("fields", len(setClauses)))

	return nil
}

func (r *AdminRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.client.Pool.Exec(ctx, `DELETE FROM admin_accounts WHERE id = $1`, id)
	if err != nil {
		util.Error("failed to delete administrator",
			util.Int64("admin_id", id),
			util.ErrorField(err))
		return fmt.Errorf("failed to delete administrator: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{ID: id}
	}

	util.Info("administrator deleted", util.Int64("admin_id", id))
	return nil
}

func (r *AdminRepository) ListOrderedByName(ctx context.Context) ([]*model.AdminListEntry, error) {
	query := `SELECT id, username, full_name FROM admin_accounts ORDER BY full_name ASC, username ASC`

	rows, err := r.client.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list administrators: %w", err)
	}
	defer rows.Close()

	var entries []*model.AdminListEntry
	for rows.Next() {
		entry := &model.AdminListEntry{}
		if err := rows.Scan(&entry.ID, &entry.Username, &entry.FullName); err != nil {
			return nil, fmt.Errorf("failed to scan administrator row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list administrators: %w", err)
	}

	return entries, nil
}

// buildUpdateSet renders a patch into SET clauses and positional args,
// starting at $1. Field order is fixed so generated SQL is deterministic.
func buildUpdateSet(patch *model.AdminPatch) ([]string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.FullName != nil {
		add("full_name", *patch.FullName)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.PhoneCountryCode != nil {
		add("phone_country_code", *patch.PhoneCountryCode)
	}
	if patch.PhoneNumber != nil {
		add("phone_number", *patch.PhoneNumber)
	}
	if patch.Language != nil {
		add("language", *patch.Language)
	}
	if patch.Timezone != nil {
		add("timezone", *patch.Timezone)
	}
	if patch.Require2FA != nil {
		add("require_2fa", *patch.Require2FA)
	}
	if patch.Require2FAPhone != nil {
		add("require_2fa_phone", *patch.Require2FAPhone)
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if patch.SecondaryAuthHash != nil {
		add("secondary_auth_hash", *patch.SecondaryAuthHash)
	}

	return clauses, args
}

// patchWith shallow-copies a patch and applies a mutation, so encrypting PII
// never writes back into the caller's struct.
func patchWith(patch *model.AdminPatch, mutate func(*model.AdminPatch)) *model.AdminPatch {
	copied := *patch
	mutate(&copied)
	return &copied
}

// sealField envelope-encrypts a field value for storage. Empty values stay
// empty so "no email on file" is distinguishable without decryption.
func (r *AdminRepository) sealField(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	envelope, err := r.enc.EncryptField(ctx, plaintext)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt field: %w", err)
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to encode field envelope: %w", err)
	}
	return string(raw), nil
}

func (r *AdminRepository) openField(ctx context.Context, stored string) (string, error) {
	if stored == "" {
		return "", nil
	}
	var envelope encryption.EncryptedData
	if err := json.Unmarshal([]byte(stored), &envelope); err != nil {
		return "", fmt.Errorf("failed to decode field envelope: %w", err)
	}
	plaintext, err := r.enc.DecryptField(ctx, &envelope)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt field: %w", err)
	}
	return plaintext, nil
}
