package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"admin-service/internal/model"
	"admin-service/internal/util"
)

// KeypairRepository persists issued key material keyed by subject. Re-issuing
// for the same subject replaces the previous pair.
type KeypairRepository struct {
	client *PostgresClient
}

func NewKeypairRepository(client *PostgresClient) *KeypairRepository {
	return &KeypairRepository{client: client}
}

var _ model.KeypairRepository = (*KeypairRepository)(nil)

func (r *KeypairRepository) Save(ctx context.Context, keypair *model.Keypair) error {
	query := `INSERT INTO keypairs (subject_type, subject_id, public_key_pem, private_key_sealed)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject_type, subject_id)
		DO UPDATE SET public_key_pem = EXCLUDED.public_key_pem,
			private_key_sealed = EXCLUDED.private_key_sealed,
			created_at = now()`

	_, err := r.client.Pool.Exec(ctx, query,
		keypair.SubjectType, keypair.SubjectID, keypair.PublicKeyPEM, keypair.PrivateKeySealed)
	if err != nil {
		util.Error("failed to save keypair",
			util.String("subject_type", keypair.SubjectType),
			util.Int64("subject_id", keypair.SubjectID),
			util.ErrorField(err))
		return fmt.Errorf("failed to save keypair: %w", err)
	}

	return nil
}

func (r *KeypairRepository) GetBySubject(ctx context.Context, subjectType string, subjectID int64) (*model.Keypair, error) {
	query := `SELECT subject_type, subject_id, public_key_pem, private_key_sealed, created_at
		FROM keypairs WHERE subject_type = $1 AND subject_id = $2`

	keypair := &model.Keypair{}
	err := r.client.Pool.QueryRow(ctx, query, subjectType, subjectID).Scan(
		&keypair.SubjectType, &keypair.SubjectID, &keypair.PublicKeyPEM,
		&keypair.PrivateKeySealed, &keypair.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &model.NotFoundError{ID: subjectID}
		}
		return nil, fmt.Errorf("failed to get keypair: %w", err)
	}

	return keypair, nil
}
