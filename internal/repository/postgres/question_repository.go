package postgres

import (
	"context"
	"fmt"

	"admin-service/internal/model"
	"admin-service/internal/util"
)

// SecurityQuestionRepository persists recovery question rows. Answers arrive
// already hashed; this layer never sees a plaintext answer.
type SecurityQuestionRepository struct {
	client *PostgresClient
}

func NewSecurityQuestionRepository(client *PostgresClient) *SecurityQuestionRepository {
	return &SecurityQuestionRepository{client: client}
}

var _ model.SecurityQuestionRepository = (*SecurityQuestionRepository)(nil)

func (r *SecurityQuestionRepository) Create(ctx context.Context, question *model.SecurityQuestion) (int64, error) {
	query := `INSERT INTO security_questions (subject_type, subject_id, question, answer_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.client.Pool.QueryRow(ctx, query,
		question.SubjectType, question.SubjectID, question.Question, question.AnswerHash,
	).Scan(&question.ID, &question.CreatedAt)
	if err != nil {
		util.Error("failed to create security question",
			util.String("subject_type", question.SubjectType),
			util.Int64("subject_id", question.SubjectID),
			util.ErrorField(err))
		return 0, fmt.Errorf("failed to create security question: %w", err)
	}

	return question.ID, nil
}

func (r *SecurityQuestionRepository) ListBySubject(ctx context.Context, subjectType string, subjectID int64) ([]*model.SecurityQuestion, error) {
	query := `SELECT id, subject_type, subject_id, question, answer_hash, created_at
		FROM security_questions
		WHERE subject_type = $1 AND subject_id = $2
		ORDER BY id ASC`

	rows, err := r.client.Pool.Query(ctx, query, subjectType, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list security questions: %w", err)
	}
	defer rows.Close()

	var questions []*model.SecurityQuestion
	for rows.Next() {
		q := &model.SecurityQuestion{}
		if err := rows.Scan(&q.ID, &q.SubjectType, &q.SubjectID, &q.Question, &q.AnswerHash, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan security question row: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list security questions: %w", err)
	}

	return questions, nil
}
