package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"admin-service/internal/audit"
	"admin-service/internal/config"
	"admin-service/internal/hashing"
	"admin-service/internal/model"
	"admin-service/internal/util"
)

// AdminService owns the administrator account lifecycle: creation with
// security questions and keypair issuance, partial updates, status changes,
// secondary-auth rotation, deletion and the select-option listing.
type AdminService struct {
	admins    model.AdminRepository
	questions model.SecurityQuestionRepository
	keyIssuer model.KeyIssuer
	hasher    *hashing.Hasher
	notifier  model.Notifier

	// optional collaborators, nil when not configured
	cache   model.AccountCache
	auditor model.AuditSink
	indexer model.DirectoryIndexer

	security config.SecurityConfig
}

func NewAdminService(
	admins model.AdminRepository,
	questions model.SecurityQuestionRepository,
	keyIssuer model.KeyIssuer,
	hasher *hashing.Hasher,
	notifier model.Notifier,
	cache model.AccountCache,
	auditor model.AuditSink,
	indexer model.DirectoryIndexer,
	security config.SecurityConfig,
) *AdminService {
	if notifier == nil {
		notifier = &LogNotifier{}
	}
	return &AdminService{
		admins:    admins,
		questions: questions,
		keyIssuer: keyIssuer,
		hasher:    hasher,
		notifier:  notifier,
		cache:     cache,
		auditor:   auditor,
		indexer:   indexer,
		security:  security,
	}
}

// -------------------- ACTOR CONTEXT --------------------

type actorKey struct{}

// WithActor tags a context with the identity performing the operation, for
// the audit trail.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok {
		return actor
	}
	return "system"
}

// -------------------- REQUESTS / RESULTS --------------------

// AdminCreateRequest carries the field values for account creation.
type AdminCreateRequest struct {
	Username         string                 `json:"username"`
	Password         string                 `json:"password"`
	PasswordConfirm  string                 `json:"password_confirm"`
	FullName         string                 `json:"full_name"`
	Email            string                 `json:"email"`
	PhoneCountryCode string                 `json:"phone_country_code"`
	PhoneNumber      string                 `json:"phone_number"`
	Language         string                 `json:"language"`
	Timezone         string                 `json:"timezone"`
	Require2FA       bool                   `json:"require_2fa"`
	Require2FAPhone  bool                   `json:"require_2fa_phone"`
	Questions        []model.QuestionAnswer `json:"questions"`
}

// AdminUpdateRequest is a partial update: nil means "leave unchanged". The
// password is only applied when non-empty and equal to its confirmation.
type AdminUpdateRequest struct {
	Status           *string `json:"status,omitempty"`
	FullName         *string `json:"full_name,omitempty"`
	Email            *string `json:"email,omitempty"`
	PhoneCountryCode *string `json:"phone_country_code,omitempty"`
	PhoneNumber      *string `json:"phone_number,omitempty"`
	Language         *string `json:"language,omitempty"`
	Timezone         *string `json:"timezone,omitempty"`
	Require2FA       *bool   `json:"require_2fa,omitempty"`
	Require2FAPhone  *bool   `json:"require_2fa_phone,omitempty"`
	Password         string  `json:"password,omitempty"`
	PasswordConfirm  string  `json:"password_confirm,omitempty"`
}

// CreateResult reports the outcome of each creation step. Steps after the
// account row are best effort: their failures are recorded here, not raised.
type CreateResult struct {
	AdminID          int64    `json:"admin_id"`
	QuestionsStored  int      `json:"questions_stored"`
	QuestionsSkipped int      `json:"questions_skipped"`
	QuestionFailures []string `json:"question_failures,omitempty"`
	KeypairIssued    bool     `json:"keypair_issued"`
	KeypairFailure   string   `json:"keypair_failure,omitempty"`
}

// -------------------- OPERATIONS --------------------

// Create provisions a new administrator: validated insert, then up to the
// configured number of security questions, then keypair issuance sealed
// under the plaintext password. There is no rollback across steps; the
// result reports what succeeded.
func (s *AdminService) Create(ctx context.Context, req *AdminCreateRequest) (*CreateResult, error) {
	if fieldErrs := validateCreate(req); len(fieldErrs) > 0 {
		return nil, &model.ValidationError{Fields: fieldErrs}
	}

	passwordHash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &model.AdminAccount{
		Username:         strings.ToLower(strings.TrimSpace(req.Username)),
		PasswordHash:     passwordHash,
		Status:           model.StatusActive,
		FullName:         req.FullName,
		Email:            req.Email,
		PhoneCountryCode: req.PhoneCountryCode,
		PhoneNumber:      req.PhoneNumber,
		Language:         req.Language,
		Timezone:         req.Timezone,
		Require2FA:       req.Require2FA,
		Require2FAPhone:  req.Require2FAPhone,
	}

	adminID, err := s.admins.Create(ctx, account)
	if err != nil {
		return nil, err
	}

	result := &CreateResult{AdminID: adminID}

	s.storeQuestions(ctx, adminID, req.Questions, result)

	if err := s.keyIssuer.IssueKeypair(ctx, adminID, model.SubjectTypeAdmin, req.Password); err != nil {
		// The account exists either way; operators reconcile missing keys.
		util.Warn("keypair issuance failed",
			util.Int64("admin_id", adminID),
			util.ErrorField(err))
		result.KeypairFailure = err.Error()
	} else {
		result.KeypairIssued = true
	}

	s.record(ctx, audit.ActionCreated, adminID, "")
	s.reindex(ctx, adminID, account.Username, account.FullName, account.Status)

	return result, nil
}

// storeQuestions walks the bounded question slots. A slot missing either the
// question or the answer is skipped silently; insert failures are collected
// and do not abort the remaining slots.
func (s *AdminService) storeQuestions(ctx context.Context, adminID int64, slots []model.QuestionAnswer, result *CreateResult) {
	max := s.security.MaxSecurityQuestions
	if len(slots) > max {
		slots = slots[:max]
	}

	for i, slot := range slots {
		question := strings.TrimSpace(slot.Question)
		answer := strings.TrimSpace(slot.Answer)
		if question == "" || answer == "" {
			result.QuestionsSkipped++
			continue
		}

		answerHash, err := s.hasher.HashAnswer(answer)
		if err != nil {
			result.QuestionFailures = append(result.QuestionFailures,
				fmt.Sprintf("slot %d: %v", i+1, err))
			continue
		}

		_, err = s.questions.Create(ctx, &model.SecurityQuestion{
			SubjectType: model.SubjectTypeAdmin,
			SubjectID:   adminID,
			Question:    question,
			AnswerHash:  answerHash,
		})
		if err != nil {
			util.Warn("security question insert failed",
				util.Int64("admin_id", adminID),
				util.Int("slot", i+1),
				util.ErrorField(err))
			result.QuestionFailures = append(result.QuestionFailures,
				fmt.Sprintf("slot %d: %v", i+1, err))
			continue
		}

		result.QuestionsStored++
	}
}

// Get fetches one administrator, read-through cached.
func (s *AdminService) Get(ctx context.Context, id int64) (*model.AdminAccount, error) {
	if s.cache != nil {
		if account, err := s.cache.Get(ctx, id); err == nil {
			return account, nil
		}
	}

	account, err := s.admins.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, account); err != nil {
			util.Warn("failed to cache administrator", util.Int64("admin_id", id), util.ErrorField(err))
		}
	}

	return account, nil
}

// Update applies a partial update. Absent fields are never touched; the
// password hash is only replaced when the new password matches its
// confirmation.
func (s *AdminService) Update(ctx context.Context, id int64, req *AdminUpdateRequest) error {
	if err := s.demoGuard(ctx, id); err != nil {
		return err
	}

	patch := &model.AdminPatch{
		Status:           req.Status,
		FullName:         req.FullName,
		Email:            req.Email,
		PhoneCountryCode: req.PhoneCountryCode,
		PhoneNumber:      req.PhoneNumber,
		Language:         req.Language,
		Timezone:         req.Timezone,
		Require2FA:       req.Require2FA,
		Require2FAPhone:  req.Require2FAPhone,
	}

	if req.Password != "" && req.Password == req.PasswordConfirm {
		passwordHash, err := s.hasher.HashPassword(req.Password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		patch.PasswordHash = &passwordHash
	}

	if patch.Empty() {
		return nil
	}

	if err := s.admins.UpdateFields(ctx, id, patch); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	s.record(ctx, audit.ActionUpdated, id, "")
	s.reindexFromStore(ctx, id)

	return nil
}

// UpdateStatus sets only the status column. The note is audit context and is
// not persisted on the account row.
func (s *AdminService) UpdateStatus(ctx context.Context, id int64, status, note string) error {
	if err := s.demoGuard(ctx, id); err != nil {
		return err
	}

	patch := &model.AdminPatch{Status: &status}
	if err := s.admins.UpdateFields(ctx, id, patch); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	s.record(ctx, audit.ActionStatusChanged, id, note)
	s.reindexFromStore(ctx, id)

	return nil
}

// UpdateSecondaryAuthHash rotates the secondary-auth credential. The demo
// guard does not apply: rotation is required even on locked accounts.
func (s *AdminService) UpdateSecondaryAuthHash(ctx context.Context, id int64, hash string) error {
	patch := &model.AdminPatch{SecondaryAuthHash: &hash}
	if err := s.admins.UpdateFields(ctx, id, patch); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	s.record(ctx, audit.ActionSecondaryAuthRotated, id, "")

	return nil
}

// Delete hard-deletes the account row. Security questions and key material
// are intentionally left in place; see the recovery tooling notes.
func (s *AdminService) Delete(ctx context.Context, id int64) error {
	if err := s.demoGuard(ctx, id); err != nil {
		return err
	}

	if err := s.admins.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	s.record(ctx, audit.ActionDeleted, id, "")

	if s.indexer != nil {
		if err := s.indexer.Remove(ctx, id); err != nil {
			util.Warn("failed to deindex administrator", util.Int64("admin_id", id), util.ErrorField(err))
		}
	}

	return nil
}

// SelectOptions returns the administrator listing as a restartable sequence
// of (value, label) pairs ordered by full name. Labels are rendered lazily
// at iteration time.
func (s *AdminService) SelectOptions(ctx context.Context, selectedID int64, addPrefix bool) (iter.Seq[model.SelectOption], error) {
	entries, err := s.admins.ListOrderedByName(ctx)
	if err != nil {
		return nil, err
	}

	return func(yield func(model.SelectOption) bool) {
		for _, entry := range entries {
			if !yield(renderOption(entry, selectedID, addPrefix)) {
				return
			}
		}
	}, nil
}

func renderOption(entry *model.AdminListEntry, selectedID int64, addPrefix bool) model.SelectOption {
	value := strconv.FormatInt(entry.ID, 10)
	label := fmt.Sprintf("%s(%s)", entry.FullName, entry.Username)
	if addPrefix {
		value = "admin:" + value
		label = "Administrator: " + label
	}
	return model.SelectOption{
		Value:    value,
		Label:    label,
		Selected: selectedID != 0 && entry.ID == selectedID,
	}
}

// -------------------- GUARDS & SIDE CHANNELS --------------------

// demoGuard rejects mutation of the reserved demo administrator with a soft
// notice. It is consulted by every guarded mutation, never duplicated.
func (s *AdminService) demoGuard(ctx context.Context, id int64) error {
	if !s.security.DemoMode || id != s.security.DemoAdminID {
		return nil
	}
	s.notifier.Notice(ctx, model.SeverityWarning, "the demo administrator cannot be modified")
	return model.ErrDemoLocked
}

func (s *AdminService) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		util.Warn("failed to invalidate cached administrator",
			util.Int64("admin_id", id),
			util.ErrorField(err))
	}
}

func (s *AdminService) record(ctx context.Context, action string, id int64, note string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, audit.Event(action, id, actorFrom(ctx), note))
}

func (s *AdminService) reindex(ctx context.Context, id int64, username, fullName, status string) {
	if s.indexer == nil {
		return
	}
	entry := &model.AdminListEntry{ID: id, Username: username, FullName: fullName}
	if err := s.indexer.Index(ctx, entry, status); err != nil {
		util.Warn("failed to index administrator", util.Int64("admin_id", id), util.ErrorField(err))
	}
}

// reindexFromStore refreshes the search document after a mutation that may
// have changed indexed fields.
func (s *AdminService) reindexFromStore(ctx context.Context, id int64) {
	if s.indexer == nil {
		return
	}
	account, err := s.admins.GetByID(ctx, id)
	if err != nil {
		var notFound *model.NotFoundError
		if !errors.As(err, &notFound) {
			util.Warn("failed to reload administrator for indexing",
				util.Int64("admin_id", id),
				util.ErrorField(err))
		}
		return
	}
	s.reindex(ctx, id, account.Username, account.FullName, account.Status)
}
