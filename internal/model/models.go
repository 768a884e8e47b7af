package model

import (
	"context"
	"time"
)

// SubjectTypeAdmin is the subject type under which administrator key material
// and security questions are filed.
const SubjectTypeAdmin = "admin"

// Well-known account statuses. The column is free-form; these are the values
// the service itself writes.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// -------------------- ADMINISTRATOR ACCOUNT --------------------

// AdminAccount is an administrator row. ID 0 means the account has not been
// persisted yet.
type AdminAccount struct {
	ID                int64     `json:"id" db:"id"`
	Username          string    `json:"username" db:"username"`             // unique, stored lower-case
	PasswordHash      string    `json:"-" db:"password_hash"`               // bcrypt, never the plaintext
	Status            string    `json:"status" db:"status"`
	FullName          string    `json:"full_name" db:"full_name"`
	Email             string    `json:"email" db:"email"`                   // envelope-encrypted at rest
	PhoneCountryCode  string    `json:"phone_country_code" db:"phone_country_code"`
	PhoneNumber       string    `json:"phone_number" db:"phone_number"`     // envelope-encrypted at rest
	Language          string    `json:"language" db:"language"`
	Timezone          string    `json:"timezone" db:"timezone"`
	Require2FA        bool      `json:"require_2fa" db:"require_2fa"`
	Require2FAPhone   bool      `json:"require_2fa_phone" db:"require_2fa_phone"`
	SecondaryAuthHash string    `json:"-" db:"secondary_auth_hash"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// AdminPatch is a partial update of an administrator row. A nil field is left
// untouched by the store; there is no way to express "clear this column"
// except an explicit pointer to the empty string.
type AdminPatch struct {
	Status            *string
	FullName          *string
	Email             *string
	PhoneCountryCode  *string
	PhoneNumber       *string
	Language          *string
	Timezone          *string
	Require2FA        *bool
	Require2FAPhone   *bool
	PasswordHash      *string
	SecondaryAuthHash *string
}

// Empty reports whether the patch carries no field at all.
func (p *AdminPatch) Empty() bool {
	return p.Status == nil && p.FullName == nil && p.Email == nil &&
		p.PhoneCountryCode == nil && p.PhoneNumber == nil &&
		p.Language == nil && p.Timezone == nil &&
		p.Require2FA == nil && p.Require2FAPhone == nil &&
		p.PasswordHash == nil && p.SecondaryAuthHash == nil
}

// AdminListEntry is the projection used for the select-option listing. It
// deliberately excludes every encrypted or sensitive column.
type AdminListEntry struct {
	ID       int64  `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
	FullName string `json:"full_name" db:"full_name"`
}

// SelectOption is one (value, label) pair of the administrator listing.
type SelectOption struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// -------------------- SECURITY QUESTION --------------------

// SecurityQuestion is a recovery credential pair owned by exactly one subject.
// Rows are only ever written alongside account creation.
type SecurityQuestion struct {
	ID          int64     `json:"id" db:"id"`
	SubjectType string    `json:"subject_type" db:"subject_type"`
	SubjectID   int64     `json:"subject_id" db:"subject_id"`
	Question    string    `json:"question" db:"question"`
	AnswerHash  string    `json:"-" db:"answer_hash"` // same hashing policy as passwords
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// QuestionAnswer is one question/answer slot of a creation request, before
// hashing. Slots missing either half are skipped.
type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// -------------------- KEYPAIR --------------------

// Keypair holds issued key material for a subject. The private key is sealed
// under the passphrase supplied at issuance and is opaque to the service.
type Keypair struct {
	SubjectType      string    `json:"subject_type" db:"subject_type"`
	SubjectID        int64     `json:"subject_id" db:"subject_id"`
	PublicKeyPEM     string    `json:"public_key_pem" db:"public_key_pem"`
	PrivateKeySealed []byte    `json:"-" db:"private_key_sealed"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// -------------------- AUDIT --------------------

// AuditEvent records one mutation of the administrator store.
type AuditEvent struct {
	EventID    string    `json:"event_id"`
	Action     string    `json:"action"` // created, updated, status_changed, secondary_auth_rotated, deleted
	AdminID    int64     `json:"admin_id"`
	Actor      string    `json:"actor"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// -------------------- REPOSITORY INTERFACES --------------------

// AdminRepository is the persistence contract for administrator rows.
type AdminRepository interface {
	Create(ctx context.Context, account *AdminAccount) (int64, error)
	GetByID(ctx context.Context, id int64) (*AdminAccount, error)
	UpdateFields(ctx context.Context, id int64, patch *AdminPatch) error
	Delete(ctx context.Context, id int64) error
	ListOrderedByName(ctx context.Context) ([]*AdminListEntry, error)
}

// SecurityQuestionRepository persists recovery question rows.
type SecurityQuestionRepository interface {
	Create(ctx context.Context, question *SecurityQuestion) (int64, error)
	ListBySubject(ctx context.Context, subjectType string, subjectID int64) ([]*SecurityQuestion, error)
}

// KeypairRepository persists issued key material keyed by subject.
type KeypairRepository interface {
	Save(ctx context.Context, keypair *Keypair) error
	GetBySubject(ctx context.Context, subjectType string, subjectID int64) (*Keypair, error)
}

// -------------------- COLLABORATOR INTERFACES --------------------

// KeyIssuer generates and persists an asymmetric keypair for a subject,
// sealed under the supplied passphrase.
type KeyIssuer interface {
	IssueKeypair(ctx context.Context, subjectID int64, subjectType, passphrase string) error
}

// AccountCache is a read-through cache of administrator rows.
type AccountCache interface {
	Get(ctx context.Context, id int64) (*AdminAccount, error)
	Set(ctx context.Context, account *AdminAccount) error
	Invalidate(ctx context.Context, id int64) error
}

// NoticeSeverity grades user-facing notices.
type NoticeSeverity string

const (
	SeverityInfo    NoticeSeverity = "info"
	SeverityWarning NoticeSeverity = "warning"
)

// Notifier surfaces soft, user-visible rejections that do not abort the
// caller's larger request.
type Notifier interface {
	Notice(ctx context.Context, severity NoticeSeverity, message string)
}

// AuditSink records audit events. Implementations are best effort; a failing
// sink must never fail the mutation it describes.
type AuditSink interface {
	Record(ctx context.Context, event *AuditEvent)
}

// DirectoryIndexer mirrors the admin directory into a search index.
type DirectoryIndexer interface {
	Index(ctx context.Context, entry *AdminListEntry, status string) error
	Remove(ctx context.Context, id int64) error
}
