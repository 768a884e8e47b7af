package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"admin-service/internal/model"
)

// FakeAdminRepository is a test-only in-memory model.AdminRepository with
// error fields for behavior injection.
type FakeAdminRepository struct {
	mu        sync.RWMutex
	accounts  map[int64]*model.AdminAccount
	nextID    int64
	createErr error
	getErr    error
	updateErr error
	deleteErr error
	listErr   error
}

func NewFakeAdminRepository() *FakeAdminRepository {
	return &FakeAdminRepository{
		accounts: make(map[int64]*model.AdminAccount),
		nextID:   1,
	}
}

func (f *FakeAdminRepository) Create(_ context.Context, account *model.AdminAccount) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return 0, f.createErr
	}

	for _, existing := range f.accounts {
		if existing.Username == account.Username {
			return 0, fmt.Errorf("username %q already taken", account.Username)
		}
	}

	account.ID = f.nextID
	f.nextID++

	stored := *account
	f.accounts[account.ID] = &stored
	return account.ID, nil
}

func (f *FakeAdminRepository) GetByID(_ context.Context, id int64) (*model.AdminAccount, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.getErr != nil {
		return nil, f.getErr
	}
	account, ok := f.accounts[id]
	if !ok {
		return nil, &model.NotFoundError{ID: id}
	}
	copied := *account
	return &copied, nil
}

func (f *FakeAdminRepository) UpdateFields(_ context.Context, id int64, patch *model.AdminPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return f.updateErr
	}
	account, ok := f.accounts[id]
	if !ok {
		return &model.NotFoundError{ID: id}
	}

	if patch.Status != nil {
		account.Status = *patch.Status
	}
	if patch.FullName != nil {
		account.FullName = *patch.FullName
	}
	if patch.Email != nil {
		account.Email = *patch.Email
	}
	if patch.PhoneCountryCode != nil {
		account.PhoneCountryCode = *patch.PhoneCountryCode
	}
	if patch.PhoneNumber != nil {
		account.PhoneNumber = *patch.PhoneNumber
	}
	if patch.Language != nil {
		account.Language = *patch.Language
	}
	if patch.Timezone != nil {
		account.Timezone = *patch.Timezone
	}
	if patch.Require2FA != nil {
		account.Require2FA = *patch.Require2FA
	}
	if patch.Require2FAPhone != nil {
		account.Require2FAPhone = *patch.Require2FAPhone
	}
	if patch.PasswordHash != nil {
		account.PasswordHash = *patch.PasswordHash
	}
	if patch.SecondaryAuthHash != nil {
		account.SecondaryAuthHash = *patch.SecondaryAuthHash
	}
	return nil
}

func (f *FakeAdminRepository) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.accounts[id]; !ok {
		return &model.NotFoundError{ID: id}
	}
	delete(f.accounts, id)
	return nil
}

func (f *FakeAdminRepository) ListOrderedByName(_ context.Context) ([]*model.AdminListEntry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.listErr != nil {
		return nil, f.listErr
	}

	entries := make([]*model.AdminListEntry, 0, len(f.accounts))
	for _, account := range f.accounts {
		entries = append(entries, &model.AdminListEntry{
			ID:       account.ID,
			Username: account.Username,
			FullName: account.FullName,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].FullName != entries[j].FullName {
			return entries[i].FullName < entries[j].FullName
		}
		return entries[i].Username < entries[j].Username
	})
	return entries, nil
}

// Count reports the number of stored accounts.
func (f *FakeAdminRepository) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.accounts)
}

// FakeQuestionRepository is a test-only model.SecurityQuestionRepository.
type FakeQuestionRepository struct {
	mu        sync.RWMutex
	questions []*model.SecurityQuestion
	nextID    int64
	createErr error
	// failSlots makes Create fail for the nth call (1-based) when set.
	failCalls map[int]error
	calls     int
}

func NewFakeQuestionRepository() *FakeQuestionRepository {
	return &FakeQuestionRepository{nextID: 1}
}

func (f *FakeQuestionRepository) Create(_ context.Context, question *model.SecurityQuestion) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.createErr != nil {
		return 0, f.createErr
	}
	if err, ok := f.failCalls[f.calls]; ok {
		return 0, err
	}

	question.ID = f.nextID
	f.nextID++

	stored := *question
	f.questions = append(f.questions, &stored)
	return question.ID, nil
}

func (f *FakeQuestionRepository) ListBySubject(_ context.Context, subjectType string, subjectID int64) ([]*model.SecurityQuestion, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []*model.SecurityQuestion
	for _, q := range f.questions {
		if q.SubjectType == subjectType && q.SubjectID == subjectID {
			copied := *q
			out = append(out, &copied)
		}
	}
	return out, nil
}

// FakeKeyIssuer records issuance requests.
type FakeKeyIssuer struct {
	mu       sync.Mutex
	issued   map[string]string // "type:id" -> passphrase
	issueErr error
}

func NewFakeKeyIssuer() *FakeKeyIssuer {
	return &FakeKeyIssuer{issued: make(map[string]string)}
}

func (f *FakeKeyIssuer) IssueKeypair(_ context.Context, subjectID int64, subjectType, passphrase string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.issueErr != nil {
		return f.issueErr
	}
	f.issued[fmt.Sprintf("%s:%d", subjectType, subjectID)] = passphrase
	return nil
}

func (f *FakeKeyIssuer) IssuedFor(subjectType string, subjectID int64) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	passphrase, ok := f.issued[fmt.Sprintf("%s:%d", subjectType, subjectID)]
	return passphrase, ok
}

// FakeNotifier collects emitted notices.
type FakeNotifier struct {
	mu      sync.Mutex
	notices []string
}

func (f *FakeNotifier) Notice(_ context.Context, _ model.NoticeSeverity, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, message)
}

func (f *FakeNotifier) Notices() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.notices...)
}

// FakeAuditSink collects recorded events.
type FakeAuditSink struct {
	mu     sync.Mutex
	events []*model.AuditEvent
}

func (f *FakeAuditSink) Record(_ context.Context, event *model.AuditEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *FakeAuditSink) Events() []*model.AuditEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.AuditEvent(nil), f.events...)
}
