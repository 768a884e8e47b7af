package service

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"admin-service/internal/config"
	"admin-service/internal/hashing"
	"admin-service/internal/model"
)

type testEnv struct {
	service   *AdminService
	admins    *FakeAdminRepository
	questions *FakeQuestionRepository
	keyIssuer *FakeKeyIssuer
	notifier  *FakeNotifier
	auditor   *FakeAuditSink
	hasher    *hashing.Hasher
}

func newTestEnv(t *testing.T, security config.SecurityConfig) *testEnv {
	t.Helper()

	if security.MaxSecurityQuestions == 0 {
		security.MaxSecurityQuestions = 3
	}
	if security.DemoAdminID == 0 {
		security.DemoAdminID = 1
	}

	cfg := &config.Config{}
	cfg.Hashing.BcryptCost = bcrypt.MinCost // keep tests fast

	env := &testEnv{
		admins:    NewFakeAdminRepository(),
		questions: NewFakeQuestionRepository(),
		keyIssuer: NewFakeKeyIssuer(),
		notifier:  &FakeNotifier{},
		auditor:   &FakeAuditSink{},
		hasher:    hashing.NewHasher(cfg),
	}
	env.service = NewAdminService(
		env.admins, env.questions, env.keyIssuer, env.hasher,
		env.notifier, nil, env.auditor, nil, security,
	)
	return env
}

func validCreateRequest() *AdminCreateRequest {
	return &AdminCreateRequest{
		Username:        "Admin1",
		Password:        "Secret123",
		PasswordConfirm: "Secret123",
		FullName:        "A One",
		Email:           "a@x.com",
	}
}

func TestCreate(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	ctx := context.Background()

	result, err := env.service.Create(ctx, validCreateRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if result.AdminID == 0 {
		t.Fatal("Create() should assign an id")
	}

	stored, err := env.service.Get(ctx, result.AdminID)
	if err != nil {
		t.Fatalf("Get() after Create() error = %v", err)
	}

	if stored.Username != "admin1" {
		t.Errorf("stored username = %q, want lower-cased %q", stored.Username, "admin1")
	}
	if stored.Status != model.StatusActive {
		t.Errorf("stored status = %q, want %q", stored.Status, model.StatusActive)
	}
	if stored.PasswordHash == "Secret123" {
		t.Fatal("password stored as plaintext")
	}
	if !env.hasher.Verify("Secret123", stored.PasswordHash) {
		t.Error("stored password hash does not verify against the plaintext")
	}

	// Keypair issued for ("admin", id) under the plaintext password.
	passphrase, ok := env.keyIssuer.IssuedFor(model.SubjectTypeAdmin, result.AdminID)
	if !ok {
		t.Fatal("no keypair issued for the new administrator")
	}
	if passphrase != "Secret123" {
		t.Error("keypair not sealed under the plaintext password")
	}
	if !result.KeypairIssued {
		t.Error("result should report keypair issuance")
	}

	// No question slots were filled.
	qs, _ := env.questions.ListBySubject(ctx, model.SubjectTypeAdmin, result.AdminID)
	if len(qs) != 0 {
		t.Errorf("stored %d security questions, want 0", len(qs))
	}
}

func TestCreateValidationFailure(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*AdminCreateRequest)
		wantField string
	}{
		{
			name:      "missing username",
			mutate:    func(r *AdminCreateRequest) { r.Username = "" },
			wantField: "username",
		},
		{
			name:      "missing password",
			mutate:    func(r *AdminCreateRequest) { r.Password = "" },
			wantField: "password",
		},
		{
			name:      "short password",
			mutate:    func(r *AdminCreateRequest) { r.Password, r.PasswordConfirm = "short", "short" },
			wantField: "password",
		},
		{
			name:      "password confirmation mismatch",
			mutate:    func(r *AdminCreateRequest) { r.PasswordConfirm = "Different1" },
			wantField: "password_confirm",
		},
		{
			name:      "bad email",
			mutate:    func(r *AdminCreateRequest) { r.Email = "not-an-email" },
			wantField: "email",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			env := newTestEnv(t, config.SecurityConfig{})
			req := validCreateRequest()
			test.mutate(req)

			result, err := env.service.Create(context.Background(), req)
			if result != nil {
				t.Fatal("Create() should not return a result on validation failure")
			}

			var validationErr *model.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("Create() error = %v, want *model.ValidationError", err)
			}
			if _, ok := validationErr.Fields[test.wantField]; !ok {
				t.Errorf("validation fields = %v, want entry for %q", validationErr.Fields, test.wantField)
			}

			// No partial writes of any kind.
			if env.admins.Count() != 0 {
				t.Error("account row written despite validation failure")
			}
			if env.questions.calls != 0 {
				t.Error("security question written despite validation failure")
			}
			if _, ok := env.keyIssuer.IssuedFor(model.SubjectTypeAdmin, 1); ok {
				t.Error("keypair issued despite validation failure")
			}
		})
	}
}

func TestCreateSecurityQuestionSlots(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{MaxSecurityQuestions: 3})
	ctx := context.Background()

	req := validCreateRequest()
	req.Questions = []model.QuestionAnswer{
		{Question: "First pet?", Answer: "fluffy"},
		{Question: "Mother's maiden name?", Answer: ""}, // missing answer: skipped
		{Question: "", Answer: "blue"},                  // missing question: skipped
		{Question: "Over the limit?", Answer: "yes"},    // beyond slot 3: dropped
	}

	result, err := env.service.Create(ctx, req)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if result.QuestionsStored != 1 {
		t.Errorf("QuestionsStored = %d, want 1", result.QuestionsStored)
	}
	if result.QuestionsSkipped != 2 {
		t.Errorf("QuestionsSkipped = %d, want 2", result.QuestionsSkipped)
	}

	qs, _ := env.questions.ListBySubject(ctx, model.SubjectTypeAdmin, result.AdminID)
	if len(qs) != 1 {
		t.Fatalf("stored %d security questions, want 1", len(qs))
	}
	if qs[0].Question != "First pet?" {
		t.Errorf("stored question = %q", qs[0].Question)
	}
	if qs[0].AnswerHash == "fluffy" {
		t.Fatal("answer stored as plaintext")
	}
	if !env.hasher.Verify("fluffy", qs[0].AnswerHash) {
		t.Error("stored answer hash does not verify against the plaintext")
	}
}

func TestCreateQuestionFailureDoesNotAbort(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{MaxSecurityQuestions: 3})
	env.questions.failCalls = map[int]error{1: errors.New("insert failed")}

	req := validCreateRequest()
	req.Questions = []model.QuestionAnswer{
		{Question: "First pet?", Answer: "fluffy"},
		{Question: "Home town?", Answer: "smallville"},
	}

	result, err := env.service.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create() error = %v, creation must not fail on a question slot", err)
	}
	if result.QuestionsStored != 1 {
		t.Errorf("QuestionsStored = %d, want 1 (second slot survives)", result.QuestionsStored)
	}
	if len(result.QuestionFailures) != 1 {
		t.Errorf("QuestionFailures = %v, want one entry", result.QuestionFailures)
	}
	if !result.KeypairIssued {
		t.Error("keypair issuance must still run after a question failure")
	}
}

func TestCreateKeypairFailureIsReported(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	env.keyIssuer.issueErr = errors.New("kms unavailable")

	result, err := env.service.Create(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("Create() error = %v, keypair failure must not fail creation", err)
	}
	if result.KeypairIssued {
		t.Error("result reports keypair issued despite failure")
	}
	if result.KeypairFailure == "" {
		t.Error("result should carry the keypair failure")
	}
	if env.admins.Count() != 1 {
		t.Error("account row should survive keypair failure")
	}
}

func TestGetNotFound(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})

	_, err := env.service.Get(context.Background(), 99)
	var notFound *model.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Get(99) error = %v, want *model.NotFoundError", err)
	}
	if notFound.ID != 99 {
		t.Errorf("NotFoundError.ID = %d, want 99", notFound.ID)
	}
}

func TestUpdatePartialLeavesAbsentFieldsUnchanged(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	ctx := context.Background()

	req := validCreateRequest()
	req.PhoneCountryCode = "+49"
	req.PhoneNumber = "5551234"
	result, err := env.service.Create(ctx, req)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	before, _ := env.service.Get(ctx, result.AdminID)

	newName := "A Two"
	if err := env.service.Update(ctx, result.AdminID, &AdminUpdateRequest{FullName: &newName}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	after, _ := env.service.Get(ctx, result.AdminID)
	if after.FullName != "A Two" {
		t.Errorf("FullName = %q, want updated value", after.FullName)
	}
	if after.Email != before.Email ||
		after.PhoneCountryCode != before.PhoneCountryCode ||
		after.PhoneNumber != before.PhoneNumber ||
		after.PasswordHash != before.PasswordHash ||
		after.Status != before.Status {
		t.Error("absent fields changed during partial update")
	}
}

func TestUpdatePasswordConfirmation(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	ctx := context.Background()

	result, err := env.service.Create(ctx, validCreateRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	before, _ := env.service.Get(ctx, result.AdminID)

	// Mismatched confirmation: hash must be untouched.
	err = env.service.Update(ctx, result.AdminID, &AdminUpdateRequest{
		Password:        "NewSecret1",
		PasswordConfirm: "Different1",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	after, _ := env.service.Get(ctx, result.AdminID)
	if after.PasswordHash != before.PasswordHash {
		t.Error("password hash changed despite mismatched confirmation")
	}

	// Matching confirmation: fresh hash, verifies against the new password.
	err = env.service.Update(ctx, result.AdminID, &AdminUpdateRequest{
		Password:        "NewSecret1",
		PasswordConfirm: "NewSecret1",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	after, _ = env.service.Get(ctx, result.AdminID)
	if after.PasswordHash == before.PasswordHash {
		t.Error("password hash not rotated on confirmed change")
	}
	if !env.hasher.Verify("NewSecret1", after.PasswordHash) {
		t.Error("rotated hash does not verify against the new password")
	}
}

func TestUpdateWithNoFieldsIsNoop(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	ctx := context.Background()

	result, err := env.service.Create(ctx, validCreateRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := env.service.Update(ctx, result.AdminID, &AdminUpdateRequest{}); err != nil {
		t.Fatalf("Update() with empty request error = %v", err)
	}
	if len(env.auditor.Events()) != 1 { // only the creation event
		t.Error("empty update should not produce an audit event")
	}
}

func TestDemoGuard(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{DemoMode: true})
	ctx := context.Background()

	// The fake assigns id 1 to the first account: the reserved demo row.
	result, err := env.service.Create(ctx, validCreateRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if result.AdminID != 1 {
		t.Fatalf("expected demo account id 1, got %d", result.AdminID)
	}
	before, _ := env.service.Get(ctx, 1)

	name := "Changed"
	guarded := []struct {
		name string
		call func() error
	}{
		{"Update", func() error {
			return env.service.Update(ctx, 1, &AdminUpdateRequest{FullName: &name})
		}},
		{"UpdateStatus", func() error {
			return env.service.UpdateStatus(ctx, 1, model.StatusSuspended, "ban")
		}},
		{"Delete", func() error {
			return env.service.Delete(ctx, 1)
		}},
	}

	for _, op := range guarded {
		if err := op.call(); !errors.Is(err, model.ErrDemoLocked) {
			t.Errorf("%s on demo account error = %v, want ErrDemoLocked", op.name, err)
		}
	}

	after, err := env.service.Get(ctx, 1)
	if err != nil {
		t.Fatalf("demo account vanished: %v", err)
	}
	if *after != *before {
		t.Error("demo account row changed despite guard")
	}
	if len(env.notifier.Notices()) != len(guarded) {
		t.Errorf("got %d notices, want %d", len(env.notifier.Notices()), len(guarded))
	}

	// Secondary-auth rotation is deliberately unguarded.
	if err := env.service.UpdateSecondaryAuthHash(ctx, 1, "rotated-hash"); err != nil {
		t.Errorf("UpdateSecondaryAuthHash() on demo account error = %v, want nil", err)
	}
}

func TestDemoAccountMutableWhenDemoModeOff(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{DemoMode: false})
	ctx := context.Background()

	if _, err := env.service.Create(ctx, validCreateRequest()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	name := "Changed"
	if err := env.service.Update(ctx, 1, &AdminUpdateRequest{FullName: &name}); err != nil {
		t.Errorf("Update() on id 1 without demo mode error = %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	ctx := context.Background()

	result, err := env.service.Create(ctx, validCreateRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	before, _ := env.service.Get(ctx, result.AdminID)

	if err := env.service.UpdateStatus(ctx, result.AdminID, model.StatusSuspended, "incident 4711"); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	after, _ := env.service.Get(ctx, result.AdminID)
	if after.Status != model.StatusSuspended {
		t.Errorf("status = %q, want %q", after.Status, model.StatusSuspended)
	}
	if after.FullName != before.FullName || after.PasswordHash != before.PasswordHash {
		t.Error("UpdateStatus() touched fields other than status")
	}

	// The note rides along into the audit trail only.
	events := env.auditor.Events()
	last := events[len(events)-1]
	if last.Action != "status_changed" || last.Note != "incident 4711" {
		t.Errorf("audit event = %s/%q, want status_changed with note", last.Action, last.Note)
	}
}

func TestDeleteThenGetNotFound(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	ctx := context.Background()

	result, err := env.service.Create(ctx, validCreateRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := env.service.Delete(ctx, result.AdminID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var notFound *model.NotFoundError
	if _, err := env.service.Get(ctx, result.AdminID); !errors.As(err, &notFound) {
		t.Errorf("Get() after Delete() error = %v, want *model.NotFoundError", err)
	}
}

func TestSelectOptions(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	ctx := context.Background()

	for _, acct := range []struct{ username, fullName string }{
		{"zeta", "Zed Last"},
		{"alpha", "Ann First"},
		{"mid", "Mel Middle"},
	} {
		req := validCreateRequest()
		req.Username = acct.username
		req.FullName = acct.fullName
		if _, err := env.service.Create(ctx, req); err != nil {
			t.Fatalf("Create(%s) error = %v", acct.username, err)
		}
	}

	seq, err := env.service.SelectOptions(ctx, 2, false)
	if err != nil {
		t.Fatalf("SelectOptions() error = %v", err)
	}

	var options []model.SelectOption
	for opt := range seq {
		options = append(options, opt)
	}

	wantLabels := []string{"Ann First(alpha)", "Mel Middle(mid)", "Zed Last(zeta)"}
	if len(options) != len(wantLabels) {
		t.Fatalf("got %d options, want %d", len(options), len(wantLabels))
	}
	for i, want := range wantLabels {
		if options[i].Label != want {
			t.Errorf("option %d label = %q, want %q (full-name ordering)", i, options[i].Label, want)
		}
	}

	var selectedCount int
	for _, opt := range options {
		if opt.Selected {
			selectedCount++
			if opt.Value != "2" {
				t.Errorf("selected option value = %q, want %q", opt.Value, "2")
			}
		}
	}
	if selectedCount != 1 {
		t.Errorf("selected %d options, want exactly 1", selectedCount)
	}

	// The sequence is restartable: a second pass yields the same entries.
	var second int
	for range seq {
		second++
	}
	if second != len(options) {
		t.Errorf("second iteration yielded %d options, want %d", second, len(options))
	}
}

func TestSelectOptionsWithPrefix(t *testing.T) {
	env := newTestEnv(t, config.SecurityConfig{})
	ctx := context.Background()

	if _, err := env.service.Create(ctx, validCreateRequest()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	seq, err := env.service.SelectOptions(ctx, 0, true)
	if err != nil {
		t.Fatalf("SelectOptions() error = %v", err)
	}

	for opt := range seq {
		if opt.Value != "admin:1" {
			t.Errorf("value = %q, want %q", opt.Value, "admin:1")
		}
		if opt.Label != "Administrator: A One(admin1)" {
			t.Errorf("label = %q, want prefixed form", opt.Label)
		}
		if opt.Selected {
			t.Error("no option should be selected when selectedID is 0")
		}
	}
}
