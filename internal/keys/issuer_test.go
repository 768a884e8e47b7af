package keys

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"testing"

	"admin-service/internal/model"
)

type fakeKeypairRepo struct {
	saved   map[string]*model.Keypair
	saveErr error
}

func newFakeKeypairRepo() *fakeKeypairRepo {
	return &fakeKeypairRepo{saved: make(map[string]*model.Keypair)}
}

func (f *fakeKeypairRepo) Save(_ context.Context, kp *model.Keypair) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[fmt.Sprintf("%s:%d", kp.SubjectType, kp.SubjectID)] = kp
	return nil
}

func (f *fakeKeypairRepo) GetBySubject(_ context.Context, subjectType string, subjectID int64) (*model.Keypair, error) {
	kp, ok := f.saved[fmt.Sprintf("%s:%d", subjectType, subjectID)]
	if !ok {
		return nil, errors.New("keypair not found")
	}
	return kp, nil
}

func TestIssueKeypair(t *testing.T) {
	repo := newFakeKeypairRepo()
	issuer := NewIssuer(repo)

	if err := issuer.IssueKeypair(context.Background(), 42, model.SubjectTypeAdmin, "Secret123"); err != nil {
		t.Fatalf("IssueKeypair() error = %v", err)
	}

	kp, err := repo.GetBySubject(context.Background(), model.SubjectTypeAdmin, 42)
	if err != nil {
		t.Fatalf("keypair was not stored: %v", err)
	}

	block, _ := pem.Decode([]byte(kp.PublicKeyPEM))
	if block == nil || block.Type != "PUBLIC KEY" {
		t.Fatalf("stored public key is not a PEM public key block")
	}
	if _, err := x509.ParsePKIXPublicKey(block.Bytes); err != nil {
		t.Errorf("stored public key does not parse: %v", err)
	}

	if len(kp.PrivateKeySealed) == 0 {
		t.Fatal("private key blob is empty")
	}

	// The sealed blob must open under the issuance passphrase and match the
	// stored public key.
	privateKey, err := issuer.OpenPrivateKey(kp, "Secret123")
	if err != nil {
		t.Fatalf("OpenPrivateKey() with correct passphrase error = %v", err)
	}
	publicDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		t.Fatalf("failed to marshal unsealed public key: %v", err)
	}
	if !bytes.Equal(publicDER, block.Bytes) {
		t.Error("unsealed private key does not match stored public key")
	}
}

func TestOpenPrivateKeyWrongPassphrase(t *testing.T) {
	repo := newFakeKeypairRepo()
	issuer := NewIssuer(repo)

	if err := issuer.IssueKeypair(context.Background(), 7, model.SubjectTypeAdmin, "right"); err != nil {
		t.Fatalf("IssueKeypair() error = %v", err)
	}

	kp, _ := repo.GetBySubject(context.Background(), model.SubjectTypeAdmin, 7)
	if _, err := issuer.OpenPrivateKey(kp, "wrong"); !errors.Is(err, ErrBadPassphrase) {
		t.Errorf("OpenPrivateKey() with wrong passphrase error = %v, want ErrBadPassphrase", err)
	}
}

func TestIssueKeypairStoreFailure(t *testing.T) {
	repo := newFakeKeypairRepo()
	repo.saveErr = errors.New("connection refused")
	issuer := NewIssuer(repo)

	if err := issuer.IssueKeypair(context.Background(), 1, model.SubjectTypeAdmin, "pw"); err == nil {
		t.Fatal("IssueKeypair() should propagate store failures")
	}
}
