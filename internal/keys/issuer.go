package keys

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/scrypt"

	"admin-service/internal/model"
	"admin-service/internal/util"
)

const (
	keyBits    = 2048
	saltLength = 16

	// scrypt parameters, interactive-login strength
	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

var ErrBadPassphrase = errors.New("passphrase does not unseal private key")

// Issuer generates asymmetric keypairs for subjects and persists them with
// the private key sealed under a caller-supplied passphrase. Key material is
// opaque to the account lifecycle; only recovery tooling unseals it.
type Issuer struct {
	repo model.KeypairRepository
}

func NewIssuer(repo model.KeypairRepository) *Issuer {
	return &Issuer{repo: repo}
}

// IssueKeypair generates and stores a keypair for (subjectType, subjectID).
func (i *Issuer) IssueKeypair(ctx context.Context, subjectID int64, subjectType, passphrase string) error {
	privateKey, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return fmt.Errorf("failed to generate keypair: %w", err)
	}

	publicDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to marshal public key: %w", err)
	}
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})

	privateDER, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privateDER})

	sealed, err := seal(privatePEM, passphrase)
	if err != nil {
		return fmt.Errorf("failed to seal private key: %w", err)
	}

	keypair := &model.Keypair{
		SubjectType:      subjectType,
		SubjectID:        subjectID,
		PublicKeyPEM:     string(publicPEM),
		PrivateKeySealed: sealed,
		CreatedAt:        time.Now().UTC(),
	}

	if err := i.repo.Save(ctx, keypair); err != nil {
		return fmt.Errorf("failed to store keypair: %w", err)
	}

	util.Info("keypair issued",
		util.String("subject_type", subjectType),
		util.Int64("subject_id", subjectID),
	)
	return nil
}

// OpenPrivateKey unseals a stored private key with its passphrase.
func (i *Issuer) OpenPrivateKey(keypair *model.Keypair, passphrase string) (*rsa.PrivateKey, error) {
	privatePEM, err := unseal(keypair.PrivateKeySealed, passphrase)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(privatePEM)
	if block == nil || block.Type != "PRIVATE KEY" {
		return nil, errors.New("failed to decode private key PEM block")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("stored key is not RSA")
	}
	return rsaKey, nil
}

// seal encrypts plaintext with AES-256-GCM under a key derived from the
// passphrase. Output layout: salt || nonce || ciphertext.
func seal(plaintext []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	gcm, err := deriveCipher(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, saltLength+gcm.NonceSize()+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)
	return out, nil
}

func unseal(sealed []byte, passphrase string) ([]byte, error) {
	if len(sealed) < saltLength {
		return nil, errors.New("sealed blob too short")
	}
	salt, rest := sealed[:saltLength], sealed[saltLength:]

	gcm, err := deriveCipher(passphrase, salt)
	if err != nil {
		return nil, err
	}

	if len(rest) < gcm.NonceSize() {
		return nil, errors.New("sealed blob too short")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrBadPassphrase
	}
	return plaintext, nil
}

func deriveCipher(passphrase string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
