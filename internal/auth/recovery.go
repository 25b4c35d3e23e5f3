package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/questkeep/questkeep/internal/clock"
)

const (
	recoveryPeriod = 30
	recoverySkew   = 1
	qrImageSize    = 256
)

var recoveryOpts = totp.ValidateOpts{
	Period:    recoveryPeriod,
	Skew:      recoverySkew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// RecoveryEnrollment is returned once, when a parent sets up PIN recovery
type RecoveryEnrollment struct {
	EncryptedSecret []byte
	Nonce           []byte
	Secret          string // base32, shown to the parent for manual entry
	ProvisioningURL string
	QRCodeDataURL   string
}

// RecoveryManager issues authenticator secrets used to reset a forgotten PIN
type RecoveryManager struct {
	encryptionKey []byte // 32-byte AES-256 key
	issuer        string
	clock         clock.Clock
}

// NewRecoveryManager creates a new RecoveryManager.
// encryptionKey must be exactly 32 bytes for AES-256.
func NewRecoveryManager(encryptionKey []byte, issuer string, clk clock.Clock) (*RecoveryManager, error) {
	if len(encryptionKey) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes, got %d", len(encryptionKey))
	}
	return &RecoveryManager{
		encryptionKey: encryptionKey,
		issuer:        issuer,
		clock:         clk,
	}, nil
}

// Enroll generates a TOTP secret for accountName, encrypted for storage, with a QR code
func (rm *RecoveryManager) Enroll(accountName string) (*RecoveryEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      rm.issuer,
		AccountName: accountName,
		Period:      recoveryPeriod,
		SecretSize:  20,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate recovery key: %w", err)
	}

	encrypted, nonce, err := rm.encrypt([]byte(key.Secret()))
	if err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	return &RecoveryEnrollment{
		EncryptedSecret: encrypted,
		Nonce:           nonce,
		Secret:          key.Secret(),
		ProvisioningURL: key.URL(),
		QRCodeDataURL:   "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}

// Validate checks code against an encrypted secret, allowing one step of clock
// drift either way. On a match it returns the time step the code belongs to.
// Steps at or before usedStep never match, so a code works only once.
func (rm *RecoveryManager) Validate(encryptedSecret, nonce []byte, code string, usedStep int64) (int64, bool, error) {
	secret, err := rm.decrypt(encryptedSecret, nonce)
	if err != nil {
		return 0, false, err
	}

	// malformed codes are a plain mismatch, not an infrastructure problem
	if len(code) != int(otp.DigitsSix) {
		return 0, false, nil
	}

	current := rm.clock.Now().Unix() / recoveryPeriod
	for step := current - recoverySkew; step <= current+recoverySkew; step++ {
		if step <= usedStep {
			continue
		}
		expected, err := totp.GenerateCodeCustom(string(secret), time.Unix(step*recoveryPeriod, 0).UTC(), recoveryOpts)
		if err != nil {
			return 0, false, fmt.Errorf("failed to generate recovery code: %w", err)
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return step, true, nil
		}
	}
	return 0, false, nil
}

func (rm *RecoveryManager) encrypt(plaintext []byte) ([]byte, []byte, error) {
	gcm, err := rm.gcm()
	if err != nil {
		return nil, nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

func (rm *RecoveryManager) decrypt(ciphertext, nonce []byte) ([]byte, error) {
	gcm, err := rm.gcm()
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt recovery secret: %w", err)
	}
	return plaintext, nil
}

func (rm *RecoveryManager) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(rm.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
