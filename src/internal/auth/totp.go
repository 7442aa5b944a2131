package auth

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPService handles the time-based second factor for staff accounts.
type TOTPService struct {
	issuer string
}

// NewTOTPService creates a new TOTP service.
func NewTOTPService(issuer string) *TOTPService {
	return &TOTPService{issuer: issuer}
}

// TOTPSetup is returned once at enrolment; the secret is never shown again.
type TOTPSetup struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
	QRCode string `json:"qr_code"`
}

// GenerateTOTP creates a new secret plus a QR code for authenticator apps.
func (t *TOTPService) GenerateTOTP(accountName string) (*TOTPSetup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: accountName,
		Period:      30,
		SecretSize:  32,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	var buf bytes.Buffer
	img, err := key.Image(256, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR image: %w", err)
	}
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode QR image: %w", err)
	}

	return &TOTPSetup{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRCode: fmt.Sprintf("data:image/png;base64,%s", base64.StdEncoding.EncodeToString(buf.Bytes())),
	}, nil
}

// ValidateTOTP checks a 6-digit code against the stored secret.
func (t *TOTPService) ValidateTOTP(secret, code string) bool {
	return totp.Validate(code, secret)
}
