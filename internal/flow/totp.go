package flow

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
)

// GenerateTOTPSecret generates a new 20-byte (160-bit) TOTP secret,
// base32-encoded for authenticator apps.
func GenerateTOTPSecret() (string, error) {
	secret := make([]byte, 20)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("generate TOTP secret: %w", err)
	}
	return base32.StdEncoding.EncodeToString(secret), nil
}

// ValidateTOTPCode validates a 6-digit TOTP code against the given
// secret. Standard parameters: SHA1, 6 digits, 30-second period, ±1
// period skew.
func ValidateTOTPCode(code, secret string) bool {
	return totp.Validate(code, secret)
}

// LoadTOTPSecret reads a secret previously written by setup.
func LoadTOTPSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read TOTP secret: %w", err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("TOTP secret file %s is empty", path)
	}
	return secret, nil
}

// SaveTOTPSecret persists a secret with owner-only permissions.
func SaveTOTPSecret(path, secret string) error {
	if err := os.WriteFile(path, []byte(secret+"\n"), 0o600); err != nil {
		return fmt.Errorf("write TOTP secret: %w", err)
	}
	return nil
}

// FormatTOTPURI creates an otpauth:// URI for the given account label.
func FormatTOTPURI(label, secret string) string {
	if len(label) > 16 {
		label = label[:16]
	}
	return fmt.Sprintf("otpauth://totp/toolgate:%s?secret=%s&issuer=toolgate", label, secret)
}

// DisplayTOTPSetup writes the setup screen (QR code plus manual secret)
// to the writer.
func DisplayTOTPSetup(w io.Writer, label, secret string) error {
	uri := FormatTOTPURI(label, secret)

	qr, err := qrcode.New(uri, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("generate QR code: %w", err)
	}
	qrASCII := qr.ToSmallString(false)

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Scan this QR code with your authenticator app:")
	fmt.Fprintln(w, "")
	for _, line := range strings.Split(qrASCII, "\n") {
		if line != "" {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Or enter the secret manually: %s\n", secret)
	fmt.Fprintln(w, "")
	return nil
}
