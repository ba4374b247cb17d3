package flow

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestTOTPSecretRoundTrip(t *testing.T) {
	secret, err := GenerateTOTPSecret()
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	path := filepath.Join(t.TempDir(), "totp.secret")
	require.NoError(t, SaveTOTPSecret(path, secret))

	loaded, err := LoadTOTPSecret(path)
	require.NoError(t, err)
	require.Equal(t, secret, loaded)
}

func TestValidateTOTPCode(t *testing.T) {
	secret, err := GenerateTOTPSecret()
	require.NoError(t, err)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	require.True(t, ValidateTOTPCode(code, secret))
	require.False(t, ValidateTOTPCode("12345", secret))
}

func TestDisplayTOTPSetup(t *testing.T) {
	secret, err := GenerateTOTPSecret()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, DisplayTOTPSetup(&buf, "laptop", secret))
	require.Contains(t, buf.String(), secret)
}

func TestLoadTOTPSecretMissing(t *testing.T) {
	_, err := LoadTOTPSecret(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
