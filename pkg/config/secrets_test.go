package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", secretsFileName)
	in := map[string]string{"OPENROUTER_API_KEY": "sk-or-1", "GOOGLE_GENAI_API_KEY": "g-1"}

	require.NoError(t, EncryptSecretsFile(path, "hunter2", in))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err := DecryptSecretsFile(path, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = DecryptSecretsFile(path, "wrong")
	assert.ErrorIs(t, err, ErrWrongPassword)
}

func TestDecryptFixesPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), secretsFileName)
	require.NoError(t, EncryptSecretsFile(path, "pw", map[string]string{}))
	require.NoError(t, os.Chmod(path, 0o644))

	out, err := DecryptSecretsFile(path, "pw")
	require.NoError(t, err)
	assert.Empty(t, out)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestDecryptRejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), secretsFileName)
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))

	_, err := DecryptSecretsFile(path, "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
}

func TestEncryptRequiresPassword(t *testing.T) {
	err := EncryptSecretsFile(filepath.Join(t.TempDir(), secretsFileName), "", nil)
	require.Error(t, err)
}

func TestGetSecretPrefersEnvironment(t *testing.T) {
	t.Cleanup(func() { SetDecryptedSecrets(nil) })
	SetDecryptedSecrets(map[string]string{"OPENROUTER_API_KEY": "from-file", "B": "b"})

	t.Setenv("OPENROUTER_API_KEY", "from-env")
	v, err := GetSecret("OPENROUTER_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	t.Setenv("OPENROUTER_API_KEY", "")
	v, err = GetSecret("OPENROUTER_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-file", v)

	_, err = GetSecret("MISSING_SECRET")
	require.Error(t, err)

	assert.Equal(t, []string{"B", "OPENROUTER_API_KEY"}, SecretNames())
}

func TestUnlockSecrets(t *testing.T) {
	t.Cleanup(func() { SetDecryptedSecrets(nil) })
	dir := t.TempDir()

	require.NoError(t, UnlockSecrets(filepath.Join(dir, "absent.enc"), "pw"))
	assert.Empty(t, SecretNames())

	path := filepath.Join(dir, secretsFileName)
	require.NoError(t, EncryptSecretsFile(path, "pw", map[string]string{"ANTHROPIC_API_KEY": "a"}))
	require.NoError(t, UnlockSecrets(path, "pw"))
	assert.Equal(t, []string{"ANTHROPIC_API_KEY"}, SecretNames())

	assert.ErrorIs(t, UnlockSecrets(path, "nope"), ErrWrongPassword)
}
