package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/scrypt"
	"golang.org/x/term"

	"gameforge/pkg/logx"
)

// Secrets file layout: [salt][nonce][ciphertext+tag].
const (
	secretsDirName  = ".gameforge"
	secretsFileName = "secrets.json.enc"
	saltSize        = 16
	nonceSize       = 12
	gcmTagSize      = 16
	scryptN         = 32768 // 2^15
	scryptR         = 8
	scryptP         = 1
	keySize         = 32 // AES-256

	// PasswordEnv supplies the secrets password non-interactively.
	PasswordEnv = "GAMEFORGE_PASSWORD"
)

// ErrWrongPassword is returned when the secrets file cannot be opened.
var ErrWrongPassword = errors.New("decryption failed (wrong password or corrupted file)")

//nolint:gochecknoglobals // in-memory secrets for the lifetime of the process
var (
	decryptedSecrets    map[string]string
	decryptedSecretsMux sync.RWMutex
)

// DefaultSecretsPath returns ~/.gameforge/secrets.json.enc.
func DefaultSecretsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, secretsDirName, secretsFileName), nil
}

// SetDecryptedSecrets stores decrypted secrets in memory.
func SetDecryptedSecrets(secrets map[string]string) {
	decryptedSecretsMux.Lock()
	defer decryptedSecretsMux.Unlock()
	decryptedSecrets = secrets
}

// GetSecret returns a secret by name. The environment wins over the
// unlocked secrets file.
func GetSecret(name string) (string, error) {
	if value := os.Getenv(name); value != "" {
		return value, nil
	}

	decryptedSecretsMux.RLock()
	defer decryptedSecretsMux.RUnlock()
	if value, ok := decryptedSecrets[name]; ok && value != "" {
		return value, nil
	}
	return "", fmt.Errorf("secret %s not found in environment or secrets file", name)
}

// SecretNames lists the names (not values) held in memory, sorted.
func SecretNames() []string {
	decryptedSecretsMux.RLock()
	defer decryptedSecretsMux.RUnlock()

	names := make([]string, 0, len(decryptedSecrets))
	for name := range decryptedSecrets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SecretsFileExists reports whether path exists.
func SecretsFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// UnlockSecrets decrypts path into memory. A missing file is not an error.
func UnlockSecrets(path, password string) error {
	if !SecretsFileExists(path) {
		return nil
	}
	secrets, err := DecryptSecretsFile(path, password)
	if err != nil {
		return err
	}
	SetDecryptedSecrets(secrets)
	return nil
}

// ResolvePassword reads GAMEFORGE_PASSWORD, or prompts on the terminal
// attached to in. Non-terminal input without the variable is an error.
func ResolvePassword(in *os.File, prompt io.Writer) (string, error) {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal available; set %s", PasswordEnv)
	}
	fmt.Fprint(prompt, "Secrets password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// EncryptSecretsFile encrypts secrets to path with mode 0600.
func EncryptSecretsFile(path, password string, secrets map[string]string) error {
	if password == "" {
		return errors.New("secrets password cannot be empty")
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, wipe, err := newGCM(password, salt)
	if err != nil {
		return err
	}
	defer wipe()

	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("failed to marshal secrets: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	fileData := make([]byte, 0, saltSize+nonceSize+len(ciphertext))
	fileData = append(fileData, salt...)
	fileData = append(fileData, nonce...)
	fileData = append(fileData, ciphertext...)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create secrets directory: %w", err)
	}
	if err := os.WriteFile(path, fileData, 0o600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	return nil
}

// DecryptSecretsFile decrypts the secrets stored at path.
func DecryptSecretsFile(path, password string) (map[string]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets file: %w", err)
	}
	if info.Mode().Perm() != 0o600 {
		logx.Warnf("secrets file %s has permissions %04o, resetting to 0600", path, info.Mode().Perm())
		if err := os.Chmod(path, 0o600); err != nil {
			return nil, fmt.Errorf("failed to fix file permissions: %w", err)
		}
	}

	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}
	if len(fileData) < saltSize+nonceSize+gcmTagSize {
		return nil, errors.New("secrets file is corrupted or invalid format (too small)")
	}

	salt := fileData[:saltSize]
	nonce := fileData[saltSize : saltSize+nonceSize]
	ciphertext := fileData[saltSize+nonceSize:]

	gcm, wipe, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	defer wipe()

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}

	var secrets map[string]string
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secrets: %w", err)
	}
	if secrets == nil {
		secrets = map[string]string{}
	}
	return secrets, nil
}

// newGCM derives the key with scrypt. The returned func zeroes the key.
func newGCM(password string, salt []byte) (cipher.AEAD, func(), error) {
	passwordBytes := []byte(password)
	defer clear(passwordBytes)

	key, err := scrypt.Key(passwordBytes, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	wipe := func() { clear(key) }

	block, err := aes.NewCipher(key)
	if err != nil {
		wipe()
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		wipe()
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, wipe, nil
}
