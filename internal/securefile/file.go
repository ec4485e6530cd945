// Package securefile stores JSON documents encrypted under a passphrase.
// Keys are derived with Argon2id and sealed with XChaCha20-Poly1305.
package securefile

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/sqmu-io/sqmu-dapp/internal/constants"
)

var (
	// ErrWrongPassphrase is deliberately vague: a bad passphrase and a
	// tampered file look the same.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted file")
	ErrNotFound        = errors.New("file not found")
)

const envelopeVersion = 1

// Envelope is the on-disk JSON form.
type Envelope struct {
	Version int `json:"version"`

	ArgonTime    uint32 `json:"argon_time"`
	ArgonMemory  uint32 `json:"argon_memory_kib"`
	ArgonThreads uint8  `json:"argon_threads"`
	ArgonKeyLen  uint32 `json:"argon_key_len"`

	Salt       string `json:"salt_b64"`
	Nonce      string `json:"nonce_b64"`
	Ciphertext string `json:"ct_b64"`
}

// KDF tunes Argon2id. Tests use a cheap setting.
type KDF struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

var DefaultKDF = KDF{Time: 2, Memory: 64 * 1024, Threads: 1, KeyLen: 32}

// Options controls encryption behavior. The zero value uses DefaultKDF, the
// app's file modes and no associated data.
type Options struct {
	KDF KDF
	// AAD must be identical on write and read.
	AAD []byte
}

func (o Options) kdf() KDF {
	if o.KDF.KeyLen == 0 {
		return DefaultKDF
	}
	return o.KDF
}

// WriteEncryptedJSON marshals v, seals it and writes it atomically to path.
func WriteEncryptedJSON[T any](path string, v T, passphrase []byte, opts Options) error {
	if len(passphrase) == 0 {
		return errors.New("securefile: empty passphrase")
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.DirectoryPerm); err != nil {
		return fmt.Errorf("securefile: mkdir %s: %w", filepath.Dir(path), err)
	}

	plain, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("securefile: marshal: %w", err)
	}

	env, err := seal(plain, passphrase, opts)
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("securefile: marshal envelope: %w", err)
	}
	return AtomicWriteFile(path, b, constants.FilePerm)
}

// ReadEncryptedJSON reads and opens path into a T.
func ReadEncryptedJSON[T any](path string, passphrase []byte, opts Options) (T, error) {
	var zero T

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return zero, fmt.Errorf("securefile: %w: %s", ErrNotFound, path)
	}
	if err != nil {
		return zero, fmt.Errorf("securefile: read: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return zero, fmt.Errorf("securefile: unmarshal envelope: %w", err)
	}

	plain, err := open(env, passphrase, opts)
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(plain, &out); err != nil {
		return zero, fmt.Errorf("securefile: unmarshal: %w", err)
	}
	return out, nil
}

func seal(plain, passphrase []byte, opts Options) (Envelope, error) {
	k := opts.kdf()

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return Envelope{}, fmt.Errorf("securefile: salt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(argon2.IDKey(passphrase, salt, k.Time, k.Memory, k.Threads, k.KeyLen))
	if err != nil {
		return Envelope{}, fmt.Errorf("securefile: aead: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{}, fmt.Errorf("securefile: nonce: %w", err)
	}

	return Envelope{
		Version:      envelopeVersion,
		ArgonTime:    k.Time,
		ArgonMemory:  k.Memory,
		ArgonThreads: k.Threads,
		ArgonKeyLen:  k.KeyLen,
		Salt:         base64.StdEncoding.EncodeToString(salt),
		Nonce:        base64.StdEncoding.EncodeToString(nonce),
		Ciphertext:   base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, plain, opts.AAD)),
	}, nil
}

func open(env Envelope, passphrase []byte, opts Options) ([]byte, error) {
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("securefile: unsupported version %d", env.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("securefile: decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("securefile: decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("securefile: decode ciphertext: %w", err)
	}

	key := argon2.IDKey(passphrase, salt, env.ArgonTime, env.ArgonMemory, env.ArgonThreads, env.ArgonKeyLen)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("securefile: aead: %w", err)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrWrongPassphrase
	}

	plain, err := aead.Open(nil, nonce, ct, opts.AAD)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plain, nil
}

// AtomicWriteFile writes through a temp file and a rename.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("securefile: write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("securefile: rename: %w", err)
	}
	return nil
}

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ConfigPathCandidates returns where app's filename may live, best first:
// $SNAP_REAL_HOME/.config/<app>, $HOME/.config/<app>, then the OS config dir.
// SQMU_ENV=local|develop adds a profile subfolder.
func ConfigPathCandidates(app, filename string) ([]string, error) {
	if app == "" || filename == "" {
		return nil, errors.New("securefile: app and filename must not be empty")
	}
	profile, err := envProfile()
	if err != nil {
		return nil, err
	}

	var paths []string
	seen := map[string]bool{}
	add := func(dir string) {
		if profile != "" {
			dir = filepath.Join(dir, profile)
		}
		p := filepath.Join(dir, filename)
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	if realHome := os.Getenv("SNAP_REAL_HOME"); realHome != "" {
		add(filepath.Join(realHome, ".config", app))
	}
	if home := os.Getenv("HOME"); home != "" {
		add(filepath.Join(home, ".config", app))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		add(filepath.Join(dir, app))
	} else if len(paths) == 0 {
		return nil, fmt.Errorf("securefile: user config dir: %w", err)
	}
	return paths, nil
}

// ResolvePath picks the first existing candidate, else the first candidate.
func ResolvePath(app, filename string) (string, error) {
	cands, err := ConfigPathCandidates(app, filename)
	if err != nil {
		return "", err
	}
	for _, p := range cands {
		if Exists(p) {
			return p, nil
		}
	}
	return cands[0], nil
}

func envProfile() (string, error) {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(constants.EnvPrefix + "_ENV")))
	switch raw {
	case "", "prod", "production":
		return "", nil
	case "local":
		return "local", nil
	case "dev", "develop", "development":
		return "develop", nil
	default:
		return "", fmt.Errorf("securefile: invalid %s_ENV %q (allowed: local, develop, empty)", constants.EnvPrefix, raw)
	}
}
