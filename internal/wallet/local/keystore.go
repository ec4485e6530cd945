package local

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/sqmu-io/sqmu-dapp/internal/constants"
	"github.com/sqmu-io/sqmu-dapp/internal/securefile"
)

// ErrNoKey means no wallet key has been created yet.
var ErrNoKey = errors.New("no wallet key file")

// KeyFile is the plaintext inside the encrypted wallet file.
type KeyFile struct {
	Version    int    `json:"version"`
	Address    string `json:"address"`
	PrivKeyHex string `json:"priv_key_hex"`
	CreatedAt  string `json:"created_at,omitempty"`
}

func (k KeyFile) privateKey() (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimPrefix(k.PrivKeyHex, "0x"), "0X"))
	if err != nil {
		return nil, fmt.Errorf("local: decode private key: %w", err)
	}
	if addr := crypto.PubkeyToAddress(key.PublicKey); !strings.EqualFold(addr.Hex(), k.Address) {
		return nil, fmt.Errorf("local: key file address %s does not match key %s", k.Address, addr.Hex())
	}
	return key, nil
}

// KeyStore reads and writes the encrypted key file.
type KeyStore struct {
	Path string
	Opts securefile.Options
}

// NewKeyStore uses path, or the app config dir when path is empty.
func NewKeyStore(path string) (*KeyStore, error) {
	if strings.TrimSpace(path) == "" {
		p, err := securefile.ResolvePath(constants.AppName, constants.WalletFile)
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &KeyStore{
		Path: path,
		Opts: securefile.Options{AAD: []byte(constants.WalletAAD)},
	}, nil
}

func (s *KeyStore) Exists() bool { return securefile.Exists(s.Path) }

func (s *KeyStore) Load(passphrase []byte) (*ecdsa.PrivateKey, error) {
	kf, err := securefile.ReadEncryptedJSON[KeyFile](s.Path, passphrase, s.Opts)
	if errors.Is(err, securefile.ErrNotFound) {
		return nil, fmt.Errorf("local: %w at %s", ErrNoKey, s.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("local: load wallet %s: %w", s.Path, err)
	}
	return kf.privateKey()
}

// Create generates a new key, or imports hexKey when it is not empty. An
// existing file is never overwritten.
func (s *KeyStore) Create(passphrase []byte, hexKey string) (common.Address, error) {
	if s.Exists() {
		return common.Address{}, fmt.Errorf("local: wallet already exists at %s", s.Path)
	}

	var (
		key *ecdsa.PrivateKey
		err error
	)
	if hexKey = strings.TrimSpace(hexKey); hexKey != "" {
		key, err = crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	} else {
		key, err = crypto.GenerateKey()
	}
	if err != nil {
		return common.Address{}, fmt.Errorf("local: key: %w", err)
	}

	addr := crypto.PubkeyToAddress(key.PublicKey)
	kf := KeyFile{
		Version:    1,
		Address:    addr.Hex(),
		PrivKeyHex: fmt.Sprintf("%x", crypto.FromECDSA(key)),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := securefile.WriteEncryptedJSON(s.Path, kf, passphrase, s.Opts); err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

// KeySource hands the provider its signing key.
type KeySource interface {
	Key(ctx context.Context) (*ecdsa.PrivateKey, error)
}

// StaticKey is an in-memory key.
type StaticKey struct{ PrivateKey *ecdsa.PrivateKey }

func (k StaticKey) Key(ctx context.Context) (*ecdsa.PrivateKey, error) {
	if k.PrivateKey == nil {
		return nil, ErrNoKey
	}
	return k.PrivateKey, nil
}

// PassphraseFunc supplies the passphrase for the key file.
type PassphraseFunc func() ([]byte, error)

// EnvPassphrase reads the passphrase from the environment, falling back to
// prompt when the variable is unset.
func EnvPassphrase(prompt PassphraseFunc) PassphraseFunc {
	return func() ([]byte, error) {
		if v, ok := os.LookupEnv(constants.PassphraseEnv); ok && v != "" {
			return []byte(v), nil
		}
		if prompt == nil {
			return nil, fmt.Errorf("local: %s is not set", constants.PassphraseEnv)
		}
		return prompt()
	}
}

// FileKey unlocks the key file once and keeps the key for later connects.
type FileKey struct {
	Store      *KeyStore
	Passphrase PassphraseFunc

	mu  sync.Mutex
	key *ecdsa.PrivateKey
}

func (f *FileKey) Key(ctx context.Context) (*ecdsa.PrivateKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.key != nil {
		return f.key, nil
	}
	if !f.Store.Exists() {
		return nil, fmt.Errorf("local: %w at %s", ErrNoKey, f.Store.Path)
	}
	if f.Passphrase == nil {
		return nil, errors.New("local: no passphrase source")
	}

	pw, err := f.Passphrase()
	if err != nil {
		return nil, err
	}
	defer func() {
		for i := range pw {
			pw[i] = 0
		}
	}()

	key, err := f.Store.Load(pw)
	if err != nil {
		return nil, err
	}
	f.key = key
	return key, nil
}
