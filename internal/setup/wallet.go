package setup

import (
	"bytes"
	"fmt"

	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/sqmu-io/sqmu-dapp/internal/helpers"
	"github.com/sqmu-io/sqmu-dapp/internal/wallet/local"
)

// ensureWallet offers to create or import the signing key on first run.
// Declining leaves the app running; connects then report no provider.
func ensureWallet(store *local.KeyStore, p *helpers.Prompter) error {
	if store.Exists() {
		log.Info("wallet key found", "path", store.Path)
		return nil
	}

	ok, err := p.YesNo(fmt.Sprintf("No wallet key at %s. Create one now?", store.Path))
	if err != nil || !ok {
		log.Warn("running without a wallet key", "path", store.Path)
		return nil
	}

	hexKey := p.LineWithDefault("Private key to import (empty generates one)", "")

	pw, err := local.EnvPassphrase(func() ([]byte, error) {
		return confirmPassphrase(p)
	})()
	if err != nil {
		return err
	}
	defer helpers.ZeroBytes(pw)

	addr, err := store.Create(pw, hexKey)
	if err != nil {
		return err
	}
	log.Info("wallet created", "address", addr.Hex(), "path", store.Path)
	return nil
}

func confirmPassphrase(p *helpers.Prompter) ([]byte, error) {
	pw, err := p.Passphrase("New wallet passphrase: ")
	if err != nil {
		return nil, err
	}
	again, err := p.Passphrase("Repeat passphrase: ")
	if err != nil {
		helpers.ZeroBytes(pw)
		return nil, err
	}
	defer helpers.ZeroBytes(again)
	if !bytes.Equal(pw, again) {
		helpers.ZeroBytes(pw)
		return nil, fmt.Errorf("passphrases do not match")
	}
	return pw, nil
}
