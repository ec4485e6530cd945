package setup

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quantumauth-io/quantum-go-utils/log"

	clientconfig "github.com/sqmu-io/sqmu-dapp/cmd/sqmu-dapp/config"
	"github.com/sqmu-io/sqmu-dapp/internal/chains"
	"github.com/sqmu-io/sqmu-dapp/internal/helpers"
	apihttp "github.com/sqmu-io/sqmu-dapp/internal/http"
	"github.com/sqmu-io/sqmu-dapp/internal/metrics"
	"github.com/sqmu-io/sqmu-dapp/internal/orchestrator"
	"github.com/sqmu-io/sqmu-dapp/internal/receipt"
	"github.com/sqmu-io/sqmu-dapp/internal/wallet"
	"github.com/sqmu-io/sqmu-dapp/internal/wallet/local"
	"github.com/sqmu-io/sqmu-dapp/internal/widgetconfig"
	"github.com/sqmu-io/sqmu-dapp/internal/widgets"
)

type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

func Run(ctx context.Context, build BuildInfo) error {
	log.Info("sqmu-dapp",
		"version", build.Version,
		"commit", build.Commit,
		"build_date", build.BuildDate,
	)

	// ---- Config
	if err := loadDotEnv(); err != nil {
		log.Warn("ignoring .env", "error", err)
	}
	cfg, err := clientconfig.Load()
	if err != nil {
		return err
	}

	// ---- Chains
	chainSvc, err := chains.NewService(cfg.Chains)
	if err != nil {
		return err
	}
	defer chainSvc.Close()

	// ---- Wallet key
	prompter := helpers.NewTerminalPrompter()
	store, err := local.NewKeyStore(cfg.Wallet.KeyFile)
	if err != nil {
		return err
	}
	if err := ensureWallet(store, prompter); err != nil {
		return err
	}
	keys := &local.FileKey{
		Store:      store,
		Passphrase: local.EnvPassphrase(func() ([]byte, error) { return prompter.Passphrase("Wallet passphrase: ") }),
	}
	var approver local.Approver = local.PromptApprover{Prompter: prompter}
	if cfg.Wallet.AutoApprove {
		log.Warn("wallet requests are auto-approved")
		approver = local.AutoApprove
	}

	// ---- Widgets
	planned, err := planWidgets(cfg.Widgets, cfg.Chains, widgetconfig.NewInitGuard())
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	var receipts orchestrator.ReceiptSender
	if cfg.Receipts.Enabled {
		sender := receipt.NewSender(receipt.DefaultEndpoints(), &http.Client{Timeout: cfg.Receipts.Timeout})
		defer sender.Wait()
		receipts = sender
	}

	manager, err := widgets.NewManager(planned, widgets.Deps{
		Chains: chainSvc,
		Connectors: func(wc widgetconfig.Resolved) wallet.Connector {
			return &local.Connector{
				Keys:                keys,
				Approver:            approver,
				Chains:              chainSvc,
				StartChainID:        wc.Chain.ChainID,
				Origin:              wc.DappName,
				ConfirmTransactions: cfg.Wallet.ConfirmTransactions,
			}
		},
		Receipts: receipts,
		Metrics:  m,
	})
	if err != nil {
		return err
	}

	// ---- HTTP server
	router := apihttp.NewRouter(manager, apihttp.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		LocalOnly:      cfg.Server.LocalOnly,
		Metrics:        m,
		Gatherer:       prometheus.DefaultGatherer,
	})

	listenAddr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", "addr", listenAddr, "widgets", len(planned))
		if serr := server.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", serr)
		}
	}()

	// ---- graceful shutdown
	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if serr := server.Shutdown(shutdownCtx); serr != nil {
		log.Error("HTTP server shutdown failed", "error", serr)
	} else {
		log.Info("HTTP server gracefully stopped")
	}
	manager.Close(shutdownCtx)
	return nil
}

// loadDotEnv applies the given env files, .env by default. A missing file is
// not an error.
func loadDotEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
