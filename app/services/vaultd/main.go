package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/vaults/business/core/inbox"
	"github.com/ardanlabs/vaults/business/core/node"
	"github.com/ardanlabs/vaults/foundation/events"
	"github.com/ardanlabs/vaults/foundation/logger"
	"github.com/ardanlabs/vaults/foundation/vault/state"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("VAULTD")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Vaults struct {
			Self            string `conf:"default:vaults.sx"`
			TokenContract   string `conf:"default:token.sx"`
			NativeCode      string `conf:"default:EOS"`
			NativePrecision uint8  `conf:"default:4"`
			NativeContract  string `conf:"default:eosio.token"`
			Ratio           int64  `conf:"default:10000"`
			Trusted         bool   `conf:"default:false"`
		}
		Store struct {
			DataDir     string `conf:"default:zvault/"`
			PostgresDSN string `conf:"mask"`
		}
		Inbox struct {
			PollInterval time.Duration `conf:"default:2s"`
			Journal      string        `conf:"default:zvault/receipts.jsonl"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "liquidity vaults service",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "VAULTD"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Vault Support

	// The vault packages accept a function of this signature to allow the
	// application to log.
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s)
	}

	// Every committed unit of work is published as a receipt so it can be
	// journaled.
	evts := events.New[state.Receipt]()

	ctx := context.Background()

	n, err := node.Open(ctx, node.Config{
		DataDir:       cfg.Store.DataDir,
		PostgresDSN:   cfg.Store.PostgresDSN,
		Self:          cfg.Vaults.Self,
		TokenContract: cfg.Vaults.TokenContract,
		NativeSymbol:  fmt.Sprintf("%d,%s@%s", cfg.Vaults.NativePrecision, cfg.Vaults.NativeCode, cfg.Vaults.NativeContract),
		Ratio:         cfg.Vaults.Ratio,
		Trusted:       cfg.Vaults.Trusted,
		Receipts:      evts,
		EvHandler:     ev,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := n.Close(); err != nil {
			log.Errorw("shutdown", "status", "closing node", "ERROR", err)
		}
	}()

	// Logging the accounts for documentation in the logs.
	for address, name := range n.NS.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "address", address)
	}

	journal, err := startJournal(log, cfg.Inbox.Journal, evts.Acquire("journal"))
	if err != nil {
		return err
	}

	processor, err := inbox.New(ctx, inbox.Config{
		Dir:       n.InboxPath(),
		State:     n.State,
		Sheet:     n.Sheet,
		Storage:   n.Storage,
		EvHandler: ev,
	})
	if err != nil {
		return err
	}

	log.Infow("startup", "status", "inbox worker started", "inbox", n.InboxPath(), "interval", cfg.Inbox.PollInterval)
	worker := inbox.Run(processor, cfg.Inbox.PollInterval)

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Blocking main and waiting for shutdown.
	var fatal error
	select {
	case err := <-worker.Fatal():
		log.Errorw("shutdown", "status", "vault books are broken", "ERROR", err)
		fatal = fmt.Errorf("inbox worker: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)
	}

	log.Infow("shutdown", "status", "stopping inbox worker")
	worker.Shutdown()

	// Closing the receipt channels lets the journal drain and exit.
	log.Infow("shutdown", "status", "shutdown receipt channels")
	evts.Shutdown()
	<-journal

	return fatal
}
