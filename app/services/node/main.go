package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/platopia-network/platopia/app/services/node/handlers"
	"github.com/platopia-network/platopia/foundation/blockchain/assembler"
	"github.com/platopia-network/platopia/foundation/blockchain/database"
	"github.com/platopia-network/platopia/foundation/blockchain/state"
	"github.com/platopia-network/platopia/foundation/events"
	"github.com/platopia-network/platopia/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set at build time with
// -ldflags "-X main.build=...".
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
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
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
		}
		Node struct {
			Chain                   string `conf:"default:main"`
			MinerThreads            int    `conf:"default:-1"`
			StartMining             bool   `conf:"default:false"`
			CoinbaseScript          string `conf:"default:76a914d21f0e6dce303eb06350458d400d8b582c65562988ac"`
			MaxGeneratedBlockSize   uint64 `conf:"default:2000000"`
			BlockMinFeeRate         int64  `conf:"default:1000"`
			BlockPriorityPercentage uint8  `conf:"default:5"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	const prefix = "NODE"
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

	fmt.Println(`  ____  _        _  _____ ___  ____ ___    _    `)
	fmt.Println(` |  _ \| |      / \|_   _/ _ \|  _ \_ _|  / \   `)
	fmt.Println(` | |_) | |     / _ \ | || | | | |_) | |  / _ \  `)
	fmt.Println(` |  __/| |___ / ___ \| || |_| |  __/| | / ___ \ `)
	fmt.Println(` |_|   |_____/_/   \_\_| \___/|_|  |___/_/   \_\`)
	fmt.Print("\n")

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Blockchain Support

	coinbaseScript, err := hex.DecodeString(cfg.Node.CoinbaseScript)
	if err != nil {
		return fmt.Errorf("decoding coinbase script: %w", err)
	}

	// The blockchain packages accept a function of this signature to allow
	// the application to log. These raw messages are also sent to any
	// websocket client connected through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	st, err := state.New(state.Config{
		ChainName:               cfg.Node.Chain,
		EvHandler:               ev,
		Wallet:                  scriptWallet{script: coinbaseScript},
		MinerThreads:            cfg.Node.MinerThreads,
		MaxGeneratedBlockSize:   cfg.Node.MaxGeneratedBlockSize,
		BlockMinFeeRate:         assembler.FeeRate(cfg.Node.BlockMinFeeRate),
		BlockPriorityPercentage: cfg.Node.BlockPriorityPercentage,
		Notify: func(blockHash database.Hash) {
			evts.Send(fmt.Sprintf("block mined: %s", blockHash))
		},
	})
	if err != nil {
		return err
	}
	defer st.Shutdown()

	log.Infow("startup", "status", "chain selected", "chain", st.Params().Name,
		"genesis", st.Params().GenesisHash, "port", st.Params().DefaultPort)

	if cfg.Node.StartMining {
		st.StartMining(cfg.Node.MinerThreads)
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)

	debugMux := handlers.DebugMux(build, log)

	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Evts:     evts,
	})

	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// =============================================================================

// scriptWallet is the minimal wallet collaborator for a node without key
// management: a fixed payout script and no tracked deposits.
type scriptWallet struct {
	script []byte
}

// Script returns the configured payout script.
func (w scriptWallet) Script() ([]byte, error) {
	if len(w.script) == 0 {
		return nil, state.ErrKeypoolEmpty
	}
	return w.script, nil
}

// KeepScript is a no-op for a fixed script.
func (w scriptWallet) KeepScript() {}

// BlockRequestReset is a no-op without request tracking.
func (w scriptWallet) BlockRequestReset(blockHash database.Hash) {}

// Deposits reports no deposits for a script-only wallet.
func (w scriptWallet) Deposits() []state.Deposit { return nil }
