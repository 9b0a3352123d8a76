// Command edgecore is the process entrypoint: cobra-based CLI promoting the
// teacher's single linear main() (decrypt key -> load config -> dial RPC ->
// build Blackhole -> RunStrategy1 -> drain report channel) into named
// subcommands, mirroring the CLI conventions of the rest of the retrieval
// pack rather than a bare func main.
package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	edgecore "github.com/duskrelay/edgecore"
	"github.com/duskrelay/edgecore/configs"
	"github.com/duskrelay/edgecore/internal/core"
	"github.com/duskrelay/edgecore/internal/oracle"
	"github.com/duskrelay/edgecore/internal/relay"
	"github.com/duskrelay/edgecore/internal/store"
	"github.com/duskrelay/edgecore/internal/telemetry"
	"github.com/duskrelay/edgecore/internal/util"
)

// Exit codes per spec.md §6.
const (
	exitOK                  = 0
	exitConfigError         = 1
	exitSchemaIncompatible  = 2
	exitSignerFailure       = 3
	exitIrrecoverableChain  = 4
	exitOperatorInterrupt   = 130
)

var (
	configPath string
	envPath    string
)

func main() {
	root := &cobra.Command{
		Use:   "edgecore",
		Short: "Multi-strategy MEV/arbitrage/sandwich/copy-trading engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to the structured configuration document")
	root.PersistentFlags().StringVar(&envPath, "env-file", ".env", "optional .env file sourced before config load")

	root.AddCommand(runCmd(), migrateCmd(), backupCmd(), healthcheckCmd())

	if err := root.Execute(); err != nil {
		os.Exit(exitConfigError)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start mempool ingestion and every enabled strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(doRun())
			return nil
		},
	}
}

func doRun() int {
	cfg, err := configs.Load(configPath, envPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "edgecore: config error:", err)
		return exitConfigError
	}

	log := telemetry.NewLogger(cfg.Logging.Level, cfg.Logging.Pretty)
	metrics := telemetry.NewRegistry()

	signer, err := loadSigner(cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to load signer")
		return exitSignerFailure
	}

	providers := []oracle.Provider{} // populated from configs.Config in a future revision; none wired by default
	endpoints := relayEndpoints(cfg, signer)

	eng, err := edgecore.New(cfg, log, metrics, nil, nil, providers, endpoints, signer, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to construct engine")
		return exitIrrecoverableChain
	}
	defer eng.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("engine exited with error")
		return exitIrrecoverableChain
	}
	if ctx.Err() != nil {
		log.Info().Msg("operator interrupt received, shutting down")
		return exitOperatorInterrupt
	}
	return exitOK
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Durable Store schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configs.Load(configPath, envPath)
			if err != nil {
				fmt.Fprintln(os.Stderr, "edgecore: config error:", err)
				os.Exit(exitConfigError)
			}
			if _, err := store.New(cfg.Persistence.DBPath, nil); err != nil {
				fmt.Fprintln(os.Stderr, "edgecore: migration failed:", err)
				os.Exit(exitSchemaIncompatible)
			}
			fmt.Println("edgecore: schema up to date at version", store.CurrentSchemaVersion())
			return nil
		},
	}
}

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Check that persistence.backup_dir is configured (no backup is written)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configs.Load(configPath, envPath)
			if err != nil {
				fmt.Fprintln(os.Stderr, "edgecore: config error:", err)
				os.Exit(exitConfigError)
			}
			if cfg.Persistence.BackupDir == "" {
				fmt.Fprintln(os.Stderr, "edgecore: persistence.backup_dir not configured")
				os.Exit(exitConfigError)
			}
			fmt.Println("edgecore: persistence.backup_dir is configured; this build writes no backup files")
			return nil
		},
	}
}

func healthcheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Verify configuration, signer, and schema without starting strategies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configs.Load(configPath, envPath)
			if err != nil {
				fmt.Fprintln(os.Stderr, "edgecore: config error:", err)
				os.Exit(exitConfigError)
			}
			if _, err := loadSigner(cfg); err != nil {
				fmt.Fprintln(os.Stderr, "edgecore: signer error:", err)
				os.Exit(exitSignerFailure)
			}
			s, err := store.New(cfg.Persistence.DBPath, nil)
			if err != nil {
				fmt.Fprintln(os.Stderr, "edgecore: schema error:", err)
				os.Exit(exitSchemaIncompatible)
			}
			_ = s.Close()
			fmt.Println("edgecore: healthy")
			return nil
		},
	}
}

// loadSigner resolves cfg.Chains.PrivateKeySource, which is either
// "env:VARNAME" (plaintext key material in an environment variable, for
// local development) or "keystore:///path" (an AES-256-GCM-sealed key file
// whose decryption key comes from the EDGECORE_SIGNER_KEY environment
// variable) — generalizing the teacher's ENC_PK/KEY env-var pair into one
// source string so multiple signer backends can share the same config
// field.
func loadSigner(cfg *configs.Config) (*ecdsa.PrivateKey, error) {
	source := cfg.Chains.PrivateKeySource
	switch {
	case len(source) > len("env:") && source[:4] == "env:":
		hexKey := os.Getenv(source[4:])
		if hexKey == "" {
			return nil, fmt.Errorf("edgecore: env var %s not set", source[4:])
		}
		return crypto.HexToECDSA(hexKey)
	case len(source) > len("keystore://") && source[:11] == "keystore://":
		path := source[11:]
		sealed, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("edgecore: read keystore %s: %w", path, err)
		}
		key := os.Getenv("EDGECORE_SIGNER_KEY")
		if key == "" {
			return nil, fmt.Errorf("edgecore: EDGECORE_SIGNER_KEY not set")
		}
		plain, err := util.Decrypt([]byte(key), sealed)
		if err != nil {
			return nil, fmt.Errorf("edgecore: decrypt keystore: %w", err)
		}
		return crypto.ToECDSA(plain)
	default:
		return nil, fmt.Errorf("edgecore: unrecognized private_key_source %q", source)
	}
}

func relayEndpoints(cfg *configs.Config, signer *ecdsa.PrivateKey) map[core.Relay]relay.Endpoint {
	endpoints := make(map[core.Relay]relay.Endpoint)
	if cfg.Relays.FlashbotsEndpoint != "" {
		endpoints[core.RelayFlashbots] = &relay.FlashbotsEndpoint{URL: cfg.Relays.FlashbotsEndpoint, ReputationKey: signer}
	}
	if cfg.Relays.JitoBlockEngine != "" {
		endpoints[core.RelayJito] = &relay.JitoEndpoint{URL: cfg.Relays.JitoBlockEngine}
	}
	if cfg.Relays.BloxrouteEndpoint != "" {
		endpoints[core.RelayBloxRoute] = &relay.BloxRouteEndpoint{URL: cfg.Relays.BloxrouteEndpoint}
	}
	if cfg.Relays.PublicFallback {
		endpoints[core.RelayPublicMempool] = &relay.PublicMempoolEndpoint{}
	}
	return endpoints
}
