// Package edgecore wires the twelve components spec.md §4 describes into
// one running process, mirroring the teacher's root blackholedex package:
// a struct holding every dependency (Blackhole's ccm/tl/recorder become
// Engine's adapters/decoder/store/...), constructed once in New and driven
// by one Run* method per strategy (Blackhole.RunStrategy1 becomes
// Engine.RunArbitrage/RunSandwich/RunCopy).
package edgecore

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/duskrelay/edgecore/configs"
	"github.com/duskrelay/edgecore/internal/bundle"
	"github.com/duskrelay/edgecore/internal/chain"
	"github.com/duskrelay/edgecore/internal/core"
	"github.com/duskrelay/edgecore/internal/decoder"
	"github.com/duskrelay/edgecore/internal/gas"
	"github.com/duskrelay/edgecore/internal/mempool"
	"github.com/duskrelay/edgecore/internal/opportunity"
	"github.com/duskrelay/edgecore/internal/oracle"
	"github.com/duskrelay/edgecore/internal/relay"
	"github.com/duskrelay/edgecore/internal/risk"
	"github.com/duskrelay/edgecore/internal/route"
	"github.com/duskrelay/edgecore/internal/store"
	"github.com/duskrelay/edgecore/internal/telemetry"
	"github.com/duskrelay/edgecore/internal/validator"
)

// Engine owns every component for the lifetime of the process and is the
// single place strategies reach into shared state (route graph, gas
// tracker, risk governor) from.
type Engine struct {
	cfg     *configs.Config
	log     zerolog.Logger
	metrics *telemetry.Registry

	adapters map[core.ChainId]chain.Adapter
	monitors map[core.ChainId]*mempool.Monitor

	decoder         *decoder.Decoder
	routeEngine     *route.Engine
	oracle          *oracle.Oracle
	gasTracker      *gas.Tracker
	oppCore         *opportunity.Core
	validatorLimits validator.Limits
	bundleBuilder   *bundle.Builder
	relaySubmitter  *relay.Submitter
	riskGovernor    *risk.Governor
	store           *store.Store

	signer *ecdsa.PrivateKey
}

// New constructs every component from cfg but starts nothing — Run does
// that. routers configures the Transaction Decoder's known router/program
// addresses per chain; priorityPairs seeds the Route Engine's precompute
// set; providers feed the Price Oracle; signer signs every EVM bundle leg
// and every Flashbots reputation header.
func New(
	cfg *configs.Config,
	log zerolog.Logger,
	metrics *telemetry.Registry,
	routers []decoder.RouterSpec,
	priorityPairs []route.PriorityPair,
	providers []oracle.Provider,
	endpoints map[core.Relay]relay.Endpoint,
	signer *ecdsa.PrivateKey,
	checker relay.InclusionChecker,
) (*Engine, error) {
	adapters, err := dialAdapters(cfg)
	if err != nil {
		return nil, fmt.Errorf("edgecore: dial chain adapters: %w", err)
	}

	oracleCache, err := badger.Open(badger.DefaultOptions(cfg.Persistence.DBPath + "/oracle-cache"))
	if err != nil {
		return nil, fmt.Errorf("edgecore: open oracle cache: %w", err)
	}
	routeSnapshots, err := badger.Open(badger.DefaultOptions(cfg.Persistence.DBPath + "/route-snapshots"))
	if err != nil {
		return nil, fmt.Errorf("edgecore: open route snapshot store: %w", err)
	}

	var routeEnc *store.Encryptor
	if cfg.Persistence.EncryptionEnabled {
		routeEnc = store.NewEncryptor([]byte(cfg.Chains.PrivateKeySource))
	}
	db, err := store.New(cfg.Persistence.DBPath, routeEnc)
	if err != nil {
		return nil, fmt.Errorf("edgecore: open durable store: %w", err)
	}

	targetWallets := make(map[string]bool, len(cfg.Strategy.CopyTargetWallets))
	for _, w := range cfg.Strategy.CopyTargetWallets {
		targetWallets[w] = true
	}
	monitors := make(map[core.ChainId]*mempool.Monitor, len(adapters))
	for chainID, adapter := range adapters {
		monitors[chainID] = mempool.NewMonitor(adapter, mempool.Filter{TargetWallets: targetWallets})
	}

	minProfit := parseBigIntOrZero(cfg.Risk.MaxPositionSizeNative)
	maxPosition := parseBigIntOrZero(cfg.Risk.MaxPositionSizeNative)
	maxDailyLoss := parseBigIntOrZero(cfg.Risk.MaxDailyLossNative)

	thresholds := map[core.StrategyKind]opportunity.Thresholds{
		core.StrategyArbitrage: {MinProfitNative: minProfit, MinConfidence: cfg.Trading.MinConfidence},
		core.StrategySandwich:  {MinProfitNative: minProfit, MinConfidence: cfg.Trading.MinConfidence},
		core.StrategyCopy:      {MinProfitNative: big.NewInt(0), MinConfidence: cfg.Trading.MinConfidence},
	}

	gasTracker := gas.New()

	return &Engine{
		cfg:         cfg,
		log:         log,
		metrics:     metrics,
		adapters:    adapters,
		monitors:    monitors,
		decoder:     decoder.New(routers),
		routeEngine: route.New(routeSnapshots, priorityPairs),
		oracle:      oracle.New(providers, oracleCache, 5),
		gasTracker:  gasTracker,
		oppCore:     opportunity.New(thresholds),
		validatorLimits: validator.Limits{
			MaxPriceImpactBps:     cfg.Trading.MaxSlippageBps,
			MaxOracleDeviationBps: cfg.Trading.OracleDeviationBandBps,
		},
		bundleBuilder:  bundle.New(gasTracker, bundle.TipBounds{MinNative: big.NewInt(0), MaxPctOfProfit: 20}),
		relaySubmitter: relay.New(endpoints, adapters, signer, checker),
		riskGovernor: risk.New(risk.Limits{
			MaxPositionSizeNative: maxPosition,
			MaxDailyLossNative:    maxDailyLoss,
			AlertAfterConsecutive: 3,
			KillAfterConsecutive:  6,
		}),
		store:  db,
		signer: signer,
	}, nil
}

func parseBigIntOrZero(s string) *big.Int {
	if s == "" {
		return big.NewInt(0)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}

// Run starts every enabled strategy's loop plus the background Route
// Engine precompute timer and per-chain mempool monitors, returning when
// ctx is cancelled or any loop returns a non-nil error (errgroup's
// first-error-wins, mirroring spec.md §5's cooperative cancellation).
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for chainID, mon := range e.monitors {
		mon := mon
		chainID := chainID
		g.Go(func() error {
			if err := mon.Run(ctx); err != nil && ctx.Err() == nil {
				e.log.Error().Err(err).Str("chain", string(chainID)).Msg("mempool monitor exited")
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		return e.routeEngine.StartPrecompute(ctx, e.cfg.RoutePrecomputeInterval())
	})

	if e.cfg.Strategy.ArbitrageEnabled {
		g.Go(func() error { return e.RunArbitrage(ctx) })
	}
	if e.cfg.Strategy.SandwichEnabled {
		g.Go(func() error { return e.RunSandwich(ctx) })
	}
	if e.cfg.Strategy.CopyEnabled {
		g.Go(func() error { return e.RunCopy(ctx) })
	}

	return g.Wait()
}

// signerAddress returns the EVM address of the configured signing key, used
// as every EVM Bundle's Signer field and the searcher address in Flashbots
// reputation headers. Empty on chains/processes with no EVM signer loaded.
func (e *Engine) signerAddress() string {
	if e.signer == nil {
		return ""
	}
	return crypto.PubkeyToAddress(e.signer.PublicKey).Hex()
}

// Close closes the Durable Store. Call after Run returns. The badger stores
// New opens for the oracle cache and the route snapshots are not closed here.
func (e *Engine) Close() error {
	return e.store.Close()
}

func dialAdapters(cfg *configs.Config) (map[core.ChainId]chain.Adapter, error) {
	adapters := make(map[core.ChainId]chain.Adapter, len(cfg.Chains.Enabled))
	for _, name := range cfg.Chains.Enabled {
		chainID := core.ChainId(name)
		endpoint, ok := cfg.Chains.RPCEndpoints[name]
		if !ok {
			return nil, fmt.Errorf("edgecore: no endpoint configured for chain %s", name)
		}
		switch chainID.Family() {
		case core.FamilyEVM:
			client, err := ethclient.Dial(endpoint.RPCEndpoint)
			if err != nil {
				return nil, fmt.Errorf("edgecore: dial %s: %w", name, err)
			}
			adapters[chainID] = chain.NewEVMAdapter(chainID, client)
		case core.FamilySolana:
			adapters[chainID] = chain.NewSolanaAdapter(endpoint.RPCEndpoint, endpoint.WSEndpoint)
		default:
			return nil, fmt.Errorf("edgecore: unrecognized chain family for %s", name)
		}
	}
	return adapters, nil
}
