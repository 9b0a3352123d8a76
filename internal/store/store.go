// Package store is the Durable Store: a single relational database holding
// opportunities, executions, fills, risk events, and rolling telemetry
// samples (spec.md §4.12), reached through GORM exactly as the teacher's
// internal/db.MySQLRecorder reaches MySQL, generalized from one table to
// the full schema via a forward-only raw-SQL migration runner (see
// migrate.go) since AutoMigrate alone cannot express this schema's CHECK
// constraints and cascades.
package store

import (
	"encoding/json"
	"math/big"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/duskrelay/edgecore/internal/core"
	"github.com/duskrelay/edgecore/internal/xerrors"
)

// Store is the durable persistence layer. routeEnc, when non-nil, seals
// route_snapshot_json at rest; every other column is either an enumerated
// status or an on-chain value, neither of which spec.md §4.12 asks to be
// encrypted.
type Store struct {
	db       *gorm.DB
	routeEnc *Encryptor
}

// New opens a MySQL connection at dsn, runs pending migrations, and returns
// a ready Store. dsn format matches the teacher's NewMySQLRecorder:
// "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local".
func New(dsn string, routeEnc *Encryptor) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindDatabaseError, "store", "New", "connect to mysql: %w", err)
	}
	return NewWithDB(db, routeEnc)
}

// NewWithDB wraps an existing *gorm.DB (e.g. one sqlmock has instrumented
// for tests), running migrations against it before returning.
func NewWithDB(db *gorm.DB, routeEnc *Encryptor) (*Store, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &Store{db: db, routeEnc: routeEnc}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return xerrors.Wrap(xerrors.KindDatabaseError, "store", "Close", "get underlying db: %w", err)
	}
	return sqlDB.Close()
}

// SaveOpportunity upserts opp, sealing its route snapshot if routeEnc is
// configured.
func (s *Store) SaveOpportunity(opp core.Opportunity) error {
	routeJSON, err := json.Marshal(opp.RouteSnapshot)
	if err != nil {
		return xerrors.Wrap(xerrors.KindDatabaseError, "store", "SaveOpportunity", "marshal route snapshot: %w", err)
	}
	sealed, err := s.routeEnc.Seal(string(routeJSON))
	if err != nil {
		return xerrors.Wrap(xerrors.KindDatabaseError, "store", "SaveOpportunity", "seal route snapshot: %w", err)
	}

	record := OpportunityRecord{
		OpportunityID:        opp.OpportunityID,
		Fingerprint:          opp.Fingerprint,
		Strategy:             string(opp.StrategyKind),
		Chain:                string(opp.Chain),
		Status:               string(opp.Status),
		CreatedAt:            opp.CreatedAt,
		ExpectedProfitNative: bigIntToString(opp.ExpectedProfitNative),
		ExpectedProfitUSD:    bigFloatToString(opp.ExpectedProfitUSD),
		Confidence:           opp.Confidence,
		RouteSnapshotJSON:    sealed,
	}
	if err := s.db.Save(&record).Error; err != nil {
		return xerrors.Wrap(xerrors.KindDatabaseError, "store", "SaveOpportunity", "save: %w", err)
	}
	return nil
}

// SaveExecution upserts rec.
func (s *Store) SaveExecution(rec core.ExecutionRecord) error {
	var landedAt *time.Time
	if !rec.IncludedAt.IsZero() {
		t := rec.IncludedAt
		landedAt = &t
	}
	record := ExecutionRecord{
		ExecutionID:          rec.ExecutionID,
		OpportunityID:        rec.OpportunityID,
		BundleID:             rec.BundleID,
		Status:               executionStatus(rec),
		Chain:                string(rec.Chain),
		SubmittedAt:          rec.SubmittedAt,
		LandedAt:             landedAt,
		RealizedProfitNative: bigIntToString(rec.RealizedProfitNative),
		RealizedProfitUSD:    bigFloatToString(rec.RealizedProfitUSD),
		GasNative:            bigIntToString(rec.GasNativeSpent),
	}
	if err := s.db.Save(&record).Error; err != nil {
		return xerrors.Wrap(xerrors.KindDatabaseError, "store", "SaveExecution", "save: %w", err)
	}
	return nil
}

// executionStatus derives a store-level status label from the record's
// terminal timestamps, since core.ExecutionRecord itself only distinguishes
// landed/not-landed (via Landed()), not the full core.BundleStatus set.
func executionStatus(rec core.ExecutionRecord) string {
	switch {
	case rec.Landed():
		return "included"
	case !rec.FailedAt.IsZero():
		return "failed"
	default:
		return "submitted"
	}
}

// SaveFill inserts one leg-landing record.
func (s *Store) SaveFill(executionID string, legIndex int, txHash, tokenIn, tokenOut string, amountIn, amountOut *big.Int) error {
	record := FillRecord{
		ExecutionID: executionID,
		LegIndex:    legIndex,
		TxHash:      txHash,
		AmountIn:    bigIntToString(amountIn),
		AmountOut:   bigIntToString(amountOut),
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return xerrors.Wrap(xerrors.KindDatabaseError, "store", "SaveFill", "create: %w", err)
	}
	return nil
}

// SaveRiskEvent inserts ev, immutable once written per spec.md §4.11's
// "Kill events are durable."
func (s *Store) SaveRiskEvent(ev core.RiskEvent) error {
	record := RiskEventRecord{
		ID:        ev.RiskEventID,
		Severity:  string(ev.Severity),
		Scope:     string(ev.Scope),
		ScopeKey:  ev.ScopeKey,
		Reason:    ev.Reason,
		CreatedAt: ev.CreatedAt,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return xerrors.Wrap(xerrors.KindDatabaseError, "store", "SaveRiskEvent", "create: %w", err)
	}
	return nil
}

// SaveGasSample inserts one Gas Tracker observation for rolling telemetry.
func (s *Store) SaveGasSample(chain core.ChainId, gasPrice *big.Int, at time.Time) error {
	record := GasSampleRecord{Chain: string(chain), GasPrice: bigIntToString(gasPrice), Timestamp: at}
	if err := s.db.Create(&record).Error; err != nil {
		return xerrors.Wrap(xerrors.KindDatabaseError, "store", "SaveGasSample", "create: %w", err)
	}
	return nil
}

// SavePriceSample inserts one Price Oracle quote for rolling telemetry.
func (s *Store) SavePriceSample(token core.TokenRef, priceUSD *big.Float, confidence float64, asOf time.Time) error {
	record := PriceSampleRecord{
		TokenKey:   token.Key(),
		PriceUSD:   bigFloatToString(priceUSD),
		Confidence: confidence,
		AsOf:       asOf,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return xerrors.Wrap(xerrors.KindDatabaseError, "store", "SavePriceSample", "create: %w", err)
	}
	return nil
}

// SaveLatencySample inserts one per-stage latency observation, the backing
// data for spec.md §5's per-strategy latency budget monitoring.
func (s *Store) SaveLatencySample(stage string, durationMs float64, at time.Time) error {
	record := LatencySampleRecord{Stage: stage, DurationMs: durationMs, Timestamp: at}
	if err := s.db.Create(&record).Error; err != nil {
		return xerrors.Wrap(xerrors.KindDatabaseError, "store", "SaveLatencySample", "create: %w", err)
	}
	return nil
}

// PruneTelemetryBefore deletes gas/price/latency samples older than
// cutoff, enforcing spec.md §4.12's "rolling telemetry with retention
// bound."
func (s *Store) PruneTelemetryBefore(cutoff time.Time) error {
	if err := s.db.Where("timestamp < ?", cutoff).Delete(&GasSampleRecord{}).Error; err != nil {
		return xerrors.Wrap(xerrors.KindDatabaseError, "store", "PruneTelemetryBefore", "prune gas_samples: %w", err)
	}
	if err := s.db.Where("as_of < ?", cutoff).Delete(&PriceSampleRecord{}).Error; err != nil {
		return xerrors.Wrap(xerrors.KindDatabaseError, "store", "PruneTelemetryBefore", "prune price_samples: %w", err)
	}
	if err := s.db.Where("timestamp < ?", cutoff).Delete(&LatencySampleRecord{}).Error; err != nil {
		return xerrors.Wrap(xerrors.KindDatabaseError, "store", "PruneTelemetryBefore", "prune latency_samples: %w", err)
	}
	return nil
}

// Opportunity looks up a single opportunity by id, decoding its route
// snapshot back into a core.Route.
func (s *Store) Opportunity(opportunityID string) (core.Opportunity, error) {
	var record OpportunityRecord
	if err := s.db.Where("opportunity_id = ?", opportunityID).First(&record).Error; err != nil {
		return core.Opportunity{}, xerrors.Wrap(xerrors.KindDatabaseError, "store", "Opportunity", "query: %w", err)
	}

	opened, err := s.routeEnc.Open(record.RouteSnapshotJSON)
	if err != nil {
		return core.Opportunity{}, xerrors.Wrap(xerrors.KindDatabaseError, "store", "Opportunity", "open route snapshot: %w", err)
	}
	var route core.Route
	if opened != "" {
		if err := json.Unmarshal([]byte(opened), &route); err != nil {
			return core.Opportunity{}, xerrors.Wrap(xerrors.KindDatabaseError, "store", "Opportunity", "unmarshal route snapshot: %w", err)
		}
	}

	profitNative, _ := new(big.Int).SetString(record.ExpectedProfitNative, 10)
	profitUSD, _, _ := big.ParseFloat(record.ExpectedProfitUSD, 10, 0, big.ToNearestEven)

	return core.Opportunity{
		OpportunityID:        record.OpportunityID,
		StrategyKind:         core.StrategyKind(record.Strategy),
		Status:               core.OpportunityStatus(record.Status),
		CreatedAt:            record.CreatedAt,
		Fingerprint:          record.Fingerprint,
		ExpectedProfitNative: profitNative,
		ExpectedProfitUSD:    profitUSD,
		Confidence:           record.Confidence,
		Chain:                core.ChainId(record.Chain),
		RouteSnapshot:        route,
	}, nil
}

func bigIntToString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func bigFloatToString(v *big.Float) string {
	if v == nil {
		return "0"
	}
	return v.Text('f', -1)
}
