package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/duskrelay/edgecore/internal/xerrors"
)

// migration is one forward-only step. GORM's AutoMigrate cannot express
// CHECK constraints or ON DELETE CASCADE, so the schema is owned by this
// raw-SQL runner instead (spec.md §4.12: "foreign keys with cascade on
// delete... CHECK constraints on enumerated status fields").
type migration struct {
	version int
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS opportunities (
				opportunity_id VARCHAR(64) PRIMARY KEY,
				fingerprint VARCHAR(64) NOT NULL,
				strategy VARCHAR(32) NOT NULL,
				chain VARCHAR(32) NOT NULL,
				status VARCHAR(16) NOT NULL CHECK (status IN ('pending','validated','executing','landed','expired','rejected')),
				created_at DATETIME NOT NULL,
				expected_profit_native VARCHAR(78) NOT NULL,
				expected_profit_usd VARCHAR(78) NOT NULL,
				confidence DOUBLE NOT NULL,
				route_snapshot_json TEXT,
				INDEX idx_opp_chain_status (chain, status),
				INDEX idx_opp_strategy_created (strategy, created_at)
			)`,
			`CREATE TABLE IF NOT EXISTS executions (
				execution_id VARCHAR(64) PRIMARY KEY,
				opportunity_id VARCHAR(64) NOT NULL,
				bundle_id VARCHAR(64) NOT NULL,
				status VARCHAR(16) NOT NULL CHECK (status IN ('built','signed','submitted','included','replaced','expired','failed')),
				chain VARCHAR(32) NOT NULL,
				target_block_or_slot BIGINT UNSIGNED,
				submitted_at DATETIME NOT NULL,
				landed_at DATETIME NULL,
				realized_profit_native VARCHAR(78),
				realized_profit_usd VARCHAR(78),
				gas_native VARCHAR(78),
				INDEX idx_exec_chain_status (chain, status),
				INDEX idx_exec_opportunity (opportunity_id),
				CONSTRAINT fk_exec_opportunity FOREIGN KEY (opportunity_id)
					REFERENCES opportunities(opportunity_id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS fills (
				id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
				execution_id VARCHAR(64) NOT NULL,
				leg_index INT NOT NULL,
				tx_hash VARCHAR(128) NOT NULL,
				amount_in VARCHAR(78) NOT NULL,
				amount_out VARCHAR(78) NOT NULL,
				token_in VARCHAR(128) NOT NULL,
				token_out VARCHAR(128) NOT NULL,
				INDEX idx_fills_execution (execution_id),
				CONSTRAINT fk_fills_execution FOREIGN KEY (execution_id)
					REFERENCES executions(execution_id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS risk_events (
				id VARCHAR(64) PRIMARY KEY,
				severity VARCHAR(16) NOT NULL CHECK (severity IN ('info','warn','alert','kill')),
				scope VARCHAR(16) NOT NULL CHECK (scope IN ('global','strategy','chain','token')),
				scope_key VARCHAR(64),
				reason TEXT,
				created_at DATETIME NOT NULL,
				INDEX idx_risk_created (created_at)
			)`,
			`CREATE TABLE IF NOT EXISTS gas_samples (
				id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
				chain VARCHAR(32) NOT NULL,
				gas_price VARCHAR(78) NOT NULL,
				timestamp DATETIME NOT NULL,
				INDEX idx_gas_chain_ts (chain, timestamp)
			)`,
			`CREATE TABLE IF NOT EXISTS price_samples (
				id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
				token_key VARCHAR(128) NOT NULL,
				price_usd VARCHAR(78) NOT NULL,
				confidence DOUBLE NOT NULL,
				as_of DATETIME NOT NULL,
				INDEX idx_price_token_asof (token_key, as_of)
			)`,
			`CREATE TABLE IF NOT EXISTS latency_samples (
				id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
				stage VARCHAR(32) NOT NULL,
				duration_ms DOUBLE NOT NULL,
				timestamp DATETIME NOT NULL,
				INDEX idx_latency_stage_ts (stage, timestamp)
			)`,
		},
	},
}

// CurrentSchemaVersion is the highest version this build knows how to run
// against.
func CurrentSchemaVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].version
}

// Migrate applies every migration newer than the schema_version table
// records, forward-only, then records the new version. Called once at
// startup; on a version newer than CurrentSchemaVersion it fails closed
// rather than guessing compatibility (spec.md §6: "on mismatch... startup
// fails with SchemaIncompatible").
func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INT PRIMARY KEY,
		applied_at DATETIME NOT NULL
	)`).Error; err != nil {
		return xerrors.Wrap(xerrors.KindDatabaseError, "store", "Migrate", "create schema_version table: %w", err)
	}

	current, err := schemaVersion(db)
	if err != nil {
		return err
	}
	if current > CurrentSchemaVersion() {
		return xerrors.New(xerrors.KindFatal, "store", "Migrate",
			fmt.Errorf("schema at version %d is newer than this build's %d", current, CurrentSchemaVersion()))
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := db.Transaction(func(tx *gorm.DB) error {
			for _, stmt := range m.stmts {
				if err := tx.Exec(stmt).Error; err != nil {
					return err
				}
			}
			return tx.Create(&schemaVersionRecord{Version: m.version, AppliedAt: time.Now()}).Error
		}); err != nil {
			return xerrors.Wrap(xerrors.KindDatabaseError, "store", "Migrate", "apply migration %d: %w", m.version, err)
		}
	}
	return nil
}

func schemaVersion(db *gorm.DB) (int, error) {
	var rows []schemaVersionRecord
	if err := db.Order("version DESC").Limit(1).Find(&rows).Error; err != nil {
		return 0, xerrors.Wrap(xerrors.KindDatabaseError, "store", "schemaVersion", "query schema_version: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Version, nil
}
