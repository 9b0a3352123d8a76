package store

import "time"

// Every *_native/*_usd column stores a big.Int/big.Float as a decimal
// string, mirroring the teacher's bigIntToString convention in
// transaction_recorder.go — MySQL has no arbitrary-precision integer type
// wide enough for on-chain amounts, and floats would silently round them.

// OpportunityRecord is the opportunities table (spec.md §4.12).
type OpportunityRecord struct {
	OpportunityID        string `gorm:"column:opportunity_id;primaryKey;type:varchar(64)"`
	Fingerprint          string `gorm:"column:fingerprint;type:varchar(64);index"`
	Strategy             string `gorm:"column:strategy;type:varchar(32);index:idx_opp_strategy_created"`
	Chain                string `gorm:"column:chain;type:varchar(32);index:idx_opp_chain_status"`
	Status               string `gorm:"column:status;type:varchar(16);index:idx_opp_chain_status"`
	CreatedAt            time.Time `gorm:"column:created_at;index:idx_opp_strategy_created"`
	ExpectedProfitNative string `gorm:"column:expected_profit_native;type:varchar(78)"`
	ExpectedProfitUSD    string `gorm:"column:expected_profit_usd;type:varchar(78)"`
	Confidence           float64 `gorm:"column:confidence"`
	RouteSnapshotJSON    string `gorm:"column:route_snapshot_json;type:text"`
}

func (OpportunityRecord) TableName() string { return "opportunities" }

// ExecutionRecord is the executions table, FK'd to OpportunityRecord.
type ExecutionRecord struct {
	ExecutionID          string     `gorm:"column:execution_id;primaryKey;type:varchar(64)"`
	OpportunityID        string     `gorm:"column:opportunity_id;type:varchar(64);index"`
	BundleID             string     `gorm:"column:bundle_id;type:varchar(64)"`
	Status               string     `gorm:"column:status;type:varchar(16);index:idx_exec_chain_status"`
	Chain                string     `gorm:"column:chain;type:varchar(32);index:idx_exec_chain_status"`
	TargetBlockOrSlot    uint64     `gorm:"column:target_block_or_slot"`
	SubmittedAt          time.Time  `gorm:"column:submitted_at"`
	LandedAt             *time.Time `gorm:"column:landed_at"`
	RealizedProfitNative string     `gorm:"column:realized_profit_native;type:varchar(78)"`
	RealizedProfitUSD    string     `gorm:"column:realized_profit_usd;type:varchar(78)"`
	GasNative            string     `gorm:"column:gas_native;type:varchar(78)"`
}

func (ExecutionRecord) TableName() string { return "executions" }

// FillRecord is the fills table, one row per leg that actually landed.
type FillRecord struct {
	ID           uint   `gorm:"column:id;primaryKey;autoIncrement"`
	ExecutionID  string `gorm:"column:execution_id;type:varchar(64);index"`
	LegIndex     int    `gorm:"column:leg_index"`
	TxHash       string `gorm:"column:tx_hash;type:varchar(128)"`
	AmountIn     string `gorm:"column:amount_in;type:varchar(78)"`
	AmountOut    string `gorm:"column:amount_out;type:varchar(78)"`
	TokenIn      string `gorm:"column:token_in;type:varchar(128)"`
	TokenOut     string `gorm:"column:token_out;type:varchar(128)"`
}

func (FillRecord) TableName() string { return "fills" }

// RiskEventRecord is the risk_events table.
type RiskEventRecord struct {
	ID        string    `gorm:"column:id;primaryKey;type:varchar(64)"`
	Severity  string    `gorm:"column:severity;type:varchar(16)"`
	Scope     string    `gorm:"column:scope;type:varchar(16)"`
	ScopeKey  string    `gorm:"column:scope_key;type:varchar(64)"`
	Reason    string    `gorm:"column:reason;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;index"`
}

func (RiskEventRecord) TableName() string { return "risk_events" }

// GasSampleRecord is the gas_samples rolling-telemetry table.
type GasSampleRecord struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Chain     string    `gorm:"column:chain;type:varchar(32);index"`
	GasPrice  string    `gorm:"column:gas_price;type:varchar(78)"`
	Timestamp time.Time `gorm:"column:timestamp;index"`
}

func (GasSampleRecord) TableName() string { return "gas_samples" }

// PriceSampleRecord is the price_samples rolling-telemetry table.
type PriceSampleRecord struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement"`
	TokenKey   string    `gorm:"column:token_key;type:varchar(128);index"`
	PriceUSD   string    `gorm:"column:price_usd;type:varchar(78)"`
	Confidence float64   `gorm:"column:confidence"`
	AsOf       time.Time `gorm:"column:as_of;index"`
}

func (PriceSampleRecord) TableName() string { return "price_samples" }

// LatencySampleRecord is the latency_samples rolling-telemetry table,
// covering the per-strategy latency budgets spec.md §5 calls out (e.g.
// "arbitrage total path <= 50 ms").
type LatencySampleRecord struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Stage       string    `gorm:"column:stage;type:varchar(32);index"`
	DurationMs  float64   `gorm:"column:duration_ms"`
	Timestamp   time.Time `gorm:"column:timestamp;index"`
}

func (LatencySampleRecord) TableName() string { return "latency_samples" }

// schemaVersionRecord tracks the last migration applied, per spec.md §6's
// "Schema version is recorded and migrations run forward-only at startup."
type schemaVersionRecord struct {
	Version   int       `gorm:"column:version;primaryKey"`
	AppliedAt time.Time `gorm:"column:applied_at"`
}

func (schemaVersionRecord) TableName() string { return "schema_version" }
