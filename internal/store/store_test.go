package store

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/duskrelay/edgecore/internal/core"
)

// newMockStore mirrors the teacher's TestMySQLRecorder_RecordReport setup:
// a sqlmock-backed GORM DB wired directly into a Store literal, skipping
// Migrate so each test only has to expect the one statement it cares about.
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return &Store{db: gormDB}, mock
}

func TestSaveOpportunity_InsertsRow(t *testing.T) {
	s, mock := newMockStore(t)

	// gorm's Save on a set primary key tries an UPDATE first and, when no row
	// matched, inserts the row in a second transaction.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `opportunities`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `opportunities`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	opp := core.Opportunity{
		OpportunityID:        "opp-1",
		StrategyKind:         core.StrategyArbitrage,
		Status:               core.OppValidated,
		CreatedAt:            time.Now(),
		Fingerprint:          "fp-1",
		ExpectedProfitNative: big.NewInt(1000),
		ExpectedProfitUSD:    big.NewFloat(1.5),
		Confidence:           0.9,
		Chain:                core.ChainEthereum,
	}
	require.NoError(t, s.SaveOpportunity(opp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRiskEvent_InsertsRow(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `risk_events`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ev := core.RiskEvent{
		RiskEventID: "risk-1",
		Severity:    core.RiskKill,
		Scope:       core.ScopeGlobal,
		Reason:      "daily loss cap breached",
		CreatedAt:   time.Now(),
	}
	require.NoError(t, s.SaveRiskEvent(ev))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveGasSample_InsertsRow(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `gas_samples`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, s.SaveGasSample(core.ChainEthereum, big.NewInt(30_000_000_000), time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpportunity_DecodesRouteSnapshotAndSealedColumn(t *testing.T) {
	s, mock := newMockStore(t)
	s.routeEnc = NewEncryptor([]byte("01234567890123456789012345678901"))

	route := core.Route{
		Hops:              []core.TokenRef{{Chain: core.ChainEthereum, Address: "0xa"}, {Chain: core.ChainEthereum, Address: "0xb"}},
		Protocols:         []core.Protocol{core.ProtocolAMMv2},
		PoolIDs:           []string{"pool-1"},
		EstimatedGasUnits: 150_000,
	}
	sealed, err := s.routeEnc.Seal(mustJSON(t, route))
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{
		"opportunity_id", "fingerprint", "strategy", "chain", "status", "created_at",
		"expected_profit_native", "expected_profit_usd", "confidence", "route_snapshot_json",
	}).AddRow("opp-1", "fp-1", "arbitrage", "ethereum", "validated", time.Now(), "1000", "1.5", 0.9, sealed)

	mock.ExpectQuery("SELECT (.+) FROM `opportunities`").WillReturnRows(rows)

	got, err := s.Opportunity("opp-1")
	require.NoError(t, err)
	assert.Equal(t, "opp-1", got.OpportunityID)
	assert.Equal(t, core.StrategyArbitrage, got.StrategyKind)
	require.Len(t, got.RouteSnapshot.Hops, 2)
	assert.Equal(t, "pool-1", got.RouteSnapshot.PoolIDs[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
