package store

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/duskrelay/edgecore/internal/xerrors"
)

func TestCurrentSchemaVersion_MatchesHighestMigration(t *testing.T) {
	assert.Equal(t, migrations[len(migrations)-1].version, CurrentSchemaVersion())
}

func TestMigrate_AppliesFromZeroOnFreshDatabase(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer sqlDB.Close()

	gormDB, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_version").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM `schema_version`").WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}))

	mock.ExpectBegin()
	for range migrations[0].stmts {
		mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec("INSERT INTO `schema_version`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, Migrate(gormDB))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_FailsClosedWhenSchemaNewerThanBuild(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer sqlDB.Close()

	gormDB, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_version").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM `schema_version`").WillReturnRows(
		sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(CurrentSchemaVersion()+1, time.Now()))

	err = Migrate(gormDB)
	require.Error(t, err)
	kind, ok := xerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, xerrors.KindFatal, kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}
