package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/bsma/internal/migration"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresDSNEnv names the key/value DSN of a disposable Postgres database.
const PostgresDSNEnv = "BSMA_TEST_POSTGRES_DSN"

// OpenPostgres returns a connection pool bound to a fresh schema on the
// database named by BSMA_TEST_POSTGRES_DSN, migrated and dropped on cleanup.
// The test is skipped when the variable is unset.
func OpenPostgres(t testing.TB, maxOpen int) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv(PostgresDSNEnv))
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}

	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	admin, err := gorm.Open(postgres.Open(dsn), gormCfg)
	require.NoError(t, err)
	adminDB, err := admin.DB()
	require.NoError(t, err)

	schema := fmt.Sprintf("bsma_test_%d_%d", time.Now().UnixNano(), dbSeq.Add(1))
	require.NoError(t, admin.Exec(`CREATE SCHEMA ` + schema).Error)

	conn, err := gorm.Open(postgres.Open(dsn+" search_path="+schema), gormCfg)
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(maxOpen)

	t.Cleanup(func() {
		_ = sqlDB.Close()
		_ = admin.Exec(`DROP SCHEMA ` + schema + ` CASCADE`).Error
		_ = adminDB.Close()
	})

	require.NoError(t, migration.RunMigrations(sqlDB, "postgres"))
	return conn
}
