package db

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSQLiteLockingHelpers(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:lock_helpers?mode=memory"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	assert.Empty(t, ForUpdateSuffix(conn))
	assert.Equal(t, "`offset`", Quote(conn, "offset"))
	assert.Empty(t, ForUpdateSuffix(nil))
}

func TestSetLockTimeoutIsNoopOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:lock_timeout?mode=memory"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	assert.NoError(t, SetLockTimeout(conn, 0))
	assert.NoError(t, SetLockTimeout(conn, 5*time.Second))
}
