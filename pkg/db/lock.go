package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// ForUpdateSuffix returns the row-lock suffix for a SELECT on the engine
// behind db. SQLite has no row locks; its single writer already serializes
// transactions.
func ForUpdateSuffix(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return ""
	}
	if strings.EqualFold(db.Dialector.Name(), "sqlite") {
		return ""
	}
	return " FOR UPDATE"
}

// Quote quotes an identifier for the engine behind db, e.g. the reserved
// word offset used by the macs table.
func Quote(db *gorm.DB, name string) string {
	if db == nil || db.Dialector == nil {
		return `"` + name + `"`
	}
	var b strings.Builder
	db.Dialector.QuoteTo(&b, name)
	return b.String()
}

// SetLockTimeout bounds how long statements in tx wait for row locks.
// Postgres scopes the setting to the transaction; MySQL only supports whole
// seconds at session scope, so every transaction sets it again. SQLite
// relies on the busy timeout from the DSN.
func SetLockTimeout(tx *gorm.DB, d time.Duration) error {
	if tx == nil || tx.Dialector == nil || d <= 0 {
		return nil
	}
	switch strings.ToLower(tx.Dialector.Name()) {
	case "postgres":
		return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", d.Milliseconds())).Error
	case "mysql":
		seconds := int64(d / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		return tx.Exec(fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", seconds)).Error
	default:
		return nil
	}
}
