package db

import "time"

type Config struct {
	Type            string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	Path            string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime int
	ConnMaxIdleTime int
	SlowThreshold   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Type == "" {
		c.Type = "postgres"
	}
	if c.Path == "" {
		c.Path = "bsma.db"
	}
	if c.MaxIdleConn <= 0 {
		c.MaxIdleConn = 5
	}
	if c.MaxOpenConn <= 0 {
		c.MaxOpenConn = 20
	}
	// SQLite allows one writer; a single connection turns lock contention
	// into pool queueing instead of SQLITE_BUSY.
	if c.Type == "sqlite" {
		c.MaxOpenConn = 1
		c.MaxIdleConn = 1
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 300
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = 60
	}
	if c.SlowThreshold <= 0 {
		c.SlowThreshold = 200 * time.Millisecond
	}
	return c
}
