package constants

import "time"

const (
	ExternalAPITimeout = 30 * time.Second
	RedirectTimeout    = 15 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 1
	DBMaxIdleConns    = 1
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	MaxResponseBodySize = 64 << 20
	ListRowLimit        = 500
)
