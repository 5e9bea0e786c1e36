package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 120 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// WebSocket settings for the audio gateway
const (
	WSHandshakeTimeout = 10 * time.Second
	WSWriteTimeout     = 10 * time.Second
	WSPingInterval     = 20 * time.Second
	WSPongWait         = 60 * time.Second
	WSMaxFrameSize     = 1 << 20
)

// Background job settings
const (
	CleanupJobInterval  = 5 * time.Minute
	AudioArtifactMaxAge = 30 * time.Minute
)

// Upload limit for start-interview requests carrying a portfolio
const MaxStartBodySize = 4 << 20
