package config

import "time"

// Timeout constants
const (
	DefaultHTTPTimeout    = 60 * time.Second
	AIRequestTimeout      = 2 * time.Minute
	AIShutdownTimeout     = 30 * time.Second
	DefaultSearchTimeout  = 8 * time.Second
	DefaultFetchTimeout   = 10 * time.Second
	ServerShutdownTimeout = 30 * time.Second
	TelemetryFlushTimeout = 5 * time.Second
	TestTimeout           = 100 * time.Millisecond
	AITestTimeout         = 1 * time.Second
)

// Size constants
const (
	DefaultMaxAIConcurrent = 16
	DefaultMaxRequestBytes = 8 << 20
)

// DefaultUserAgent is sent by the search and page-fetch clients
const DefaultUserAgent = "Mozilla/5.0 (compatible; derjachat/1.0)"

// Security configuration constants
const (
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:;"
)
