package config

import "time"

// Config holds runtime settings for the snapboard CLI.
//
// Fields:
//   - ServerEndpointAddr: base URL of the gateway JSON API.
//   - HealthEndpointAddr: host:port of the gateway gRPC health service.
//   - LocalDBPath: sqlite file holding the persisted session.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - RequestTimeout: per-request timeout for API calls and uploads.
type Config struct {
	ServerEndpointAddr  string
	HealthEndpointAddr  string
	LocalDBPath         string
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.HealthEndpointAddr = "127.0.0.1:50051"
	c.LocalDBPath = "snapboard.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 30 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
