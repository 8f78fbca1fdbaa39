package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/snapboard/internal/flagx"
	"github.com/dmitrijs2005/snapboard/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer fields
// distinguish absent keys from zero values so a partial file only touches what
// it names.
type JsonConfig struct {
	ServerEndpointAddr  *string         `json:"server_endpoint_addr"`
	HealthEndpointAddr  *string         `json:"health_endpoint_addr"`
	LocalDBPath         *string         `json:"local_db_path"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
}

// parseJson overlays Config with values loaded from the file named by -c or
// -config. Without the flag nothing happens. Read and unmarshal errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != nil {
		cfg.ServerEndpointAddr = *jc.ServerEndpointAddr
	}
	if jc.HealthEndpointAddr != nil {
		cfg.HealthEndpointAddr = *jc.HealthEndpointAddr
	}
	if jc.LocalDBPath != nil {
		cfg.LocalDBPath = *jc.LocalDBPath
	}
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
}
