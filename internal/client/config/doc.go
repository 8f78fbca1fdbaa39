// Package config loads runtime configuration for the snapboard CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the gateway API
//	-g string   address:port of the gateway gRPC health service
//	-db string  path of the local sqlite file
//	-i int      online status check interval (seconds)
//	-timeout    request timeout (seconds)
//
// # JSON schema
//
// Durations use timex.Duration, so they can be strings like "3s" or integer
// nanoseconds. Absent keys keep their previous value:
//
//	{
//	  "server_endpoint_addr": "http://127.0.0.1:8080",
//	  "health_endpoint_addr": "127.0.0.1:50051",
//	  "local_db_path": "snapboard.db",
//	  "online_check_interval": "3s",
//	  "request_timeout": "30s"
//	}
package config
