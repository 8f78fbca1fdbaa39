package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/snapboard/internal/flagx"
	"github.com/dmitrijs2005/snapboard/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration so
// both "15m" and integer nanoseconds are accepted. Fields left out of the
// file keep the values already present in Config.
type JsonConfig struct {
	EndpointAddrHTTP             *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	SecretKey                    *string         `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	MagicLinkValidityDuration    *timex.Duration `json:"magic_link_validity_duration"`
	S3RootUser                   *string         `json:"s3_root_user"`
	S3RootPassword               *string         `json:"s3_root_password"`
	S3Bucket                     *string         `json:"s3_bucket"`
	S3Region                     *string         `json:"s3_region"`
	S3BaseEndpoint               *string         `json:"s3_base_endpoint"`
	S3PublicBaseURL              *string         `json:"s3_public_base_url"`
	RedisAddr                    *string         `json:"redis_addr"`
	ListCacheTTL                 *timex.Duration `json:"list_cache_ttl"`
	PendingGalleryTTL            *timex.Duration `json:"pending_gallery_ttl"`
	SweepInterval                *timex.Duration `json:"sweep_interval"`
	Logger                       *string         `json:"logger"`
}

// parseJson overlays Config with the file named by -c/-config. Without the
// flag nothing happens; an unreadable or malformed file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	var c JsonConfig
	if err := json.Unmarshal(data, &c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.MagicLinkValidityDuration, c.MagicLinkValidityDuration)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	setString(&config.RedisAddr, c.RedisAddr)
	setDuration(&config.ListCacheTTL, c.ListCacheTTL)
	setDuration(&config.PendingGalleryTTL, c.PendingGalleryTTL)
	setDuration(&config.SweepInterval, c.SweepInterval)
	setString(&config.Logger, c.Logger)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
