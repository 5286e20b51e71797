package config

import "time"

// ShipyardConfig holds runtime configuration for the control-plane API.
type ShipyardConfig struct {
	Environment         string
	Addr                string
	DatabaseURL         string
	MigrationsDir       string
	JWTSecret           string
	SecretEncryptionKey string
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	ProvisionerToken    string
	ClusterDomainSuffix string
	CatalogPath         string
	EventBuffer         int
	RateLimitRedisAddr  string
	RateLimitRedisPass  string
	RateLimitRedisDB    int
	LocalLaunchCost     int64
	CloudLaunchCost     int64
	CloudAppCost        int64
	QuoteCurrency       string
	SSEHeartbeatEvery   time.Duration
}

// LoadShipyardConfig constructs a ShipyardConfig from environment variables.
func LoadShipyardConfig() ShipyardConfig {
	return ShipyardConfig{
		Environment:         GetString("APP_ENV", "development"),
		Addr:                GetString("API_ADDR", ":4100"),
		DatabaseURL:         GetString("DATABASE_URL", "postgres://shipyard:shipyard@db:5432/shipyard?sslmode=disable"),
		MigrationsDir:       GetString("DB_MIGRATIONS_DIR", "./db/migrations"),
		JWTSecret:           GetString("JWT_SECRET", "supersecuresecret"),
		SecretEncryptionKey: GetString("SECRET_ENCRYPTION_KEY", "supersecuresecret"),
		AccessTokenTTL:      time.Duration(GetInt("ACCESS_TOKEN_TTL_MIN", 15)) * time.Minute,
		RefreshTokenTTL:     time.Duration(GetInt("REFRESH_TOKEN_TTL_HOURS", 24)) * time.Hour,
		ProvisionerToken:    GetString("PROVISIONER_AUTH_TOKEN", ""),
		ClusterDomainSuffix: GetString("CLUSTER_DOMAIN_SUFFIX", ".fleet.local"),
		CatalogPath:         GetString("CATALOG_MANIFEST_PATH", ""),
		EventBuffer:         GetInt("EVENT_STREAM_BUFFER", 100),
		RateLimitRedisAddr:  GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass:  GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:    GetInt("RATE_LIMIT_REDIS_DB", 0),
		LocalLaunchCost:     GetInt64("BILLING_LOCAL_LAUNCH_MILLI", 0),
		CloudLaunchCost:     GetInt64("BILLING_CLOUD_LAUNCH_MILLI", 25000),
		CloudAppCost:        GetInt64("BILLING_CLOUD_APP_MILLI", 5000),
		QuoteCurrency:       GetString("BILLING_CURRENCY", "credits"),
		SSEHeartbeatEvery:   time.Duration(GetInt("SSE_HEARTBEAT_SECONDS", 25)) * time.Second,
	}
}
