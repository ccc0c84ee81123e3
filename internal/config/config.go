// Package config loads the closed set of runtime options named in
// spec §6, once, into an immutable struct (§9 "Global configuration").
// Modeled on the teacher repo's viper-backed once.Do singleton loader.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Config is the process-wide configuration, read once at boot and
// never re-read (§9).
type Config struct {
	// ExchangeMarket is this engine process's market tag (required).
	ExchangeMarket string

	// MarketRoutes maps a market tag to the gateway-side endpoint for
	// that market's engine, sourced from {MARKET}_RPC_MATCH_SERVER
	// environment variables.
	MarketRoutes map[string]string

	MatchRPCAddress string
	MatchRPCPort    int

	DatabaseRPCAddress string
	DatabaseRPCPort    int

	// MatchRPCMaxConcurrentConnections bounds inbound concurrency on
	// the engine's wire listener (default 10000).
	MatchRPCMaxConcurrentConnections int

	PostgresAddress string
	PGUsername      string
	PGPassword      string

	JWTSecret string

	// GatewayAddress/GatewayPort bind the gateway's own plain-HTTP
	// surface (spec §6); unrelated to MatchRPCAddress/Port, which
	// bind a single market's engine RPC listener.
	GatewayAddress string
	GatewayPort    int
}

var (
	loaded *Config
	once   sync.Once
	loadMu sync.Mutex
)

const marketRouteSuffix = "_RPC_MATCH_SERVER"

// Load reads configuration from the environment. Safe to call
// concurrently; the environment is only parsed once per process.
func Load() (*Config, error) {
	var err error
	once.Do(func() {
		loaded, err = load()
	})
	return loaded, err
}

func load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetDefault("MATCH_RPC_MAX_NUMBER_CO_CONNECTIONS", 10000)
	v.SetDefault("MATCH_RPC_PORT", 5555)
	v.SetDefault("DATABASE_RPC_PORT", 5556)
	v.SetDefault("GATEWAY_PORT", 8443)

	market := v.GetString("EXCHANGE_MARKET")
	if market == "" {
		return nil, fmt.Errorf("EXCHANGE_MARKET environment variable is not defined")
	}

	maxConns, err := parseIntEnv(v, "MATCH_RPC_MAX_NUMBER_CO_CONNECTIONS", 10000)
	if err != nil {
		return nil, err
	}
	matchPort, err := parseIntEnv(v, "MATCH_RPC_PORT", 5555)
	if err != nil {
		return nil, err
	}
	dbPort, err := parseIntEnv(v, "DATABASE_RPC_PORT", 5556)
	if err != nil {
		return nil, err
	}
	gatewayPort, err := parseIntEnv(v, "GATEWAY_PORT", 8443)
	if err != nil {
		return nil, err
	}

	return &Config{
		ExchangeMarket:                   market,
		MarketRoutes:                     marketRoutesFromEnv(),
		MatchRPCAddress:                  v.GetString("MATCH_RPC_ADDRESS"),
		MatchRPCPort:                     matchPort,
		DatabaseRPCAddress:               v.GetString("DATABASE_RPC_ADDRESS"),
		DatabaseRPCPort:                  dbPort,
		MatchRPCMaxConcurrentConnections: maxConns,
		PostgresAddress:                  v.GetString("POSTGRES_ADDRESS"),
		PGUsername:                       v.GetString("PG_USERNAME"),
		PGPassword:                       v.GetString("PG_PASSWORD"),
		JWTSecret:                        v.GetString("JWT_SECRET"),
		GatewayAddress:                   v.GetString("GATEWAY_ADDRESS"),
		GatewayPort:                      gatewayPort,
	}, nil
}

func parseIntEnv(v *viper.Viper, key string, def int) (int, error) {
	raw := v.GetString(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// marketRoutesFromEnv scans the process environment for any variable
// ending in _RPC_MATCH_SERVER and derives the market tag from its
// prefix, per spec §6.
func marketRoutesFromEnv() map[string]string {
	routes := make(map[string]string)
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, val := parts[0], parts[1]
		if strings.HasSuffix(key, marketRouteSuffix) && val != "" {
			market := strings.TrimSuffix(key, marketRouteSuffix)
			routes[market] = val
		}
	}
	return routes
}

// resetForTest clears the singleton so tests can reload with a
// different environment. Test-only.
func resetForTest() {
	loadMu.Lock()
	defer loadMu.Unlock()
	loaded = nil
	once = sync.Once{}
}
