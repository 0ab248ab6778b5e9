// Package config loads the Ingest and Tile service configuration knobs
// named in spec §6.4/§6.5 from an optional file plus environment overrides,
// using koanf the way the rest of this pipeline threads dependencies
// explicitly rather than through process-wide globals (spec §9).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces environment overrides, e.g. VOXELMAP_MINECRAFT_SERVERPORT
// for "minecraft.serverPort".
const envPrefix = "VOXELMAP_"

// Ingest holds every knob recognized on the Ingest Service side (spec §6.4).
type Ingest struct {
	MinecraftVersion    string        `koanf:"minecraft.version"`
	MinecraftServerHost string        `koanf:"minecraft.serverHost"`
	MinecraftServerPort int           `koanf:"minecraft.serverPort"`
	RelayEnabled        bool          `koanf:"relay.enabled"`
	RelayHost           string        `koanf:"relay.host"`
	RelayPort           int           `koanf:"relay.port"`
	ChunkCaching        bool          `koanf:"performance.enableChunkCaching"`
	WorldSaveInterval   time.Duration `koanf:"-"`
	WorldSaveIntervalMs int           `koanf:"performance.worldSaveInterval"`
	MaxLoadedChunks     int           `koanf:"performance.maxLoadedChunks"`
	ProfilesFolder      string        `koanf:"advanced.profilesFolder"`
	DebugLogging        bool          `koanf:"advanced.enableDebugLogging"`
	AutoReconnect       bool          `koanf:"advanced.autoReconnect"`
	ReconnectInterval   time.Duration `koanf:"-"`
	ReconnectIntervalMs int           `koanf:"advanced.reconnectInterval"`

	// DownstreamListen is where the I->T event channel server binds, so T
	// can connect as a client (spec §2 "Tile Service (T). Connects to I as
	// a client"). Not named in spec §6.4's table; it is the wiring detail
	// that table leaves to the implementation.
	DownstreamListen string `koanf:"ingest.downstreamListen"`
}

// Tile holds every knob recognized on the Tile Service side (spec §6.5).
type Tile struct {
	Port           int           `koanf:"port"`
	ProxyURL       string        `koanf:"proxyUrl"`
	CORSOrigins    []string      `koanf:"corsOrigins"`
	CacheSize      int           `koanf:"cacheSize"`
	BatchSize      int           `koanf:"batchSize"`
	TickIntervalMs int           `koanf:"tickIntervalMs"`
	TickInterval   time.Duration `koanf:"-"`
	LogLevel       string        `koanf:"logLevel"`

	// IngestURL is the websocket address of the Ingest Service's
	// downstream server this Tile Service dials into as a client.
	IngestURL string `koanf:"tile.ingestUrl"`
}

func defaultIngest() Ingest {
	return Ingest{
		MinecraftVersion:    "1.21.1",
		MinecraftServerHost: "127.0.0.1",
		MinecraftServerPort: 19132,
		RelayEnabled:        false,
		RelayHost:           "127.0.0.1",
		RelayPort:           19133,
		ChunkCaching:        true,
		WorldSaveIntervalMs: 1000,
		MaxLoadedChunks:     2000,
		ProfilesFolder:      "./profiles",
		DebugLogging:        false,
		AutoReconnect:       true,
		ReconnectIntervalMs: 1000,
		DownstreamListen:    ":8090",
	}
}

func defaultTile() Tile {
	return Tile{
		Port:           8080,
		CORSOrigins:    nil,
		CacheSize:      1000,
		BatchSize:      50,
		TickIntervalMs: 100,
		LogLevel:       "info",
		IngestURL:      "ws://127.0.0.1:8090/downstream",
	}
}

// loadInto layers path (if non-empty) and environment overrides on top of
// dst's existing zero-value defaults. koanf's Unmarshal only sets fields
// present in a loaded source, so pre-populating dst with defaults before
// calling this is what makes "file/env override defaults, not the other
// way around" hold without a separate defaults provider.
func loadInto(path string, dst any) (*koanf.Koanf, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), nil); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}
	if len(k.Keys()) == 0 {
		return k, nil
	}
	if err := k.UnmarshalWithConf("", dst, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return k, nil
}

// LoadIngest reads the Ingest Service configuration from path (if non-empty)
// layered under defaults and environment overrides (spec §6.4).
func LoadIngest(path string) (Ingest, error) {
	cfg := defaultIngest()
	if _, err := loadInto(path, &cfg); err != nil {
		return Ingest{}, err
	}
	cfg.WorldSaveInterval = time.Duration(cfg.WorldSaveIntervalMs) * time.Millisecond
	cfg.ReconnectInterval = time.Duration(cfg.ReconnectIntervalMs) * time.Millisecond
	if err := cfg.Validate(); err != nil {
		return Ingest{}, err
	}
	return cfg, nil
}

// LoadTile reads the Tile Service configuration from path (if non-empty)
// layered under defaults and environment overrides (spec §6.5).
func LoadTile(path string) (Tile, error) {
	cfg := defaultTile()
	if _, err := loadInto(path, &cfg); err != nil {
		return Tile{}, err
	}
	cfg.TickInterval = time.Duration(cfg.TickIntervalMs) * time.Millisecond
	if err := cfg.Validate(); err != nil {
		return Tile{}, err
	}
	return cfg, nil
}

// Validate enforces the ranges spec §6.4 names for each knob.
func (c Ingest) Validate() error {
	if c.MinecraftServerPort < 1 || c.MinecraftServerPort > 65535 {
		return fmt.Errorf("minecraft.serverPort out of range [1,65535]: %d", c.MinecraftServerPort)
	}
	if c.RelayEnabled && (c.RelayPort < 1 || c.RelayPort > 65535) {
		return fmt.Errorf("relay.port out of range [1,65535]: %d", c.RelayPort)
	}
	if c.WorldSaveIntervalMs < 100 || c.WorldSaveIntervalMs > 10000 {
		return fmt.Errorf("performance.worldSaveInterval out of range [100,10000]ms: %d", c.WorldSaveIntervalMs)
	}
	if c.MaxLoadedChunks < 100 {
		return fmt.Errorf("performance.maxLoadedChunks must be >=100: %d", c.MaxLoadedChunks)
	}
	if c.ReconnectIntervalMs < 1000 || c.ReconnectIntervalMs > 30000 {
		return fmt.Errorf("advanced.reconnectInterval out of range [1000,30000]ms: %d", c.ReconnectIntervalMs)
	}
	return nil
}

// Validate enforces the ranges spec §6.5 names for each knob.
func (c Tile) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port out of range [1,65535]: %d", c.Port)
	}
	if c.CacheSize < 100 {
		return fmt.Errorf("cacheSize must be >=100: %d", c.CacheSize)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batchSize must be >=1: %d", c.BatchSize)
	}
	if c.TickIntervalMs < 10 {
		return fmt.Errorf("tickIntervalMs must be >=10: %d", c.TickIntervalMs)
	}
	return nil
}
