package cfg

import (
	"flag"
	"fmt"
	"hash/fnv"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/rs/zerolog/log"
)

// Connection styles accepted in `connections`.
const (
	ConnectionsShared  = "shared"
	ConnectionsPerCall = "per-call"

	// Aliases kept from the notebook vocabulary
	ConnectionsNotebook  = "notebook"
	ConnectionsParagraph = "paragraph"
)

// InterpreterConfiguration is one interpreter profile. Each profile is
// selected by its Name (the paragraph trigger, e.g. "tsql").
type InterpreterConfiguration struct {
	Name        string `toml:"name"`
	URL         string `toml:"url"`
	User        string `toml:"user"`
	Password    string `toml:"password"`
	Database    string `toml:"database"`
	Driver      string `toml:"driver"`
	MaxResult   int    `toml:"max_result"`
	Connections string `toml:"connections"` // "shared" or "per-call"
}

// AdminConfiguration for the HTTP API used by the notebook host
type AdminConfiguration struct {
	Enabled     bool   `toml:"enabled"`
	BindAddress string `toml:"bind_address"`
	Port        int    `toml:"port"`
	Secret      string `toml:"secret"` // empty disables auth
}

// LoggingConfiguration controls logging behavior
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// PrometheusConfiguration for metrics
type PrometheusConfiguration struct {
	Enabled                bool `toml:"enabled"`
	CollectIntervalSeconds int  `toml:"collect_interval_seconds"`
}

// CompletionConfiguration controls the auto-completion index
type CompletionConfiguration struct {
	Enabled        bool `toml:"enabled"`
	CacheSize      int  `toml:"cache_size"`      // cached prefix lookups per interpreter
	MaxCandidates  int  `toml:"max_candidates"`  // 0 = unlimited
	RefreshOnWrite bool `toml:"refresh_on_write"` // recompute schema names after update statements
}

// Configuration is the main configuration structure
type Configuration struct {
	InstanceID uint64 `toml:"instance_id"`

	Interpreters []InterpreterConfiguration `toml:"interpreter"`
	Completion   CompletionConfiguration    `toml:"completion"`
	Admin        AdminConfiguration         `toml:"admin"`
	Logging      LoggingConfiguration       `toml:"logging"`
	Prometheus   PrometheusConfiguration    `toml:"prometheus"`
}

// Command line flags
var (
	ConfigPathFlag = flag.String("config", "config.toml", "Path to configuration file")
	ListenFlag     = flag.String("listen", "", "Admin API address host:port (overrides config)")
	InstanceIDFlag = flag.Uint64("instance-id", 0, "Instance ID (overrides config, 0=auto)")
)

// DefaultInterpreter mirrors the stock SQL Server profile.
func DefaultInterpreter() InterpreterConfiguration {
	return InterpreterConfiguration{
		Name:        "tsql",
		URL:         "sqlserver://localhost:1433",
		User:        "zeppelin",
		Password:    "",
		Database:    "tempdb",
		Driver:      "sqlserver",
		MaxResult:   1000,
		Connections: ConnectionsShared,
	}
}

// Default configuration
var Config = &Configuration{
	InstanceID: 0, // Auto-generate

	Interpreters: []InterpreterConfiguration{DefaultInterpreter()},

	Completion: CompletionConfiguration{
		Enabled:        true,
		CacheSize:      256,
		MaxCandidates:  0,
		RefreshOnWrite: true,
	},

	Admin: AdminConfiguration{
		Enabled:     true,
		BindAddress: "127.0.0.1",
		Port:        8090,
	},

	Logging: LoggingConfiguration{
		Verbose: false,
		Format:  "console",
	},

	Prometheus: PrometheusConfiguration{
		Enabled:                true,
		CollectIntervalSeconds: 15,
	},
}

// Load loads configuration from file and applies CLI overrides
func Load(configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			// Profiles declared in the file replace the built-in ones
			// rather than merging into them element by element.
			builtin := Config.Interpreters
			Config.Interpreters = nil

			md, err := toml.DecodeFile(configPath, Config)
			if err != nil {
				Config.Interpreters = builtin
				return fmt.Errorf("failed to decode config: %w", err)
			}
			if md.IsDefined("interpreter") {
				for i := range Config.Interpreters {
					applyInterpreterDefaults(&Config.Interpreters[i])
				}
			} else {
				Config.Interpreters = builtin
			}
		} else {
			log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	if *ListenFlag != "" {
		host, port, err := splitListen(*ListenFlag)
		if err != nil {
			return err
		}
		Config.Admin.BindAddress = host
		Config.Admin.Port = port
	}
	if *InstanceIDFlag != 0 {
		Config.InstanceID = *InstanceIDFlag
	}

	if Config.InstanceID == 0 {
		var err error
		Config.InstanceID, err = generateInstanceID()
		if err != nil {
			return fmt.Errorf("failed to generate instance ID: %w", err)
		}
		log.Debug().Uint64("instance_id", Config.InstanceID).Msg("Auto-generated instance ID")
	}

	return nil
}

func applyInterpreterDefaults(ic *InterpreterConfiguration) {
	def := DefaultInterpreter()
	if ic.Driver == "" {
		ic.Driver = def.Driver
	}
	if ic.MaxResult == 0 {
		ic.MaxResult = def.MaxResult
	}
	if ic.Connections == "" {
		ic.Connections = def.Connections
	}
}

func splitListen(addr string) (string, int, error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", 0, fmt.Errorf("invalid listen address %q: missing port", addr)
	}
	var port int
	if _, err := fmt.Sscanf(addr[idx+1:], "%d", &port); err != nil {
		return "", 0, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	return addr[:idx], port, nil
}

// generateInstanceID creates a stable instance ID based on machine ID,
// falling back to the hostname on hosts without one (containers).
func generateInstanceID() (uint64, error) {
	id, err := machineid.ProtectedID("zeppelin-sql")
	if err != nil {
		log.Debug().Err(err).Msg("Machine ID unavailable, hashing hostname")
		if id, err = os.Hostname(); err != nil {
			return 0, err
		}
	}

	h := fnv.New64a()
	h.Write([]byte(id))
	return h.Sum64(), nil
}

// NormalizeConnections maps accepted spellings onto "shared" / "per-call".
func NormalizeConnections(style string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(style)) {
	case "", ConnectionsShared, ConnectionsNotebook:
		return ConnectionsShared, nil
	case ConnectionsPerCall, "percall", ConnectionsParagraph:
		return ConnectionsPerCall, nil
	default:
		return "", fmt.Errorf("invalid connection style: %s", style)
	}
}

// FindInterpreter returns the profile registered under name.
func FindInterpreter(name string) (InterpreterConfiguration, bool) {
	for _, ic := range Config.Interpreters {
		if ic.Name == name {
			return ic, true
		}
	}
	return InterpreterConfiguration{}, false
}

// Validate checks configuration for errors
func Validate() error {
	if len(Config.Interpreters) == 0 {
		return fmt.Errorf("at least one interpreter profile is required")
	}

	seen := make(map[string]bool, len(Config.Interpreters))
	for _, ic := range Config.Interpreters {
		if ic.Name == "" {
			return fmt.Errorf("interpreter name is required")
		}
		if seen[ic.Name] {
			return fmt.Errorf("duplicate interpreter name: %s", ic.Name)
		}
		seen[ic.Name] = true

		if ic.Driver == "" {
			return fmt.Errorf("interpreter %s: driver is required", ic.Name)
		}
		if ic.MaxResult < 1 {
			return fmt.Errorf("interpreter %s: max_result must be >= 1", ic.Name)
		}
		if _, err := NormalizeConnections(ic.Connections); err != nil {
			return fmt.Errorf("interpreter %s: %w", ic.Name, err)
		}
	}

	if Config.Admin.Enabled && (Config.Admin.Port < 1 || Config.Admin.Port > 65535) {
		return fmt.Errorf("invalid admin port: %d", Config.Admin.Port)
	}

	if Config.Completion.CacheSize < 1 {
		return fmt.Errorf("completion cache size must be >= 1")
	}

	if Config.Completion.MaxCandidates < 0 {
		return fmt.Errorf("completion max candidates must be >= 0")
	}

	if Config.Prometheus.Enabled && Config.Prometheus.CollectIntervalSeconds < 1 {
		return fmt.Errorf("prometheus collect interval must be >= 1 second")
	}

	if Config.Logging.Format != "" && Config.Logging.Format != "console" && Config.Logging.Format != "json" {
		return fmt.Errorf("invalid logging format: %s", Config.Logging.Format)
	}

	return nil
}
