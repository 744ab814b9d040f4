// Package settings manages persistent user settings for the ctlsh CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Backend kinds.
const (
	BackendREST   = "rest"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

const (
	defaultController = "localhost:8000"
	defaultRedisAddr  = "localhost:6379"
	defaultCacheTTL   = 2 * time.Second
)

// Settings holds persistent user preferences
type Settings struct {
	// Backend is "rest", "redis" or "memory"
	Backend string `json:"backend,omitempty"`

	// Controller is the REST API host[:port] or base URL
	Controller string `json:"controller,omitempty"`

	// RedisAddr and RedisDB locate the Redis backend
	RedisAddr string `json:"redis_addr,omitempty"`
	RedisDB   int    `json:"redis_db,omitempty"`

	// HistoryFile is the REPL history file
	HistoryFile string `json:"history_file,omitempty"`

	// AuditLog is the JSON-lines audit file; "-" disables auditing
	AuditLog string `json:"audit_log,omitempty"`

	// CacheTTL is how long REST GET responses are reused, e.g. "2s"
	CacheTTL string `json:"cache_ttl,omitempty"`
}

// Keys lists the names accepted by Get and Set, in display order.
var Keys = []string{"backend", "controller", "redis_addr", "redis_db", "history_file", "audit_log", "cache_ttl"}

// Dir returns the per-user ctlsh directory
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ctlsh"
	}
	return filepath.Join(home, ".ctlsh")
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	return filepath.Join(Dir(), "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetBackend returns the backend kind (with fallback)
func (s *Settings) GetBackend() string {
	if s.Backend != "" {
		return s.Backend
	}
	return BackendREST
}

// GetController returns the controller address (with fallback)
func (s *Settings) GetController() string {
	if s.Controller != "" {
		return s.Controller
	}
	return defaultController
}

// GetRedisAddr returns the Redis address (with fallback)
func (s *Settings) GetRedisAddr() string {
	if s.RedisAddr != "" {
		return s.RedisAddr
	}
	return defaultRedisAddr
}

// GetHistoryFile returns the REPL history path (with fallback)
func (s *Settings) GetHistoryFile() string {
	if s.HistoryFile != "" {
		return s.HistoryFile
	}
	return filepath.Join(Dir(), "history")
}

// GetAuditLog returns the audit log path (with fallback). An empty
// result means auditing is off.
func (s *Settings) GetAuditLog() string {
	switch s.AuditLog {
	case "":
		return filepath.Join(Dir(), "audit.log")
	case "-":
		return ""
	}
	return s.AuditLog
}

// GetCacheTTL returns the REST cache lifetime (with fallback)
func (s *Settings) GetCacheTTL() time.Duration {
	if s.CacheTTL == "" {
		return defaultCacheTTL
	}
	d, err := time.ParseDuration(s.CacheTTL)
	if err != nil || d < 0 {
		return defaultCacheTTL
	}
	return d
}

// Get returns the stored value of key, empty when unset.
func (s *Settings) Get(key string) (string, error) {
	switch key {
	case "backend":
		return s.Backend, nil
	case "controller":
		return s.Controller, nil
	case "redis_addr":
		return s.RedisAddr, nil
	case "redis_db":
		if s.RedisDB == 0 {
			return "", nil
		}
		return strconv.Itoa(s.RedisDB), nil
	case "history_file":
		return s.HistoryFile, nil
	case "audit_log":
		return s.AuditLog, nil
	case "cache_ttl":
		return s.CacheTTL, nil
	}
	return "", fmt.Errorf("unknown setting %q (valid: %v)", key, Keys)
}

// Set validates and stores value under key. An empty value clears it.
func (s *Settings) Set(key, value string) error {
	switch key {
	case "backend":
		switch value {
		case "", BackendREST, BackendRedis, BackendMemory:
		default:
			return fmt.Errorf("backend must be %s, %s or %s", BackendREST, BackendRedis, BackendMemory)
		}
		s.Backend = value
	case "controller":
		s.Controller = value
	case "redis_addr":
		s.RedisAddr = value
	case "redis_db":
		if value == "" {
			s.RedisDB = 0
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("redis_db must be a non-negative integer")
		}
		s.RedisDB = n
	case "history_file":
		s.HistoryFile = value
	case "audit_log":
		s.AuditLog = value
	case "cache_ttl":
		if value != "" {
			if d, err := time.ParseDuration(value); err != nil || d < 0 {
				return fmt.Errorf("cache_ttl must be a duration such as 2s")
			}
		}
		s.CacheTTL = value
	default:
		return fmt.Errorf("unknown setting %q (valid: %v)", key, Keys)
	}
	return nil
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
