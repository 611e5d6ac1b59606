// Package config handles portctl configuration loading.
//
// The config file is a flat mapping of setting name to string value,
// written as YAML or JSON:
//
//	base_url: https://192.168.1.1:8443
//	login: admin
//	password: ${UNIFI_PASSWORD}
//	device_id: 6263dec9fadf8300220bd18a
//	port_profile_up: 6263dec9fadf8300220bd18b
//	port_profile_down: 6263dec9fadf8300220bd18c
//
// ${VAR} references inside values are expanded from the environment after
// the document is decoded; any other $ is kept as written, so a password
// like pa$$w0rd survives unchanged. A .env file next to the config file is
// loaded first, without overriding variables that are already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nugget/portctl/internal/paths"
)

// Setting names recognized in the config file.
const (
	KeyBaseURL            = "base_url"
	KeyLogin              = "login"
	KeyPassword           = "password"
	KeyDeviceID           = "device_id"
	KeyPortProfileUp      = "port_profile_up"
	KeyPortProfileDown    = "port_profile_down"
	KeySite               = "site"
	KeyInsecureSkipVerify = "insecure_skip_verify"
	KeyTimeout            = "timeout"
	KeyLogLevel           = "log_level"
	KeyLogFormat          = "log_format"
)

// RequiredKeys lists the settings every config file must supply, in the
// order they are checked.
var RequiredKeys = []string{
	KeyBaseURL,
	KeyLogin,
	KeyPassword,
	KeyDeviceID,
	KeyPortProfileUp,
	KeyPortProfileDown,
}

// Defaults for optional settings.
const (
	DefaultSite    = "default"
	DefaultTimeout = 15 * time.Second
)

// ErrMissingSetting is wrapped by the error returned when a required
// setting is absent or empty.
var ErrMissingSetting = errors.New("missing required setting")

// extensions are tried in order when the configured path does not exist.
var extensions = []string{".yaml", ".yml", ".json"}

// Config holds all portctl configuration. It is populated once by Load
// and not modified afterwards.
type Config struct {
	BaseURL         string
	Login           string
	Password        string
	DeviceID        string
	PortProfileUp   string
	PortProfileDown string

	// Site is the controller site the device belongs to.
	Site string
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
	// Timeout bounds each HTTP request to the controller.
	Timeout time.Duration
	// LogLevel is the raw level name; see ParseLogLevel.
	LogLevel string
	// LogFormat is "text" or "json".
	LogFormat string
}

// Resolve locates the config file for path. A leading ~ is expanded to
// the home directory. The path itself is used if it exists; otherwise
// path with each of .yaml, .yml and .json appended is tried in turn.
func Resolve(path string) (string, error) {
	if path == "" {
		return "", errors.New("config file path is empty")
	}
	path = paths.ExpandHome(path)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	for _, ext := range extensions {
		candidate := path + ext
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("config file not found: %s", path)
}

// Load reads configuration from the file at path, which must already
// have been resolved.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	settings := map[string]string{}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	for k, v := range settings {
		settings[k] = expandEnv(v)
	}

	return FromSettings(settings)
}

// FromSettings builds a Config from a flat settings map, applying
// defaults and validating every value.
func FromSettings(settings map[string]string) (*Config, error) {
	for _, key := range RequiredKeys {
		if strings.TrimSpace(settings[key]) == "" {
			return nil, fmt.Errorf("%w %q", ErrMissingSetting, key)
		}
	}

	cfg := &Config{
		BaseURL:            settings[KeyBaseURL],
		Login:              settings[KeyLogin],
		Password:           settings[KeyPassword],
		DeviceID:           settings[KeyDeviceID],
		PortProfileUp:      settings[KeyPortProfileUp],
		PortProfileDown:    settings[KeyPortProfileDown],
		Site:               DefaultSite,
		InsecureSkipVerify: true,
		Timeout:            DefaultTimeout,
		LogLevel:           settings[KeyLogLevel],
		LogFormat:          LogFormatText,
	}

	if v := strings.TrimSpace(settings[KeySite]); v != "" {
		cfg.Site = v
	}

	if v := strings.TrimSpace(settings[KeyInsecureSkipVerify]); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", KeyInsecureSkipVerify, v, err)
		}
		cfg.InsecureSkipVerify = b
	}

	if v := strings.TrimSpace(settings[KeyTimeout]); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", KeyTimeout, v, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid %s %q: must be positive", KeyTimeout, v)
		}
		cfg.Timeout = d
	}

	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}

	if v := strings.TrimSpace(settings[KeyLogFormat]); v != "" {
		if err := ValidateLogFormat(v); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", KeyLogFormat, err)
		}
		cfg.LogFormat = v
	}

	return cfg, nil
}

// envRef matches the braced ${NAME} form. Bare $NAME is not a reference.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces each ${NAME} in s with the value of the environment
// variable NAME, or the empty string if it is unset.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

// loadDotEnv loads path into the process environment if it exists.
// Variables already set in the environment win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
