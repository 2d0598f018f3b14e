package conf

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// defaultConfig contains the embedded default configuration file.
// It is the base layer before /etc/configcheck/config.toml and drop-in
// files are applied.
//
//go:embed config.toml
var defaultConfig string

const (
	DefaultPath      = "/etc/configcheck/config.toml"
	DefaultDropInDir = "/etc/configcheck/config.toml.d/"
)

// Config represents the resolved tool settings.
type Config struct {
	LogLevel   slog.Level
	Format     string
	SchemaFile string
	Journal    bool
	Spinner    bool
}

// Update applies non-nil values from a configDTO.
func (c *Config) Update(dto configDTO) {
	if dto.LogLevel != nil {
		c.LogLevel = parseLevel(*dto.LogLevel)
	}
	if dto.Format != nil {
		c.Format = *dto.Format
	}
	if dto.SchemaFile != nil {
		c.SchemaFile = *dto.SchemaFile
	}
	if dto.Journal != nil {
		c.Journal = *dto.Journal
	}
	if dto.Spinner != nil {
		c.Spinner = *dto.Spinner
	}
}

// ParseLevel converts a level name as written in settings files or on the
// command line into a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	level := strings.ToUpper(strings.TrimSpace(s))
	if err := validate.Var(level, "oneof=DEBUG INFO WARN ERROR"); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: must be one of DEBUG, INFO, WARN, ERROR", s)
	}
	return parseLevel(level), nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ConfigSource orchestrates loading configuration from multiple sources.
// See the Read method.
type ConfigSource struct {
	Path      string
	DropInDir string
}

// DefaultSource returns the system-wide configuration locations.
func DefaultSource() *ConfigSource {
	return &ConfigSource{Path: DefaultPath, DropInDir: DefaultDropInDir}
}

// Read loads and returns the complete Config by merging all layers:
// 1. Embedded defaults
// 2. Main configuration file
// 3. Drop-in files
func (cs *ConfigSource) Read() (Config, error) {
	resolved := Config{}

	dto, err := parseConfigDTO(defaultConfig)
	if err != nil {
		return resolved, fmt.Errorf("failed to parse embedded defaults: %w", err)
	}
	resolved.Update(dto)

	data, err := os.ReadFile(cs.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			return resolved, fmt.Errorf("failed to load %s: %w", cs.Path, err)
		}
	} else {
		mainDTO, err := parseConfigDTO(string(data))
		if err != nil {
			// An existing but broken file is an error, not a silent fallback.
			return resolved, fmt.Errorf("failed to parse %s: %w", cs.Path, err)
		}
		resolved.Update(mainDTO)
	}

	dropInDTOs, err := cs.parseDropInFiles()
	if err != nil {
		slog.Debug("failed to load drop-in files", "error", err, "dir", cs.DropInDir)
		return resolved, err
	}
	for _, dropInDTO := range dropInDTOs {
		resolved.Update(dropInDTO)
	}

	return resolved, nil
}

type configDTO struct {
	LogLevel   *string `toml:"log-level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	Format     *string `toml:"format" validate:"omitempty,oneof=text json yaml"`
	SchemaFile *string `toml:"schema-file"`
	Journal    *bool   `toml:"journal"`
	Spinner    *bool   `toml:"spinner"`
}

// parseConfigDTO parses a TOML string into a configDTO and checks the
// values it sets.
func parseConfigDTO(data string) (configDTO, error) {
	var dto configDTO

	md, err := toml.Decode(data, &dto)
	if err != nil {
		return dto, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return dto, fmt.Errorf("unknown settings: %s", strings.Join(keys, ", "))
	}
	if err := checkDTO(dto); err != nil {
		return dto, err
	}

	return dto, nil
}

// findDropInFiles finds and returns sorted paths to drop-in configuration files.
// Returns nil if the drop-in directory doesn't exist (not an error).
func (cs *ConfigSource) findDropInFiles() ([]string, error) {
	if _, err := os.Stat(cs.DropInDir); os.IsNotExist(err) {
		return nil, nil
	}

	entries, err := os.ReadDir(cs.DropInDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read drop-in directory %s: %w", cs.DropInDir, err)
	}

	var filenames []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".toml") {
			filenames = append(filenames, filepath.Join(cs.DropInDir, entry.Name()))
		}
	}

	sort.Strings(filenames)

	return filenames, nil
}

// parseDropInFiles loads .toml files.
func (cs *ConfigSource) parseDropInFiles() ([]configDTO, error) {
	paths, err := cs.findDropInFiles()
	if err != nil {
		return nil, err
	}

	var dtos []configDTO
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		dto, err := parseConfigDTO(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}

		dtos = append(dtos, dto)
	}

	return dtos, nil
}
