package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"sst/src/clipboard"
)

const (
	ConfigPathEnvVar = "SST_CONFIG"
	EnvFileEnvVar    = "SST_ENV_FILE"

	configDirName  = "sst"
	configFileName = "config.toml"

	DefaultSaveDir   = "/tmp/"
	DefaultLineWidth = 2
	maxLineWidth     = 255
)

type LoadOptions struct {
	ConfigPath       string
	SaveDir          string
	LineWidth        int
	OutlineColor     string
	ClipboardBackend string
	Display          string
}

type Config struct {
	SaveDir          string   `toml:"save_dir"`
	LineWidth        int      `toml:"line_width"`
	OutlineColor     RGB      `toml:"outline_color"`
	ClipboardBackend string   `toml:"clipboard"`
	ClipboardCommand []string `toml:"clipboard_command"`
	ClipboardHoldSec int      `toml:"clipboard_hold_sec"`
	Display          string   `toml:"display,omitempty"`

	EnableFileLogging bool   `toml:"enable_file_logging"`
	LogFile           string `toml:"log_file,omitempty"`

	// Path is the config file that was read, empty if none.
	Path string `toml:"-"`
}

func Default() *Config {
	return &Config{
		SaveDir:          DefaultSaveDir,
		LineWidth:        DefaultLineWidth,
		OutlineColor:     RGB{R: 0xff},
		ClipboardBackend: clipboard.BackendCommand,
		ClipboardCommand: append([]string{}, clipboard.DefaultCommand...),
	}
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

// LoadWithOptions resolves the configuration from, lowest precedence first:
// built-in defaults, the TOML config file, a .env file, the environment and opts.
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	cfg := Default()

	path, explicit := resolveConfigPath(opts)
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else {
			cfg.Path = path
		}
	}

	if envPath := resolveEnvPath(); envPath != "" {
		_ = godotenv.Load(envPath)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ClipboardHold is how long the native clipboard backend keeps serving the image.
func (c *Config) ClipboardHold() time.Duration {
	return time.Duration(c.ClipboardHoldSec) * time.Second
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.SaveDir) == "" {
		return errors.New("save_dir must not be empty")
	}
	if c.LineWidth < 1 || c.LineWidth > maxLineWidth {
		return fmt.Errorf("line_width must be between 1 and %d, got %d", maxLineWidth, c.LineWidth)
	}
	switch c.ClipboardBackend {
	case clipboard.BackendCommand:
		if len(c.ClipboardCommand) == 0 {
			return errors.New("clipboard_command must not be empty for the command backend")
		}
	case clipboard.BackendNative, clipboard.BackendPath, clipboard.BackendNone:
	default:
		return fmt.Errorf("unknown clipboard backend %q", c.ClipboardBackend)
	}
	if c.ClipboardHoldSec < 0 {
		return fmt.Errorf("clipboard_hold_sec must not be negative, got %d", c.ClipboardHoldSec)
	}
	return nil
}

// DefaultPath returns <user config dir>/sst/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configDirName, configFileName), nil
}

// WriteFile stores cfg as TOML at path, creating the parent directory.
func WriteFile(path string, cfg *Config) error {
	var buf bytes.Buffer
	if err := Encode(&buf, cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func Encode(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// PathFor returns the config file LoadWithOptions would read for opts.
func PathFor(opts LoadOptions) (string, error) {
	path, _ := resolveConfigPath(opts)
	if path == "" {
		return "", fmt.Errorf("no config path: set --config or %s", ConfigPathEnvVar)
	}
	return path, nil
}

func resolveConfigPath(opts LoadOptions) (string, bool) {
	if p := strings.TrimSpace(opts.ConfigPath); p != "" {
		return p, true
	}
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnvVar)); p != "" {
		return p, true
	}
	p, err := DefaultPath()
	if err != nil {
		return "", false
	}
	return p, false
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("SST_SAVE_DIR")); v != "" {
		cfg.SaveDir = v
	}
	if v := strings.TrimSpace(os.Getenv("SST_LINE_WIDTH")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SST_LINE_WIDTH %q: %w", v, err)
		}
		cfg.LineWidth = n
	}
	if v := strings.TrimSpace(os.Getenv("SST_OUTLINE_COLOR")); v != "" {
		c, err := ParseRGB(v)
		if err != nil {
			return fmt.Errorf("invalid SST_OUTLINE_COLOR: %w", err)
		}
		cfg.OutlineColor = c
	}
	if v := strings.TrimSpace(os.Getenv("SST_CLIPBOARD")); v != "" {
		cfg.ClipboardBackend = strings.ToLower(v)
	}
	if v := strings.Fields(os.Getenv("SST_CLIPBOARD_COMMAND")); len(v) > 0 {
		cfg.ClipboardCommand = v
	}
	if v := strings.TrimSpace(os.Getenv("SST_CLIPBOARD_HOLD_SEC")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SST_CLIPBOARD_HOLD_SEC %q: %w", v, err)
		}
		cfg.ClipboardHoldSec = n
	}
	if v := strings.TrimSpace(os.Getenv("DISPLAY")); v != "" {
		cfg.Display = v
	}
	if v := os.Getenv("ENABLE_FILE_LOGGING"); v != "" {
		cfg.EnableFileLogging = strings.ToLower(v) == "true"
	}
	if v := strings.TrimSpace(os.Getenv("SST_LOG_FILE")); v != "" {
		cfg.LogFile = v
	}
	return nil
}

func applyOptions(cfg *Config, opts LoadOptions) error {
	if v := strings.TrimSpace(opts.SaveDir); v != "" {
		cfg.SaveDir = v
	}
	if opts.LineWidth != 0 {
		cfg.LineWidth = opts.LineWidth
	}
	if v := strings.TrimSpace(opts.OutlineColor); v != "" {
		c, err := ParseRGB(v)
		if err != nil {
			return fmt.Errorf("invalid outline color: %w", err)
		}
		cfg.OutlineColor = c
	}
	if v := strings.TrimSpace(opts.ClipboardBackend); v != "" {
		cfg.ClipboardBackend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(opts.Display); v != "" {
		cfg.Display = v
	}
	return nil
}
