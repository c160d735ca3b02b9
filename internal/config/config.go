// Package config loads the dynip daemon configuration.
//
// Config is stored at $XDG_CONFIG_HOME/dynip/config.yaml (defaults to
// ~/.config/dynip/config.yaml). A missing file means defaults.
// Selected fields can be overridden from the environment, see applyEnv.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"github.com/Travis-Britz/dynip"
	"github.com/Travis-Britz/dynip/internal/logging"
	"gopkg.in/yaml.v3"
)

const (
	ResolverDNS    = "dns"
	ResolverWeb    = "web"
	ResolverStatic = "static"
)

// Mirror configures the optional Cloudflare copy of the confirmed address.
type Mirror struct {
	Domain    string `yaml:"domain,omitempty"`
	TokenFile string `yaml:"token_file,omitempty"`
	// Token comes from CLOUDFLARE_ZONE_TOKEN and is never written to disk.
	Token string `yaml:"-"`
}

func (m Mirror) Enabled() bool { return m.Domain != "" }

type Config struct {
	APIURL         string        `yaml:"api_url,omitempty"`
	UpdateURL      string        `yaml:"update_url,omitempty"`
	UpdateCheckURL string        `yaml:"update_check_url,omitempty"`
	APIKey         string        `yaml:"api_key,omitempty"`
	Product        string        `yaml:"product,omitempty"`
	MyIPHost       string        `yaml:"myip_host,omitempty"`
	Nameservers    []string      `yaml:"nameservers,omitempty"`
	Resolver       string        `yaml:"resolver,omitempty"` // dns, web or static
	WebResolvers   []string      `yaml:"web_resolvers,omitempty"`
	StaticIP       string        `yaml:"static_ip,omitempty"`
	Interval       time.Duration `yaml:"interval,omitempty"`
	DataDir        string        `yaml:"data_dir,omitempty"`
	LogLevel       string        `yaml:"log_level,omitempty"`
	Mirror         Mirror        `yaml:"mirror,omitempty"`
}

func Default() *Config {
	return &Config{
		APIURL:         dynip.DefaultAPIURL,
		UpdateURL:      dynip.DefaultUpdateURL,
		UpdateCheckURL: dynip.DefaultUpdateCheckURL,
		Product:        dynip.DefaultProduct,
		MyIPHost:       dynip.DefaultMyIPHost,
		Resolver:       ResolverDNS,
		Interval:       dynip.DefaultInterval,
		DataDir:        DefaultDataDir(),
		LogLevel:       logging.LevelInfo,
	}
}

// Path returns the config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/dynip/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "dynip", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "dynip", "config.yaml")
}

// DefaultDataDir is where prefs, history and installers live.
// It respects XDG_STATE_HOME, falling back to ~/.local/state/dynip.
func DefaultDataDir() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".local", "state", "dynip")
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "dynip")
}

// Load reads the config file at path, or Path() when path is empty.
// Fields missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, creating directories as needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = Path()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	// the file may carry an api key
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func (c *Config) applyEnv() {
	c.APIKey = getenv("DYNIP_API_KEY", c.APIKey)
	c.LogLevel = getenv("DYNIP_LOG_LEVEL", c.LogLevel)
	c.DataDir = getenv("DYNIP_DATA_DIR", c.DataDir)
	c.Mirror.Token = getenv("CLOUDFLARE_ZONE_TOKEN", c.Mirror.Token)
}

func (c *Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.Resolver {
	case "", ResolverDNS:
	case ResolverWeb:
		if len(c.WebResolvers) == 0 {
			errs = append(errs, errors.New("resolver \"web\" needs at least one entry in web_resolvers"))
		}
	case ResolverStatic:
		if a, err := netip.ParseAddr(c.StaticIP); err != nil || !a.Is4() {
			errs = append(errs, fmt.Errorf("resolver \"static\" needs an IPv4 static_ip; got %q", c.StaticIP))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown resolver %q", c.Resolver))
	}
	if c.Interval < 0 {
		errs = append(errs, fmt.Errorf("interval cannot be negative: %s", c.Interval))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir cannot be empty"))
	}
	return errors.Join(errs...)
}

func (c *Config) PrefsPath() string    { return filepath.Join(c.DataDir, "prefs.json") }
func (c *Config) HistoryPath() string  { return filepath.Join(c.DataDir, "history.db") }
func (c *Config) InstallerDir() string { return filepath.Join(c.DataDir, "installers") }
