package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultStorePath = "data/gaza_timemap.xlsx"
	DefaultSheet     = "EXPORT_EVENTS"
	DefaultInterval  = 6 * time.Hour
)

// ErrStoreUnresolved means no usable store path could be derived.
var ErrStoreUnresolved = errors.New("store location unresolved")

type CommonHTTP struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

type TechForPalestineConfig struct {
	BaseURL string     `yaml:"base_url"` // https://data.techforpalestine.org
	HTTP    CommonHTTP `yaml:"http"`
	// Daily series only: keep the most recent N entries.
	Window int `yaml:"window"`
}

type ReliefWebConfig struct {
	BaseURL string     `yaml:"base_url"` // https://api.reliefweb.int
	AppName string     `yaml:"appname"`
	Country string     `yaml:"country"` // ISO3, default PSE
	Limit   int        `yaml:"limit"`
	HTTP    CommonHTTP `yaml:"http"`
}

type ACLEDConfig struct {
	BaseURL  string     `yaml:"base_url"` // https://acleddata.com
	Username string     `yaml:"username"`
	Password string     `yaml:"password"`
	ClientID string     `yaml:"client_id"`
	Country  string     `yaml:"country"`
	Limit    int        `yaml:"limit"`
	HTTP     CommonHTTP `yaml:"http"`
}

type SourceConfig struct {
	Type string `yaml:"type"` // techforpalestine | techforpalestine-daily | reliefweb | acled
	// Unstable marks a chronically flaky provider; health reports it as
	// degraded instead of unknown when it returns nothing.
	Unstable         *bool                  `yaml:"unstable"`
	TechForPalestine TechForPalestineConfig `yaml:"techforpalestine"`
	ReliefWeb        ReliefWebConfig        `yaml:"reliefweb"`
	ACLED            ACLEDConfig            `yaml:"acled"`
}

type StoreConfig struct {
	Path      string `yaml:"path"`  // workbook path, relative to the working directory
	Sheet     string `yaml:"sheet"` // target sheet, default EXPORT_EVENTS
	StatePath string `yaml:"state_path"`
}

// Resolve returns the absolute workbook path and sheet name.
func (s StoreConfig) Resolve() (string, string, error) {
	p := strings.TrimSpace(s.Path)
	if p == "" {
		p = DefaultStorePath
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrStoreUnresolved, err)
	}
	if fi, err := os.Stat(abs); err == nil && fi.IsDir() {
		return "", "", fmt.Errorf("%w: %s is a directory", ErrStoreUnresolved, abs)
	}
	sheet := strings.TrimSpace(s.Sheet)
	if sheet == "" {
		sheet = DefaultSheet
	}
	return abs, sheet, nil
}

type ScheduleConfig struct {
	Interval   time.Duration `yaml:"interval"`
	RunOnStart *bool         `yaml:"run_on_start"`
}

type ServerConfig struct {
	ListenAddress string        `yaml:"listen_address"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
}

type AssociationRule struct {
	Match    string `yaml:"match"`    // case-insensitive substring of the source name
	Category string `yaml:"category"` // association id in the template
}

type GeoConfig struct {
	CentroidLatitude  string `yaml:"centroid_latitude"`
	CentroidLongitude string `yaml:"centroid_longitude"`
}

type ReloadConfig struct {
	Type    string        `yaml:"type"` // none | http | kafka
	URL     string        `yaml:"url"`
	Method  string        `yaml:"method"`
	Timeout time.Duration `yaml:"timeout"`
	Brokers []string      `yaml:"brokers"`
	Topic   string        `yaml:"topic"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | text
}

type Config struct {
	Store        StoreConfig       `yaml:"store"`
	Schedule     ScheduleConfig    `yaml:"schedule"`
	Server       ServerConfig      `yaml:"server"`
	Sources      []SourceConfig    `yaml:"sources"`
	Associations []AssociationRule `yaml:"associations"`
	Geo          GeoConfig         `yaml:"geo"`
	Reload       ReloadConfig      `yaml:"reload"`
	Log          LogConfig         `yaml:"log"`
}

// DefaultSources is the registration order used when the config lists none.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{Type: "techforpalestine"},
		{Type: "techforpalestine-daily"},
		{Type: "reliefweb"},
		{Type: "acled"},
	}
}

// DefaultAssociations maps provider names onto the template's association ids.
func DefaultAssociations() []AssociationRule {
	return []AssociationRule{
		{Match: "techforpalestine", Category: "casualties"},
		{Match: "reliefweb", Category: "humanitarian"},
	}
}

// Load reads the YAML file at path. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath
	}
	if c.Store.Sheet == "" {
		c.Store.Sheet = DefaultSheet
	}
	if c.Schedule.Interval == 0 {
		c.Schedule.Interval = DefaultInterval
	}
	if c.Schedule.RunOnStart == nil {
		on := true
		c.Schedule.RunOnStart = &on
	}
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":4040"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// on-demand syncs run inside the request
		c.Server.WriteTimeout = 5 * time.Minute
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if len(c.Sources) == 0 {
		c.Sources = DefaultSources()
	}
	if len(c.Associations) == 0 {
		c.Associations = DefaultAssociations()
	}
	if c.Geo.CentroidLatitude == "" {
		c.Geo.CentroidLatitude = "31.3547"
	}
	if c.Geo.CentroidLongitude == "" {
		c.Geo.CentroidLongitude = "34.3088"
	}
	if c.Reload.Type == "" {
		c.Reload.Type = "none"
	}
	if c.Reload.Timeout == 0 {
		c.Reload.Timeout = 30 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) validate() error {
	if c.Schedule.Interval < 0 {
		return fmt.Errorf("schedule.interval must be positive: %s", c.Schedule.Interval)
	}
	seen := map[string]bool{}
	for _, s := range c.Sources {
		if strings.TrimSpace(s.Type) == "" {
			return errors.New("source without type")
		}
		if seen[s.Type] {
			return fmt.Errorf("duplicate source type: %s", s.Type)
		}
		seen[s.Type] = true
	}
	switch c.Reload.Type {
	case "none":
	case "http":
		if strings.TrimSpace(c.Reload.URL) == "" {
			return errors.New("reload.url is required for http reload")
		}
	case "kafka":
		if len(c.Reload.Brokers) == 0 || strings.TrimSpace(c.Reload.Topic) == "" {
			return errors.New("reload.brokers and reload.topic are required for kafka reload")
		}
	default:
		return fmt.Errorf("unknown reload type: %s", c.Reload.Type)
	}
	return nil
}
