package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ServerConfig is the on-disk slotd configuration.
type ServerConfig struct {
	ListenAddr      string    `toml:"listen_addr" yaml:"listen_addr"`
	AdminListenAddr string    `toml:"admin_listen_addr" yaml:"admin_listen_addr"`
	AdminToken      string    `toml:"admin_token" yaml:"admin_token"`
	CorsOrigins     []string  `toml:"cors_origins" yaml:"cors_origins"`
	Slots           []uint32  `toml:"slots" yaml:"slots"`
	MaxMessageLen   int       `toml:"max_message_len" yaml:"max_message_len"`
	MaxChannels     int       `toml:"max_channels" yaml:"max_channels"`
	ReadTimeout     string    `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    string    `toml:"write_timeout" yaml:"write_timeout"`
	SecurityMode    string    `toml:"security_mode" yaml:"security_mode"`
	TLS             TLSConfig `toml:"tls" yaml:"tls"`
}

type TLSConfig struct {
	Enabled  bool   `toml:"enabled" yaml:"enabled"`
	Mutual   bool   `toml:"mutual" yaml:"mutual"`
	CertFile string `toml:"cert_file" yaml:"cert_file"`
	KeyFile  string `toml:"key_file" yaml:"key_file"`
	CAFile   string `toml:"ca_file" yaml:"ca_file"`
}

const (
	DefaultListenAddr    = "127.0.0.1:7235"
	DefaultMaxMessageLen = 128
	DefaultReadTimeout   = "5m"
	DefaultWriteTimeout  = "15s"
)

// DefaultServerConfig registers slot 0 only, matching a single device node.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:    DefaultListenAddr,
		Slots:         []uint32{0},
		MaxMessageLen: DefaultMaxMessageLen,
		ReadTimeout:   DefaultReadTimeout,
		WriteTimeout:  DefaultWriteTimeout,
		SecurityMode:  "development",
	}
}

// Load reads a toml or yaml file chosen by extension, fills defaults, and validates.
func Load(path string) (ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	var cfg ServerConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml", "":
		err = toml.Unmarshal(data, &cfg)
	default:
		return ServerConfig{}, fmt.Errorf("config load failed (%s): unsupported extension", path)
	}
	if err != nil {
		return ServerConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	cfg = Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// Normalize trims strings and fills zero values from DefaultServerConfig.
func Normalize(cfg ServerConfig) ServerConfig {
	def := DefaultServerConfig()
	cfg.ListenAddr = strings.TrimSpace(cfg.ListenAddr)
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	cfg.AdminListenAddr = strings.TrimSpace(cfg.AdminListenAddr)
	cfg.AdminToken = strings.TrimSpace(cfg.AdminToken)
	if len(cfg.Slots) == 0 {
		cfg.Slots = def.Slots
	}
	if cfg.MaxMessageLen == 0 {
		cfg.MaxMessageLen = def.MaxMessageLen
	}
	if strings.TrimSpace(cfg.ReadTimeout) == "" {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if strings.TrimSpace(cfg.WriteTimeout) == "" {
		cfg.WriteTimeout = def.WriteTimeout
	}
	cfg.SecurityMode = strings.ToLower(strings.TrimSpace(cfg.SecurityMode))
	if cfg.SecurityMode == "" {
		cfg.SecurityMode = def.SecurityMode
	}
	origins := make([]string, 0, len(cfg.CorsOrigins))
	for _, o := range cfg.CorsOrigins {
		if v := strings.TrimSpace(o); v != "" {
			origins = append(origins, v)
		}
	}
	cfg.CorsOrigins = origins
	return cfg
}

// Durations parses the read and write timeouts.
func (c ServerConfig) Durations() (read time.Duration, write time.Duration, err error) {
	read, err = time.ParseDuration(strings.TrimSpace(c.ReadTimeout))
	if err != nil {
		return 0, 0, fmt.Errorf("parse read_timeout: %w", err)
	}
	write, err = time.ParseDuration(strings.TrimSpace(c.WriteTimeout))
	if err != nil {
		return 0, 0, fmt.Errorf("parse write_timeout: %w", err)
	}
	return read, write, nil
}
