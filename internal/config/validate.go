package config

import (
	"fmt"
	"strings"
)

func Validate(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("slotd config missing listen_addr")
	}
	if len(cfg.Slots) == 0 {
		return fmt.Errorf("slotd config requires at least one slot")
	}
	seen := make(map[uint32]struct{}, len(cfg.Slots))
	for i, id := range cfg.Slots {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("slots[%d] invalid: duplicate slot id %d", i, id)
		}
		seen[id] = struct{}{}
	}
	if cfg.MaxMessageLen < 1 {
		return fmt.Errorf("max_message_len must be positive, got %d", cfg.MaxMessageLen)
	}
	if cfg.MaxChannels < 0 {
		return fmt.Errorf("max_channels must not be negative, got %d", cfg.MaxChannels)
	}
	read, write, err := cfg.Durations()
	if err != nil {
		return err
	}
	if read <= 0 || write <= 0 {
		return fmt.Errorf("read_timeout and write_timeout must be positive")
	}
	switch cfg.SecurityMode {
	case "", "development", "production":
	default:
		return fmt.Errorf("security_mode %q not recognized", cfg.SecurityMode)
	}
	if cfg.TLS.Enabled {
		if strings.TrimSpace(cfg.TLS.CertFile) == "" || strings.TrimSpace(cfg.TLS.KeyFile) == "" {
			return fmt.Errorf("tls requires cert_file and key_file")
		}
	}
	if cfg.SecurityMode == "production" && cfg.AdminListenAddr != "" && cfg.AdminToken == "" {
		return fmt.Errorf("production admin api requires admin_token")
	}
	if cfg.TLS.Mutual && strings.TrimSpace(cfg.TLS.CAFile) == "" {
		return fmt.Errorf("tls.mutual requires ca_file")
	}
	return nil
}
