package config

import (
	"github.com/danmuck/msgslot/internal/protocol/session"
	"github.com/danmuck/msgslot/internal/slot"
)

// SessionConfig maps the file settings onto the transport config slotd serves with.
func (c ServerConfig) SessionConfig() (session.Config, error) {
	read, write, err := c.Durations()
	if err != nil {
		return session.Config{}, err
	}
	cfg := session.DefaultConfig()
	cfg.ReadTimeout = read
	cfg.WriteTimeout = write
	cfg.SecurityMode = session.SecurityMode(c.SecurityMode)
	cfg.TLS = session.TLSConfig{
		Enabled:  c.TLS.Enabled,
		Mutual:   c.TLS.Mutual,
		CertFile: c.TLS.CertFile,
		KeyFile:  c.TLS.KeyFile,
		CAFile:   c.TLS.CAFile,
	}
	return cfg.WithDefaults(), nil
}

func (c ServerConfig) SlotOptions() slot.Options {
	return slot.Options{
		MaxMessageLen: c.MaxMessageLen,
		MaxChannels:   c.MaxChannels,
	}
}

func (c ServerConfig) SlotIDs() []slot.SlotID {
	ids := make([]slot.SlotID, 0, len(c.Slots))
	for _, id := range c.Slots {
		ids = append(ids, slot.SlotID(id))
	}
	return ids
}
