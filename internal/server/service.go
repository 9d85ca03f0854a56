package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/msgslot/internal/config"
	"github.com/danmuck/msgslot/internal/protocol/frame"
	"github.com/danmuck/msgslot/internal/protocol/session"
	"github.com/danmuck/msgslot/internal/slot"
	"github.com/rs/zerolog/log"
)

// ServiceConfig is the runtime shape of slotd settings.
type ServiceConfig struct {
	ListenAddr      string
	AdminListenAddr string
	// AdminToken, when set, is required as a bearer token on /slots routes.
	AdminToken      string
	CorsOrigins     []string
	Slots           []slot.SlotID
	Slot            slot.Options
	Session         session.Config
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddr: config.DefaultListenAddr,
		Slots:      []slot.SlotID{0},
		Slot:       slot.DefaultOptions(),
		Session:    session.DefaultConfig(),
	}
}

// ServiceConfigFrom converts a loaded config file into a ServiceConfig.
func ServiceConfigFrom(fc config.ServerConfig) (ServiceConfig, error) {
	sess, err := fc.SessionConfig()
	if err != nil {
		return ServiceConfig{}, err
	}
	return ServiceConfig{
		ListenAddr:      fc.ListenAddr,
		AdminListenAddr: fc.AdminListenAddr,
		AdminToken:      fc.AdminToken,
		CorsOrigins:     fc.CorsOrigins,
		Slots:           fc.SlotIDs(),
		Slot:            fc.SlotOptions(),
		Session:         sess,
	}, nil
}

// Service owns the slot registry and every live handle connection.
type Service struct {
	cfg      ServiceConfig
	registry *slot.Registry
	limits   frame.Limits
	started  time.Time

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	clientCount atomic.Int64
	ready       atomic.Bool
}

// NewService registers every configured slot. Slots exist from here until
// Run returns.
func NewService(cfg ServiceConfig) (*Service, error) {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = DefaultServiceConfig().ListenAddr
	}
	if len(cfg.Slots) == 0 {
		cfg.Slots = DefaultServiceConfig().Slots
	}
	cfg.Session = cfg.Session.WithDefaults()
	registry := slot.NewRegistry(cfg.Slot)
	for _, id := range cfg.Slots {
		if err := registry.Register(id); err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
	}
	return &Service{
		cfg:      cfg,
		registry: registry,
		limits:   frame.DefaultLimits(),
		started:  time.Now(),
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

func (s *Service) Registry() *slot.Registry {
	return s.registry
}

// ActiveClients reports the number of open handle connections.
func (s *Service) ActiveClients() int64 {
	return s.clientCount.Load()
}

// Run listens on the configured address, serves the admin API when an admin
// address is set, and blocks until ctx ends. Stored messages are discarded
// once it returns.
func (s *Service) Run(ctx context.Context) error {
	if err := s.cfg.Session.ValidateServerTransport(); err != nil {
		return err
	}
	ln, err := s.listen()
	if err != nil {
		return err
	}
	defer s.registry.TeardownAll()
	log.Info().
		Str("addr", ln.Addr().String()).
		Bool("tls", s.cfg.Session.TLS.Enabled).
		Int("slots", len(s.cfg.Slots)).
		Msg("slotd listening")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	adminErr := make(chan error, 1)
	if addr := strings.TrimSpace(s.cfg.AdminListenAddr); addr != "" {
		go func() {
			adminErr <- s.serveAdmin(ctx, addr)
		}()
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(ctx, ln)
	}()
	select {
	case err := <-serveErr:
		return err
	case err := <-adminErr:
		if err != nil {
			cancel()
			<-serveErr
			return err
		}
		return <-serveErr
	}
}

// Serve accepts handle connections on ln until ctx ends, then closes every
// tracked connection.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.cfg.Session.ValidateServerTransport(); err != nil {
		return err
	}
	defer ln.Close()
	go func() {
		<-ctx.Done()
		s.closeAllConns()
		_ = ln.Close()
	}()

	s.ready.Store(true)
	defer s.ready.Store(false)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		go s.handleConn(conn)
	}
}

func (s *Service) listen() (net.Listener, error) {
	if !s.cfg.Session.TLS.Enabled {
		return net.Listen("tcp", s.cfg.ListenAddr)
	}
	tlsCfg, err := s.cfg.Session.ServerTLSConfig()
	if err != nil {
		return nil, err
	}
	return tls.Listen("tcp", s.cfg.ListenAddr, tlsCfg)
}

func (s *Service) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Service) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

func (s *Service) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}
