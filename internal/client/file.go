package client

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/msgslot/internal/protocol/frame"
	"github.com/danmuck/msgslot/internal/protocol/schema"
	"github.com/danmuck/msgslot/internal/protocol/session"
	"github.com/danmuck/msgslot/internal/slot"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// File is one open handle on a remote slot. Calls are serialized.
type File struct {
	cfg    Config
	conn   net.Conn
	reader *bufio.Reader
	slot   uint32
	mode   slot.Mode
	rng    *rand.Rand

	mu     sync.Mutex
	nextID uint64
	closed bool
}

// Open dials slotd and opens slotID with mode. A missing slot fails with ENODEV.
func Open(ctx context.Context, cfg Config, slotID uint32, mode slot.Mode) (*File, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	cfg.Session = cfg.Session.WithDefaults()
	f := &File{
		cfg:  cfg,
		slot: slotID,
		mode: mode,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	var attempt int
	for {
		attempt++
		conn, err := f.dial(ctx)
		if err == nil {
			f.conn = conn
			f.reader = bufio.NewReader(conn)
			break
		}
		log.Debug().Err(err).Int("attempt", attempt).Str("addr", cfg.Address).Msg("client dial failed")
		if cfg.MaxConnectAttempts > 0 && attempt >= cfg.MaxConnectAttempts {
			return nil, err
		}
		if err := session.SleepBackoff(ctx, cfg.Session.Backoff, attempt, f.rng); err != nil {
			return nil, err
		}
	}

	if _, err := f.roundTrip(session.Request{Type: schema.MsgOpen, SlotID: slotID, Mode: uint8(mode)}); err != nil {
		_ = f.conn.Close()
		return nil, err
	}
	return f, nil
}

func (f *File) dial(ctx context.Context) (net.Conn, error) {
	if err := f.cfg.Session.ValidateClientTransport(); err != nil {
		return nil, err
	}
	dialer := net.Dialer{Timeout: f.cfg.Session.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", f.cfg.Address)
	if err != nil {
		return nil, err
	}
	if !f.cfg.Session.TLS.Enabled {
		return rawConn, nil
	}
	tlsCfg, err := f.cfg.Session.ClientTLSConfig(f.cfg.Address)
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, f.cfg.Session.HandshakeTimeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	return conn, nil
}

func (f *File) Slot() uint32 {
	return f.slot
}

func (f *File) Mode() slot.Mode {
	return f.mode
}

// SelectChannel binds this handle to channel.
func (f *File) SelectChannel(channel uint64) error {
	_, err := f.roundTrip(session.Request{Type: schema.MsgSelectChannel, Channel: channel})
	return err
}

// Write replaces the selected channel's message with p.
func (f *File) Write(p []byte) (int, error) {
	resp, err := f.roundTrip(session.Request{Type: schema.MsgWrite, Payload: p})
	if err != nil {
		return 0, err
	}
	return int(resp.Count), nil
}

// Read copies the selected channel's message into p. It fails with ENOSPC
// when p is shorter than the message and EAGAIN when the channel is empty.
func (f *File) Read(p []byte) (int, error) {
	resp, err := f.roundTrip(session.Request{Type: schema.MsgRead, Capacity: uint32(len(p))})
	if err != nil {
		return 0, err
	}
	return copy(p, resp.Payload), nil
}

// ReadWait retries Read with backoff while the channel is empty.
func (f *File) ReadWait(ctx context.Context, p []byte) (int, error) {
	for attempt := 1; ; attempt++ {
		n, err := f.Read(p)
		if !errors.Is(err, unix.EAGAIN) {
			return n, err
		}
		if err := session.SleepBackoff(ctx, f.cfg.Session.Backoff, attempt, f.rng); err != nil {
			return 0, err
		}
	}
}

// Close releases the remote handle and the connection.
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFileClosed
	}
	f.mu.Unlock()

	_, err := f.roundTrip(session.Request{Type: schema.MsgClose})

	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	if cerr := f.conn.Close(); err == nil && cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = cerr
	}
	return err
}

func (f *File) roundTrip(req session.Request) (session.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	op := schema.MessageName(req.Type)
	if f.closed {
		return session.Response{}, fmt.Errorf("%s: %w", op, ErrFileClosed)
	}

	f.nextID++
	messageID := f.nextID
	payload, err := session.EncodeRequestFrame(messageID, req)
	if err != nil {
		return session.Response{}, err
	}
	_ = f.conn.SetWriteDeadline(time.Now().Add(f.cfg.Session.WriteTimeout))
	if _, err := f.conn.Write(payload); err != nil {
		return session.Response{}, fmt.Errorf("%s: %w", op, err)
	}

	_ = f.conn.SetReadDeadline(time.Now().Add(f.cfg.Session.ReadTimeout))
	fr, err := session.ReadFrame(f.reader, frame.DefaultLimits())
	if err != nil {
		return session.Response{}, fmt.Errorf("%s: %w", op, err)
	}
	if fr.Header.MessageID != messageID {
		return session.Response{}, fmt.Errorf("%s: %w: got=%d want=%d", op, ErrMessageIDSkew, fr.Header.MessageID, messageID)
	}
	resp, err := session.DecodeResponseFrame(fr)
	if err != nil {
		return session.Response{}, fmt.Errorf("%s: %w", op, err)
	}
	if resp.Failed() {
		errno := unix.Errno(resp.Errno)
		if errno == 0 {
			errno = unix.EIO
		}
		return resp, &ResultError{Op: op, Errno: errno, Detail: resp.Detail}
	}
	return resp, nil
}
