package session

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/msgslot/internal/protocol/frame"
	"github.com/danmuck/msgslot/internal/protocol/schema"
	"github.com/danmuck/msgslot/internal/testutil/testlog"
	"github.com/danmuck/msgslot/internal/testutil/tlstest"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}
	want := []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, time.Second}
	for i, w := range want {
		if got := NextBackoffDelay(cfg, i+1, nil); got != w {
			t.Fatalf("attempt%d got=%v want=%v", i+1, got, w)
		}
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestNextBackoffDelayJitterRange(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2.0, Jitter: true}
	rng := rand.New(rand.NewSource(7))
	got := NextBackoffDelay(cfg, 2, rng)
	if got < 100*time.Millisecond || got > 300*time.Millisecond {
		t.Fatalf("jitter out of range: %v", got)
	}
}

func TestSleepBackoffHonorsContext(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := SleepBackoff(ctx, BackoffConfig{InitialDelay: time.Hour}, 1, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	testlog.Start(t)
	cfg := Config{SecurityMode: " Production "}.WithDefaults()
	def := DefaultConfig()
	if cfg.ReadTimeout != def.ReadTimeout || cfg.ConnectTimeout != def.ConnectTimeout {
		t.Fatalf("durations not defaulted: %+v", cfg)
	}
	if cfg.Backoff != def.Backoff {
		t.Fatalf("backoff not defaulted: %+v", cfg.Backoff)
	}
	if cfg.SecurityMode != SecurityModeProduction {
		t.Fatalf("security mode not normalized: %q", cfg.SecurityMode)
	}
}

func TestRequestFramesRoundTrip(t *testing.T) {
	testlog.Start(t)
	cases := []Request{
		{Type: schema.MsgOpen, SlotID: 7, Mode: 1},
		{Type: schema.MsgSelectChannel, Channel: 99999},
		{Type: schema.MsgWrite, Payload: []byte("hello world")},
		{Type: schema.MsgRead, Capacity: 128},
		{Type: schema.MsgClose},
	}
	for _, in := range cases {
		raw, err := EncodeRequestFrame(11, in)
		if err != nil {
			t.Fatalf("encode %s: %v", schema.MessageName(in.Type), err)
		}
		f, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if f.Header.MessageID != 11 {
			t.Fatalf("message id lost: %d", f.Header.MessageID)
		}
		out, err := DecodeRequestFrame(f)
		if err != nil {
			t.Fatalf("decode %s: %v", schema.MessageName(in.Type), err)
		}
		if out.Type != in.Type || out.SlotID != in.SlotID || out.Mode != in.Mode ||
			out.Channel != in.Channel || out.Capacity != in.Capacity || !bytes.Equal(out.Payload, in.Payload) {
			t.Fatalf("round-trip mismatch: got=%+v want=%+v", out, in)
		}
	}
}

func TestEncodeRequestRejectsResultType(t *testing.T) {
	testlog.Start(t)
	if _, err := EncodeRequestFrame(1, Request{Type: schema.MsgResult}); err == nil {
		t.Fatalf("expected error for result as request")
	}
}

func TestResponseFramesCarryErrorFlag(t *testing.T) {
	testlog.Start(t)
	raw, err := EncodeResponseFrame(5, ErrorResponse(28, "slot: buffer too small for message"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, err := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if f.Header.Flags&frame.FlagIsError == 0 || f.Header.Flags&frame.FlagIsResponse == 0 {
		t.Fatalf("unexpected flags: %#x", f.Header.Flags)
	}
	resp, err := DecodeResponseFrame(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Failed() || resp.Errno != 28 || resp.Detail == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	raw, _ = EncodeResponseFrame(6, OKResponse(11, []byte("hello world")))
	f, _ = ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	resp, err = DecodeResponseFrame(f)
	if err != nil {
		t.Fatalf("decode ok: %v", err)
	}
	if resp.Failed() || resp.Count != 11 || string(resp.Payload) != "hello world" {
		t.Fatalf("unexpected ok response: %+v", resp)
	}
}

func TestDecodeResponseRejectsRequestFrame(t *testing.T) {
	testlog.Start(t)
	raw, _ := EncodeRequestFrame(1, Request{Type: schema.MsgClose})
	f, _ := ReadFrame(bytes.NewReader(raw), frame.DefaultLimits())
	if _, err := DecodeResponseFrame(f); err == nil {
		t.Fatalf("expected error decoding request as response")
	}
}

func TestValidateClientTransportProductionRequiresTLS(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.SecurityMode = SecurityModeProduction
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSRequired) {
		t.Fatalf("expected ErrTLSRequired, got %v", err)
	}
	cfg.TLS.Enabled = true
	cfg.TLS.InsecureSkipVerify = true
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSInsecureSkipNotAllow) {
		t.Fatalf("expected ErrTLSInsecureSkipNotAllow, got %v", err)
	}
}

func TestValidateClientTransportMutualRequiresCertKeyCA(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.TLS.Enabled = true
	cfg.TLS.Mutual = true
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSCAFileRequired) {
		t.Fatalf("expected ErrTLSCAFileRequired, got %v", err)
	}
	cfg.TLS.CAFile = "/tmp/ca.pem"
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSCertFileRequired) {
		t.Fatalf("expected ErrTLSCertFileRequired, got %v", err)
	}
	cfg.TLS.CertFile = "/tmp/client.pem"
	if err := cfg.ValidateClientTransport(); !errors.Is(err, ErrTLSKeyFileRequired) {
		t.Fatalf("expected ErrTLSKeyFileRequired, got %v", err)
	}
	cfg.TLS.KeyFile = "/tmp/client.key"
	if err := cfg.ValidateClientTransport(); err != nil {
		t.Fatalf("expected valid transport config, got %v", err)
	}
}

func TestValidateServerTransport(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	if err := cfg.ValidateServerTransport(); err != nil {
		t.Fatalf("development plaintext should be valid: %v", err)
	}
	cfg.SecurityMode = SecurityModeProduction
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrTLSRequired) {
		t.Fatalf("expected ErrTLSRequired, got %v", err)
	}
	cfg.TLS.Enabled = true
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrTLSCertFileRequired) {
		t.Fatalf("expected ErrTLSCertFileRequired, got %v", err)
	}
	cfg.SecurityMode = "paranoid"
	if err := cfg.ValidateServerTransport(); !errors.Is(err, ErrInvalidSecurityMode) {
		t.Fatalf("expected ErrInvalidSecurityMode, got %v", err)
	}
}

func TestTLSConfigBuilders(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	ca := tlstest.NewAuthority(t, dir, "msgslot-test-ca")
	certFile, keyFile := ca.IssueLocalhostServerCert(t, dir)
	clientCert, clientKey := ca.IssueClientCert(t, dir, "reader")

	cfg := DefaultConfig()
	cfg.TLS = TLSConfig{Enabled: true, Mutual: true, CertFile: certFile, KeyFile: keyFile, CAFile: ca.CAFile()}
	srv, err := cfg.ServerTLSConfig()
	if err != nil {
		t.Fatalf("server tls config: %v", err)
	}
	if srv.ClientCAs == nil || len(srv.Certificates) != 1 {
		t.Fatalf("unexpected server tls config")
	}

	cfg.TLS.CertFile, cfg.TLS.KeyFile = clientCert, clientKey
	cli, err := cfg.ClientTLSConfig("127.0.0.1:7235")
	if err != nil {
		t.Fatalf("client tls config: %v", err)
	}
	if cli.ServerName != "127.0.0.1" || cli.RootCAs == nil || len(cli.Certificates) != 1 {
		t.Fatalf("unexpected client tls config: server_name=%q", cli.ServerName)
	}

	cfg.TLS.CAFile = filepath.Join(dir, "missing.pem")
	if _, err := cfg.ClientTLSConfig("127.0.0.1:7235"); err == nil {
		t.Fatalf("expected error for missing ca bundle")
	}
}
