package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/danmuck/msgslot/internal/protocol/tlv"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	payload := tlv.EncodeFields([]tlv.Field{tlv.U64(3, 13), tlv.Bytes(4, []byte("hello world"))})
	in := Frame{
		Header:  Header{MessageID: 42, MessageType: 3},
		Payload: payload,
	}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, in, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	out, err := ReadFrame(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if out.Header.Magic != Magic || out.Header.Version != Version {
		t.Fatalf("writer did not stamp magic/version: %+v", out.Header)
	}
	if out.Header.MessageType != 3 || out.Header.MessageID != 42 {
		t.Fatalf("header mismatch: %+v", out.Header)
	}
	if !bytes.Equal(out.Payload, payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestReadFrameCleanEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil), DefaultLimits())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReadFrameMalformedHeaderIsDeterministic(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3}), DefaultLimits())
	if !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestReadFrameRejectsBadHeaders(t *testing.T) {
	cases := []struct {
		name string
		h    Header
		want error
	}{
		{"magic", Header{Magic: 1, Version: Version, HeaderLen: FixedHeaderLen}, ErrInvalidMagic},
		{"version", Header{Magic: Magic, Version: 9, HeaderLen: FixedHeaderLen}, ErrUnsupportedVersion},
		{"header_len", Header{Magic: Magic, Version: Version, HeaderLen: 8}, ErrHeaderLenMismatch},
		{"payload", Header{Magic: Magic, Version: Version, HeaderLen: FixedHeaderLen, PayloadLen: 1 << 40}, ErrPayloadTooLarge},
	}
	for _, tc := range cases {
		_, err := ReadFrame(bytes.NewReader(EncodeHeader(tc.h)), DefaultLimits())
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, Frame{Header: Header{MessageType: 1}, Payload: []byte("abcdef")}, DefaultLimits()); err != nil {
		t.Fatalf("write: %v", err)
	}
	b := buf.Bytes()[:buf.Len()-2]
	if _, err := ReadFrame(bytes.NewReader(b), DefaultLimits()); !errors.Is(err, ErrTruncatedPayload) {
		t.Fatalf("expected ErrTruncatedPayload, got %v", err)
	}
}

func TestWriteFrameEnforcesLimit(t *testing.T) {
	err := WriteFrame(io.Discard, Frame{Payload: make([]byte, 10)}, Limits{MaxPayloadBytes: 4})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}
