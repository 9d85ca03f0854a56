package server

import (
	"bufio"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"time"

	"github.com/danmuck/msgslot/internal/observability"
	"github.com/danmuck/msgslot/internal/protocol/frame"
	"github.com/danmuck/msgslot/internal/protocol/schema"
	"github.com/danmuck/msgslot/internal/protocol/session"
	"github.com/danmuck/msgslot/internal/slot"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

var errHandleOpen = errors.New("server: handle already open")

// handleConn runs one handle for the life of conn. The first frame must be
// Open; every later frame gets exactly one Result echoing its message id.
func (s *Service) handleConn(conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)
	remote := conn.RemoteAddr().String()
	logger := log.With().Str("remote", remote).Logger()
	active := s.clientCount.Add(1)
	logger.Debug().Int64("active_clients", active).Msg("slotd client connected")
	defer func() {
		remaining := s.clientCount.Add(-1)
		logger.Debug().Int64("active_clients", remaining).Msg("slotd client disconnected")
	}()

	if tlsConn, ok := conn.(*tls.Conn); ok {
		_ = tlsConn.SetDeadline(time.Now().Add(s.cfg.Session.HandshakeTimeout))
		if err := tlsConn.Handshake(); err != nil {
			logger.Warn().Err(err).Msg("slotd tls handshake failed")
			return
		}
		_ = conn.SetDeadline(time.Time{})
	}

	reader := bufio.NewReader(conn)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.Session.HandshakeTimeout))
	fr, err := session.ReadFrame(reader, s.limits)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			logger.Warn().Err(err).Msg("slotd read open frame failed")
		}
		return
	}
	h, ok := s.openHandle(conn, fr, logger)
	if !ok {
		return
	}
	id := uint32(h.Slot().ID)
	logger = logger.With().Uint32("slot", id).Str("mode", h.Mode().String()).Logger()
	observability.HandleOpened()
	defer observability.HandleClosed()
	defer func() { _ = h.Close() }()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.Session.ReadTimeout))
		fr, err := session.ReadFrame(reader, s.limits)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.Debug().Err(err).Msg("slotd read frame ended")
			}
			return
		}
		req, err := session.DecodeRequestFrame(fr)
		if err != nil {
			logger.Warn().Err(err).Uint32("message_type", fr.Header.MessageType).Msg("slotd decode request failed")
			if !s.writeResult(conn, fr.Header.MessageID, session.ErrorResponse(uint32(unix.EINVAL), err.Error()), logger) {
				return
			}
			continue
		}

		start := time.Now()
		resp, closing := s.dispatch(h, req)
		op := schema.MessageName(req.Type)
		observability.RecordSlotOp(id, op, resultLabel(resp), time.Since(start))
		logger.Debug().
			Str("op", op).
			Uint64("message_id", fr.Header.MessageID).
			Uint32("errno", resp.Errno).
			Uint32("count", resp.Count).
			Msg("slotd request")

		if !s.writeResult(conn, fr.Header.MessageID, resp, logger) || closing {
			return
		}
	}
}

// openHandle answers the Open frame. It reports false when the connection
// must end.
func (s *Service) openHandle(conn net.Conn, fr frame.Frame, logger zerolog.Logger) (*slot.Handle, bool) {
	if fr.Header.MessageType != schema.MsgOpen {
		logger.Warn().Uint32("message_type", fr.Header.MessageType).Msg("slotd expected open")
		resp := session.ErrorResponse(uint32(unix.EBADF), "open required before "+schema.MessageName(fr.Header.MessageType))
		s.writeResult(conn, fr.Header.MessageID, resp, logger)
		return nil, false
	}
	req, err := session.DecodeRequestFrame(fr)
	if err != nil {
		s.writeResult(conn, fr.Header.MessageID, session.ErrorResponse(uint32(unix.EINVAL), err.Error()), logger)
		return nil, false
	}
	mode := slot.Mode(req.Mode)
	if !mode.Valid() {
		s.writeResult(conn, fr.Header.MessageID, session.ErrorResponse(uint32(unix.EINVAL), "invalid open mode"), logger)
		return nil, false
	}
	h, err := s.registry.Open(slot.SlotID(req.SlotID), mode)
	if err != nil {
		logger.Warn().Err(err).Uint32("slot", req.SlotID).Msg("slotd open failed")
		observability.RecordSlotOp(req.SlotID, "open", unix.ErrnoName(slot.Errno(err)), 0)
		s.writeResult(conn, fr.Header.MessageID, errorResponse(err), logger)
		return nil, false
	}
	observability.RecordSlotOp(req.SlotID, "open", "ok", 0)
	if !s.writeResult(conn, fr.Header.MessageID, session.OKResponse(0, nil), logger) {
		_ = h.Close()
		return nil, false
	}
	return h, true
}

// dispatch applies one request to h. closing is true once the handle is released.
func (s *Service) dispatch(h *slot.Handle, req session.Request) (resp session.Response, closing bool) {
	switch req.Type {
	case schema.MsgOpen:
		return errorResponse(errHandleOpen), false
	case schema.MsgSelectChannel:
		if err := h.SelectChannel(slot.ChannelID(req.Channel)); err != nil {
			return errorResponse(err), false
		}
		return session.OKResponse(0, nil), false
	case schema.MsgWrite:
		n, err := h.Write(req.Payload)
		if err != nil {
			return errorResponse(err), false
		}
		return session.OKResponse(n, nil), false
	case schema.MsgRead:
		capacity := int(req.Capacity)
		if limit := s.registry.Options().MaxMessageLen; capacity > limit {
			capacity = limit
		}
		buf := make([]byte, capacity)
		n, err := h.Read(buf)
		if err != nil {
			return errorResponse(err), false
		}
		return session.OKResponse(n, buf[:n]), false
	case schema.MsgClose:
		if err := h.Close(); err != nil {
			return errorResponse(err), true
		}
		return session.OKResponse(0, nil), true
	default:
		return session.ErrorResponse(uint32(unix.EINVAL), "unsupported request"), false
	}
}

func (s *Service) writeResult(conn net.Conn, messageID uint64, resp session.Response, logger zerolog.Logger) bool {
	payload, err := session.EncodeResponseFrame(messageID, resp)
	if err != nil {
		logger.Error().Err(err).Msg("slotd encode result failed")
		return false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.Session.WriteTimeout))
	if _, err := conn.Write(payload); err != nil {
		logger.Warn().Err(err).Msg("slotd write result failed")
		return false
	}
	return true
}

func errorResponse(err error) session.Response {
	if errors.Is(err, errHandleOpen) {
		return session.ErrorResponse(uint32(unix.EINVAL), err.Error())
	}
	return session.ErrorResponse(uint32(slot.Errno(err)), err.Error())
}

func resultLabel(resp session.Response) string {
	if !resp.Failed() {
		return "ok"
	}
	return unix.ErrnoName(unix.Errno(resp.Errno))
}
