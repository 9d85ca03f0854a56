package session

import (
	"bytes"
	"fmt"
	"io"

	"github.com/danmuck/msgslot/internal/protocol/frame"
	"github.com/danmuck/msgslot/internal/protocol/schema"
	"github.com/danmuck/msgslot/internal/protocol/tlv"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Request is one client->slotd operation on the connection's handle.
// Only the fields required by Type are encoded.
type Request struct {
	Type     uint32
	SlotID   uint32
	Mode     uint8
	Channel  uint64
	Payload  []byte
	Capacity uint32
}

// Response is the slotd->client result of one Request.
type Response struct {
	Status  string
	Errno   uint32
	Count   uint32
	Payload []byte
	Detail  string
}

// OKResponse reports success with count and optional read payload.
func OKResponse(count int, payload []byte) Response {
	return Response{Status: StatusOK, Count: uint32(count), Payload: payload}
}

// ErrorResponse reports a failed request by errno.
func ErrorResponse(errno uint32, detail string) Response {
	return Response{Status: StatusError, Errno: errno, Detail: detail}
}

func (r Response) Failed() bool {
	return r.Status != StatusOK || r.Errno != 0
}

func EncodeRequestFrame(messageID uint64, req Request) ([]byte, error) {
	var fields []tlv.Field
	switch req.Type {
	case schema.MsgOpen:
		fields = []tlv.Field{
			tlv.U32(schema.FieldSlotID, req.SlotID),
			tlv.U8(schema.FieldMode, req.Mode),
		}
	case schema.MsgSelectChannel:
		fields = []tlv.Field{tlv.U64(schema.FieldChannelID, req.Channel)}
	case schema.MsgWrite:
		fields = []tlv.Field{tlv.Bytes(schema.FieldPayload, req.Payload)}
	case schema.MsgRead:
		fields = []tlv.Field{tlv.U32(schema.FieldCapacity, req.Capacity)}
	case schema.MsgClose:
	default:
		return nil, fmt.Errorf("session: request type %d not supported", req.Type)
	}
	return encodeFrame(messageID, req.Type, 0, fields)
}

func DecodeRequestFrame(f frame.Frame) (Request, error) {
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return Request{}, err
	}
	msgType := f.Header.MessageType
	if msgType == schema.MsgResult {
		return Request{}, fmt.Errorf("session: result frame is not a request")
	}
	if err := schema.Validate(msgType, fields); err != nil {
		return Request{}, err
	}
	req := Request{Type: msgType}
	switch msgType {
	case schema.MsgOpen:
		if req.SlotID, err = getU32(fields, schema.FieldSlotID); err != nil {
			return Request{}, err
		}
		if req.Mode, err = getU8(fields, schema.FieldMode); err != nil {
			return Request{}, err
		}
	case schema.MsgSelectChannel:
		if req.Channel, err = getU64(fields, schema.FieldChannelID); err != nil {
			return Request{}, err
		}
	case schema.MsgWrite:
		req.Payload = getBytes(fields, schema.FieldPayload)
	case schema.MsgRead:
		if req.Capacity, err = getU32(fields, schema.FieldCapacity); err != nil {
			return Request{}, err
		}
	}
	return req, nil
}

func EncodeResponseFrame(messageID uint64, resp Response) ([]byte, error) {
	if resp.Status != StatusOK && resp.Status != StatusError {
		return nil, fmt.Errorf("session: invalid result status %q", resp.Status)
	}
	fields := []tlv.Field{
		tlv.String(schema.FieldStatus, resp.Status),
		tlv.U32(schema.FieldErrno, resp.Errno),
		tlv.U32(schema.FieldCount, resp.Count),
	}
	if len(resp.Payload) > 0 {
		fields = append(fields, tlv.Bytes(schema.FieldPayload, resp.Payload))
	}
	if resp.Detail != "" {
		fields = append(fields, tlv.String(schema.FieldDetail, resp.Detail))
	}
	flags := frame.FlagIsResponse
	if resp.Failed() {
		flags |= frame.FlagIsError
	}
	return encodeFrame(messageID, schema.MsgResult, flags, fields)
}

func DecodeResponseFrame(f frame.Frame) (Response, error) {
	if f.Header.MessageType != schema.MsgResult {
		return Response{}, fmt.Errorf("session: unexpected message_type=%d", f.Header.MessageType)
	}
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return Response{}, err
	}
	if err := schema.Validate(schema.MsgResult, fields); err != nil {
		return Response{}, err
	}
	resp := Response{
		Status:  getString(fields, schema.FieldStatus),
		Payload: getBytes(fields, schema.FieldPayload),
		Detail:  getString(fields, schema.FieldDetail),
	}
	if resp.Errno, err = getU32(fields, schema.FieldErrno); err != nil {
		return Response{}, err
	}
	if resp.Count, err = getU32(fields, schema.FieldCount); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// ReadFrame reads one framed message from the stream.
func ReadFrame(r io.Reader, limits frame.Limits) (frame.Frame, error) {
	return frame.ReadFrame(r, limits)
}

func encodeFrame(messageID uint64, msgType, flags uint32, fields []tlv.Field) ([]byte, error) {
	var buf bytes.Buffer
	err := frame.WriteFrame(&buf, frame.Frame{
		Header: frame.Header{
			MessageID:   messageID,
			MessageType: msgType,
			Flags:       flags,
		},
		Payload: tlv.EncodeFields(fields),
	}, frame.DefaultLimits())
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func getString(fields []tlv.Field, id uint16) string {
	f, _ := tlv.GetField(fields, id)
	return string(f.Value)
}

func getBytes(fields []tlv.Field, id uint16) []byte {
	f, ok := tlv.GetField(fields, id)
	if !ok || len(f.Value) == 0 {
		return nil
	}
	return f.Value
}

func getU8(fields []tlv.Field, id uint16) (uint8, error) {
	f, _ := tlv.GetField(fields, id)
	return tlv.U8FromBytes(f.Value)
}

func getU32(fields []tlv.Field, id uint16) (uint32, error) {
	f, _ := tlv.GetField(fields, id)
	return tlv.U32FromBytes(f.Value)
}

func getU64(fields []tlv.Field, id uint16) (uint64, error) {
	f, _ := tlv.GetField(fields, id)
	return tlv.U64FromBytes(f.Value)
}
