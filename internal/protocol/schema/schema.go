package schema

import (
	"fmt"

	"github.com/danmuck/msgslot/internal/protocol/tlv"
	"github.com/rs/zerolog/log"
)

// Message type IDs.
const (
	MsgOpen          uint32 = 1
	MsgSelectChannel uint32 = 2
	MsgWrite         uint32 = 3
	MsgRead          uint32 = 4
	MsgClose         uint32 = 5
	MsgResult        uint32 = 6
)

// Field IDs.
const (
	FieldSlotID    uint16 = 1
	FieldMode      uint16 = 2
	FieldChannelID uint16 = 3
	FieldPayload   uint16 = 4
	FieldCapacity  uint16 = 5

	FieldStatus uint16 = 100
	FieldErrno  uint16 = 101
	FieldCount  uint16 = 102
	FieldDetail uint16 = 103
)

// MessageName returns a stable label for logs and metrics.
func MessageName(messageType uint32) string {
	switch messageType {
	case MsgOpen:
		return "open"
	case MsgSelectChannel:
		return "select_channel"
	case MsgWrite:
		return "write"
	case MsgRead:
		return "read"
	case MsgClose:
		return "close"
	case MsgResult:
		return "result"
	default:
		return "unknown"
	}
}

type Requirement struct {
	ID   uint16
	Type uint8
}

type ValidationError struct {
	MessageType uint32
	FieldID     uint16
	Reason      string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: message_type=%d: %s", e.MessageType, e.Reason)
	}
	return fmt.Sprintf("schema: message_type=%d field=%d: %s", e.MessageType, e.FieldID, e.Reason)
}

var requirements = map[uint32][]Requirement{
	MsgOpen: {
		{FieldSlotID, tlv.TypeU32},
		{FieldMode, tlv.TypeU8},
	},
	MsgSelectChannel: {
		{FieldChannelID, tlv.TypeU64},
	},
	MsgWrite: {
		{FieldPayload, tlv.TypeBytes},
	},
	MsgRead: {
		{FieldCapacity, tlv.TypeU32},
	},
	MsgClose: {},
	MsgResult: {
		{FieldStatus, tlv.TypeString},
		{FieldErrno, tlv.TypeU32},
		{FieldCount, tlv.TypeU32},
	},
}

// Validate enforces required fields and required field types for a message type.
// Unknown fields are ignored.
func Validate(messageType uint32, fields []tlv.Field) error {
	reqs, ok := requirements[messageType]
	if !ok {
		log.Debug().Uint32("message_type", messageType).Msg("schema.Validate unknown message_type")
		return ValidationError{MessageType: messageType, Reason: "unknown message_type"}
	}
	for _, req := range reqs {
		f, found := tlv.GetField(fields, req.ID)
		if !found {
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "missing required field"}
		}
		if f.Type != req.Type {
			log.Debug().
				Uint32("message_type", messageType).
				Uint16("field_id", req.ID).
				Uint8("got", f.Type).
				Uint8("want", req.Type).
				Msg("schema.Validate type mismatch")
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "type mismatch"}
		}
	}
	return nil
}
