package schema

import (
	"errors"
	"testing"

	"github.com/danmuck/msgslot/internal/protocol/tlv"
)

func TestValidateAcceptsRequiredFields(t *testing.T) {
	cases := map[uint32][]tlv.Field{
		MsgOpen:          {tlv.U32(FieldSlotID, 0), tlv.U8(FieldMode, 1)},
		MsgSelectChannel: {tlv.U64(FieldChannelID, 99999)},
		MsgWrite:         {tlv.Bytes(FieldPayload, []byte("x"))},
		MsgRead:          {tlv.U32(FieldCapacity, 128)},
		MsgClose:         nil,
		MsgResult:        {tlv.String(FieldStatus, "ok"), tlv.U32(FieldErrno, 0), tlv.U32(FieldCount, 1)},
	}
	for msgType, fields := range cases {
		if err := Validate(msgType, fields); err != nil {
			t.Fatalf("%s: unexpected error: %v", MessageName(msgType), err)
		}
	}
}

func TestValidateMissingField(t *testing.T) {
	err := Validate(MsgOpen, []tlv.Field{tlv.U32(FieldSlotID, 1)})
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.FieldID != FieldMode || verr.Reason != "missing required field" {
		t.Fatalf("unexpected validation error: %+v", verr)
	}
}

func TestValidateTypeMismatch(t *testing.T) {
	err := Validate(MsgSelectChannel, []tlv.Field{tlv.U32(FieldChannelID, 4)})
	var verr ValidationError
	if !errors.As(err, &verr) || verr.Reason != "type mismatch" {
		t.Fatalf("expected type mismatch, got %v", err)
	}
}

func TestValidateUnknownMessageType(t *testing.T) {
	err := Validate(77, nil)
	var verr ValidationError
	if !errors.As(err, &verr) || verr.FieldID != 0 {
		t.Fatalf("expected unknown message_type error, got %v", err)
	}
	if MessageName(77) != "unknown" {
		t.Fatalf("unexpected name for unknown type")
	}
}
