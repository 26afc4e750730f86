package vbsp

import (
	"bytes"
	"fmt"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/proto/wire"
)

// EventClass selects the envelope shape following the header.
type EventClass uint8

// Event classes.
const (
	EventSingle    EventClass = 0x01
	EventScheduled EventClass = 0x02
	EventTrigger   EventClass = 0x03
)

func (c EventClass) String() string {
	switch c {
	case EventSingle:
		return "single"
	case EventScheduled:
		return "scheduled"
	case EventTrigger:
		return "trigger"
	default:
		return fmt.Sprintf("event(%d)", uint8(c))
	}
}

// Action names the operation carried by a frame.
type Action uint16

// Actions.
const (
	ActionHello       Action = 0x01
	ActionCaps        Action = 0x02
	ActionUEReport    Action = 0x03
	ActionUEMeasure   Action = 0x04
	ActionCellMeasure Action = 0x05
	ActionUEHandover  Action = 0x07
	ActionRANSlice    Action = 0x08
)

var actionNames = map[Action]string{
	ActionHello:       "hello",
	ActionCaps:        "caps",
	ActionUEReport:    "ue_report",
	ActionUEMeasure:   "ue_measure",
	ActionCellMeasure: "cell_measure",
	ActionUEHandover:  "ue_handover",
	ActionRANSlice:    "ran_slice",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(0x%04x)", uint16(a))
}

// Opcode qualifies an action: a request verb or a response outcome.
type Opcode uint8

// Opcodes.
const (
	OpUndefined Opcode = 0x00
	OpSuccess   Opcode = 0x01
	OpFailure   Opcode = 0x02
	OpAdd       Opcode = 0x03
	OpSet       Opcode = 0x04
	OpRem       Opcode = 0x05
	OpGet       Opcode = 0x06
)

func (o Opcode) String() string {
	switch o {
	case OpUndefined:
		return "undefined"
	case OpSuccess:
		return "success"
	case OpFailure:
		return "failure"
	case OpAdd:
		return "add"
	case OpSet:
		return "set"
	case OpRem:
		return "rem"
	case OpGet:
		return "get"
	default:
		return fmt.Sprintf("opcode(%d)", uint8(o))
	}
}

// Event is the decoded envelope. Interval is only meaningful for scheduled
// events and travels as milliseconds.
type Event struct {
	Class    EventClass
	Action   Action
	Opcode   Opcode
	Interval time.Duration
}

// Single builds a single-shot envelope.
func Single(action Action, op Opcode) Event {
	return Event{Class: EventSingle, Action: action, Opcode: op}
}

// Scheduled builds a scheduled envelope repeated by the device every interval.
func Scheduled(action Action, op Opcode, interval time.Duration) Event {
	return Event{Class: EventScheduled, Action: action, Opcode: op, Interval: interval}
}

// Trigger builds a trigger envelope.
func Trigger(action Action, op Opcode) Event {
	return Event{Class: EventTrigger, Action: action, Opcode: op}
}

// envelopeMinLen is the tag byte plus action and opcode.
const envelopeMinLen = 4

func putEvent(buf *bytes.Buffer, e Event) error {
	if err := wire.Put(buf, e.Class, e.Action, e.Opcode); err != nil {
		return err
	}
	switch e.Class {
	case EventSingle, EventTrigger:
		return nil
	case EventScheduled:
		return wire.Put(buf, uint32(e.Interval/time.Millisecond))
	default:
		return errors.WrapInvalid(errors.ErrInvalidData, "vbsp", "putEvent", fmt.Sprintf("encode %s", e.Class))
	}
}

func getEvent(r *bytes.Reader) (Event, error) {
	var e Event
	if err := wire.Get(r, &e.Class, &e.Action, &e.Opcode); err != nil {
		return e, err
	}
	switch e.Class {
	case EventSingle, EventTrigger:
		return e, nil
	case EventScheduled:
		var ms uint32
		if err := wire.Get(r, &ms); err != nil {
			return e, err
		}
		e.Interval = time.Duration(ms) * time.Millisecond
		return e, nil
	default:
		return e, errors.WrapInvalid(errors.ErrInvalidData, "vbsp", "getEvent", fmt.Sprintf("decode %s", e.Class))
	}
}
