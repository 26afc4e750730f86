package vbsp

import (
	"bytes"
	"fmt"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// Frame is one decoded VBSP message.
type Frame struct {
	Header Header
	Event  Event
	Body   Body
}

// Decode parses one complete frame.
func Decode(frame []byte) (Frame, error) {
	var f Frame
	h, err := ParseHeader(frame)
	if err != nil {
		return f, err
	}
	if uint32(len(frame)) != h.Length {
		return f, errors.WrapInvalid(errors.ErrShortFrame, "vbsp", "Decode",
			fmt.Sprintf("frame is %d bytes, header declares %d", len(frame), h.Length))
	}
	f.Header = h

	r := bytes.NewReader(frame[HeaderLen:])
	if f.Event, err = getEvent(r); err != nil {
		return f, err
	}

	f.Body = newBody(f.Event.Action, h.IsResponse())
	if err := f.Body.unmarshal(r); err != nil {
		return f, errors.WrapInvalid(err, "vbsp", "Decode", fmt.Sprintf("parse %s body", f.Event.Action))
	}
	if r.Len() != 0 {
		return f, errors.WrapInvalid(errors.ErrInvalidData, "vbsp", "Decode",
			fmt.Sprintf("%d trailing bytes after %s body", r.Len(), f.Event.Action))
	}
	return f, nil
}

// Encode builds a frame, deriving Header.Length. A nil Body encodes as empty.
func Encode(f Frame) ([]byte, error) {
	var payload bytes.Buffer
	if err := putEvent(&payload, f.Event); err != nil {
		return nil, err
	}
	if f.Body != nil {
		if err := f.Body.marshal(&payload); err != nil {
			return nil, errors.WrapInvalid(err, "vbsp", "Encode", fmt.Sprintf("build %s body", f.Event.Action))
		}
	}

	h := f.Header
	h.Length = uint32(HeaderLen + payload.Len())
	out := bytes.NewBuffer(make([]byte, 0, h.Length))
	if err := putHeader(out, h); err != nil {
		return nil, err
	}
	out.Write(payload.Bytes())
	return out.Bytes(), nil
}
