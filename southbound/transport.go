package southbound

import (
	"bufio"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// Transport moves whole frames over one connection. ReadFrame is called from
// a single goroutine, WriteFrame from another; Close may be called from any.
type Transport interface {
	ReadFrame() ([]byte, error)
	WriteFrame(frame []byte) error
	Close() error
	RemoteAddr() string
}

// Framing describes a length-prefixed binary protocol: a fixed header whose
// content declares the total frame length.
type Framing struct {
	HeaderLen int
	// FrameLen validates a header and returns the total length it declares.
	FrameLen func(header []byte) (int, error)
}

type streamTransport struct {
	conn    net.Conn
	reader  *bufio.Reader
	framing Framing
	timeout time.Duration
}

// NewStreamTransport frames a byte stream. A write that takes longer than
// writeTimeout fails.
func NewStreamTransport(conn net.Conn, framing Framing, writeTimeout time.Duration) Transport {
	return &streamTransport{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		framing: framing,
		timeout: writeTimeout,
	}
}

func (t *streamTransport) ReadFrame() ([]byte, error) {
	header := make([]byte, t.framing.HeaderLen)
	if _, err := io.ReadFull(t.reader, header); err != nil {
		return nil, err
	}
	total, err := t.framing.FrameLen(header)
	if err != nil {
		return nil, err
	}
	if total < t.framing.HeaderLen {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "southbound", "ReadFrame", "declared length below header")
	}
	frame := make([]byte, total)
	copy(frame, header)
	if _, err := io.ReadFull(t.reader, frame[t.framing.HeaderLen:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

func (t *streamTransport) WriteFrame(frame []byte) error {
	if t.timeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.timeout)); err != nil {
			return err
		}
	}
	_, err := t.conn.Write(frame)
	return err
}

func (t *streamTransport) Close() error { return t.conn.Close() }

func (t *streamTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }

type wsTransport struct {
	conn    *websocket.Conn
	timeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// NewWebSocketTransport carries one frame per text message.
func NewWebSocketTransport(conn *websocket.Conn, writeTimeout time.Duration) Transport {
	return &wsTransport{conn: conn, timeout: writeTimeout}
}

func (t *wsTransport) ReadFrame() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil, io.EOF
	}
	return data, err
}

func (t *wsTransport) WriteFrame(frame []byte) error {
	if t.timeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.timeout)); err != nil {
			return err
		}
	}
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() { t.closeErr = t.conn.Close() })
	return t.closeErr
}

func (t *wsTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }
