package transport

import (
	"io"
	"net"

	"github.com/wxcuop/pyfixmsg-plus/fix"
)

// defaultReadChunk is how much we attempt to read from the wire per
// recv() call while a full frame has not yet arrived.
const defaultReadChunk = 4096

// FramedConn wraps a net.Conn so that ReadMessage delivers exactly one
// complete FIX message per call, per spec.md §4.3's framing contract:
// "the transport must deliver exactly one message per inbound event;
// partial reads are buffered, over-reads split across events."
type FramedConn struct {
	conn net.Conn
	buf  []byte
}

// NewFramedConn wraps conn for message-at-a-time I/O.
func NewFramedConn(conn net.Conn) *FramedConn {
	return &FramedConn{conn: conn}
}

// ReadMessage suspends (blocks the calling goroutine) until one complete
// message is available or the connection closes, per spec.md §4.3's
// "receiveBytes suspends until at least one complete message is available
// or the connection closes" suspension point.
func (c *FramedConn) ReadMessage() ([]byte, error) {
	for {
		if msg, consumed, ok := fix.Frame(c.buf); ok {
			c.buf = c.buf[consumed:]
			return msg, nil
		}

		chunk := make([]byte, defaultReadChunk)
		n, err := c.conn.Read(chunk)
		if n > 0 {
			c.buf = append(c.buf, chunk[:n]...)
		}
		if err != nil {
			if n > 0 {
				if msg, consumed, ok := fix.Frame(c.buf); ok {
					c.buf = c.buf[consumed:]
					return msg, nil
				}
			}
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, err
		}
	}
}

// WriteMessage suspends only if the kernel send buffer is full (ordinary
// net.Conn.Write semantics already provide this), per spec.md §4.3's
// "sendBytes suspends only if the kernel send buffer is full" point.
func (c *FramedConn) WriteMessage(raw []byte) error {
	_, err := c.conn.Write(raw)
	return err
}

// Close closes the underlying connection.
func (c *FramedConn) Close() error { return c.conn.Close() }

// RemoteAddr returns the peer address, for logging.
func (c *FramedConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
