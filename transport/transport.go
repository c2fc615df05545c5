package transport

import (
	"net"
	"time"
)

// Connect implements spec.md §4.3's initiator contract:
// `connect(host, port, tlsConfig?) → stream`. Retrying on failure is the
// caller's responsibility, driven by a ReconnectPolicy.
func Connect(layer StreamLayer, address string, timeout time.Duration) (*FramedConn, error) {
	conn, err := layer.Dial(address, timeout)
	if err != nil {
		return nil, err
	}
	return NewFramedConn(conn), nil
}

// Accept implements spec.md §4.3's acceptor contract: `accept() → stream`,
// which may suspend the calling goroutine until a peer connects. One
// session per accepted stream, for the duration of this spec.
func Accept(layer StreamLayer) (*FramedConn, error) {
	conn, err := layer.Accept()
	if err != nil {
		return nil, err
	}
	return NewFramedConn(conn), nil
}

// NewPipe returns two FramedConns connected in-memory via net.Pipe, for the
// in-memory reference transport spec.md §9 requires for the test suite
// (mirroring the mandatory in-memory Store backend).
func NewPipe() (client *FramedConn, server *FramedConn) {
	a, b := net.Pipe()
	return NewFramedConn(a), NewFramedConn(b)
}
