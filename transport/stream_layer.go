// Package transport implements framed byte I/O for the initiator and
// acceptor roles, plus the reconnection policy, described in spec.md §4.3
// (C3).
package transport

import (
	"crypto/tls"
	"net"
	"time"
)

// StreamLayer is the low-level stream abstraction a Transport is built on,
// grounded on the teacher's net/stream_layer.go: a net.Listener plus a
// Dial method for the initiator side and an AdvertiseAddr for logging.
type StreamLayer interface {
	net.Listener

	Dial(address string, timeout time.Duration) (net.Conn, error)
	AdvertiseAddr() string
}

// TCPStreamLayer implements StreamLayer for plain TCP, adapted from the
// teacher's net/tcp_stream_layer.go.
type TCPStreamLayer struct {
	advertise string
	listener  *net.TCPListener
}

// NewTCPStreamLayer binds bindAddr and returns a ready-to-use StreamLayer.
func NewTCPStreamLayer(bindAddr, advertise string) (*TCPStreamLayer, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	return &TCPStreamLayer{advertise: advertise, listener: ln.(*net.TCPListener)}, nil
}

func (t *TCPStreamLayer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", address, timeout)
}

func (t *TCPStreamLayer) Accept() (net.Conn, error) { return t.listener.Accept() }

func (t *TCPStreamLayer) Close() error { return t.listener.Close() }

func (t *TCPStreamLayer) Addr() net.Addr { return t.listener.Addr() }

func (t *TCPStreamLayer) AdvertiseAddr() string {
	if t.advertise != "" {
		return t.advertise
	}
	return t.listener.Addr().String()
}

// TLSStreamLayer implements StreamLayer over TLS, for the spec.md §6
// `UseSSL`/`SSLCertificate`/`SSLPrivateKey` configuration options.
type TLSStreamLayer struct {
	advertise string
	listener  net.Listener
	config    *tls.Config
}

// NewTLSStreamLayer binds bindAddr with the given TLS server config.
func NewTLSStreamLayer(bindAddr, advertise string, config *tls.Config) (*TLSStreamLayer, error) {
	ln, err := tls.Listen("tcp", bindAddr, config)
	if err != nil {
		return nil, err
	}
	return &TLSStreamLayer{advertise: advertise, listener: ln, config: config}, nil
}

func (t *TLSStreamLayer) Dial(address string, timeout time.Duration) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: timeout}
	return tls.DialWithDialer(dialer, "tcp", address, t.config)
}

func (t *TLSStreamLayer) Accept() (net.Conn, error) { return t.listener.Accept() }

func (t *TLSStreamLayer) Close() error { return t.listener.Close() }

func (t *TLSStreamLayer) Addr() net.Addr { return t.listener.Addr() }

func (t *TLSStreamLayer) AdvertiseAddr() string {
	if t.advertise != "" {
		return t.advertise
	}
	return t.listener.Addr().String()
}
