// Package session implements the top-level session coordinator described
// in spec.md §4.7 (C7): it owns the store, state machine, heartbeat
// subsystem, transport, and message processor, and exposes the public API
// the application drives.
package session

import (
	"crypto/tls"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// ConnectionType selects the initiator or acceptor role, per spec.md §6.
type ConnectionType string

const (
	Initiator ConnectionType = "initiator"
	Acceptor  ConnectionType = "acceptor"
)

// MessageStoreType selects the durable backend, per spec.md §6's
// `MessageStoreType` option plus the `redis` backend this module adds for
// the "shared network-accessible store for production" design note of
// spec.md §9.
type MessageStoreType string

const (
	StoreMemory MessageStoreType = "memory"
	StoreFile   MessageStoreType = "file"
	StoreSQLite MessageStoreType = "sqlite"
	StoreRedis  MessageStoreType = "redis"
)

// Config mirrors spec.md §6's configuration option table. It is consumed
// in-process; loading it from a file is the external collaborator's job
// (spec.md §1), demonstrated but not implemented by cmd/fixinitiator and
// cmd/fixacceptor.
type Config struct {
	BeginString  string
	SenderCompID string
	TargetCompID string

	ConnectionType ConnectionType

	SocketConnectHost string
	SocketConnectPort int
	SocketAcceptAddr  string // bind address, e.g. ":5001", acceptor only

	HeartBtInt         time.Duration
	ResetSeqNumOnLogon bool

	UseSSL    bool
	TLSConfig *tls.Config // caller-constructed; SSL context construction is out of scope (spec.md §1)

	MessageStoreType MessageStoreType
	StorePath        string
	RedisClient      *redis.Client // required when MessageStoreType == StoreRedis

	LogonTimeout  time.Duration
	LogoutTimeout time.Duration

	ReconnectInterval    time.Duration
	ReconnectMaxAttempts int

	DialTimeout time.Duration

	// Logger overrides the package default (logrus.StandardLogger()),
	// primarily so tests can route session output through t.Log.
	Logger *logrus.Logger
}

// DefaultConfig returns a Config with the same default timeouts spec.md
// §5 names, grounded on the teacher's node/config.go DefaultConfig
// pattern of a single struct literal naming every field explicitly.
func DefaultConfig() Config {
	return Config{
		HeartBtInt:           30 * time.Second,
		MessageStoreType:     StoreMemory,
		LogonTimeout:         30 * time.Second,
		LogoutTimeout:        10 * time.Second,
		ReconnectInterval:    time.Second,
		ReconnectMaxAttempts: 0, // 0 means unlimited, matching a long-lived initiator
		DialTimeout:          10 * time.Second,
	}
}

// TestConfig returns a Config tuned for fast-running tests: short timeouts,
// an in-memory store. Grounded on the teacher's node/config.go TestConfig.
func TestConfig() Config {
	c := DefaultConfig()
	c.HeartBtInt = 200 * time.Millisecond
	c.LogonTimeout = time.Second
	c.LogoutTimeout = time.Second
	c.ReconnectInterval = 10 * time.Millisecond
	c.DialTimeout = time.Second
	return c
}
