// Package store implements the durable, sequence-keyed message log
// described in spec.md §4.1 (C1): archive-on-overwrite persistence, durable
// sequence-number counters, and range/field lookups for resend.
package store

import (
	"bytes"
	"strconv"
	"time"

	"github.com/wxcuop/pyfixmsg-plus/fix"
)

// itoa and containsBytes are small shared helpers used by the file, redis,
// and sqlite store backends for field-tag formatting and raw-message
// substring search.
func itoa(n int) string { return strconv.Itoa(n) }

func containsBytes(haystack, needle []byte) bool { return bytes.Contains(haystack, needle) }

// Direction distinguishes inbound from outbound records. spec.md §9 flags
// that keying the archive purely by (SessionID, seqNum) lets an inbound and
// an outbound message at the same seqNum collide; this module takes the
// recommended fix and folds Direction into every key.
type Direction uint8

const (
	Inbound Direction = iota
	Outbound
)

func (d Direction) String() string {
	if d == Inbound {
		return "inbound"
	}
	return "outbound"
}

// StoredRecord is (SessionId, seqNum, rawBytes, timestamp) per spec.md §3,
// extended with Direction per the §9 recommendation above.
type StoredRecord struct {
	Session   fix.SessionID
	SeqNum    int
	Direction Direction
	Raw       []byte
	Timestamp time.Time
}

// ArchivedRecord is a StoredRecord that was displaced by an overwrite,
// carrying the moment it was archived.
type ArchivedRecord struct {
	StoredRecord
	ArchivedAt time.Time
}

// Store is the contract every backend (memory, file/badger, sqlite, redis)
// satisfies identically, per spec.md §4.1 and §9's "store as an interface"
// design note.
type Store interface {
	// Store is idempotent on (session, seqNum, direction): an existing
	// record at that key is copied to the archive before being replaced.
	// The whole operation is atomic per spec.md §4.1's algorithm.
	Store(session fix.SessionID, seqNum int, direction Direction, raw []byte, ts time.Time) error

	// Get returns the live record at (session, seqNum, direction), or a
	// KeyNotFound Err.
	Get(session fix.SessionID, seqNum int, direction Direction) (*StoredRecord, error)

	// Range returns stored records for direction in [from, to] inclusive,
	// ordered by seqNum ascending. to=0 means "through the latest known
	// seqNum for that direction".
	Range(session fix.SessionID, direction Direction, from, to int) ([]*StoredRecord, error)

	// FindByField scans outbound+inbound live records and returns every one
	// whose raw bytes contain "tag=value<SOH>", for inspection tooling. The
	// match is a byte substring search, not a parse: a longer tag ending in
	// the same digits also matches. Not on the hot path.
	FindByField(session fix.SessionID, tag int, value string) ([]*StoredRecord, error)

	NextIncoming(session fix.SessionID) (int, error)
	NextOutgoing(session fix.SessionID) (int, error)
	SetIncoming(session fix.SessionID, next int) error
	SetOutgoing(session fix.SessionID, next int) error
	ResetBoth(session fix.SessionID) error

	Close() error
}
