package fix

import (
	"fmt"
	"strconv"
)

// SessionID is the immutable triple that identifies a logical FIX session
// independent of any particular network connection.
type SessionID struct {
	BeginString   string
	SenderCompID  string
	TargetCompID  string
}

// String renders the canonical "BEGIN:SENDER->TARGET" form used in logs.
func (s SessionID) String() string {
	return fmt.Sprintf("%s:%s->%s", s.BeginString, s.SenderCompID, s.TargetCompID)
}

// Counterparty returns the SessionID as seen by the other side of the wire
// (sender and target swapped), used to validate inbound header fields.
func (s SessionID) Counterparty() SessionID {
	return SessionID{
		BeginString:  s.BeginString,
		SenderCompID: s.TargetCompID,
		TargetCompID: s.SenderCompID,
	}
}

// field is one tag/value pair, or a repeating group opaquely captured as a
// count tag followed by N ordered sub-maps the codec produced. The session
// layer never interprets group contents; it passes the group through.
type field struct {
	tag   int
	value []byte
	group [][]*Message // non-nil only for a repeating-group count tag
}

// Message is an ordered mapping from integer tag to byte-string value, with
// insertion order preserved for body fields as required by spec.md §3.
// It is the in-memory representation a Codec produces and consumes; Message
// itself never parses or serializes bytes (TagValueCodec in codec.go does).
type Message struct {
	fields []field
	index  map[int]int // tag -> index into fields, last write wins
}

// NewMessage returns an empty message ready to be populated with Set.
func NewMessage() *Message {
	return &Message{index: make(map[int]int)}
}

// Set assigns a scalar tag value, preserving first-insertion order and
// overwriting the value in place on repeated Set calls for the same tag.
func (m *Message) Set(tag int, value string) *Message {
	if i, ok := m.index[tag]; ok {
		m.fields[i].value = []byte(value)
		return m
	}
	m.index[tag] = len(m.fields)
	m.fields = append(m.fields, field{tag: tag, value: []byte(value)})
	return m
}

// SetGroup attaches a repeating group under a count tag, opaque to this
// package's own logic but preserved through copy/clone operations.
func (m *Message) SetGroup(countTag int, entries [][]*Message) *Message {
	if i, ok := m.index[countTag]; ok {
		m.fields[i].group = entries
		return m
	}
	m.index[countTag] = len(m.fields)
	m.fields = append(m.fields, field{tag: countTag, group: entries})
	return m
}

// Get returns the string value for tag and whether it was present.
func (m *Message) Get(tag int) (string, bool) {
	i, ok := m.index[tag]
	if !ok {
		return "", false
	}
	return string(m.fields[i].value), true
}

// GetInt is a convenience wrapper over Get for integer-valued tags such as
// MsgSeqNum, BeginSeqNo, and NewSeqNo.
func (m *Message) GetInt(tag int) (int, bool) {
	v, ok := m.Get(tag)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Has reports whether tag is present, scalar or group.
func (m *Message) Has(tag int) bool {
	_, ok := m.index[tag]
	return ok
}

// MsgType returns the value of tag 35.
func (m *Message) MsgType() MsgType {
	v, _ := m.Get(TagMsgType)
	return MsgType(v)
}

// SeqNum returns the value of tag 34, or 0 if absent/unparseable.
func (m *Message) SeqNum() int {
	n, _ := m.GetInt(TagMsgSeqNum)
	return n
}

// PossDup reports whether tag 43 is "Y".
func (m *Message) PossDup() bool {
	v, _ := m.Get(TagPossDupFlag)
	return v == "Y"
}

// Clone returns a deep-enough copy safe to mutate independently (used when
// replaying a stored record with PossDupFlag/OrigSendingTime rewritten).
func (m *Message) Clone() *Message {
	out := NewMessage()
	for _, f := range m.fields {
		if f.group != nil {
			out.SetGroup(f.tag, f.group)
			continue
		}
		out.Set(f.tag, string(f.value))
	}
	return out
}

// Tags returns the ordered list of top-level tags present in the message,
// header and trailer included, in insertion order.
func (m *Message) Tags() []int {
	out := make([]int, len(m.fields))
	for i, f := range m.fields {
		out[i] = f.tag
	}
	return out
}
