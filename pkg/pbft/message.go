package pbft

import (
	"fmt"
	"strconv"
)

// MessageType identifies a consensus phase
type MessageType uint8

const (
	// MessageTypePrePrepare is sent by the replica that receives a request
	MessageTypePrePrepare MessageType = iota
	// MessageTypePrepare is sent by every other replica that accepts the pre-prepare
	MessageTypePrepare
	// MessageTypeCommit is sent once enough prepares are collected
	MessageTypeCommit
	// MessageTypeViewChange is logged when a replica moves to a new view
	MessageTypeViewChange
)

var messageTypeNames = [...]string{"pre-prepare", "prepare", "commit", "view-change"}

// String returns the phase name used on the wire
func (t MessageType) String() string {
	if int(t) < len(messageTypeNames) {
		return messageTypeNames[t]
	}
	return "unknown(" + strconv.Itoa(int(t)) + ")"
}

// MarshalText implements encoding.TextMarshaler
func (t MessageType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *MessageType) UnmarshalText(b []byte) error {
	for i, name := range messageTypeNames {
		if name == string(b) {
			*t = MessageType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown message type %q", b)
}

// Message is one logged consensus message. Signatures are decimal strings.
type Message struct {
	Sequence  uint64      `json:"sequence"`
	View      uint64      `json:"view"`
	Phase     MessageType `json:"phase"`
	Record    string      `json:"record"`
	Signature string      `json:"signature"`
	Sender    string      `json:"sender"`
	IsPrimary bool        `json:"is_primary,omitempty"`
}

// Vote is the short form of a message returned to clients
type Vote struct {
	Sender    string `json:"sender"`
	Record    string `json:"record,omitempty"`
	Signature string `json:"signature"`
}

// Vote returns the short form of m
func (m Message) Vote() Vote {
	return Vote{Sender: m.Sender, Signature: m.Signature}
}

// prepareDigest is the string a replica signs in the prepare phase
func prepareDigest(seq, view uint64, record string) string {
	return fmt.Sprintf("%d:%d:%s", seq, view, record)
}

// commitDigest is the string a replica signs in the commit phase
func commitDigest(seq, view uint64, record string) string {
	return fmt.Sprintf("commit:%d:%d:%s", seq, view, record)
}

func votes(msgs []Message) []Vote {
	out := make([]Vote, len(msgs))
	for i, m := range msgs {
		out[i] = m.Vote()
	}
	return out
}
