// Package audit writes a JSON-lines log of consensus and security events
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Caqil/harn-ledger/pkg/logger"
)

// Event types
const (
	EventPrePrepare   = "pre_prepare"
	EventPrepare      = "prepare"
	EventCommit       = "commit"
	EventCommitted    = "committed"
	EventPending      = "pending"
	EventViewChange   = "view_change"
	EventRejected     = "rejected"
	EventFault        = "fault_injected"
	EventRateLimited  = "rate_limit_exceeded"
	EventDecryptError = "decryption_failed"
)

// Logger provides append-only audit logging
type Logger struct {
	mu       sync.Mutex
	w        io.Writer
	file     *os.File
	encoder  *json.Encoder
	enabled  bool
	filePath string
	now      func() time.Time
}

// Entry represents a single audit log entry
type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	EventType string                 `json:"event_type"`
	Node      string                 `json:"node,omitempty"`
	Sequence  uint64                 `json:"sequence,omitempty"`
	View      uint64                 `json:"view"`
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// New opens filePath for appending with mode 0600. An empty path returns a
// disabled logger.
func New(filePath string) (*Logger, error) {
	if filePath == "" {
		return &Logger{enabled: false}, nil
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	return &Logger{
		w:        file,
		file:     file,
		encoder:  json.NewEncoder(file),
		enabled:  true,
		filePath: filePath,
		now:      time.Now,
	}, nil
}

// NewWriter logs to w
func NewWriter(w io.Writer) *Logger {
	return &Logger{
		w:       w,
		encoder: json.NewEncoder(w),
		enabled: w != nil,
		now:     time.Now,
	}
}

// Enabled reports whether entries are written
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

// LogPhase records a pre-prepare, prepare or commit message
func (l *Logger) LogPhase(phase, node string, sequence, view uint64) {
	if !l.Enabled() {
		return
	}

	l.write(&Entry{
		EventType: phase,
		Node:      node,
		Sequence:  sequence,
		View:      view,
		Success:   true,
	})
}

// LogOutcome records whether a request reached consensus
func (l *Logger) LogOutcome(node string, sequence, view uint64, committed bool, prepares, commits int) {
	if !l.Enabled() {
		return
	}

	event := EventPending
	if committed {
		event = EventCommitted
	}

	l.write(&Entry{
		EventType: event,
		Node:      node,
		Sequence:  sequence,
		View:      view,
		Success:   committed,
		Details: map[string]interface{}{
			"prepares": prepares,
			"commits":  commits,
		},
	})
}

// LogViewChange records a view change
func (l *Logger) LogViewChange(initiator string, oldView, newView uint64, oldPrimary, newPrimary string) {
	if !l.Enabled() {
		return
	}

	l.write(&Entry{
		EventType: EventViewChange,
		Node:      initiator,
		View:      newView,
		Success:   true,
		Details: map[string]interface{}{
			"old_view":    oldView,
			"old_primary": oldPrimary,
			"primary":     newPrimary,
		},
	})
}

// LogRejected records a refused request
func (l *Logger) LogRejected(node string, view uint64, err error) {
	if !l.Enabled() {
		return
	}

	l.write(&Entry{
		EventType: EventRejected,
		Node:      node,
		View:      view,
		Success:   false,
		Error:     errString(err),
	})
}

// LogFault records a replica being marked faulty or healthy
func (l *Logger) LogFault(node string, faulty bool) {
	if !l.Enabled() {
		return
	}

	l.write(&Entry{
		EventType: EventFault,
		Node:      node,
		Success:   true,
		Details:   map[string]interface{}{"faulty": faulty},
	})
}

// LogRateLimitExceeded records a throttled client
func (l *Logger) LogRateLimitExceeded(client string) {
	if !l.Enabled() {
		return
	}

	l.write(&Entry{
		EventType: EventRateLimited,
		Success:   false,
		Error:     "rate limit exceeded",
		Details:   map[string]interface{}{"client": client},
	})
}

// LogDecryptionFailure records a failed envelope open
func (l *Logger) LogDecryptionFailure(err error) {
	if !l.Enabled() {
		return
	}

	l.write(&Entry{
		EventType: EventDecryptError,
		Success:   false,
		Error:     errString(err),
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// write writes an audit entry to the log
func (l *Logger) write(entry *Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.encoder == nil {
		return
	}
	entry.Timestamp = l.now().UTC()

	if err := l.encoder.Encode(entry); err != nil {
		logger.Component("audit").ErrorEvent().Err(err).Msg("failed to write audit log")
	}
}

// Close closes the audit log file
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.encoder = nil
		return err
	}

	return nil
}

// Rotate renames the current file with a timestamp suffix and reopens it
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || l.filePath == "" {
		return nil
	}

	if l.file != nil {
		l.file.Close()
	}

	timestamp := l.now().Format("20060102-150405")
	oldPath := fmt.Sprintf("%s.%s", l.filePath, timestamp)

	if err := os.Rename(l.filePath, oldPath); err != nil {
		return err
	}

	file, err := os.OpenFile(l.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}

	l.file = file
	l.w = file
	l.encoder = json.NewEncoder(file)

	return nil
}

// Stats contains audit log statistics
type Stats struct {
	Enabled      bool
	FilePath     string
	FileSize     int64
	LastModified time.Time
}

// Stats returns statistics about the audit log file
func (l *Logger) Stats() (*Stats, error) {
	l.mu.Lock()
	filePath := l.filePath
	l.mu.Unlock()

	if filePath == "" {
		return &Stats{Enabled: l.enabled}, nil
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Enabled:      true,
		FilePath:     filePath,
		FileSize:     info.Size(),
		LastModified: info.ModTime(),
	}, nil
}
