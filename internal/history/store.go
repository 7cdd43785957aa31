// Package history persists the chat transcript, bookmarks, and saved
// sessions as a single JSON document. The document is always written
// whole; the last writer wins. A missing or corrupt file is never fatal:
// the store recovers by starting empty so the UI keeps working.
package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable transcript entry. Conversation is empty for the
// default conversation, which keeps files written by older versions
// loading unchanged.
type Turn struct {
	Role         Role      `json:"role"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp,omitempty"`
	Conversation string    `json:"conversation,omitempty"`
}

// Document is an opaque bookmark payload. By convention it carries
// "content", "type", and "source" keys, but the store does not care.
type Document map[string]any

// SessionRecord is an opaque saved-session payload.
type SessionRecord map[string]any

type document struct {
	History   []Turn          `json:"history"`
	Bookmarks []Document      `json:"bookmarks"`
	Sessions  []SessionRecord `json:"sessions"`
}

// Store owns the in-memory document and its file. It is mutated only by
// the interactive loop's task, so it carries no locking; SaveAsync
// snapshots the document before handing it to the writer goroutine.
type Store struct {
	path       string
	maxHistory int
	logger     *zap.Logger

	doc document
}

// New creates a store for the given file. maxHistory bounds each
// conversation's transcript; values below one disable truncation.
func New(path string, maxHistory int, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, maxHistory: maxHistory, logger: logger}
}

// Load reads the document from disk. A missing file leaves everything
// empty. A malformed or unreadable file resets to empty with a warning;
// corrupt history must never crash the UI.
func (s *Store) Load() error {
	s.doc = document{}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		s.logger.Warn("history file unreadable, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("history file corrupt, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return nil
	}
	s.doc = doc
	return nil
}

// snapshot returns the document with nil collections normalized to
// empty ones, so the file always carries the three arrays.
func (s *Store) snapshot() document {
	doc := s.doc
	if doc.History == nil {
		doc.History = []Turn{}
	}
	if doc.Bookmarks == nil {
		doc.Bookmarks = []Document{}
	}
	if doc.Sessions == nil {
		doc.Sessions = []SessionRecord{}
	}
	return doc
}

// Save writes the whole document, creating parent directories first.
func (s *Store) Save() error {
	data, err := json.MarshalIndent(s.snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	return writeFile(s.path, data)
}

// SaveAsync snapshots the document now and writes it off the caller's
// task. The returned channel yields the write result exactly once.
func (s *Store) SaveAsync() <-chan error {
	done := make(chan error, 1)

	data, err := json.MarshalIndent(s.snapshot(), "", "  ")
	if err != nil {
		done <- fmt.Errorf("failed to marshal history: %w", err)
		return done
	}

	path := s.path
	logger := s.logger
	go func() {
		err := writeFile(path, data)
		if err != nil {
			logger.Warn("async history save failed", zap.String("path", path), zap.Error(err))
		}
		done <- err
	}()
	return done
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// Append adds a turn to a conversation's transcript in memory only.
// Callers decide when to persist. Transcripts are truncated from the
// head once they exceed the configured bound.
func (s *Store) Append(conversationID string, turn Turn) {
	turn.Conversation = normalizeConversation(conversationID)
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	s.doc.History = append(s.doc.History, turn)

	if s.maxHistory <= 0 {
		return
	}
	excess := s.conversationLen(turn.Conversation) - s.maxHistory
	for i := 0; excess > 0 && i < len(s.doc.History); {
		if s.doc.History[i].Conversation == turn.Conversation {
			s.doc.History = append(s.doc.History[:i], s.doc.History[i+1:]...)
			excess--
			continue
		}
		i++
	}
}

func (s *Store) conversationLen(conv string) int {
	n := 0
	for _, t := range s.doc.History {
		if t.Conversation == conv {
			n++
		}
	}
	return n
}

func normalizeConversation(id string) string {
	if id == "default" {
		return ""
	}
	return id
}

// History returns the transcript of one conversation, in order.
func (s *Store) History(conversationID string) []Turn {
	conv := normalizeConversation(conversationID)
	var out []Turn
	for _, t := range s.doc.History {
		if t.Conversation == conv {
			out = append(out, t)
		}
	}
	return out
}

// AllHistory returns every persisted turn in insertion order.
func (s *Store) AllHistory() []Turn {
	out := make([]Turn, len(s.doc.History))
	copy(out, s.doc.History)
	return out
}

// Clear drops one conversation's transcript in memory.
func (s *Store) Clear(conversationID string) {
	conv := normalizeConversation(conversationID)
	kept := s.doc.History[:0]
	for _, t := range s.doc.History {
		if t.Conversation != conv {
			kept = append(kept, t)
		}
	}
	s.doc.History = kept
}

// AddBookmark appends a document unless a structurally equal one is
// already stored, then persists immediately.
func (s *Store) AddBookmark(doc Document) error {
	for _, existing := range s.doc.Bookmarks {
		if structurallyEqual(existing, doc) {
			return nil
		}
	}
	s.doc.Bookmarks = append(s.doc.Bookmarks, doc)
	return s.Save()
}

// Bookmarks returns the stored bookmarks.
func (s *Store) Bookmarks() []Document {
	out := make([]Document, len(s.doc.Bookmarks))
	copy(out, s.doc.Bookmarks)
	return out
}

// AddSession appends a session record unconditionally and persists.
func (s *Store) AddSession(rec SessionRecord) error {
	s.doc.Sessions = append(s.doc.Sessions, rec)
	return s.Save()
}

// Sessions returns the stored session records.
func (s *Store) Sessions() []SessionRecord {
	out := make([]SessionRecord, len(s.doc.Sessions))
	copy(out, s.doc.Sessions)
	return out
}

// structurallyEqual compares two opaque documents by their canonical
// JSON form, which ignores map iteration order.
func structurallyEqual(a, b Document) bool {
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}
