// Package history persists conversation transcripts between runs.
package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	chatweave "github.com/ZanzyTHEbar/chatweave-genkit"
)

// FileStore is a chatweave.ConversationStore backed by a single JSON
// file. Good enough for a single-process deployment; the whole state is
// rewritten on every save.
type FileStore struct {
	mutex    sync.RWMutex
	path     string
	logger   *slog.Logger
	entries  map[string][]chatweave.TranscriptEntry
	maxTurns int
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *FileStore) {
		s.logger = logger
	}
}

// WithMaxTurns caps how many past exchanges History returns per
// conversation. Zero means unlimited.
func WithMaxTurns(n int) Option {
	return func(s *FileStore) {
		s.maxTurns = n
	}
}

// NewFileStore opens (or creates on first save) the store at path.
func NewFileStore(path string, options ...Option) (*FileStore, error) {
	s := &FileStore{
		path:     path,
		logger:   slog.New(slog.DiscardHandler),
		entries:  make(map[string][]chatweave.TranscriptEntry),
		maxTurns: 10,
	}

	for _, option := range options {
		option(s)
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return chatweave.NewConfigurationError("failed to open conversation store", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&s.entries); err != nil {
		return chatweave.NewConfigurationError("failed to decode conversation store", err)
	}
	return nil
}

// save writes the full state. Callers must hold the write lock.
func (s *FileStore) save() error {
	file, err := os.Create(s.path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(s.entries)
}

// SaveTranscript implements chatweave.ConversationStore.
func (s *FileStore) SaveTranscript(ctx context.Context, conversationID string, entry chatweave.TranscriptEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries[conversationID] = append(s.entries[conversationID], entry)
	if err := s.save(); err != nil {
		return chatweave.NewInternalError("persisting", "failed to save conversation store", err)
	}

	s.logger.Debug("saved transcript entry",
		"conversation_id", conversationID,
		"aborted", entry.Aborted)
	return nil
}

// History implements chatweave.ConversationStore. Each past exchange
// yields a user turn and an assistant turn; the assistant turn carries
// the condensed summary when one was recorded, since full tool output
// would bloat the planning prompt.
func (s *FileStore) History(ctx context.Context, conversationID string) ([]chatweave.Message, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entries := s.entries[conversationID]
	if s.maxTurns > 0 && len(entries) > s.maxTurns {
		entries = entries[len(entries)-s.maxTurns:]
	}

	messages := make([]chatweave.Message, 0, len(entries)*2)
	for _, entry := range entries {
		messages = append(messages, chatweave.Message{Role: chatweave.RoleUser, Content: entry.Query})

		answer := entry.Summary
		if answer == "" {
			answer = entry.Answer
		}
		messages = append(messages, chatweave.Message{Role: chatweave.RoleAssistant, Content: answer})
	}

	return messages, nil
}

// Entries returns a copy of the raw transcript for a conversation.
func (s *FileStore) Entries(conversationID string) []chatweave.TranscriptEntry {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entries := s.entries[conversationID]
	out := make([]chatweave.TranscriptEntry, len(entries))
	copy(out, entries)
	return out
}
