package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tweetbridge/internal/model"
)

// snapshotVersion is the current on-disk schema version. Bump it together
// with a migration path in decode when the ChatState layout changes
// incompatibly.
const snapshotVersion = 1

type snapshot struct {
	Version int                        `json:"version"`
	Chats   map[int64]*model.ChatState `json:"chats"`
}

// Snapshot implements Store as a single JSON file, rewritten whole on every
// save via a temp file and rename, so a crash mid-write never corrupts it.
type Snapshot struct {
	path string

	mu    sync.Mutex
	chats map[int64]*model.ChatState
}

// NewSnapshot creates a file-backed store at path. The file is created on
// the first save; a missing file loads as an empty state.
func NewSnapshot(path string) *Snapshot {
	return &Snapshot{
		path:  path,
		chats: make(map[int64]*model.ChatState),
	}
}

// Load reads the snapshot from disk. The returned map is a copy.
func (s *Snapshot) Load(_ context.Context) (map[int64]*model.ChatState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.chats = make(map[int64]*model.ChatState)
		return map[int64]*model.ChatState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d, want %d", snap.Version, snapshotVersion)
	}

	s.chats = make(map[int64]*model.ChatState, len(snap.Chats))
	for id, st := range snap.Chats {
		st.ChatID = id
		st.Normalize()
		s.chats[id] = st
	}
	return s.copyChats(), nil
}

// Save stores one chat's record and rewrites the whole snapshot atomically.
func (s *Snapshot) Save(_ context.Context, state *model.ChatState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chats[state.ChatID] = state.Clone()

	snap := snapshot{Version: snapshotVersion, Chats: s.chats}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *Snapshot) Close() error { return nil }

func (s *Snapshot) copyChats() map[int64]*model.ChatState {
	out := make(map[int64]*model.ChatState, len(s.chats))
	for id, st := range s.chats {
		out[id] = st.Clone()
	}
	return out
}
