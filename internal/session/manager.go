package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/weave-logic-ai/clawft-sub017/internal/providers"
)

// Session stores the conversation history and bookkeeping metadata for one
// conversation_key. Each Session owns its own mutex so that mutating one
// session never blocks operations on another, or a Manager-wide List.
type Session struct {
	mu sync.Mutex

	Key      string              `json:"key"`
	Messages []providers.Message `json:"messages"`
	Summary  string              `json:"summary,omitempty"`
	Created  time.Time           `json:"created"`
	Updated  time.Time           `json:"updated"`

	// Optional summarization-hook metadata, not required by the core
	// get_or_create/append/history/delete/list surface but carried so
	// callers can layer compaction and memory-flush bookkeeping on top
	// without a second store.
	Model                      string `json:"model,omitempty"`
	Provider                   string `json:"provider,omitempty"`
	Channel                    string `json:"channel,omitempty"`
	InputTokens                int64  `json:"inputTokens,omitempty"`
	OutputTokens               int64  `json:"outputTokens,omitempty"`
	CompactionCount            int    `json:"compactionCount,omitempty"`
	MemoryFlushCompactionCount int    `json:"memoryFlushCompactionCount,omitempty"`
	MemoryFlushAt              int64  `json:"memoryFlushAt,omitempty"`
	Label                      string `json:"label,omitempty"`
	SpawnedBy                  string `json:"spawnedBy,omitempty"`
	SpawnDepth                 int    `json:"spawnDepth,omitempty"`

	ContextWindow    int `json:"contextWindow,omitempty"`
	LastPromptTokens int `json:"lastPromptTokens,omitempty"`
	LastMessageCount int `json:"lastMessageCount,omitempty"`
}

// snapshot returns a deep copy of the session for JSON persistence or
// read-only callers, taken under the session's own lock.
func (s *Session) snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s
	cp.mu = sync.Mutex{}
	cp.Messages = make([]providers.Message, len(s.Messages))
	copy(cp.Messages, s.Messages)
	return cp
}

// SessionInfo is a lightweight session descriptor for listing.
type SessionInfo struct {
	Key          string    `json:"key"`
	MessageCount int       `json:"messageCount"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
}

// Manager maps conversation_key to Session, handling lifecycle and
// optional on-disk persistence. A short-held RWMutex guards only the map
// itself: once a *Session pointer is obtained, its own mutex serializes
// mutation, so List (or any lookup) never blocks a concurrent append on a
// different session.
type Manager struct {
	mapMu    sync.RWMutex
	sessions map[string]*Session
	storage  string
}

// NewManager builds a Manager. If storage is non-empty, sessions are
// persisted there as percent-encoded-key JSON files and loaded eagerly.
func NewManager(storage string) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		storage:  storage,
	}
	if storage != "" {
		os.MkdirAll(storage, 0o755)
		m.loadAll()
	}
	return m
}

// GetOrCreate returns the existing session for key, or creates one.
func (m *Manager) GetOrCreate(key string) *Session {
	m.mapMu.RLock()
	s, ok := m.sessions[key]
	m.mapMu.RUnlock()
	if ok {
		return s
	}

	m.mapMu.Lock()
	defer m.mapMu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return s
	}
	now := time.Now()
	s = &Session{Key: key, Messages: []providers.Message{}, Created: now, Updated: now}
	m.sessions[key] = s
	return s
}

// AddMessage appends msg to the session's history.
func (m *Manager) AddMessage(key string, msg providers.Message) {
	s := m.GetOrCreate(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, msg)
	s.Updated = time.Now()
}

// GetHistory returns a copy of the last n messages, or the entire history
// if n <= 0.
func (m *Manager) GetHistory(key string, n int) []providers.Message {
	m.mapMu.RLock()
	s, ok := m.sessions[key]
	m.mapMu.RUnlock()
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.Messages
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]providers.Message, len(msgs))
	copy(out, msgs)
	return out
}

// GetSummary returns the session summary.
func (m *Manager) GetSummary(key string) string {
	s := m.lookup(key)
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Summary
}

// SetSummary updates the session summary.
func (m *Manager) SetSummary(key, summary string) {
	s := m.lookup(key)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Summary = summary
	s.Updated = time.Now()
}

// SetLabel updates the session label.
func (m *Manager) SetLabel(key, label string) {
	s := m.lookup(key)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Label = label
	s.Updated = time.Now()
}

// UpdateMetadata sets model/provider/channel metadata, leaving unset
// fields (empty string) unchanged.
func (m *Manager) UpdateMetadata(key, model, provider, channel string) {
	s := m.lookup(key)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if model != "" {
		s.Model = model
	}
	if provider != "" {
		s.Provider = provider
	}
	if channel != "" {
		s.Channel = channel
	}
}

// AccumulateTokens adds token counts from a completed provider call.
func (m *Manager) AccumulateTokens(key string, inputTokens, outputTokens int64) {
	s := m.lookup(key)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InputTokens += inputTokens
	s.OutputTokens += outputTokens
}

// IncrementCompaction bumps the compaction counter after summarization.
func (m *Manager) IncrementCompaction(key string) {
	s := m.lookup(key)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CompactionCount++
}

// GetCompactionCount returns the current compaction count.
func (m *Manager) GetCompactionCount(key string) int {
	s := m.lookup(key)
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CompactionCount
}

// GetMemoryFlushCompactionCount returns the compaction count at which
// memory flush last ran (0 if it never ran), or -1 if the session does not
// exist.
func (m *Manager) GetMemoryFlushCompactionCount(key string) int {
	s := m.lookup(key)
	if s == nil {
		return -1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.MemoryFlushCompactionCount
}

// SetMemoryFlushDone records that memory flush completed at the current
// compaction count.
func (m *Manager) SetMemoryFlushDone(key string) {
	s := m.lookup(key)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MemoryFlushCompactionCount = s.CompactionCount
	s.MemoryFlushAt = time.Now().UnixMilli()
}

// SetSpawnInfo records subagent origin metadata.
func (m *Manager) SetSpawnInfo(key, spawnedBy string, depth int) {
	s := m.lookup(key)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SpawnedBy = spawnedBy
	s.SpawnDepth = depth
}

// SetContextWindow caches the agent's context window size on the session.
func (m *Manager) SetContextWindow(key string, cw int) {
	s := m.lookup(key)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ContextWindow = cw
}

// GetContextWindow returns the cached context window (0 if unset).
func (m *Manager) GetContextWindow(key string) int {
	s := m.lookup(key)
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ContextWindow
}

// SetLastPromptTokens records the actual prompt token count and message
// count from the most recent provider response.
func (m *Manager) SetLastPromptTokens(key string, tokens, msgCount int) {
	s := m.lookup(key)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastPromptTokens = tokens
	s.LastMessageCount = msgCount
}

// GetLastPromptTokens returns the last known prompt tokens and message
// count.
func (m *Manager) GetLastPromptTokens(key string) (int, int) {
	s := m.lookup(key)
	if s == nil {
		return 0, 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastPromptTokens, s.LastMessageCount
}

// TruncateHistory keeps only the last keepLast messages (all are dropped
// if keepLast <= 0).
func (m *Manager) TruncateHistory(key string, keepLast int) {
	s := m.lookup(key)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if keepLast <= 0 {
		s.Messages = []providers.Message{}
	} else if len(s.Messages) > keepLast {
		s.Messages = append([]providers.Message{}, s.Messages[len(s.Messages)-keepLast:]...)
	}
	s.Updated = time.Now()
}

// Reset clears a session's history and summary in place.
func (m *Manager) Reset(key string) {
	s := m.lookup(key)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = []providers.Message{}
	s.Summary = ""
	s.Updated = time.Now()
}

// Delete removes a session from memory and, if persistence is enabled,
// from disk.
func (m *Manager) Delete(key string) error {
	m.mapMu.Lock()
	delete(m.sessions, key)
	m.mapMu.Unlock()

	if m.storage == "" {
		return nil
	}
	path := filepath.Join(m.storage, encodeKey(key)+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns metadata for all sessions, optionally filtered to those
// belonging to agentID. It only briefly holds the map lock to snapshot the
// pointer slice, then reads each session's own lock in turn — a concurrent
// AddMessage on one session never blocks List from progressing on others.
func (m *Manager) List(agentID string) []SessionInfo {
	m.mapMu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mapMu.RUnlock()

	prefix := ""
	if agentID != "" {
		prefix = "agent:" + agentID + ":"
	}

	var result []SessionInfo
	for _, s := range all {
		s.mu.Lock()
		key, count, created, updated := s.Key, len(s.Messages), s.Created, s.Updated
		s.mu.Unlock()
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		result = append(result, SessionInfo{Key: key, MessageCount: count, Created: created, Updated: updated})
	}
	return result
}

// LastUsedChannel finds the most recently updated channel session for an
// agent and extracts channel + chatID from its key. Returns ("", "") if
// none is found. Cron, subagent, and heartbeat sessions are excluded.
func (m *Manager) LastUsedChannel(agentID string) (channel, chatID string) {
	prefix := "agent:" + agentID + ":"

	m.mapMu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mapMu.RUnlock()

	var bestKey string
	var bestUpdated time.Time
	for _, s := range all {
		s.mu.Lock()
		key, updated := s.Key, s.Updated
		s.mu.Unlock()
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		if strings.HasPrefix(rest, "cron:") || strings.HasPrefix(rest, "subagent:") || strings.HasPrefix(rest, "heartbeat:") {
			continue
		}
		if updated.After(bestUpdated) {
			bestUpdated = updated
			bestKey = key
		}
	}
	if bestKey == "" {
		return "", ""
	}
	parts := strings.SplitN(bestKey, ":", 5)
	if len(parts) >= 5 {
		return parts[2], parts[4]
	}
	return "", ""
}

// Save persists a session to disk atomically (temp file + rename),
// keyed by its percent-encoded session key.
func (m *Manager) Save(key string) error {
	if m.storage == "" {
		return nil
	}
	s := m.lookup(key)
	if s == nil {
		return nil
	}
	snapshot := s.snapshot()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	sessionPath := filepath.Join(m.storage, encodeKey(key)+".json")

	tmpFile, err := os.CreateTemp(m.storage, "session-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, sessionPath); err != nil {
		return err
	}
	cleanup = false
	return nil
}

func (m *Manager) loadAll() {
	files, err := os.ReadDir(m.storage)
	if err != nil {
		return
	}
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.storage, f.Name()))
		if err != nil {
			continue
		}
		var s Session
		if err := json.Unmarshal(data, &s); err != nil {
			continue
		}
		// key is carried in the JSON body, but falling back to the
		// decoded filename keeps old files (without the field) loadable.
		if s.Key == "" {
			s.Key = decodeKey(strings.TrimSuffix(f.Name(), ".json"))
		}
		m.mapMu.Lock()
		m.sessions[s.Key] = &s
		m.mapMu.Unlock()
	}
}

func (m *Manager) lookup(key string) *Session {
	m.mapMu.RLock()
	defer m.mapMu.RUnlock()
	return m.sessions[key]
}
