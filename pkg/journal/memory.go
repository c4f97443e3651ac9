package journal

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryJournal implements Journal in memory.
// Useful for testing or when persistence is not needed.
type memoryJournal struct {
	mu       sync.RWMutex
	entries  []Entry
	sessions map[string]*Session
	seq      uint64
	max      int
}

// NewMemory creates an in-memory journal. maxEntries bounds it like
// Config.MaxEntries.
func NewMemory(maxEntries int) Journal {
	return &memoryJournal{
		sessions: make(map[string]*Session),
		max:      maxEntries,
	}
}

// BeginSession implements Journal.BeginSession.
func (j *memoryJournal) BeginSession(roots []string) (*Session, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	s := &Session{
		ID:        uuid.NewString(),
		Roots:     append([]string(nil), roots...),
		StartedAt: time.Now(),
	}
	j.sessions[s.ID] = s

	copied := *s
	return &copied, nil
}

// GetSession implements Journal.GetSession.
func (j *memoryJournal) GetSession(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidSessionID
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	s, exists := j.sessions[id]
	if !exists {
		return nil, ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

// Sessions implements Journal.Sessions.
func (j *memoryJournal) Sessions() ([]*Session, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	sessions := make([]*Session, 0, len(j.sessions))
	for _, s := range j.sessions {
		copied := *s
		sessions = append(sessions, &copied)
	}
	sortSessions(sessions)
	return sessions, nil
}

// Append implements Journal.Append.
func (j *memoryJournal) Append(entry Entry) error {
	if entry.Type == "" || entry.Path == "" {
		return ErrInvalidEntry
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	entry.Seq = j.seq
	j.entries = append(j.entries, entry)

	if j.max > 0 && len(j.entries) > j.max {
		j.entries = append([]Entry(nil), j.entries[len(j.entries)-j.max:]...)
	}
	return nil
}

// Recent implements Journal.Recent.
func (j *memoryJournal) Recent(n int) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	start := 0
	if n > 0 && n < len(j.entries) {
		start = len(j.entries) - n
	}
	return append([]Entry(nil), j.entries[start:]...), nil
}

// Since implements Journal.Since.
func (j *memoryJournal) Since(t time.Time) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	i := sort.Search(len(j.entries), func(i int) bool {
		return !j.entries[i].Time.Before(t)
	})
	return append([]Entry(nil), j.entries[i:]...), nil
}

// Count implements Journal.Count.
func (j *memoryJournal) Count() (int, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return len(j.entries), nil
}

// Close implements Journal.Close.
func (j *memoryJournal) Close() error {
	return nil
}
