package journal

import (
	"sort"
	"time"
)

// Summary aggregates a run of entries.
type Summary struct {
	// Total is the number of entries.
	Total int `json:"total"`

	// ByType counts entries per change type name.
	ByType map[string]int `json:"by_type"`

	// Paths is the number of distinct paths.
	Paths int `json:"paths"`

	// First and Last bound the entry times. Zero when Total is zero.
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
}

// Summarize counts entries per change type.
func Summarize(entries []Entry) Summary {
	s := Summary{
		Total:  len(entries),
		ByType: make(map[string]int),
	}

	paths := make(map[string]struct{})
	for _, e := range entries {
		s.ByType[e.Type]++
		paths[e.Path] = struct{}{}

		if s.First.IsZero() || e.Time.Before(s.First) {
			s.First = e.Time
		}
		if e.Time.After(s.Last) {
			s.Last = e.Time
		}
	}
	s.Paths = len(paths)

	return s
}

// FilterSession keeps the entries recorded by one session.
func FilterSession(entries []Entry, session string) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Session == session {
			out = append(out, e)
		}
	}
	return out
}

func sortSessions(sessions []*Session) {
	sort.Slice(sessions, func(i, k int) bool {
		return sessions[i].StartedAt.Before(sessions[k].StartedAt)
	})
}
