package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/0xmhha/dirwatch/pkg/discovery"
	"github.com/0xmhha/dirwatch/pkg/logger"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Bucket names.
var (
	bucketEntries  = []byte("entries")  // big-endian seq -> Entry
	bucketSessions = []byte("sessions") // UUID -> Session
)

// boltJournal implements Journal using BoltDB.
type boltJournal struct {
	db     *bolt.DB
	logger logger.Logger
	config Config

	mu     sync.RWMutex
	closed bool
}

// NewBolt opens (or creates) a bolt journal.
//
// Parameters:
//   - cfg: Journal configuration
//   - log: Logger instance
//
// Returns:
//   - Configured Journal
//   - Error if the database cannot be opened
func NewBolt(cfg Config, log logger.Logger) (Journal, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	dbPath := discovery.ExpandHome(cfg.DBPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, createErr := tx.CreateBucketIfNotExists(bucketEntries); createErr != nil {
			return fmt.Errorf("failed to create entries bucket: %w", createErr)
		}
		if _, createErr := tx.CreateBucketIfNotExists(bucketSessions); createErr != nil {
			return fmt.Errorf("failed to create sessions bucket: %w", createErr)
		}
		return nil
	}); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after initialization error",
				"error", closeErr)
		}
		return nil, err
	}

	log = log.Component("journal")
	log.Debug("journal opened", "db_path", dbPath, "max_entries", cfg.MaxEntries)

	return &boltJournal{
		db:     db,
		logger: log,
		config: cfg,
	}, nil
}

// BeginSession implements Journal.BeginSession.
func (j *boltJournal) BeginSession(roots []string) (*Session, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, ErrClosed
	}

	session := &Session{
		ID:        uuid.NewString(),
		Roots:     append([]string(nil), roots...),
		StartedAt: time.Now(),
	}

	err := j.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		if putErr := tx.Bucket(bucketSessions).Put([]byte(session.ID), data); putErr != nil {
			return fmt.Errorf("failed to store session: %w", putErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	j.logger.Info("watch session started", "session", session.ID, "roots", len(roots))
	return session, nil
}

// GetSession implements Journal.GetSession.
func (j *boltJournal) GetSession(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidSessionID
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, ErrClosed
	}

	var session *Session
	err := j.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(id))
		if data == nil {
			return ErrSessionNotFound
		}

		var s Session
		if unmarshalErr := json.Unmarshal(data, &s); unmarshalErr != nil {
			return fmt.Errorf("failed to unmarshal session: %w", unmarshalErr)
		}
		session = &s
		return nil
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

// Sessions implements Journal.Sessions.
func (j *boltJournal) Sessions() ([]*Session, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, ErrClosed
	}

	var sessions []*Session
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(k, v []byte) error {
			var s Session
			if err := json.Unmarshal(v, &s); err != nil {
				j.logger.Warn("skipping corrupted session", "id", string(k), "error", err)
				return nil
			}
			sessions = append(sessions, &s)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortSessions(sessions)
	return sessions, nil
}

// Append implements Journal.Append.
func (j *boltJournal) Append(entry Entry) error {
	if entry.Type == "" || entry.Path == "" {
		return ErrInvalidEntry
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}

	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}
		entry.Seq = seq

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		if putErr := b.Put(seqKey(seq), data); putErr != nil {
			return fmt.Errorf("failed to store entry: %w", putErr)
		}

		return j.trim(b, seq)
	})
}

// trim drops the oldest entries beyond MaxEntries. Keys are contiguous
// because entries are only ever removed from the front.
func (j *boltJournal) trim(b *bolt.Bucket, last uint64) error {
	if j.config.MaxEntries <= 0 {
		return nil
	}

	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.First() {
		if last-binary.BigEndian.Uint64(k)+1 <= uint64(j.config.MaxEntries) {
			break
		}
		if err := c.Delete(); err != nil {
			return fmt.Errorf("failed to trim journal: %w", err)
		}
	}
	return nil
}

// Recent implements Journal.Recent.
func (j *boltJournal) Recent(n int) ([]Entry, error) {
	return j.collectBackwards(func(e Entry, collected int) bool {
		return n <= 0 || collected < n
	})
}

// Since implements Journal.Since.
func (j *boltJournal) Since(t time.Time) ([]Entry, error) {
	return j.collectBackwards(func(e Entry, _ int) bool {
		return !e.Time.Before(t)
	})
}

// collectBackwards walks from the newest entry while keep returns true and
// returns what it collected in chronological order.
func (j *boltJournal) collectBackwards(keep func(e Entry, collected int) bool) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, ErrClosed
	}

	var entries []Entry
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEntries).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				j.logger.Warn("skipping corrupted entry", "seq", binary.BigEndian.Uint64(k), "error", err)
				continue
			}
			if !keep(e, len(entries)) {
				break
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	reverse(entries)
	return entries, nil
}

// Count implements Journal.Count.
func (j *boltJournal) Count() (int, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return 0, ErrClosed
	}

	var n int
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEntries).Cursor()
		first, _ := c.First()
		last, _ := c.Last()
		if first != nil {
			n = int(binary.BigEndian.Uint64(last) - binary.BigEndian.Uint64(first) + 1)
		}
		return nil
	})
	return n, err
}

// Close implements Journal.Close.
func (j *boltJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	if err := j.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func reverse(entries []Entry) {
	for i, k := 0, len(entries)-1; i < k; i, k = i+1, k-1 {
		entries[i], entries[k] = entries[k], entries[i]
	}
}
