// Package auditlog keeps a durable, capacity-bounded ring of the most
// recently emitted notifications in an embedded buntdb store
// (SPEC_FULL.md §3, "Notification audit log"). It never blocks a client:
// the notification bridge appends to it best-effort, and its contents are
// erased and rebuilt fresh on every process start.
package auditlog

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/saimizi/iviplugind/internal/logger"
)

// Entry is one recorded notification.
type Entry struct {
	Seq       uint64    `json:"seq"`
	EventType string    `json:"event_type"`
	Payload   []byte    `json:"payload"`
	Recorded  time.Time `json:"recorded"`
}

// Log is a capacity-bounded append-only ring backed by buntdb. The zero
// value is not usable; construct with Open.
type Log struct {
	db       *buntdb.DB
	path     string
	capacity uint64
	nextSeq  uint64
}

// Open erases any prior contents at path and opens a fresh buntdb store
// (SPEC_FULL.md §3: "erased and rebuilt fresh on every process start").
// A non-positive capacity disables the log entirely; Open still succeeds
// but every Append is a no-op.
func Open(path string, capacity int) (*Log, error) {
	if capacity <= 0 {
		return &Log{capacity: 0}, nil
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("auditlog: clearing %s: %w", path, err)
	}

	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("auditlog: opening buntdb at %s: %w", path, err)
	}

	return &Log{db: db, path: path, capacity: uint64(capacity)}, nil
}

// Append records one notification, evicting the oldest entry once the log
// exceeds its capacity. A write failure is logged, not returned: the audit
// log is operational history, never load-bearing for correctness
// (SPEC_FULL.md §3).
func (l *Log) Append(eventType string, payload []byte) {
	if l.capacity == 0 {
		return
	}

	seq := l.nextSeq
	l.nextSeq++
	entry := Entry{Seq: seq, EventType: eventType, Payload: payload, Recorded: time.Now()}

	encoded, err := encodeEntry(entry)
	if err != nil {
		logger.Warn("auditlog: append failed", logger.EventType(eventType), logger.Err(err))
		return
	}

	err = l.db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set(seqKey(seq), encoded, nil); err != nil {
			return err
		}
		if seq >= l.capacity {
			_, err := tx.Delete(seqKey(seq - l.capacity))
			if err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Warn("auditlog: append failed", logger.EventType(eventType), logger.Err(err))
	}
}

// Recent returns up to limit of the most recently appended entries, newest
// first, optionally filtered to a single event type (empty matches all).
func (l *Log) Recent(limit int, eventType string) []Entry {
	if l.capacity == 0 || l.db == nil {
		return nil
	}

	var out []Entry
	_ = l.db.View(func(tx *buntdb.Tx) error {
		return tx.DescendKeys("*", func(key, val string) bool {
			if len(out) >= limit {
				return false
			}
			entry, err := decodeEntry([]byte(val))
			if err != nil {
				return true
			}
			if eventType == "" || entry.EventType == eventType {
				out = append(out, entry)
			}
			return true
		})
	})
	return out
}

// Close closes the underlying buntdb store. Safe to call on a
// capacity-zero Log.
func (l *Log) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// seqKey renders a sequence number as a zero-padded decimal string so
// buntdb's lexicographic key ordering matches numeric sequence order.
func seqKey(seq uint64) string {
	return fmt.Sprintf("%020d", seq)
}

func encodeEntry(e Entry) (string, error) {
	buf, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func decodeEntry(buf []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(buf, &e); err != nil {
		return Entry{}, fmt.Errorf("auditlog: corrupt entry: %w", err)
	}
	return e, nil
}
