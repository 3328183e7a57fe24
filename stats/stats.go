// Package stats keeps a point-in-time snapshot of the pool's admission
// control state, for the periodic heartbeat log.
package stats

import (
	"time"

	"github.com/hashicorp/go-memdb"
)

// Snapshot is a single point-in-time reading. ID is always zero: the
// table holds at most one row, the latest snapshot.
type Snapshot struct {
	ID              int64
	CacheSize       int
	InFlightDrivers int
	LiveDeliveries  int
	Timestamp       time.Time
}

// Recorder stores the latest Snapshot in an in-memory indexed table.
type Recorder struct {
	db *memdb.MemDB
}

// NewRecorder builds an empty Recorder.
func NewRecorder() (*Recorder, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			"snapshot": {
				Name: "snapshot",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.IntFieldIndex{Field: "ID"},
					},
				},
			},
		},
	}
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, err
	}
	return &Recorder{db: db}, nil
}

// Record replaces the stored snapshot with s.
func (r *Recorder) Record(s Snapshot) error {
	s.ID = 0
	txn := r.db.Txn(true)
	if err := txn.Insert("snapshot", &s); err != nil {
		txn.Abort()
		return err
	}
	txn.Commit()
	return nil
}

// Latest returns the most recently recorded snapshot, or nil if none
// has been recorded yet.
func (r *Recorder) Latest() (*Snapshot, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First("snapshot", "id", int64(0))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return raw.(*Snapshot), nil
}
