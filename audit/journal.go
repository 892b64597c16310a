// Package audit persists a tamper-evident, queryable record of every
// engine event: a durable, hash-chained supplement to the in-memory
// Event Bus (SPEC_FULL.md §4, §5 "Governance audit trail").
package audit

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"lukechampine.com/blake3"

	"treasuryvault/native/treasury"
)

// Record is one append-only journal row. Hash chains over the previous
// row's Hash so a reordered or edited row is detectable on replay.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   uint64    `gorm:"uniqueIndex"`
	Topic      string    `gorm:"size:64;index"`
	Attributes string    `gorm:"type:text"`
	PrevHash   string    `gorm:"size:64"`
	Hash       string    `gorm:"size:64;index"`
	CreatedAt  time.Time
}

// AutoMigrate creates or updates the journal table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}

// Journal implements treasury.Emitter, writing every event to a
// hash-chained gorm table. Emit writes synchronously on the engine's call
// path; append failures are dropped, not returned to the engine, since
// spec.md's Event Bus has no "event failed" case.
type Journal struct {
	db   *gorm.DB
	last string
}

// NewJournal opens a journal bound to db, resuming the hash chain from
// the last persisted row if one exists.
func NewJournal(db *gorm.DB) (*Journal, error) {
	j := &Journal{db: db, last: genesisHash}
	var tail Record
	err := db.Order("sequence desc").First(&tail).Error
	if err == nil {
		j.last = tail.Hash
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	return j, nil
}

const genesisHash = "0000000000000000000000000000000000000000000000000000000000000"

// Append records ev, chaining its hash onto the previous row. Returns the
// persisted Record for callers that want the immediate hash (e.g. a
// real-time audit feed).
func (j *Journal) Append(ev treasury.Event) (*Record, error) {
	attrs, err := json.Marshal(ev.Attributes)
	if err != nil {
		return nil, fmt.Errorf("audit: marshal attributes: %w", err)
	}

	var lastSeq uint64
	var tail Record
	err = j.db.Order("sequence desc").First(&tail).Error
	switch err {
	case nil:
		lastSeq = tail.Sequence + 1
	case gorm.ErrRecordNotFound:
		lastSeq = 1
	default:
		return nil, err
	}

	rec := &Record{
		ID:         uuid.New(),
		Sequence:   lastSeq,
		Topic:      ev.Topic,
		Attributes: string(attrs),
		PrevHash:   j.last,
	}
	rec.Hash = hashRecord(rec)
	if err := j.db.Create(rec).Error; err != nil {
		return nil, err
	}
	j.last = rec.Hash
	return rec, nil
}

// Emit satisfies treasury.Emitter. Append errors are swallowed here by
// design: the engine's event emission path has no error return, and a
// journal write failure must never roll back a committed proposal
// transition. Wrap Journal with a logging decorator at the call site if
// the failure needs to be surfaced.
func (j *Journal) Emit(ev treasury.Event) {
	_, _ = j.Append(ev)
}

func hashRecord(rec *Record) string {
	h := blake3.New(32, nil)
	fmt.Fprintf(h, "%d|%s|%s|%s", rec.Sequence, rec.Topic, rec.Attributes, rec.PrevHash)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify walks the full chain and reports the first broken link, if any.
// A nil return means the chain is intact from genesis to tip.
func (j *Journal) Verify() error {
	var records []Record
	if err := j.db.Order("sequence asc").Find(&records).Error; err != nil {
		return err
	}
	prev := genesisHash
	for _, rec := range records {
		if rec.PrevHash != prev {
			return fmt.Errorf("audit: chain break at sequence %d: prev_hash mismatch", rec.Sequence)
		}
		recorded := rec.Hash
		rec.Hash = ""
		if got := hashRecord(&rec); got != recorded {
			return fmt.Errorf("audit: chain break at sequence %d: hash mismatch", rec.Sequence)
		}
		prev = recorded
	}
	return nil
}
