package treasury

import (
	"fmt"

	"treasuryvault/crypto"
)

// ReputationLedger owns the per-address score record, applying linear
// time-decay before every read-modify-write (spec.md §4.6).
type ReputationLedger struct {
	store       Store
	decayPerDay int64
}

// NewReputationLedger constructs a ledger bound to the persistent-tier
// store, decaying decayPerDay points per elapsed day since last update.
func NewReputationLedger(store Store, decayPerDay int64) *ReputationLedger {
	return &ReputationLedger{store: store, decayPerDay: decayPerDay}
}

func reputationKey(addr crypto.Address) []byte {
	return []byte(fmt.Sprintf("treasury/reputation/%s", addr.String()))
}

// Get loads (and decay-adjusts, without persisting) the reputation record
// for addr. A never-seen address returns a fresh zero-value record.
func (l *ReputationLedger) Get(addr crypto.Address, nowDay uint64, dayLengthLedgers uint64) (*Reputation, error) {
	var rec Reputation
	ok, err := l.store.PersistentGet(reputationKey(addr), &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		rec = Reputation{Address: addr, Score: 0, LastUpdateLedger: nowDay * dayLengthLedgers}
		return &rec, nil
	}
	l.applyDecay(&rec, nowDay, dayLengthLedgers)
	return &rec, nil
}

func (l *ReputationLedger) applyDecay(rec *Reputation, nowDay uint64, dayLengthLedgers uint64) {
	if dayLengthLedgers == 0 {
		return
	}
	lastDay := rec.LastUpdateLedger / dayLengthLedgers
	if nowDay <= lastDay {
		return
	}
	elapsedDays := nowDay - lastDay
	decay := int64(elapsedDays) * l.decayPerDay
	rec.Score -= decay
	rec.clamp()
}

// Adjust applies delta to the address's score (after decay) and increments
// the named counter, persisting the result. changed reports whether the
// score differs from before this call (decay included), matching the
// original's `if old_score != new_score` emission guard.
func (l *ReputationLedger) Adjust(addr crypto.Address, delta int64, counter string, nowLedger uint64, dayLengthLedgers uint64) (rec *Reputation, changed bool, err error) {
	nowDay := DayNumber(nowLedger, dayLengthLedgers)
	var stored Reputation
	found, err := l.store.PersistentGet(reputationKey(addr), &stored)
	if err != nil {
		return nil, false, err
	}
	rec, err = l.Get(addr, nowDay, dayLengthLedgers)
	if err != nil {
		return nil, false, err
	}
	oldScore := rec.Score
	if found {
		oldScore = stored.Score
	}
	rec.Score += delta
	rec.clamp()
	rec.LastUpdateLedger = nowLedger
	switch counter {
	case "proposals_created":
		rec.ProposalsCreated++
	case "proposals_executed":
		rec.ProposalsExecuted++
	case "proposals_rejected":
		rec.ProposalsRejected++
	case "approvals_given":
		rec.ApprovalsGiven++
	}
	if err := l.store.PersistentPut(reputationKey(addr), rec); err != nil {
		return nil, false, err
	}
	return rec, rec.Score != oldScore, nil
}
