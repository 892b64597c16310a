package treasury

import (
	"fmt"
	"math/big"
	"time"

	"github.com/holiman/uint256"

	"treasuryvault/crypto"
)

// BudgetLedger owns the daily, weekly, and velocity-window accumulators
// (spec.md §4.4). Reservations are made on proposal creation and are never
// refunded on reject/expire — see SPEC_FULL.md §2(a).
type BudgetLedger struct {
	store Store
}

// NewBudgetLedger constructs a ledger bound to the temporary-tier store.
func NewBudgetLedger(store Store) *BudgetLedger {
	return &BudgetLedger{store: store}
}

// DayNumber derives the calendar-like day bucket from a ledger-time value.
func DayNumber(ledgerSeconds uint64, dayLengthLedgers uint64) uint64 {
	if dayLengthLedgers == 0 {
		return 0
	}
	return ledgerSeconds / dayLengthLedgers
}

// WeekNumber derives the week bucket from a day bucket.
func WeekNumber(day uint64) uint64 {
	return day / 7
}

func dailyKey(token string, day uint64) []byte {
	return []byte(fmt.Sprintf("treasury/budget/daily/%s/%d", token, day))
}

func weeklyKey(token string, week uint64) []byte {
	return []byte(fmt.Sprintf("treasury/budget/weekly/%s/%d", token, week))
}

func velocityKey(proposer crypto.Address) []byte {
	return []byte(fmt.Sprintf("treasury/velocity/%s", proposer.String()))
}

// accumulatorRecord stores the running total as a fixed-width 256-bit
// integer (hex, big-endian), matching the uint256 representation ledger
// balances use throughout the pack rather than an arbitrary-precision
// decimal string.
type accumulatorRecord struct {
	Amount string `json:"amount"`
}

// DailySpent returns the daily accumulator value for token/day.
func (l *BudgetLedger) DailySpent(token string, day uint64) (*big.Int, error) {
	v, err := l.readAccumulator(dailyKey(token, day))
	if err != nil {
		return nil, err
	}
	return v.ToBig(), nil
}

// WeeklySpent returns the weekly accumulator value for token/week.
func (l *BudgetLedger) WeeklySpent(token string, week uint64) (*big.Int, error) {
	v, err := l.readAccumulator(weeklyKey(token, week))
	if err != nil {
		return nil, err
	}
	return v.ToBig(), nil
}

func (l *BudgetLedger) readAccumulator(key []byte) (*uint256.Int, error) {
	var rec accumulatorRecord
	ok, err := l.store.TemporaryGet(key, &rec)
	if err != nil {
		return nil, err
	}
	v := new(uint256.Int)
	if !ok {
		return v, nil
	}
	if err := v.SetFromHex(rec.Amount); err != nil {
		return new(uint256.Int), nil
	}
	return v, nil
}

func (l *BudgetLedger) writeAccumulator(key []byte, v *uint256.Int, ttl time.Duration) error {
	return l.store.TemporaryPut(key, accumulatorRecord{Amount: v.Hex()}, ttl)
}

// CheckCeilings verifies amount against the per-proposal, daily, and weekly
// ceilings without mutating state (spec.md §4.1 gates 6-8).
func (l *BudgetLedger) CheckCeilings(cfg *Config, token string, day, week uint64, amount *big.Int) error {
	if cfg.PerProposalLimit != nil && amount.Cmp(cfg.PerProposalLimit) > 0 {
		return ErrPerProposalLimit
	}
	dailySpent, err := l.DailySpent(token, day)
	if err != nil {
		return err
	}
	if cfg.DailyLimit != nil && new(big.Int).Add(dailySpent, amount).Cmp(cfg.DailyLimit) > 0 {
		return ErrDailyLimitExceeded
	}
	weeklySpent, err := l.WeeklySpent(token, week)
	if err != nil {
		return err
	}
	if cfg.WeeklyLimit != nil && new(big.Int).Add(weeklySpent, amount).Cmp(cfg.WeeklyLimit) > 0 {
		return ErrWeeklyLimitExceeded
	}
	return nil
}

// Reserve bumps the daily and weekly accumulators by amount. This is a
// reservation, not a refundable hold: reject/expire never reverse it
// (SPEC_FULL.md §2(a)).
func (l *BudgetLedger) Reserve(token string, day, week uint64, amount *big.Int) error {
	delta, overflow := uint256.FromBig(amount)
	if overflow {
		return ErrPerProposalLimit
	}
	dailySpent, err := l.readAccumulator(dailyKey(token, day))
	if err != nil {
		return err
	}
	weeklySpent, err := l.readAccumulator(weeklyKey(token, week))
	if err != nil {
		return err
	}
	newDaily := new(uint256.Int).Add(dailySpent, delta)
	newWeekly := new(uint256.Int).Add(weeklySpent, delta)
	// Daily buckets expire 48 hours and weekly buckets 15 days after their
	// last write, long enough to answer "yesterday"/"last week" views
	// without retaining accumulators indefinitely.
	if err := l.writeAccumulator(dailyKey(token, day), newDaily, 48*time.Hour); err != nil {
		return err
	}
	return l.writeAccumulator(weeklyKey(token, week), newWeekly, 15*24*time.Hour)
}

type velocityRecord struct {
	Timestamps []uint64 `json:"timestamps"`
}

// CheckVelocity prunes velocity-history entries older than window and
// reports ErrVelocityLimitExceeded if the remaining count already meets
// limit. It does not mutate state; call RecordVelocity after all other
// policy gates pass so a failed transition leaves no side effects.
func (l *BudgetLedger) CheckVelocity(proposer crypto.Address, window uint64, limit int, nowLedgerSeconds uint64) ([]uint64, error) {
	var rec velocityRecord
	_, err := l.store.TemporaryGet(velocityKey(proposer), &rec)
	if err != nil {
		return nil, err
	}
	pruned := rec.Timestamps[:0]
	for _, ts := range rec.Timestamps {
		if window == 0 || nowLedgerSeconds-ts <= window {
			pruned = append(pruned, ts)
		}
	}
	if limit > 0 && len(pruned) >= limit {
		return nil, ErrVelocityLimitExceeded
	}
	return pruned, nil
}

// RecordVelocity appends nowLedgerSeconds to the proposer's pruned history
// (as returned by CheckVelocity) and persists it.
func (l *BudgetLedger) RecordVelocity(proposer crypto.Address, prunedHistory []uint64, window uint64, nowLedgerSeconds uint64) error {
	updated := append(prunedHistory, nowLedgerSeconds)
	ttl := time.Duration(window) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return l.store.TemporaryPut(velocityKey(proposer), velocityRecord{Timestamps: updated}, ttl)
}
