package audit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"treasuryvault/native/treasury"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	db, err := OpenDev(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	journal, err := NewJournal(db)
	require.NoError(t, err)
	return journal
}

func TestJournalAppendChainsHashes(t *testing.T) {
	journal := newTestJournal(t)

	first, err := journal.Append(treasury.Event{Topic: treasury.TopicProposalCreated, Attributes: map[string]string{"id": "1"}})
	require.NoError(t, err)
	require.Equal(t, uint64(1), first.Sequence)
	require.Equal(t, genesisHash, first.PrevHash)

	second, err := journal.Append(treasury.Event{Topic: treasury.TopicProposalApproved, Attributes: map[string]string{"id": "1"}})
	require.NoError(t, err)
	require.Equal(t, uint64(2), second.Sequence)
	require.Equal(t, first.Hash, second.PrevHash)

	require.NoError(t, journal.Verify())
}

func TestJournalEmitSwallowsNothingObservable(t *testing.T) {
	journal := newTestJournal(t)
	journal.Emit(treasury.Event{Topic: treasury.TopicInitialized, Attributes: map[string]string{"admin": "trsy1abc"}})

	var count int64
	require.NoError(t, journal.db.Model(&Record{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestJournalVerifyDetectsTamperedRow(t *testing.T) {
	journal := newTestJournal(t)
	_, err := journal.Append(treasury.Event{Topic: treasury.TopicProposalExecuted, Attributes: map[string]string{"id": "1"}})
	require.NoError(t, err)

	require.NoError(t, journal.db.Model(&Record{}).Where("sequence = ?", 1).Update("attributes", `{"id":"tampered"}`).Error)

	err = journal.Verify()
	require.Error(t, err)
}

func TestNewJournalResumesChainFromExistingTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	db, err := OpenDev(path)
	require.NoError(t, err)
	journal, err := NewJournal(db)
	require.NoError(t, err)
	last, err := journal.Append(treasury.Event{Topic: treasury.TopicProposalCreated})
	require.NoError(t, err)

	resumed, err := NewJournal(db)
	require.NoError(t, err)
	require.Equal(t, last.Hash, resumed.last)
}
