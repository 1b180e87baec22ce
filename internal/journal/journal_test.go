package journal_test

import (
	"path/filepath"
	"testing"

	"github.com/pancake-vcs/pk/internal/journal"
	"github.com/stretchr/testify/require"
)

func openJournal(t *testing.T) *journal.Journal {
	t.Helper()
	return journal.Open(t.TempDir())
}

func TestNextOpIDStartsAtOne(t *testing.T) {
	j := openJournal(t)
	id, err := j.NextOpID()
	require.NoError(t, err)
	require.Equal(t, int64(1), id)
}

func TestOpenEntryTracksMostRecentOpenOrSuspended(t *testing.T) {
	j := openJournal(t)
	require.Nil(t, j.OpenEntry())

	require.NoError(t, j.Append(journal.Entry{OpID: 1, State: journal.StateOpen}))
	entry := j.OpenEntry()
	require.NotNil(t, entry)
	require.Equal(t, int64(1), entry.OpID)

	// A later append under the same OpID supersedes the earlier one.
	require.NoError(t, j.Append(journal.Entry{OpID: 1, State: journal.StateSuspended, StepIndex: 2}))
	entry = j.OpenEntry()
	require.NotNil(t, entry)
	require.Equal(t, journal.StateSuspended, entry.State)
	require.Equal(t, 2, entry.StepIndex)

	require.NoError(t, j.Append(journal.Entry{OpID: 1, State: journal.StateCommitted}))
	require.Nil(t, j.OpenEntry())
}

func TestLastCommittedPicksHighestOpID(t *testing.T) {
	j := openJournal(t)
	require.Nil(t, j.LastCommitted())

	require.NoError(t, j.Append(journal.Entry{OpID: 1, State: journal.StateCommitted}))
	require.NoError(t, j.Append(journal.Entry{OpID: 2, State: journal.StateCommitted}))
	require.NoError(t, j.Append(journal.Entry{OpID: 3, State: journal.StateOpen}))

	last := j.LastCommitted()
	require.NotNil(t, last)
	require.Equal(t, int64(2), last.OpID)
}

func TestLastUndoneOnlyMatchesWhenUndoIsStillNewest(t *testing.T) {
	j := openJournal(t)
	require.Nil(t, j.LastUndone())

	require.NoError(t, j.Append(journal.Entry{OpID: 1, State: journal.StateCommitted}))
	require.NoError(t, j.Append(journal.Entry{OpID: 1, State: journal.StateAborted, Hint: "reversed by pk undo"}))

	undone := j.LastUndone()
	require.NotNil(t, undone)
	require.Equal(t, int64(1), undone.OpID)

	// Once a newer, unrelated operation is committed, redo must refuse: the
	// undone entry is no longer the newest thing in the folded journal.
	require.NoError(t, j.Append(journal.Entry{OpID: 2, State: journal.StateCommitted}))
	require.Nil(t, j.LastUndone())
}

func TestLastUndoneIgnoresAbortsNotFromUndo(t *testing.T) {
	j := openJournal(t)
	require.NoError(t, j.Append(journal.Entry{OpID: 1, State: journal.StateAborted, Hint: "reversed by pk abort"}))
	require.Nil(t, j.LastUndone())
}
