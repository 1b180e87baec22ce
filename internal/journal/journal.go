// Package journal is the Journal/Undo component (C7, spec.md §4.7): an
// append-only log of structural operations that lets the Operation Engine
// externalize its continuation state to disk instead of blocking a
// goroutine across a conflict. `--continue` and `--abort` (and crash
// recovery) work by reloading the journal and resuming from the last
// recorded step, the same pattern the teacher's sequencer uses to survive
// a process restart across an interactive rebase.
package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"emperror.dev/errors"
	"github.com/pancake-vcs/pk/internal/meta"
	"github.com/pancake-vcs/pk/internal/stackmodel"
)

// State is an entry's lifecycle stage.
type State string

const (
	StateOpen      State = "Open"
	StateSuspended State = "Suspended"
	StateCommitted State = "Committed"
	StateAborted   State = "Aborted"
)

// Intent names the structural mutation an entry is carrying out, with
// enough parameters to describe it to a user resuming via `--continue` or
// reviewing `pk undo`.
type Intent struct {
	Kind   string            `json:"kind"` // "create" | "rename" | "delete" | "restack" | "move" | "land" | "push" | "submit"
	Params map[string]string `json:"params,omitempty"`
}

// PreImage is the snapshot an Undo (or --abort rollback) restores.
type PreImage struct {
	Branches   map[string]meta.Branch `json:"branches"`
	Repository meta.Repository        `json:"repository"`
	// BranchHeads is the VCS head of every branch the plan touches, as of
	// before the first step ran.
	BranchHeads map[string]string `json:"branchHeads"`
}

// Entry is one journal record. Entries are appended, never rewritten in
// place: a later entry with the same OpID supersedes an earlier one when
// reconstructing current state.
type Entry struct {
	OpID      int64            `json:"opId"`
	Intent    Intent           `json:"intent"`
	Plan      stackmodel.Plan  `json:"plan"`
	PreImage  PreImage         `json:"preImage"`
	State     State            `json:"state"`
	// StepIndex is the first not-yet-completed step, valid when State is
	// Suspended (or mid-execution Open).
	StepIndex int    `json:"stepIndex"`
	Hint      string `json:"hint,omitempty"`
	OpenedAt  time.Time `json:"openedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Journal is the handle on .pancake/journal.log.
type Journal struct {
	path string
}

func Open(pancakeDir string) *Journal {
	return &Journal{path: filepath.Join(pancakeDir, "journal.log")}
}

// Append durably writes e as the next line of the log.
func (j *Journal) Append(e Entry) error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create pancake directory")
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to open journal")
	}
	defer f.Close()

	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "failed to encode journal entry")
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, "failed to append journal entry")
	}
	return f.Sync()
}

// entries returns every line in the log, oldest first. A malformed
// trailing line (partial write from a crash mid-append) is ignored.
func (j *Journal) entries() ([]Entry, error) {
	f, err := os.Open(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to open journal")
	}
	defer f.Close()

	var out []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, scanner.Err()
}

// latestByOpID folds the append-only log down to the most recent entry per
// OpID, in first-seen OpID order.
func (j *Journal) latestByOpID() ([]Entry, error) {
	all, err := j.entries()
	if err != nil {
		return nil, err
	}
	order := make([]int64, 0)
	latest := make(map[int64]Entry)
	for _, e := range all {
		if _, ok := latest[e.OpID]; !ok {
			order = append(order, e.OpID)
		}
		latest[e.OpID] = e
	}
	out := make([]Entry, 0, len(order))
	for _, id := range order {
		out = append(out, latest[id])
	}
	return out, nil
}

// NextOpID returns a monotonically increasing operation id.
func (j *Journal) NextOpID() (int64, error) {
	es, err := j.latestByOpID()
	if err != nil {
		return 0, err
	}
	var max int64
	for _, e := range es {
		if e.OpID > max {
			max = e.OpID
		}
	}
	return max + 1, nil
}

// OpenEntry returns the one entry currently in state Open or Suspended, if
// any (spec.md §4.7: "At most one entry may be Open or Suspended at any
// time").
func (j *Journal) OpenEntry() *Entry {
	es, err := j.latestByOpID()
	if err != nil {
		return nil
	}
	for i := range es {
		if es[i].State == StateOpen || es[i].State == StateSuspended {
			e := es[i]
			return &e
		}
	}
	return nil
}

// LastUndone returns the entry `pk undo` most recently reversed, if that
// undo is still the most recent thing recorded in the journal (spec.md
// §10: redo does not survive a later structural operation - once some
// other op is committed, it becomes the newest entry and LastUndone stops
// matching).
func (j *Journal) LastUndone() *Entry {
	es, err := j.latestByOpID()
	if err != nil || len(es) == 0 {
		return nil
	}
	last := es[len(es)-1]
	if last.State == StateAborted && last.Hint == "reversed by pk undo" {
		e := last
		return &e
	}
	return nil
}

// LastCommitted returns the most recently committed entry, the one `pk
// undo` reverses. Only one level of undo is required (spec.md §4.7).
func (j *Journal) LastCommitted() *Entry {
	es, err := j.latestByOpID()
	if err != nil {
		return nil
	}
	var best *Entry
	for i := range es {
		if es[i].State != StateCommitted {
			continue
		}
		if best == nil || es[i].OpID > best.OpID {
			e := es[i]
			best = &e
		}
	}
	return best
}
