package wal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

func openNotes(t *testing.T, opts Options, rec Recovery[*note]) *Store[*note] {
	t.Helper()
	if opts.Name == "" {
		opts.Name = "notes"
	}
	s, err := Open[*note](opts, noteCodec{}, rec)
	require.NoError(t, err)
	return s
}

func TestStore_CRUD(t *testing.T) {
	s := openNotes(t, Options{Journal: NewMemoryJournal()}, nil)

	err := s.Write(func(tx *Tx[*note]) error {
		return tx.Create(&note{ID: "a", Text: "first"})
	})
	require.NoError(t, err)

	err = s.Write(func(tx *Tx[*note]) error {
		return tx.Create(&note{ID: "a", Text: "again"})
	})
	assert.ErrorIs(t, err, smp.ErrDuplicateID)

	err = s.Write(func(tx *Tx[*note]) error {
		return tx.Update(&note{ID: "missing"})
	})
	assert.ErrorIs(t, err, smp.ErrNotFound)

	err = s.Write(func(tx *Tx[*note]) error {
		created, err := tx.Put(&note{ID: "b", Text: "second"})
		assert.True(t, created)
		return err
	})
	require.NoError(t, err)

	err = s.Write(func(tx *Tx[*note]) error {
		return tx.Update(&note{ID: "a", Text: "changed"})
	})
	require.NoError(t, err)

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "changed", got.Text)
	assert.Equal(t, 2, s.Count())

	var deleted *note
	err = s.Write(func(tx *Tx[*note]) error {
		var found bool
		var err error
		deleted, found, err = tx.Delete("b")
		assert.True(t, found)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "second", deleted.Text)

	err = s.Write(func(tx *Tx[*note]) error {
		_, found, err := tx.Delete("b")
		assert.False(t, found)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Count())
}

func TestStore_ReadsReturnCopies(t *testing.T) {
	s := openNotes(t, Options{Journal: NewMemoryJournal()}, nil)
	original := &note{ID: "a", Text: "x", Tags: []string{"t1"}}
	require.NoError(t, s.Write(func(tx *Tx[*note]) error { return tx.Create(original) }))

	original.Text = "mutated after create"
	got, _ := s.Get("a")
	assert.Equal(t, "x", got.Text)

	got.Tags[0] = "mutated"
	again, _ := s.Get("a")
	assert.Equal(t, "t1", again.Tags[0])

	s.Read(func(v View[*note]) {
		for _, n := range v.Values() {
			n.Text = "mutated in view"
		}
	})
	again, _ = s.Get("a")
	assert.Equal(t, "x", again.Text)
}

func TestStore_ValuesSorted(t *testing.T) {
	s := openNotes(t, Options{Journal: NewMemoryJournal()}, nil)
	require.NoError(t, s.Write(func(tx *Tx[*note]) error {
		for _, id := range []string{"c", "a", "b"} {
			if err := tx.Create(&note{ID: id}); err != nil {
				return err
			}
		}
		return nil
	}))

	var ids []string
	for _, n := range s.Values() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	s.Read(func(v View[*note]) {
		matched := v.Filter(func(n *note) bool { return n.ID != "b" })
		assert.Len(t, matched, 2)
		assert.Equal(t, 3, v.Len())
	})
}

func TestStore_RollbackOnAppendFailure(t *testing.T) {
	j := NewMemoryJournal()
	s := openNotes(t, Options{Journal: j}, nil)
	require.NoError(t, s.Write(func(tx *Tx[*note]) error {
		return tx.Create(&note{ID: "a", Text: "kept"})
	}))

	diskFull := errors.New("no space left on device")
	j.FailAppend(diskFull)

	tests := []struct {
		name string
		fn   func(tx *Tx[*note]) error
	}{
		{name: "create", fn: func(tx *Tx[*note]) error { return tx.Create(&note{ID: "b"}) }},
		{name: "update", fn: func(tx *Tx[*note]) error { return tx.Update(&note{ID: "a", Text: "lost"}) }},
		{name: "delete", fn: func(tx *Tx[*note]) error {
			_, _, err := tx.Delete("a")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Write(tt.fn)
			require.Error(t, err)
			assert.ErrorIs(t, err, smp.ErrPersistence)
			assert.ErrorIs(t, err, diskFull)

			var perr *smp.PersistenceError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "notes", perr.Store)

			assert.Equal(t, 1, s.Count())
			got, ok := s.Get("a")
			require.True(t, ok)
			assert.Equal(t, "kept", got.Text)
		})
	}
	assert.Equal(t, 1, j.Appends())
}

func TestStore_ReopenFromJournal(t *testing.T) {
	dir := t.TempDir()
	s := openNotes(t, Options{Dir: dir, Sync: true}, nil)
	require.NoError(t, s.Write(func(tx *Tx[*note]) error {
		if err := tx.Create(&note{ID: "a", Text: "1"}); err != nil {
			return err
		}
		if err := tx.Create(&note{ID: "b", Text: "2"}); err != nil {
			return err
		}
		_, _, err := tx.Delete("a")
		return err
	}))
	// Crash: the journal is closed without a final snapshot
	require.NoError(t, s.journal.Close())

	_, err := os.Stat(filepath.Join(dir, "notes.xml"))
	assert.True(t, os.IsNotExist(err))

	rec := &recorder{}
	reopened := openNotes(t, Options{Dir: dir}, rec)
	defer reopened.Close()

	assert.Equal(t, 1, reopened.Count())
	got, ok := reopened.Get("b")
	require.True(t, ok)
	assert.Equal(t, "2", got.Text)
	assert.Equal(t, []string{"a", "b"}, rec.created)
	assert.Equal(t, []string{"a"}, rec.deleted)
}

func TestStore_SnapshotPolicy(t *testing.T) {
	dir := t.TempDir()
	s := openNotes(t, Options{Dir: dir, SnapshotEvery: 2}, nil)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Write(func(tx *Tx[*note]) error {
			return tx.Create(&note{ID: id})
		}))
	}

	snapshot, err := os.ReadFile(filepath.Join(dir, "notes.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(snapshot), `lastSeq="2"`)
	assert.Contains(t, string(snapshot), `id="b"`)
	assert.NotContains(t, string(snapshot), `id="c"`)

	journal, err := os.ReadFile(filepath.Join(dir, "notes.wal"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(journal), "\n"))

	require.NoError(t, s.Close())

	journal, err = os.ReadFile(filepath.Join(dir, "notes.wal"))
	require.NoError(t, err)
	assert.Empty(t, journal)

	reopened := openNotes(t, Options{Dir: dir}, nil)
	defer reopened.Close()
	assert.Equal(t, 3, reopened.Count())
}

func TestStore_SkipsRecordsCoveredBySnapshot(t *testing.T) {
	dir := t.TempDir()
	s := openNotes(t, Options{Dir: dir}, nil)
	require.NoError(t, s.Write(func(tx *Tx[*note]) error {
		return tx.Create(&note{ID: "a", Text: "v1"})
	}))
	require.NoError(t, s.Write(func(tx *Tx[*note]) error {
		return tx.Update(&note{ID: "a", Text: "v2"})
	}))

	// Snapshot written but the journal kept, as after a crash between
	// the rename and the truncate
	s.mu.Lock()
	el, err := noteCodec{}.Encode(s.items["a"])
	require.NoError(t, err)
	require.NoError(t, writeSnapshot(s.snapshotPath, s.name, s.session, s.seq, []*etree.Element{el}))
	s.mu.Unlock()
	require.NoError(t, s.journal.Close())

	rec := &recorder{}
	reopened := openNotes(t, Options{Dir: dir}, rec)
	defer reopened.Close()

	got, ok := reopened.Get("a")
	require.True(t, ok)
	assert.Equal(t, "v2", got.Text)
	assert.Equal(t, []string{"a"}, rec.created)
	assert.Empty(t, rec.updated, "records up to lastSeq must not be replayed")
}

func TestStore_ReplayTolerance(t *testing.T) {
	j := NewMemoryJournal()
	now := time.Now().UTC()
	records := []Record{
		{Seq: 1, Action: ActionCreate, Time: now, ID: "a", Data: `<Note id="a"><Text>1</Text></Note>`},
		{Seq: 2, Action: ActionCreate, Time: now, ID: "a", Data: `<Note id="a"><Text>2</Text></Note>`},
		{Seq: 3, Action: ActionDelete, Time: now, ID: "missing"},
		{Seq: 4, Action: ActionUpdate, Time: now, ID: "c", Data: `<Note id="c"><Text>3</Text></Note>`},
	}
	for _, r := range records {
		require.NoError(t, j.Append(r))
	}

	rec := &recorder{}
	s := openNotes(t, Options{Journal: j}, rec)

	assert.Equal(t, 2, s.Count())
	got, _ := s.Get("a")
	assert.Equal(t, "2", got.Text)
	assert.Equal(t, []string{"a", "c"}, rec.created)
	assert.Equal(t, []string{"a"}, rec.updated)
	assert.Empty(t, rec.deleted)
	assert.Equal(t, 4, j.Appends(), "replay must not append")

	require.NoError(t, s.Write(func(tx *Tx[*note]) error {
		return tx.Create(&note{ID: "d"})
	}))
	loaded, err := j.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), loaded[len(loaded)-1].Seq)
}

func TestStore_ReplayFailsOnBadRecord(t *testing.T) {
	j := NewMemoryJournal()
	require.NoError(t, j.Append(Record{Seq: 1, Action: ActionCreate, ID: "a", Data: "<Other/>"}))

	_, err := Open[*note](Options{Name: "notes", Journal: j}, noteCodec{}, nil)
	assert.ErrorIs(t, err, smp.ErrPersistence)
}

func TestStore_WriteAfterClose(t *testing.T) {
	s := openNotes(t, Options{Journal: NewMemoryJournal()}, nil)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err := s.Write(func(tx *Tx[*note]) error { return tx.Create(&note{ID: "a"}) })
	assert.ErrorIs(t, err, smp.ErrPersistence)
}

type countingObserver struct {
	appends, snapshots int
}

func (o *countingObserver) ObserveAppend(string)          { o.appends++ }
func (o *countingObserver) ObserveSnapshot(string, error) { o.snapshots++ }

func TestStore_Observer(t *testing.T) {
	obs := &countingObserver{}
	s := openNotes(t, Options{Dir: t.TempDir(), SnapshotEvery: 2, Observer: obs}, nil)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Write(func(tx *Tx[*note]) error { return tx.Create(&note{ID: id}) }))
	}
	require.NoError(t, s.Close())

	assert.Equal(t, 3, obs.appends)
	assert.Equal(t, 2, obs.snapshots)
}
