package wal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/PiccoloProcione/supersmp/pkg/smp"
)

// DefaultSnapshotEvery is the number of appended records after which the
// snapshot is rewritten
const DefaultSnapshotEvery = 100

// Codec converts entities to and from their canonical XML element.
type Codec[T any] interface {
	// ElementName is the tag of the entity elements
	ElementName() string
	ID(v T) string
	Encode(v T) (*etree.Element, error)
	Decode(el *etree.Element) (T, error)
	// Clone returns a copy that shares no mutable state with v
	Clone(v T) T
}

// Recovery is notified while the store replays its snapshot and journal, so
// the owner can rebuild secondary indexes. Callbacks run under the store's
// write lock and must not call back into the store.
type Recovery[T any] interface {
	OnRecoveryCreate(v T)
	OnRecoveryUpdate(v T)
	OnRecoveryDelete(v T)
}

// Observer receives store events, e.g. for metrics
type Observer interface {
	ObserveAppend(store string)
	ObserveSnapshot(store string, err error)
}

// Options configures a store
type Options struct {
	// Dir holds the snapshot <Name>.xml and the journal <Name>.wal
	Dir string
	// Name of the collection; also the root element of the snapshot
	Name string
	// SnapshotEvery is the number of appends between snapshots; default DefaultSnapshotEvery
	SnapshotEvery int
	// Sync fsyncs the journal after every append
	Sync bool
	// Journal overrides the file journal
	Journal Journal
	// Logger defaults to slog.Default()
	Logger *slog.Logger
	// Observer is optional
	Observer Observer
}

// Store is a crash-safe keyed collection of one entity type.
//
// All entities live in memory, guarded by one RWMutex. Every mutation is
// appended to the journal before the write lock is released; the snapshot
// is rewritten every SnapshotEvery appends and on Close.
type Store[T any] struct {
	mu    sync.RWMutex
	items map[string]T

	name          string
	codec         Codec[T]
	journal       Journal
	snapshotPath  string
	snapshotEvery int
	session       string
	seq           uint64
	sinceSnapshot int
	closed        bool

	logger   *slog.Logger
	observer Observer
}

// Open loads the snapshot, replays the journal and returns the store.
// rec may be nil.
func Open[T any](opts Options, codec Codec[T], rec Recovery[T]) (*Store[T], error) {
	if opts.Name == "" {
		return nil, errors.New("store name is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SnapshotEvery <= 0 {
		opts.SnapshotEvery = DefaultSnapshotEvery
	}

	s := &Store[T]{
		items:         make(map[string]T),
		name:          opts.Name,
		codec:         codec,
		journal:       opts.Journal,
		snapshotEvery: opts.SnapshotEvery,
		session:       uuid.New().String(),
		logger:        opts.Logger.With("store", opts.Name),
		observer:      opts.Observer,
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		s.snapshotPath = filepath.Join(opts.Dir, opts.Name+".xml")
	}
	if s.journal == nil {
		if opts.Dir == "" {
			return nil, errors.New("either a directory or a journal is required")
		}
		j, err := OpenFileJournal(filepath.Join(opts.Dir, opts.Name+".wal"), opts.Sync, opts.Logger)
		if err != nil {
			return nil, err
		}
		s.journal = j
	}

	if err := s.load(rec); err != nil {
		_ = s.journal.Close()
		return nil, &smp.PersistenceError{Op: "replay", Store: s.name, Err: err}
	}
	return s, nil
}

// load reads the snapshot and applies all journal records newer than it
func (s *Store[T]) load(rec Recovery[T]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastSeq uint64
	if s.snapshotPath != "" {
		snap, err := readSnapshot(s.snapshotPath, s.name)
		if err != nil {
			return err
		}
		for _, el := range snap.elements {
			v, err := s.codec.Decode(el)
			if err != nil {
				return fmt.Errorf("failed to decode snapshot entry: %w", err)
			}
			s.items[s.codec.ID(v)] = v
			if rec != nil {
				rec.OnRecoveryCreate(v)
			}
		}
		lastSeq = snap.lastSeq
	}
	s.seq = lastSeq

	records, err := s.journal.Load()
	if err != nil {
		return err
	}

	replayed := 0
	for _, r := range records {
		if r.Seq <= lastSeq {
			continue
		}
		if err := s.replay(r, rec); err != nil {
			return fmt.Errorf("failed to replay record %d: %w", r.Seq, err)
		}
		if r.Seq > s.seq {
			s.seq = r.Seq
		}
		replayed++
	}
	s.sinceSnapshot = replayed

	s.logger.Debug("Store loaded", "entries", len(s.items), "replayed", replayed, "seq", s.seq)
	return nil
}

// replay applies one record without appending it again. Creates of existing
// entries count as updates and deletes of missing entries are ignored.
func (s *Store[T]) replay(r Record, rec Recovery[T]) error {
	switch r.Action {
	case ActionCreate, ActionUpdate:
		doc := etree.NewDocument()
		if err := doc.ReadFromString(r.Data); err != nil {
			return err
		}
		if doc.Root() == nil {
			return errors.New("record has no entity element")
		}
		v, err := s.codec.Decode(doc.Root())
		if err != nil {
			return err
		}
		id := s.codec.ID(v)
		_, exists := s.items[id]
		s.items[id] = v
		if rec != nil {
			if exists {
				rec.OnRecoveryUpdate(v)
			} else {
				rec.OnRecoveryCreate(v)
			}
		}
	case ActionDelete:
		old, exists := s.items[r.ID]
		if !exists {
			return nil
		}
		delete(s.items, r.ID)
		if rec != nil {
			rec.OnRecoveryDelete(old)
		}
	default:
		return fmt.Errorf("unknown action %q", r.Action)
	}
	return nil
}

// Name returns the collection name
func (s *Store[T]) Name() string {
	return s.name
}

// Write runs fn under the write lock. Mutations made through tx are durable
// when they return without error.
func (s *Store[T]) Write(fn func(tx *Tx[T]) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &smp.PersistenceError{Op: "write", Store: s.name, Err: errors.New("store is closed")}
	}
	return fn(&Tx[T]{s: s})
}

// Read runs fn under the read lock
func (s *Store[T]) Read(fn func(v View[T])) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(View[T]{s: s})
}

// Get returns a copy of the entry with the ID
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View[T]{s: s}.Get(id)
}

// Contains reports whether an entry with the ID exists
func (s *Store[T]) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok
}

// Values returns copies of all entries, ordered by ID
func (s *Store[T]) Values() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View[T]{s: s}.Values()
}

// Count returns the number of entries
func (s *Store[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Snapshot rewrites the snapshot and truncates the journal
func (s *Store[T]) Snapshot() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store[T]) snapshotLocked() error {
	if s.snapshotPath == "" {
		// Journal-only store
		return nil
	}

	ids := s.sortedIDs()
	elements := make([]*etree.Element, 0, len(ids))
	for _, id := range ids {
		el, err := s.codec.Encode(s.items[id])
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", id, err)
		}
		elements = append(elements, el)
	}

	err := writeSnapshot(s.snapshotPath, s.name, s.session, s.seq, elements)
	if err == nil {
		err = s.journal.Truncate()
	}
	if s.observer != nil {
		s.observer.ObserveSnapshot(s.name, err)
	}
	if err != nil {
		return err
	}
	s.sinceSnapshot = 0
	return nil
}

// Close writes a final snapshot and closes the journal
func (s *Store[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	snapErr := s.snapshotLocked()
	if snapErr != nil {
		s.logger.Error("Final snapshot failed", "error", snapErr)
	}
	return errors.Join(snapErr, s.journal.Close())
}

func (s *Store[T]) sortedIDs() []string {
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// append journals one mutation. Must hold the write lock.
func (s *Store[T]) append(action Action, id string, v *T) error {
	rec := Record{
		Seq:     s.seq + 1,
		Action:  action,
		Time:    time.Now().UTC(),
		Session: s.session,
		ID:      id,
	}
	if v != nil {
		el, err := s.codec.Encode(*v)
		if err != nil {
			return err
		}
		doc := etree.NewDocument()
		doc.SetRoot(el)
		data, err := doc.WriteToString()
		if err != nil {
			return err
		}
		rec.Data = data
	}

	if err := s.journal.Append(rec); err != nil {
		return err
	}
	s.seq = rec.Seq
	s.sinceSnapshot++
	if s.observer != nil {
		s.observer.ObserveAppend(s.name)
	}

	if s.sinceSnapshot >= s.snapshotEvery {
		// The mutation is already durable in the journal
		if err := s.snapshotLocked(); err != nil {
			s.logger.Warn("Snapshot failed", "error", err)
		}
	}
	return nil
}

// Tx mutates a store inside Write. It must not be used after Write returns.
type Tx[T any] struct {
	s *Store[T]
}

// Get returns a copy of the entry with the ID
func (tx *Tx[T]) Get(id string) (T, bool) {
	return View[T]{s: tx.s}.Get(id)
}

// Contains reports whether an entry with the ID exists
func (tx *Tx[T]) Contains(id string) bool {
	_, ok := tx.s.items[id]
	return ok
}

// Values returns copies of all entries, ordered by ID
func (tx *Tx[T]) Values() []T {
	return View[T]{s: tx.s}.Values()
}

// Count returns the number of entries
func (tx *Tx[T]) Count() int {
	return len(tx.s.items)
}

// Create inserts v. It fails with smp.ErrDuplicateID if the ID is taken.
func (tx *Tx[T]) Create(v T) error {
	s := tx.s
	id := s.codec.ID(v)
	if _, exists := s.items[id]; exists {
		return fmt.Errorf("%s %s: %w", s.name, id, smp.ErrDuplicateID)
	}
	stored := s.codec.Clone(v)
	s.items[id] = stored
	if err := s.append(ActionCreate, id, &stored); err != nil {
		delete(s.items, id)
		return &smp.PersistenceError{Op: string(ActionCreate), Store: s.name, Err: err}
	}
	return nil
}

// Update replaces v. It fails with smp.ErrNotFound if the ID is unknown.
func (tx *Tx[T]) Update(v T) error {
	s := tx.s
	id := s.codec.ID(v)
	prev, exists := s.items[id]
	if !exists {
		return fmt.Errorf("%s %s: %w", s.name, id, smp.ErrNotFound)
	}
	stored := s.codec.Clone(v)
	s.items[id] = stored
	if err := s.append(ActionUpdate, id, &stored); err != nil {
		s.items[id] = prev
		return &smp.PersistenceError{Op: string(ActionUpdate), Store: s.name, Err: err}
	}
	return nil
}

// Put creates or replaces v and reports whether it was created.
func (tx *Tx[T]) Put(v T) (bool, error) {
	if tx.Contains(tx.s.codec.ID(v)) {
		return false, tx.Update(v)
	}
	return true, tx.Create(v)
}

// Delete removes the entry with the ID and returns it. Deleting an unknown
// ID is not an error.
func (tx *Tx[T]) Delete(id string) (T, bool, error) {
	s := tx.s
	prev, exists := s.items[id]
	if !exists {
		var zero T
		return zero, false, nil
	}
	delete(s.items, id)
	if err := s.append(ActionDelete, id, nil); err != nil {
		s.items[id] = prev
		var zero T
		return zero, false, &smp.PersistenceError{Op: string(ActionDelete), Store: s.name, Err: err}
	}
	return s.codec.Clone(prev), true, nil
}

// View reads a store inside Read. It must not be used after Read returns.
type View[T any] struct {
	s *Store[T]
}

// Get returns a copy of the entry with the ID
func (v View[T]) Get(id string) (T, bool) {
	item, ok := v.s.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	return v.s.codec.Clone(item), true
}

// Contains reports whether an entry with the ID exists
func (v View[T]) Contains(id string) bool {
	_, ok := v.s.items[id]
	return ok
}

// Values returns copies of all entries, ordered by ID
func (v View[T]) Values() []T {
	ids := v.s.sortedIDs()
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, v.s.codec.Clone(v.s.items[id]))
	}
	return out
}

// Filter returns copies of the entries matching keep, ordered by ID.
// keep sees the stored entry and must not modify it.
func (v View[T]) Filter(keep func(T) bool) []T {
	var out []T
	for _, id := range v.s.sortedIDs() {
		if item := v.s.items[id]; keep(item) {
			out = append(out, v.s.codec.Clone(item))
		}
	}
	return out
}

// Len returns the number of entries
func (v View[T]) Len() int {
	return len(v.s.items)
}
