package xmlfile

import (
	"sort"

	"github.com/PiccoloProcione/supersmp/internal/storage/wal"
)

// index groups entity IDs by a secondary key (owner, service group). It is
// only touched inside the owning store's Read and Write functions, so the
// store lock guards it.
type index struct {
	byKey map[string]map[string]struct{}
	keyOf map[string]string
}

func newIndex() *index {
	return &index{
		byKey: make(map[string]map[string]struct{}),
		keyOf: make(map[string]string),
	}
}

// put files id under key, moving it if it was filed under another key
func (ix *index) put(key, id string) {
	if old, ok := ix.keyOf[id]; ok {
		if old == key {
			return
		}
		ix.drop(old, id)
	}
	ids, ok := ix.byKey[key]
	if !ok {
		ids = make(map[string]struct{})
		ix.byKey[key] = ids
	}
	ids[id] = struct{}{}
	ix.keyOf[id] = key
}

func (ix *index) remove(id string) {
	if key, ok := ix.keyOf[id]; ok {
		ix.drop(key, id)
		delete(ix.keyOf, id)
	}
}

func (ix *index) drop(key, id string) {
	ids := ix.byKey[key]
	delete(ids, id)
	if len(ids) == 0 {
		delete(ix.byKey, key)
	}
}

// ids returns the IDs filed under key, sorted
func (ix *index) ids(key string) []string {
	ids := make([]string, 0, len(ix.byKey[key]))
	for id := range ix.byKey[key] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (ix *index) count(key string) int {
	return len(ix.byKey[key])
}

// recovery keeps an index current while a store replays
type recovery[T any] struct {
	ix  *index
	key func(T) string
	id  func(T) string
}

var _ wal.Recovery[any] = recovery[any]{}

func (r recovery[T]) OnRecoveryCreate(v T) { r.ix.put(r.key(v), r.id(v)) }
func (r recovery[T]) OnRecoveryUpdate(v T) { r.ix.put(r.key(v), r.id(v)) }
func (r recovery[T]) OnRecoveryDelete(v T) { r.ix.remove(r.id(v)) }
