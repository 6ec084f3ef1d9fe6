package storage

import "sort"

// Journal buffers writes on top of a Database. Reads observe the pending
// writes; nothing reaches the backing store until the caller writes Batch().
type Journal struct {
	base    Database
	pending map[string]journalEntry
}

type journalEntry struct {
	value   []byte
	deleted bool
}

// NewJournal opens an empty journal over base.
func NewJournal(base Database) *Journal {
	return &Journal{base: base, pending: make(map[string]journalEntry)}
}

func (j *Journal) Get(key []byte) ([]byte, error) {
	if entry, ok := j.pending[string(key)]; ok {
		if entry.deleted {
			return nil, ErrNotFound
		}
		return append([]byte(nil), entry.value...), nil
	}
	return j.base.Get(key)
}

func (j *Journal) Put(key []byte, value []byte) error {
	j.pending[string(key)] = journalEntry{value: append([]byte(nil), value...)}
	return nil
}

func (j *Journal) Delete(key []byte) error {
	j.pending[string(key)] = journalEntry{deleted: true}
	return nil
}

// Dirty reports whether any write is pending.
func (j *Journal) Dirty() bool { return len(j.pending) > 0 }

// Batch renders the pending writes in key order so commits are deterministic.
func (j *Journal) Batch() *Batch {
	keys := make([]string, 0, len(j.pending))
	for key := range j.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	batch := new(Batch)
	for _, key := range keys {
		entry := j.pending[key]
		if entry.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), entry.value)
	}
	return batch
}

// Discard drops every pending write.
func (j *Journal) Discard() {
	j.pending = make(map[string]journalEntry)
}
