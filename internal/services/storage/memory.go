package storage

import (
	"encoding/json"
	"sync"
)

// MemoryStore is an in-process Store. Values round-trip through JSON like FileStore.
type MemoryStore struct {
	mutex  sync.Mutex
	values map[string][]byte
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string][]byte{}}
}

// Get implements Store.
func (store *MemoryStore) Get(key string, target any) (bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	raw, found := store.values[key]
	if !found {
		return false, nil
	}
	return true, json.Unmarshal(raw, target)
}

// Set implements Store.
func (store *MemoryStore) Set(key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.values[key] = encoded
	return nil
}

// Modify implements Store.
func (store *MemoryStore) Modify(key string, change func(current json.RawMessage) (any, error)) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	var current json.RawMessage
	if raw, found := store.values[key]; found {
		current = append(json.RawMessage(nil), raw...)
	}
	value, err := change(current)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	store.values[key] = encoded
	return nil
}

// SetRaw stores raw JSON under key, bypassing encoding.
func (store *MemoryStore) SetRaw(key string, raw string) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.values[key] = []byte(raw)
}

var _ Store = (*MemoryStore)(nil)
