package prefs

import (
	"context"
	"sync"
)

// MemoryStore keeps preferences for the lifetime of the process.
type MemoryStore struct {
	values sync.Map
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (st *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	val, ok := st.values.Load(key)
	if !ok {
		return "", false, nil
	}
	return val.(string), true, nil
}

func (st *MemoryStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	st.values.Store(key, value)
	return nil
}

func (st *MemoryStore) Close() error {
	return nil
}
