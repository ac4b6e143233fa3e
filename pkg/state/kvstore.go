package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DefaultPrefix namespaces state keys in shared backends.
const DefaultPrefix = "greenbot:state:"

// KVStore implements Store on top of a durable KV backend. Each sender's
// state is one JSON object under prefix+sender; read-modify-write operations
// go through KV.UpdateFunc so concurrent writers do not lose updates.
type KVStore struct {
	kv     KV
	prefix string
}

// NewKVStore wraps kv. An empty prefix uses DefaultPrefix.
func NewKVStore(kv KV, prefix string) *KVStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &KVStore{kv: kv, prefix: prefix}
}

func (s *KVStore) key(sender string) string {
	return s.prefix + sender
}

func (s *KVStore) Get(ctx context.Context, sender string) (*State, bool, error) {
	raw, ok, err := s.kv.Get(ctx, s.key(sender))
	if err != nil || !ok {
		return nil, false, err
	}
	st, err := decodeState(raw)
	if err != nil {
		return nil, false, fmt.Errorf("state for %s: %w", sender, err)
	}
	return st, true, nil
}

func (s *KVStore) Set(ctx context.Context, sender, name string) error {
	return s.kv.Set(ctx, s.key(sender), &State{Name: name})
}

func (s *KVStore) Update(ctx context.Context, sender, name string) error {
	return s.modify(ctx, sender, true, func(st *State) {
		st.Name = name
	})
}

func (s *KVStore) Delete(ctx context.Context, sender string) error {
	return s.kv.Delete(ctx, s.key(sender))
}

func (s *KVStore) GetData(ctx context.Context, sender string) (map[string]any, bool, error) {
	st, ok, err := s.Get(ctx, sender)
	if err != nil || !ok || st.Data == nil {
		return nil, false, err
	}
	return st.Data, true, nil
}

func (s *KVStore) SetData(ctx context.Context, sender string, data map[string]any) error {
	return s.modify(ctx, sender, false, func(st *State) {
		st.Data = cloneData(data)
	})
}

func (s *KVStore) UpdateData(ctx context.Context, sender string, data map[string]any) error {
	return s.modify(ctx, sender, false, func(st *State) {
		st.Data = mergeData(st.Data, data)
	})
}

func (s *KVStore) DeleteData(ctx context.Context, sender string) error {
	return s.modify(ctx, sender, false, func(st *State) {
		st.Data = nil
	})
}

// Senders lists senders that currently have a state, sorted.
func (s *KVStore) Senders(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, s.prefix)
	if err != nil {
		return nil, err
	}
	senders := make([]string, 0, len(keys))
	for _, k := range keys {
		senders = append(senders, strings.TrimPrefix(k, s.prefix))
	}
	sort.Strings(senders)
	return senders, nil
}

// Close closes the underlying backend.
func (s *KVStore) Close() error {
	return s.kv.Close()
}

// modify applies fn to the sender's state atomically. Without a state, it
// creates one when create is set and does nothing otherwise.
func (s *KVStore) modify(ctx context.Context, sender string, create bool, fn func(*State)) error {
	var decodeErr error
	err := s.kv.UpdateFunc(ctx, s.key(sender), func(current any, exists bool) (any, bool) {
		st := &State{}
		if exists {
			decoded, err := decodeState(current)
			if err != nil {
				decodeErr = err
				return nil, false
			}
			st = decoded
		} else if !create {
			return nil, false
		}
		fn(st)
		return st, true
	})
	if err != nil {
		return err
	}
	if decodeErr != nil {
		return fmt.Errorf("state for %s: %w", sender, decodeErr)
	}
	return nil
}

func decodeState(raw any) (*State, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
