package state

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Namespace is a stage-private key-value area persisted across cycles
// 값은 JSON으로 저장 (serialize/restore 시 형식 유지)
type Namespace map[string]json.RawMessage

// Put stores a value under key
func (n Namespace) Put(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("namespace put %s: %w", key, err)
	}
	n[key] = data
	return nil
}

// Get decodes the value stored under key into dest
// Returns false when the key is absent
func (n Namespace) Get(key string, dest interface{}) (bool, error) {
	data, ok := n[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return true, fmt.Errorf("namespace get %s: %w", key, err)
	}
	return true, nil
}

// Has reports whether key exists
func (n Namespace) Has(key string) bool {
	_, ok := n[key]
	return ok
}

// Delete removes key
func (n Namespace) Delete(key string) {
	delete(n, key)
}

// Keys returns sorted keys
func (n Namespace) Keys() []string {
	keys := make([]string, 0, len(n))
	for k := range n {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (n Namespace) clone() Namespace {
	out := make(Namespace, len(n))
	for k, v := range n {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
