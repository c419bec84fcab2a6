package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"
)

// NameBinding ties a member to the real name shown after their nickname
type NameBinding struct {
	MemberID string `json:"member_id"`
	RealName string `json:"real_name"`
}

// NameStore is the in-memory member ID -> real name mapping.
// A present key always has a non-empty name; absence means no override.
type NameStore struct {
	mu    sync.RWMutex
	names map[string]string
	dirty bool
	gen   uint64 // bumped on every mutation
}

// NewNameStore creates an empty store
func NewNameStore() *NameStore {
	return &NameStore{names: make(map[string]string)}
}

// Set binds realName to memberID, replacing any previous binding
func (s *NameStore) Set(memberID, realName string) error {
	realName = strings.TrimSpace(realName)
	if memberID == "" {
		return fmt.Errorf("%w: empty member id", ErrInvalidInput)
	}
	if realName == "" {
		return fmt.Errorf("%w: empty real name", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[memberID] = realName
	s.dirty = true
	s.gen++
	return nil
}

// Remove deletes the binding for memberID
func (s *NameStore) Remove(memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.names[memberID]; !ok {
		return fmt.Errorf("%w: no real name for %s", ErrNotFound, memberID)
	}
	delete(s.names, memberID)
	s.dirty = true
	s.gen++
	return nil
}

// Get looks up the real name bound to memberID
func (s *NameStore) Get(memberID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.names[memberID]
	return name, ok
}

// Len returns the number of bindings
func (s *NameStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}

// Bindings returns a copy of all bindings sorted by member ID
func (s *NameStore) Bindings() []NameBinding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bindings := make([]NameBinding, 0, len(s.names))
	for id, name := range s.names {
		bindings = append(bindings, NameBinding{MemberID: id, RealName: name})
	}
	sort.Slice(bindings, func(i, j int) bool {
		return bindings[i].MemberID < bindings[j].MemberID
	})
	return bindings
}

// Dirty reports whether the store changed since the last MarkClean
func (s *NameStore) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// MarkClean clears the dirty flag after a successful flush
func (s *NameStore) MarkClean() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}

// MarkCleanAt clears the dirty flag only if nothing changed since the
// SerializeAt call that returned gen.
func (s *NameStore) MarkCleanAt(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.dirty = false
	}
}

// Serialize encodes the store as a flat JSON object (keys sorted by encoding/json)
func (s *NameStore) Serialize() ([]byte, error) {
	data, _, err := s.SerializeAt()
	return data, err
}

// SerializeAt is Serialize plus the mutation generation the content reflects
func (s *NameStore) SerializeAt() ([]byte, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.MarshalIndent(s.names, "", "  ")
	if err != nil {
		return nil, 0, fmt.Errorf("marshal names: %w", err)
	}
	return data, s.gen, nil
}

// DeserializeNameStore decodes a snapshot produced by Serialize.
// Hand-edited files may carry comments or trailing commas. Anything that
// does not decode to a flat object of strings yields an empty store, and
// individual entries with empty keys or values are skipped.
func DeserializeNameStore(data []byte) *NameStore {
	store := NewNameStore()
	if len(strings.TrimSpace(string(data))) == 0 {
		return store
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return store
	}

	for id, value := range raw {
		var name string
		if err := json.Unmarshal(value, &name); err != nil {
			continue
		}
		name = strings.TrimSpace(name)
		if id == "" || name == "" {
			continue
		}
		store.names[id] = name
	}
	return store
}
