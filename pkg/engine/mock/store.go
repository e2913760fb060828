package mock

import (
	"sort"
	"strings"
	"sync"
)

// timeSentinel is the fixed time period id used for modules without a time
// axis, and for text line items, which are not time-pivoted.
const timeSentinel = "_"

// cellKey builds the composite identity of one stored scalar:
// (module, version, ordered row dimension items, line item, time period).
// The tuple maps injectively onto the string form because item ids never
// contain the separator characters.
func cellKey(moduleID, version string, rowItems []string, lineItemID, timeID string) string {
	return moduleID + "|" + version + "|" + strings.Join(rowItems, ",") + "|" + lineItemID + "|" + timeID
}

// Store is the sparse cell table backing the in-process engine. Numeric
// and text line items live in separate maps keyed by cellKey. Entries are
// created lazily on first write and are only ever cleared wholesale, on
// disconnect.
//
// A single RWMutex guards the whole store: writes (including the
// recalculation pass that follows them) are serialized store-wide, reads
// may run concurrently with each other.
type Store struct {
	mu    sync.RWMutex
	nums  map[string]float64
	texts map[string]string
}

func NewStore() *Store {
	return &Store{nums: map[string]float64{}, texts: map[string]string{}}
}

// Num returns the numeric value at key, reporting absence explicitly.
// Absent cells surface to the UI as empty, never as an error.
func (s *Store) Num(key string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.nums[key]
	return v, ok
}

// NumOrZero reads a numeric cell, treating absence as zero. Recalculation
// formulas use this so sparse inputs behave like empty planning cells.
func (s *Store) NumOrZero(key string) float64 {
	v, _ := s.Num(key)
	return v
}

// SetNum writes a numeric cell, last write wins.
func (s *Store) SetNum(key string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nums[key] = v
}

// Text returns the text value at key, or "".
func (s *Store) Text(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.texts[key]
}

// SetText writes a text cell, last write wins.
func (s *Store) SetText(key, v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts[key] = v
}

// DistinctTexts returns the sorted distinct non-blank values stored for
// one text line item across a module and version.
func (s *Store) DistinctTexts(moduleID, version, lineItemID string) []string {
	prefix := moduleID + "|" + version + "|"
	infix := "|" + lineItemID + "|"

	s.mu.RLock()
	seen := map[string]bool{}
	for key, val := range s.texts {
		if strings.HasPrefix(key, prefix) && strings.Contains(key, infix) && strings.TrimSpace(val) != "" {
			seen[val] = true
		}
	}
	s.mu.RUnlock()

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// Clear drops every cell. Used on disconnect.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nums = map[string]float64{}
	s.texts = map[string]string{}
}
