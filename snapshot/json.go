// ABOUTME: JSON export and import of captured snapshots
// ABOUTME: Lets a measurement be saved and analyzed offline

package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// jsonSnapshot is the wire form of a snapshot.
type jsonSnapshot struct {
	Objects []*Object `json:"objects"`
	Roots   []ObjID   `json:"roots"`
}

// Encode writes s to w as JSON. Objects are emitted in ascending ID
// order so the output is deterministic.
func Encode(s *Snapshot, w io.Writer) error {
	dump := jsonSnapshot{Roots: s.Roots()}
	s.ForEach(func(obj *Object) {
		dump.Objects = append(dump.Objects, obj)
	})
	sort.Slice(dump.Objects, func(i, j int) bool {
		return dump.Objects[i].ID < dump.Objects[j].ID
	})
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(dump)
}

// Decode reads a snapshot previously written by Encode. Every reference
// and root must resolve to a recorded object.
func Decode(r io.Reader) (*Snapshot, error) {
	var dump jsonSnapshot
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}

	s := New()
	for _, obj := range dump.Objects {
		if obj == nil {
			return nil, fmt.Errorf("null object in snapshot")
		}
		s.Add(obj)
	}
	var verify []ObjID
	verify = append(verify, dump.Roots...)
	for _, obj := range dump.Objects {
		verify = append(verify, obj.Refs...)
	}
	for _, id := range verify {
		if s.Object(id) == nil {
			return nil, fmt.Errorf("snapshot references unknown object %d", id)
		}
	}
	s.SetRoots(dump.Roots)
	return s, nil
}
