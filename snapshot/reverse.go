// ABOUTME: Reverse edges over a captured snapshot
// ABOUTME: Maps each object to the objects referencing it

package snapshot

// ReverseEdges maps each object to its referrers.
type ReverseEdges map[ObjID][]ObjID

// BuildReverseEdges computes the referrers of every object in s.
func BuildReverseEdges(s *Snapshot) ReverseEdges {
	reverse := make(ReverseEdges)
	s.ForEach(func(obj *Object) {
		for _, target := range obj.Refs {
			reverse[target] = append(reverse[target], obj.ID)
		}
	})
	return reverse
}
