// ABOUTME: Per-type aggregation of a captured snapshot
// ABOUTME: Groups counted objects into flat totals by type name

package snapshot

import "sort"

// TypeStat aggregates all counted objects of one type.
type TypeStat struct {
	Type  string
	Count int
	Total uint64
}

// TypeStats groups the snapshot's objects by type name, sorted by
// descending total size, ties broken by type name.
func TypeStats(s *Snapshot) []TypeStat {
	byType := make(map[string]*TypeStat)
	s.ForEach(func(obj *Object) {
		st := byType[obj.Type]
		if st == nil {
			st = &TypeStat{Type: obj.Type}
			byType[obj.Type] = st
		}
		st.Count++
		st.Total += obj.Size
	})

	stats := make([]TypeStat, 0, len(byType))
	for _, st := range byType {
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Total != stats[j].Total {
			return stats[i].Total > stats[j].Total
		}
		return stats[i].Type < stats[j].Type
	})
	return stats
}
