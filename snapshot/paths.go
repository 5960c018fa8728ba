// ABOUTME: BFS over reverse edges to explain why an object was counted
// ABOUTME: Finds reference chains from an object back to a walk root

package snapshot

// Path is a reference chain from an object back to a root, target
// first.
type Path struct {
	IDs []ObjID
}

// PathsToRoot finds up to maxPaths shortest reference chains from the
// given object back to one of the snapshot's roots, walking reverse
// edges breadth-first. Cycles are cut by never repeating an object
// within one chain.
func PathsToRoot(s *Snapshot, from ObjID, maxPaths int) []Path {
	if maxPaths <= 0 || s.Object(from) == nil {
		return nil
	}

	reverse := BuildReverseEdges(s)
	rootSet := make(map[ObjID]bool)
	for _, id := range s.Roots() {
		rootSet[id] = true
	}

	if rootSet[from] {
		return []Path{{IDs: []ObjID{from}}}
	}

	type searchNode struct {
		id   ObjID
		path []ObjID
	}
	var result []Path
	queue := []searchNode{{id: from, path: []ObjID{from}}}

	for len(queue) > 0 && len(result) < maxPaths {
		node := queue[0]
		queue = queue[1:]

		for _, referrer := range reverse[node.id] {
			inPath := false
			for _, id := range node.path {
				if id == referrer {
					inPath = true
					break
				}
			}
			if inPath {
				continue
			}

			next := make([]ObjID, len(node.path)+1)
			copy(next, node.path)
			next[len(node.path)] = referrer

			if rootSet[referrer] {
				result = append(result, Path{IDs: next})
				if len(result) >= maxPaths {
					break
				}
			} else {
				queue = append(queue, searchNode{id: referrer, path: next})
			}
		}
	}
	return result
}
