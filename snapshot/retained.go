// ABOUTME: Dominator-based retained size analysis over a snapshot
// ABOUTME: Computes what each object keeps alive on its own

package snapshot

// Dominators computes the immediate dominator of every object reachable
// from the snapshot's roots, using the iterative reverse-postorder
// algorithm of Cooper, Harvey and Kennedy. Roots are dominated by
// SuperRoot. Unreachable objects do not appear in the result.
func Dominators(s *Snapshot) map[ObjID]ObjID {
	succs := func(id ObjID) []ObjID {
		if id == SuperRoot {
			return s.Roots()
		}
		if obj := s.Object(id); obj != nil {
			return obj.Refs
		}
		return nil
	}
	exists := func(id ObjID) bool {
		return id == SuperRoot || s.Object(id) != nil
	}

	// Postorder DFS from the super-root. An explicit stack keeps deep
	// graphs from exhausting the goroutine stack.
	type frame struct {
		id   ObjID
		next int
	}
	var (
		postorder []ObjID
		seen      = map[ObjID]bool{SuperRoot: true}
		stack     = []frame{{id: SuperRoot}}
		preds     = make(map[ObjID][]ObjID)
	)
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		out := succs(top.id)
		if top.next < len(out) {
			child := out[top.next]
			top.next++
			if !exists(child) {
				continue
			}
			preds[child] = append(preds[child], top.id)
			if !seen[child] {
				seen[child] = true
				stack = append(stack, frame{id: child})
			}
			continue
		}
		postorder = append(postorder, top.id)
		stack = stack[:len(stack)-1]
	}

	index := make(map[ObjID]int, len(postorder))
	for i, id := range postorder {
		index[id] = i
	}

	idom := map[ObjID]ObjID{SuperRoot: SuperRoot}
	intersect := func(a, b ObjID) ObjID {
		for a != b {
			for index[a] < index[b] {
				a = idom[a]
			}
			for index[b] < index[a] {
				b = idom[b]
			}
		}
		return a
	}

	for changed := true; changed; {
		changed = false
		// Reverse postorder, super-root excluded (it is last).
		for i := len(postorder) - 2; i >= 0; i-- {
			n := postorder[i]
			var newIdom ObjID
			have := false
			for _, p := range preds[n] {
				if _, ok := idom[p]; !ok {
					continue
				}
				if !have {
					newIdom, have = p, true
				} else {
					newIdom = intersect(p, newIdom)
				}
			}
			if have && idom[n] != newIdom {
				idom[n] = newIdom
				changed = true
			}
		}
	}

	delete(idom, SuperRoot)
	return idom
}

// DominatorTree inverts an immediate-dominator map into child lists.
// SuperRoot appears as the parent of the roots.
func DominatorTree(idom map[ObjID]ObjID) map[ObjID][]ObjID {
	tree := make(map[ObjID][]ObjID)
	for node, dom := range idom {
		tree[dom] = append(tree[dom], node)
	}
	return tree
}

// RetainedSizes computes, for every reachable object, the total size
// that would become unreachable if that object were removed: the sum of
// sizes over its dominator-tree subtree.
func RetainedSizes(s *Snapshot) map[ObjID]uint64 {
	idom := Dominators(s)
	tree := DominatorTree(idom)

	retained := make(map[ObjID]uint64, len(idom))
	var subtree func(ObjID) uint64
	subtree = func(id ObjID) uint64 {
		if size, done := retained[id]; done {
			return size
		}
		var size uint64
		if obj := s.Object(id); obj != nil {
			size = obj.Size
		}
		for _, child := range tree[id] {
			size += subtree(child)
		}
		retained[id] = size
		return size
	}
	for id := range idom {
		subtree(id)
	}
	delete(retained, SuperRoot)
	return retained
}
