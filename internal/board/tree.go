package board

// returns the value at segments in root, or false when absent
func getNode(root map[string]any, segments []string) (any, bool) {
	var current any = root

	for _, seg := range segments {
		branch, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = branch[seg]
		if !ok {
			return nil, false
		}
	}

	if branch, ok := current.(map[string]any); ok && len(branch) == 0 {
		return nil, false
	}

	return current, true
}

// sets value at segments in root, creating intermediate branches and
// overwriting any scalar in the way
func setNode(root map[string]any, segments []string, value any) {
	if len(segments) == 0 {
		return
	}

	branch := root
	for _, seg := range segments[:len(segments)-1] {
		child, ok := branch[seg].(map[string]any)
		if !ok {
			child = make(map[string]any)
			branch[seg] = child
		}
		branch = child
	}

	branch[segments[len(segments)-1]] = value
}

// removes the subtree at segments in root and prunes branches left empty, so
// an emptied namespace reads as absent rather than as an empty map
func deleteNode(root map[string]any, segments []string) {
	if len(segments) == 0 {
		return
	}

	branches := make([]map[string]any, 0, len(segments))
	branch := root

	for _, seg := range segments[:len(segments)-1] {
		branches = append(branches, branch)

		child, ok := branch[seg].(map[string]any)
		if !ok {
			return
		}
		branch = child
	}

	delete(branch, segments[len(segments)-1])

	// prune upward
	for i := len(branches) - 1; i >= 0; i-- {
		if len(branch) > 0 {
			break
		}

		delete(branches[i], segments[i])
		branch = branches[i]
	}
}

// returns a copy of v deep enough that callers can never mutate stored state
func deepCopy(v any) any {
	branch, ok := v.(map[string]any)
	if !ok {
		return v
	}

	copied := make(map[string]any, len(branch))
	for k, child := range branch {
		copied[k] = deepCopy(child)
	}

	return copied
}
