package board

import "sort"

// an immutable view of a subtree at delivery time. Value is nil when the path
// is absent, a scalar for leaves, or a map[string]any for branches.
type Snapshot struct {
	Path  string
	Value any
}

// reports whether anything exists at the snapshot's path
func (s Snapshot) Exists() bool {
	return s.Value != nil
}

// returns the child snapshot for key, absent if s is not a branch
func (s Snapshot) Child(key string) Snapshot {
	path := s.Path + "/" + key

	branch, ok := s.Value.(map[string]any)
	if !ok {
		return Snapshot{Path: path}
	}

	return Snapshot{Path: path, Value: branch[key]}
}

// returns the branch's child keys in lexicographic order
func (s Snapshot) Keys() []string {
	branch, ok := s.Value.(map[string]any)
	if !ok {
		return nil
	}

	keys := make([]string, 0, len(branch))
	for k := range branch {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	return keys
}

// returns the snapshot's value as a string
func (s Snapshot) Str() string {
	v, _ := s.Value.(string)
	return v
}

// returns the snapshot's value as an int64, accepting the numeric types a
// JSON round trip can produce
func (s Snapshot) Int64() int64 {
	switch v := s.Value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// returns the snapshot's value as a bool
func (s Snapshot) Bool() bool {
	v, _ := s.Value.(bool)
	return v
}
