package lifecycle

// ResolveOrder resolves run order from dependencies: given a map
// of component name to its dependency names, produce an insertion-ordered
// run list such that each entry appears only after all of its
// dependencies. Names are scanned in the order of componentOrder
// (insertion order of the original deployment) to keep the result
// deterministic. Entries unreachable because of a cycle or a missing
// dependency are returned separately as inactive.
func ResolveOrder(componentOrder []string, dependencies map[string][]string) (resolved []string, inactive []string) {
	pending := make(map[string]bool, len(componentOrder))
	for _, name := range componentOrder {
		pending[name] = true
	}
	resolvedSet := make(map[string]bool, len(componentOrder))

	for {
		progressed := false
		for _, name := range componentOrder {
			if !pending[name] {
				continue
			}
			if dependenciesResolved(dependencies[name], resolvedSet) {
				resolved = append(resolved, name)
				resolvedSet[name] = true
				delete(pending, name)
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	for _, name := range componentOrder {
		if pending[name] {
			inactive = append(inactive, name)
		}
	}
	return resolved, inactive
}

func dependenciesResolved(deps []string, resolvedSet map[string]bool) bool {
	for _, d := range deps {
		if !resolvedSet[d] {
			return false
		}
	}
	return true
}
