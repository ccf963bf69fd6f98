package statistics

import "slices"

type group[K comparable, V any] struct {
	key   K
	items []V
}

// groupBy partitions items by key. Groups appear in the order their key was first seen.
func groupBy[K comparable, V any](items []V, key func(V) K) []group[K, V] {
	index := make(map[K]int)
	groups := make([]group[K, V], 0)

	for _, item := range items {
		k := key(item)

		i, seen := index[k]
		if !seen {
			i = len(groups)
			index[k] = i
			groups = append(groups, group[K, V]{key: k})
		}

		groups[i].items = append(groups[i].items, item)
	}

	return groups
}

// rankGroups orders groups by size, largest first; equal sizes are ordered by tieBreak on the keys.
func rankGroups[K comparable, V any](groups []group[K, V], tieBreak func(a, b K) int) []group[K, V] {
	ranked := slices.Clone(groups)

	slices.SortStableFunc(ranked, func(a, b group[K, V]) int {
		if bySize := len(b.items) - len(a.items); bySize != 0 {
			return bySize
		}

		return tieBreak(a.key, b.key)
	})

	return ranked
}

// top returns at most count leading elements, never nil.
func top[T any](items []T, count int) []T {
	if count < len(items) {
		items = items[:count]
	}

	return append(make([]T, 0, len(items)), items...)
}
