package sdg

// Cartesian returns every combination picking one item from each list, in
// order, with the last list varying fastest. It returns no combinations
// when there are no lists or any list is empty.
//
//	Cartesian([][]string{{"F", "M"}, {"Y15", "Y25"}})
//	// [[F Y15] [F Y25] [M Y15] [M Y25]]
func Cartesian[T any](lists [][]T) [][]T {
	if len(lists) == 0 {
		return [][]T{}
	}
	total := 1
	for _, l := range lists {
		if len(l) == 0 {
			return [][]T{}
		}
		total *= len(l)
	}

	out := make([][]T, 0, total)
	idx := make([]int, len(lists))
	for {
		combo := make([]T, len(lists))
		for i, l := range lists {
			combo[i] = l[idx[i]]
		}
		out = append(out, combo)

		// advance like an odometer, rightmost first
		i := len(lists) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(lists[i]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return out
		}
	}
}
