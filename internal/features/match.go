package features

// Match pairs a query descriptor with its nearest train descriptor.
type Match struct {
	Query    int
	Train    int
	Distance int
}

// MatchRatio finds, for every query descriptor, the nearest and second
// nearest train descriptors and keeps the pair when best < ratio*second.
// Fewer than two train descriptors make every match ambiguous, so nothing is
// returned.
func MatchRatio(query, train []Descriptor, ratio float64) []Match {
	if len(train) < 2 {
		return nil
	}
	var matches []Match
	for qi, q := range query {
		best, second := int(^uint(0)>>1), int(^uint(0)>>1)
		bestIdx := -1
		for ti, t := range train {
			d := Hamming(q, t)
			switch {
			case d < best:
				second = best
				best, bestIdx = d, ti
			case d < second:
				second = d
			}
		}
		if best < second && float64(best) < ratio*float64(second) {
			matches = append(matches, Match{Query: qi, Train: bestIdx, Distance: best})
		}
	}
	return matches
}
