package digest

// Deduplicate keeps the first candidate of every group whose materialized
// strings are equal, preserving input order. Each candidate is materialized
// once, with its decoy transform applied.
func Deduplicate(candidates []CandidateSlice) []CandidateSlice {
	out, _ := DeduplicateWithSeen(candidates)
	return out
}

// DeduplicateWithSeen is Deduplicate that also returns the set of
// materialized strings it kept.
func DeduplicateWithSeen(candidates []CandidateSlice) ([]CandidateSlice, map[string]struct{}) {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]CandidateSlice, 0, len(candidates))
	for _, c := range candidates {
		s := c.String()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, c)
	}
	duplicatesDropped.Add(float64(len(candidates) - len(out)))
	return out, seen
}
