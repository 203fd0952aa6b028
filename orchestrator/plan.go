package orchestrator

// Plan returns the work items: names listed in the input container that are
// absent from the output container, in input listing order. Duplicate input
// names are reported once.
func Plan(inputNames, outputNames []string) []string {
	done := make(map[string]struct{}, len(outputNames))
	for _, n := range outputNames {
		done[n] = struct{}{}
	}

	seen := make(map[string]struct{}, len(inputNames))
	work := make([]string, 0, len(inputNames))
	for _, n := range inputNames {
		if _, ok := done[n]; ok {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		work = append(work, n)
	}
	return work
}
