package pipeline

import "sort"

// aggregate merges per-account matches into one ranked sequence: stable
// sort by message date descending, then truncation to desiredCount. The
// truncation deliberately happens after the global sort so the most
// recent matches win regardless of which account produced them. The
// returned total is the pre-truncation match count.
//
// A message whose date could not be parsed carries the zero time and so
// sorts as oldest; ties keep source-encounter order.
func aggregate(matches []Match, desiredCount int) ([]Match, int) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Message.Date.After(matches[j].Message.Date)
	})

	total := len(matches)
	if desiredCount > 0 && len(matches) > desiredCount {
		matches = matches[:desiredCount]
	}
	return matches, total
}
