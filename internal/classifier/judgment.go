package classifier

// Backend task vocabulary. The classification backend accepts only these
// task names; the shape of the returned judgment depends on the task.
const (
	TaskPriorityScore = "priority_score"
	TaskSmartCategory = "smart_category"
	TaskGenericFilter = "generic_filter"
)

// DefaultPriority is substituted when the backend omits the priority
// score. The default is applied once, at the parse boundary, so callers
// never see a missing value.
const DefaultPriority = 5

// Judgment is the structured result of one semantic classification call.
type Judgment struct {
	Category    string `json:"category"`
	SubCategory string `json:"sub_category"`
	Priority    int    `json:"priority"`
	Summary     string `json:"summary"`
}

// wireJudgment mirrors the backend response before defaults are applied.
// Priority is a pointer so a missing field is distinguishable from zero.
type wireJudgment struct {
	Category    string `json:"category"`
	SubCategory string `json:"sub_category"`
	Priority    *int   `json:"priority"`
	Summary     string `json:"summary"`
}

// normalize applies the default-priority policy and clamps the score to
// the 1..10 scale the pipeline works with.
func (w *wireJudgment) normalize() *Judgment {
	j := &Judgment{
		Category:    w.Category,
		SubCategory: w.SubCategory,
		Summary:     w.Summary,
	}
	switch {
	case w.Priority == nil:
		j.Priority = DefaultPriority
	case *w.Priority < 1:
		j.Priority = 1
	case *w.Priority > 10:
		j.Priority = 10
	default:
		j.Priority = *w.Priority
	}
	return j
}
