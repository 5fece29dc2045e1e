package pipeline

import (
	"fmt"

	"github.com/dkoval/mailtriage/internal/classifier"
	"github.com/dkoval/mailtriage/internal/heuristic"
)

// Task is a closed enum of the category kinds callers can filter by.
type Task string

const (
	TaskUrgent    Task = "urgent"    // time-sensitive mail
	TaskFinancial Task = "financial" // bills, invoices, payments
	TaskLeads     Task = "leads"     // prospective business
	TaskSocial    Task = "social"    // social and personal mail
)

// taskSpec is the per-task configuration record: which heuristic pattern
// set screens the message, which backend task the semantic classifier
// runs when the heuristic is inconclusive, and which judgments count as
// a match.
type taskSpec struct {
	patternSet  string
	backendTask string
	escalate    func(*classifier.Judgment) bool
	// heuristicOnly tasks never call the semantic classifier; their
	// intent is reliably keyword-detectable and the call cost is not
	// worth spending.
	heuristicOnly bool
}

var taskSpecs = map[Task]taskSpec{
	TaskUrgent: {
		patternSet:  heuristic.SetUrgent,
		backendTask: classifier.TaskPriorityScore,
		escalate: func(j *classifier.Judgment) bool {
			return j.Priority >= 8
		},
	},
	TaskFinancial: {
		patternSet:    heuristic.SetFinancial,
		heuristicOnly: true,
	},
	TaskLeads: {
		patternSet:  heuristic.SetLeads,
		backendTask: classifier.TaskSmartCategory,
		escalate: func(j *classifier.Judgment) bool {
			return j.Category == "work" && j.SubCategory == "project"
		},
	},
	TaskSocial: {
		patternSet:  heuristic.SetSocial,
		backendTask: classifier.TaskSmartCategory,
		escalate: func(j *classifier.Judgment) bool {
			return j.Category == "social" || j.Category == "personal"
		},
	},
}

// ParseTask validates a caller-supplied task name.
func ParseTask(s string) (Task, error) {
	t := Task(s)
	if _, ok := taskSpecs[t]; !ok {
		return "", fmt.Errorf("unknown task %q", s)
	}
	return t, nil
}

// Tasks lists all known tasks in a fixed order.
func Tasks() []Task {
	return []Task{TaskUrgent, TaskFinancial, TaskLeads, TaskSocial}
}
