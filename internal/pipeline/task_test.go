package pipeline

import (
	"testing"

	"github.com/dkoval/mailtriage/internal/classifier"
)

func TestParseTask(t *testing.T) {
	for _, task := range Tasks() {
		got, err := ParseTask(string(task))
		if err != nil {
			t.Errorf("ParseTask(%q): %v", task, err)
		}
		if got != task {
			t.Errorf("ParseTask(%q) = %q", task, got)
		}
	}

	for _, bad := range []string{"", "spam", "URGENT", "urgent "} {
		if _, err := ParseTask(bad); err == nil {
			t.Errorf("ParseTask(%q) should fail", bad)
		}
	}
}

func TestTaskEscalation(t *testing.T) {
	tests := []struct {
		name     string
		task     Task
		judgment classifier.Judgment
		want     bool
	}{
		{"urgent at threshold", TaskUrgent, classifier.Judgment{Priority: 8}, true},
		{"urgent above threshold", TaskUrgent, classifier.Judgment{Priority: 10}, true},
		{"urgent below threshold", TaskUrgent, classifier.Judgment{Priority: 7}, false},
		{"lead is a work project", TaskLeads, classifier.Judgment{Category: "work", SubCategory: "project"}, true},
		{"work but not a project", TaskLeads, classifier.Judgment{Category: "work", SubCategory: "meeting"}, false},
		{"project outside work", TaskLeads, classifier.Judgment{Category: "personal", SubCategory: "project"}, false},
		{"social category", TaskSocial, classifier.Judgment{Category: "social"}, true},
		{"personal counts as social", TaskSocial, classifier.Judgment{Category: "personal"}, true},
		{"newsletter is not social", TaskSocial, classifier.Judgment{Category: "newsletters"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := taskSpecs[tt.task]
			if spec.heuristicOnly {
				t.Fatalf("task %q has no semantic tier", tt.task)
			}
			if got := spec.escalate(&tt.judgment); got != tt.want {
				t.Errorf("escalate(%+v) = %v, want %v", tt.judgment, got, tt.want)
			}
		})
	}
}

func TestFinancialIsHeuristicOnly(t *testing.T) {
	spec := taskSpecs[TaskFinancial]
	if !spec.heuristicOnly {
		t.Error("financial task must not spend semantic calls")
	}
}
