package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/dkoval/mailtriage/internal/classifier"
	"github.com/dkoval/mailtriage/pkg/models"
)

func insightMsg(id, from string, age time.Duration) *models.Message {
	return &models.Message{
		ID:      id,
		Subject: "subject " + id,
		From:    from,
		Date:    time.Now().Add(-age),
	}
}

func TestInsights_Report(t *testing.T) {
	source := &fakeSource{pool: []*models.Message{
		insightMsg("m1", "boss@corp.com", time.Hour),
		insightMsg("m2", "boss@corp.com", 2*time.Hour),
		insightMsg("m3", "bank@bank.com", 3*time.Hour),
		insightMsg("m4", "friend@mail.com", 4*time.Hour),
	}}
	gateway := newFakeGateway()
	// One judgment per message serves both the category and the
	// priority call.
	gateway.judgments["m1"] = &classifier.Judgment{Category: "work", Priority: 9}
	gateway.judgments["m2"] = &classifier.Judgment{Category: "work", Priority: 6}
	gateway.judgments["m3"] = &classifier.Judgment{Category: "finance", Priority: 5}
	gateway.judgments["m4"] = &classifier.Judgment{Category: "personal", Priority: 2}

	resolver, srcs := singleAccount(source)
	o := newTestOrchestrator(resolver, gateway, srcs)

	report, err := o.Insights(context.Background(), NewRequestScope(), 1, 1, 7)
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}

	if report.TotalEmails != 4 || report.Analyzed != 4 {
		t.Errorf("TotalEmails=%d Analyzed=%d, want 4 and 4", report.TotalEmails, report.Analyzed)
	}
	if report.Categories["work"] != 2 || report.Categories["finance"] != 1 || report.Categories["social"] != 1 {
		t.Errorf("category histogram: %v", report.Categories)
	}
	if report.PriorityDistribution["high"] != 1 ||
		report.PriorityDistribution["medium"] != 2 ||
		report.PriorityDistribution["low"] != 1 {
		t.Errorf("priority distribution: %v", report.PriorityDistribution)
	}
	if report.UrgentCount != 1 {
		t.Errorf("UrgentCount = %d, want 1", report.UrgentCount)
	}
	if want := (9 + 6 + 5 + 2) / 4.0; report.AveragePriority != want {
		t.Errorf("AveragePriority = %v, want %v", report.AveragePriority, want)
	}
	if len(report.TopSenders) != 3 || report.TopSenders[0].Sender != "boss@corp.com" || report.TopSenders[0].Count != 2 {
		t.Errorf("top senders: %+v", report.TopSenders)
	}
	if len(report.Recommendations) == 0 {
		t.Error("expected recommendations for a non-empty report")
	}
}

func TestInsights_WindowExcludesOldMail(t *testing.T) {
	source := &fakeSource{pool: []*models.Message{
		insightMsg("recent", "a@a.com", 24*time.Hour),
		insightMsg("stale", "b@b.com", 20*24*time.Hour),
	}}
	resolver, srcs := singleAccount(source)
	o := newTestOrchestrator(resolver, newFakeGateway(), srcs)

	report, err := o.Insights(context.Background(), NewRequestScope(), 1, 1, 7)
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if report.TotalEmails != 1 || report.Analyzed != 1 {
		t.Errorf("stale message leaked into the window: total=%d analyzed=%d",
			report.TotalEmails, report.Analyzed)
	}
}

func TestInsights_SampleIsBounded(t *testing.T) {
	var pool []*models.Message
	for i := 0; i < 25; i++ {
		pool = append(pool, insightMsg(string(rune('a'+i)), "x@x.com", time.Duration(i)*time.Minute))
	}
	source := &fakeSource{pool: pool}
	gateway := newFakeGateway()

	resolver, srcs := singleAccount(source)
	o := newTestOrchestrator(resolver, gateway, srcs)

	report, err := o.Insights(context.Background(), NewRequestScope(), 1, 1, 7)
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if report.TotalEmails != 25 {
		t.Errorf("TotalEmails = %d, want 25", report.TotalEmails)
	}
	if report.Analyzed != 10 {
		t.Errorf("Analyzed = %d, want the configured sample of 10", report.Analyzed)
	}
}

func TestInsights_SkipsFailedClassifications(t *testing.T) {
	source := &fakeSource{pool: []*models.Message{
		insightMsg("good", "a@a.com", time.Hour),
		insightMsg("bad", "b@b.com", 2*time.Hour),
	}}
	gateway := newFakeGateway()
	gateway.judgments["good"] = &classifier.Judgment{Category: "work", Priority: 6}
	gateway.errors["bad"] = classifier.ErrUnavailable

	resolver, srcs := singleAccount(source)
	o := newTestOrchestrator(resolver, gateway, srcs)

	report, err := o.Insights(context.Background(), NewRequestScope(), 1, 1, 7)
	if err != nil {
		t.Fatalf("classification failure must not fail the report: %v", err)
	}
	if report.TotalEmails != 2 || report.Analyzed != 1 {
		t.Errorf("total=%d analyzed=%d, want 2 and 1", report.TotalEmails, report.Analyzed)
	}
}

func TestInsights_NothingAnalyzable(t *testing.T) {
	source := &fakeSource{pool: []*models.Message{
		insightMsg("only", "a@a.com", time.Hour),
	}}
	gateway := newFakeGateway()
	gateway.errors["only"] = classifier.ErrUnavailable

	resolver, srcs := singleAccount(source)
	o := newTestOrchestrator(resolver, gateway, srcs)

	report, err := o.Insights(context.Background(), NewRequestScope(), 1, 1, 7)
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if report.Analyzed != 0 {
		t.Fatalf("Analyzed = %d, want 0", report.Analyzed)
	}
	if report.Recommendations != nil {
		t.Errorf("no recommendations expected without analyzable mail, got %v", report.Recommendations)
	}
	if report.AveragePriority != 0 {
		t.Errorf("AveragePriority = %v, want 0", report.AveragePriority)
	}
}

func TestInsights_BadWindow(t *testing.T) {
	resolver, srcs := singleAccount(&fakeSource{})
	o := newTestOrchestrator(resolver, newFakeGateway(), srcs)

	if _, err := o.Insights(context.Background(), NewRequestScope(), 1, 1, 0); err == nil {
		t.Error("expected error for zero-day window")
	}
}

func TestTopSenders(t *testing.T) {
	counts := map[string]int{
		"c@c.com": 3,
		"a@a.com": 1,
		"b@b.com": 3,
		"d@d.com": 2,
	}
	got := topSenders(counts, 3)
	want := []SenderCount{
		{"b@b.com", 3},
		{"c@c.com", 3},
		{"d@d.com", 2},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
