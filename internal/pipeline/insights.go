package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dkoval/mailtriage/internal/classifier"
	"github.com/dkoval/mailtriage/internal/mailsource"
)

// SenderCount is one entry of the sender frequency table.
type SenderCount struct {
	Sender string
	Count  int
}

// InsightsReport is a derived analytics view over a bounded sample of
// one account's recent mail.
type InsightsReport struct {
	TotalEmails          int
	Analyzed             int
	Categories           map[string]int
	PriorityDistribution map[string]int // "high", "medium", "low"
	TopSenders           []SenderCount
	AveragePriority      float64
	UrgentCount          int
	Recommendations      []string
}

// Priority bucket thresholds.
const (
	priorityHighMin   = 8
	priorityMediumMin = 5
)

const topSenderLimit = 5

// Insights analyzes a bounded sample of one account's mail within the
// given window: a category histogram, a priority distribution, sender
// frequency and textual recommendations. Messages whose classification
// fails are skipped; the report covers whatever was analyzable.
func (o *Orchestrator) Insights(ctx context.Context, scope *RequestScope, userID, accountID int64, windowDays int) (*InsightsReport, error) {
	if windowDays < 1 {
		return nil, fmt.Errorf("window must be at least one day, got %d", windowDays)
	}

	session, err := o.resolver.ResolveOne(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	source, ok := o.sources[session.Account.Provider]
	if !ok {
		return nil, fmt.Errorf("no source for provider %q", session.Account.Provider)
	}

	page, err := source.List(ctx, session.Credentials, mailsource.ListOptions{
		MaxResults: int64(o.poolFloor),
		Scope:      mailsource.ScopeInbox,
		Since:      time.Now().AddDate(0, 0, -windowDays),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	report := &InsightsReport{
		TotalEmails:          len(page.Messages),
		Categories:           map[string]int{},
		PriorityDistribution: map[string]int{"high": 0, "medium": 0, "low": 0},
	}

	sample := page.Messages
	if len(sample) > o.sampleSize {
		sample = sample[:o.sampleSize]
	}

	cache := scope.requestCache()
	senders := map[string]int{}
	prioritySum := 0

	for _, msg := range sample {
		if ctx.Err() != nil {
			break
		}

		category, err := o.classify(ctx, cache, msg, classifier.TaskSmartCategory)
		if err != nil {
			o.logger.Warn("skipping message in insights", "message_id", msg.ID, "error", err)
			continue
		}
		priority, err := o.classify(ctx, cache, msg, classifier.TaskPriorityScore)
		if err != nil {
			o.logger.Warn("skipping message in insights", "message_id", msg.ID, "error", err)
			continue
		}

		report.Analyzed++
		report.Categories[bucketName(category.Category)]++
		senders[msg.From]++
		prioritySum += priority.Priority

		switch {
		case priority.Priority >= priorityHighMin:
			report.PriorityDistribution["high"]++
			report.UrgentCount++
		case priority.Priority >= priorityMediumMin:
			report.PriorityDistribution["medium"]++
		default:
			report.PriorityDistribution["low"]++
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if report.Analyzed > 0 {
		report.AveragePriority = float64(prioritySum) / float64(report.Analyzed)
	}
	report.TopSenders = topSenders(senders, topSenderLimit)
	report.Recommendations = recommendations(report)

	return report, nil
}

// topSenders sorts sender counts descending; equal counts order by
// sender address so the result is deterministic.
func topSenders(counts map[string]int, limit int) []SenderCount {
	out := make([]SenderCount, 0, len(counts))
	for sender, count := range counts {
		out = append(out, SenderCount{Sender: sender, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Sender < out[j].Sender
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// recommendations builds the textual advice for a report. A report with
// nothing analyzable gets no recommendations rather than advice derived
// from an empty histogram.
func recommendations(report *InsightsReport) []string {
	if report.Analyzed == 0 {
		return nil
	}

	var recs []string
	if report.UrgentCount > 0 {
		recs = append(recs, fmt.Sprintf("You have %d urgent emails that may need attention.", report.UrgentCount))
	}

	// Deterministic most-common category: highest count, ties broken by
	// sorted category name.
	names := make([]string, 0, len(report.Categories))
	for name := range report.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	best, bestCount := "", 0
	for _, name := range names {
		if report.Categories[name] > bestCount {
			best, bestCount = name, report.Categories[name]
		}
	}
	if best != "" {
		recs = append(recs, fmt.Sprintf("Most of your recent emails fall under %q.", best))
	}

	if len(report.TopSenders) > 0 && report.TopSenders[0].Count > 1 {
		recs = append(recs, fmt.Sprintf("Your most frequent sender is %s (%d emails).",
			report.TopSenders[0].Sender, report.TopSenders[0].Count))
	}
	return recs
}
