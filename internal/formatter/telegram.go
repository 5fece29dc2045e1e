package formatter

import (
	"fmt"
	"strings"

	"github.com/dkoval/mailtriage/internal/pipeline"
	"github.com/dkoval/mailtriage/pkg/models"
)

// TelegramFormatter renders pipeline results as Telegram HTML messages.
type TelegramFormatter struct {
	maxLength int
}

// NewTelegramFormatter creates a new Telegram formatter
func NewTelegramFormatter() *TelegramFormatter {
	return &TelegramFormatter{
		maxLength: 4000, // leave room for markup
	}
}

// FormatFilterResult formats a filter response: one block per match,
// newest first, with a truncation note when more matches existed than
// were returned.
func (f *TelegramFormatter) FormatFilterResult(task string, res *pipeline.FilterResult) string {
	if len(res.Results) == 0 {
		return fmt.Sprintf("No <b>%s</b> emails found in your recent mail.", f.escapeHTML(task))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>%s</b>: %d found\n\n", f.escapeHTML(title(task)), res.TotalFound))

	for i, match := range res.Results {
		sb.WriteString(f.formatMatch(i+1, match))
		if sb.Len() > f.maxLength {
			break
		}
	}

	if res.TotalFound > len(res.Results) {
		sb.WriteString(fmt.Sprintf("<i>Showing %d of %d matches.</i>", len(res.Results), res.TotalFound))
	}
	return f.truncate(sb.String(), f.maxLength)
}

func (f *TelegramFormatter) formatMatch(n int, match pipeline.Match) string {
	var sb strings.Builder

	from := match.Message.From
	if match.Message.FromName != "" {
		from = match.Message.FromName
	}

	sb.WriteString(fmt.Sprintf("%d. <b>%s</b>\n", n, f.escapeHTML(match.Message.Subject)))
	sb.WriteString(fmt.Sprintf("   From: %s\n", f.escapeHTML(from)))
	if !match.Message.Date.IsZero() {
		sb.WriteString(fmt.Sprintf("   Date: %s\n", match.Message.Date.Format("02 Jan 2006 15:04")))
	}
	sb.WriteString(fmt.Sprintf("   Account: %s\n", f.escapeHTML(match.Account.DisplayLabel())))

	if j := match.Verdict.Judgment; j != nil {
		if j.Summary != "" {
			sb.WriteString(fmt.Sprintf("   <i>%s</i>\n", f.escapeHTML(j.Summary)))
		}
		if j.Priority > 0 {
			sb.WriteString(fmt.Sprintf("   Priority: %d/10\n", j.Priority))
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

// FormatBuckets formats a categorization result, skipping empty buckets.
func (f *TelegramFormatter) FormatBuckets(buckets pipeline.Buckets) string {
	order := []string{
		pipeline.BucketWork,
		pipeline.BucketFinance,
		pipeline.BucketSocial,
		pipeline.BucketNewsletters,
		pipeline.BucketOther,
	}

	var sb strings.Builder
	sb.WriteString("<b>Inbox by category:</b>\n\n")

	total := 0
	for _, name := range order {
		msgs := buckets[name]
		if len(msgs) == 0 {
			continue
		}
		total += len(msgs)
		sb.WriteString(fmt.Sprintf("<b>%s</b> (%d)\n", f.escapeHTML(title(name)), len(msgs)))
		for i, msg := range msgs {
			if i == 5 {
				sb.WriteString(fmt.Sprintf("   <i>... and %d more</i>\n", len(msgs)-i))
				break
			}
			sb.WriteString(fmt.Sprintf("   • %s\n", f.escapeHTML(msg.Subject)))
		}
		sb.WriteString("\n")
	}

	if total == 0 {
		return "Nothing to categorize: no recent mail was classifiable."
	}
	return f.truncate(sb.String(), f.maxLength)
}

// FormatInsights formats an analytics report.
func (f *TelegramFormatter) FormatInsights(report *pipeline.InsightsReport) string {
	var sb strings.Builder
	sb.WriteString("<b>Inbox insights</b>\n\n")
	sb.WriteString(fmt.Sprintf("Emails in window: %d (analyzed %d)\n", report.TotalEmails, report.Analyzed))

	if report.Analyzed == 0 {
		sb.WriteString("\nNothing was analyzable in this window.")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Average priority: %.1f/10\n", report.AveragePriority))
	if report.UrgentCount > 0 {
		sb.WriteString(fmt.Sprintf("Urgent: %d\n", report.UrgentCount))
	}

	sb.WriteString("\n<b>Categories:</b>\n")
	for name, count := range report.Categories {
		sb.WriteString(fmt.Sprintf("   %s: %d\n", f.escapeHTML(name), count))
	}

	sb.WriteString("\n<b>Priority:</b>\n")
	for _, level := range []string{"high", "medium", "low"} {
		sb.WriteString(fmt.Sprintf("   %s: %d\n", level, report.PriorityDistribution[level]))
	}

	if len(report.TopSenders) > 0 {
		sb.WriteString("\n<b>Top senders:</b>\n")
		for _, s := range report.TopSenders {
			sb.WriteString(fmt.Sprintf("   %s: %d\n", f.escapeHTML(s.Sender), s.Count))
		}
	}

	if len(report.Recommendations) > 0 {
		sb.WriteString("\n")
		for _, rec := range report.Recommendations {
			sb.WriteString(fmt.Sprintf("💡 %s\n", f.escapeHTML(rec)))
		}
	}
	return f.truncate(sb.String(), f.maxLength)
}

// FormatAccounts formats the connected-account list.
func (f *TelegramFormatter) FormatAccounts(accounts []*models.Account) string {
	if len(accounts) == 0 {
		return "No connected accounts. Use /connect or /connect_gmail to add one."
	}

	var sb strings.Builder
	sb.WriteString("<b>Connected accounts:</b>\n\n")
	for _, acc := range accounts {
		sb.WriteString(fmt.Sprintf("• <b>%s</b> (id %d, %s)\n", f.escapeHTML(acc.DisplayLabel()), acc.ID, acc.Provider))
	}
	return sb.String()
}

// escapeHTML escapes HTML special characters for Telegram
func (f *TelegramFormatter) escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// truncate truncates text to maxLen characters
func (f *TelegramFormatter) truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "\n\n<i>... (truncated)</i>"
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
