package models

import "time"

// Message represents one mail message from a connected account.
// The pipeline treats messages as read-only; the owning source is never
// mutated during classification.
type Message struct {
	ID        string    // unique within the owning account
	AccountID int64     // FK to Account
	Subject   string
	From      string    // sender address
	FromName  string    // sender display name
	Date      time.Time // zero when the source date could not be parsed
	Snippet   string    // short preview from the list call
	Body      string    // full text body, empty until detail-fetched
	BodyHTML  string    // raw HTML body when the source provides only HTML
	IsRead    bool
	Labels    []string
}

// Text returns the text used for classification: subject plus whatever
// content is available, full body preferred over snippet.
func (m *Message) Text() string {
	if m.Body != "" {
		return m.Subject + "\n" + m.Body
	}
	return m.Subject + "\n" + m.Snippet
}
