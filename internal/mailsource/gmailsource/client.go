package gmailsource

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/dkoval/mailtriage/internal/mailsource"
	"github.com/dkoval/mailtriage/pkg/models"
)

const gmailUser = "me"

// metadataWorkers bounds concurrent metadata fetches during a list call.
const metadataWorkers = 8

// Client implements mailsource.Source over the Gmail API. A service is
// built per call from the passed OAuth credentials, so the client holds
// no per-account state.
type Client struct{}

// NewClient creates a new Gmail source
func NewClient() *Client {
	return &Client{}
}

// service builds a Gmail API client from resolved OAuth credentials.
// Token refresh is the credential provider's concern, not ours; an
// expired token surfaces as a per-account fetch failure upstream.
func (c *Client) service(ctx context.Context, creds mailsource.Credentials) (*gmail.Service, error) {
	tok := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
	}
	if creds.TokenExpiry != "" {
		if exp, err := time.Parse(time.RFC3339, creds.TokenExpiry); err == nil {
			tok.Expiry = exp
		}
	}

	srv, err := gmail.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(tok)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return srv, nil
}

// List returns a bounded pool of recent message summaries from the inbox.
func (c *Client) List(ctx context.Context, creds mailsource.Credentials, opts mailsource.ListOptions) (*mailsource.Page, error) {
	srv, err := c.service(ctx, creds)
	if err != nil {
		return nil, err
	}

	query := "in:inbox -in:draft"
	if !opts.Since.IsZero() {
		query = fmt.Sprintf("%s after:%d", query, opts.Since.Unix())
	}

	call := srv.Users.Messages.List(gmailUser).Q(query)
	if opts.MaxResults > 0 {
		call = call.MaxResults(opts.MaxResults)
	}
	if opts.PageToken != "" {
		call = call.PageToken(opts.PageToken)
	}

	list, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	summaries := make([]*models.Message, len(list.Messages))

	// The list call returns IDs only; metadata comes from bounded
	// concurrent per-message fetches. A failed fetch leaves a nil slot
	// that is compacted below, never failing the whole page.
	var wg sync.WaitGroup
	sem := make(chan struct{}, metadataWorkers)
	for i, ref := range list.Messages {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			msg, err := srv.Users.Messages.Get(gmailUser, id).
				Format("metadata").
				MetadataHeaders("Subject", "From", "Date").
				Context(ctx).Do()
			if err != nil {
				return
			}
			summaries[i] = summaryFromMessage(msg)
		}(i, ref.Id)
	}
	wg.Wait()

	page := &mailsource.Page{NextPageToken: list.NextPageToken}
	for _, s := range summaries {
		if s != nil {
			page.Messages = append(page.Messages, s)
		}
	}
	return page, nil
}

// Get fetches the complete message, including the full body.
func (c *Client) Get(ctx context.Context, creds mailsource.Credentials, messageID string) (*models.Message, error) {
	srv, err := c.service(ctx, creds)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get(gmailUser, messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}

	out := summaryFromMessage(msg)
	if msg.Payload != nil {
		out.Body = extractBody(msg.Payload, "text/plain")
		out.BodyHTML = extractBody(msg.Payload, "text/html")
	}
	return out, nil
}

// SendReply sends a plain-text reply to an existing message.
func (c *Client) SendReply(ctx context.Context, creds mailsource.Credentials, messageID, content string) error {
	srv, err := c.service(ctx, creds)
	if err != nil {
		return err
	}

	orig, err := srv.Users.Messages.Get(gmailUser, messageID).
		Format("metadata").
		MetadataHeaders("Subject", "From", "Message-ID").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get original message: %w", err)
	}

	to := headerValue(orig, "From")
	subject := headerValue(orig, "Subject")
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	origID := headerValue(orig, "Message-ID")

	var raw strings.Builder
	fmt.Fprintf(&raw, "To: %s\r\n", to)
	fmt.Fprintf(&raw, "Subject: %s\r\n", subject)
	if origID != "" {
		fmt.Fprintf(&raw, "In-Reply-To: %s\r\n", origID)
		fmt.Fprintf(&raw, "References: %s\r\n", origID)
	}
	raw.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	raw.WriteString(content)

	_, err = srv.Users.Messages.Send(gmailUser, &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(raw.String())),
		ThreadId: orig.ThreadId,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// summaryFromMessage builds a message summary from Gmail metadata.
func summaryFromMessage(msg *gmail.Message) *models.Message {
	out := &models.Message{
		ID:      msg.Id,
		Snippet: msg.Snippet,
		Labels:  msg.LabelIds,
		IsRead:  true,
	}
	for _, label := range msg.LabelIds {
		if label == "UNREAD" {
			out.IsRead = false
		}
	}

	// InternalDate is the most reliable instant Gmail offers; fall back
	// to parsing the Date header, and leave the zero value when both
	// fail so the aggregator sorts the message as oldest.
	if msg.InternalDate > 0 {
		out.Date = time.UnixMilli(msg.InternalDate)
	}

	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch header.Name {
			case "Subject":
				out.Subject = header.Value
			case "From":
				if addr, err := mail.ParseAddress(header.Value); err == nil {
					out.From = addr.Address
					out.FromName = addr.Name
				} else {
					out.From = header.Value
				}
			case "Date":
				if out.Date.IsZero() {
					if parsed, err := mail.ParseDate(header.Value); err == nil {
						out.Date = parsed
					}
				}
			}
		}
	}
	return out
}

func headerValue(msg *gmail.Message, name string) string {
	if msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// extractBody walks the MIME tree for the first part of the wanted type.
func extractBody(payload *gmail.MessagePart, mimeType string) string {
	if payload.MimeType == mimeType && payload.Body != nil && payload.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(payload.Body.Data); err == nil {
			return string(data)
		}
	}
	for _, part := range payload.Parts {
		if body := extractBody(part, mimeType); body != "" {
			return body
		}
	}
	return ""
}
