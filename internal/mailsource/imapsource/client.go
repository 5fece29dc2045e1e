package imapsource

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"github.com/dkoval/mailtriage/internal/mailsource"
	"github.com/dkoval/mailtriage/pkg/models"
)

// Client implements mailsource.Source over IMAP. Connections are opened
// per call from the passed credentials and closed before returning, so
// the client itself carries no per-account state and is safe to share
// across accounts.
type Client struct {
	dialTimeout time.Duration
}

// NewClient creates a new IMAP source
func NewClient(dialTimeout time.Duration) *Client {
	if dialTimeout == 0 {
		dialTimeout = 30 * time.Second
	}
	return &Client{dialTimeout: dialTimeout}
}

// List fetches summaries of the most recent messages in the scoped folder.
func (c *Client) List(ctx context.Context, creds mailsource.Credentials, opts mailsource.ListOptions) (*mailsource.Page, error) {
	conn, mbox, err := c.connect(ctx, creds, opts.Scope)
	if err != nil {
		return nil, err
	}
	defer conn.Logout()

	if mbox.Messages == 0 {
		return &mailsource.Page{}, nil
	}

	seqSet := new(imap.SeqSet)
	if opts.Since.IsZero() {
		from := uint32(1)
		if n := uint32(opts.MaxResults); n > 0 && mbox.Messages > n {
			from = mbox.Messages - n + 1
		}
		seqSet.AddRange(from, mbox.Messages)
	} else {
		criteria := imap.NewSearchCriteria()
		criteria.Since = opts.Since
		seqNums, err := conn.Search(criteria)
		if err != nil {
			return nil, fmt.Errorf("failed to search: %w", err)
		}
		if len(seqNums) == 0 {
			return &mailsource.Page{}, nil
		}
		if n := int(opts.MaxResults); n > 0 && len(seqNums) > n {
			seqNums = seqNums[len(seqNums)-n:]
		}
		seqSet.AddNum(seqNums...)
	}

	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, imap.FetchFlags}
	messages := make(chan *imap.Message, 100)
	done := make(chan error, 1)
	go func() {
		done <- conn.Fetch(seqSet, items, messages)
	}()

	var summaries []*models.Message
	for msg := range messages {
		summaries = append(summaries, summaryFromEnvelope(msg))
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}

	// Newest first, matching the order the aggregate sort expects from
	// a well-behaved source.
	for i, j := 0, len(summaries)-1; i < j; i, j = i+1, j-1 {
		summaries[i], summaries[j] = summaries[j], summaries[i]
	}

	return &mailsource.Page{Messages: summaries}, nil
}

// Get fetches the complete message, including body sections, by UID.
func (c *Client) Get(ctx context.Context, creds mailsource.Credentials, messageID string) (*models.Message, error) {
	uid, err := strconv.ParseUint(messageID, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid imap message id %q: %w", messageID, err)
	}

	conn, _, err := c.connect(ctx, creds, mailsource.ScopeInbox)
	if err != nil {
		return nil, err
	}
	defer conn.Logout()

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uint32(uid))

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, imap.FetchFlags, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- conn.UidFetch(seqSet, items, messages)
	}()

	var full *models.Message
	for msg := range messages {
		full = summaryFromEnvelope(msg)
		readBody(msg, section, full)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message %d: %w", uid, err)
	}
	if full == nil {
		return nil, fmt.Errorf("message %d not found", uid)
	}
	return full, nil
}

// SendReply is not supported for IMAP-backed accounts; sending requires
// an SMTP submission channel the account link does not carry.
func (c *Client) SendReply(ctx context.Context, creds mailsource.Credentials, messageID, content string) error {
	return fmt.Errorf("replies are not supported for imap accounts")
}

// connect dials, logs in and selects the scoped folder read-only.
func (c *Client) connect(ctx context.Context, creds mailsource.Credentials, scope mailsource.Scope) (*client.Client, *imap.MailboxStatus, error) {
	dialer := &net.Dialer{Timeout: c.dialTimeout}
	tlsConn, err := tls.DialWithDialer(dialer, "tcp", creds.Server, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect: %w", err)
	}

	conn, err := client.New(tlsConn)
	if err != nil {
		tlsConn.Close()
		return nil, nil, fmt.Errorf("failed to create IMAP client: %w", err)
	}

	if err := conn.Login(creds.Email, creds.Password); err != nil {
		conn.Logout()
		return nil, nil, fmt.Errorf("failed to login: %w", err)
	}

	mbox, err := conn.Select(folderFor(scope), true)
	if err != nil {
		conn.Logout()
		return nil, nil, fmt.Errorf("failed to select folder: %w", err)
	}

	return conn, mbox, nil
}

func folderFor(scope mailsource.Scope) string {
	// Only the inbox scope is defined today.
	return "INBOX"
}

// summaryFromEnvelope builds a message summary from envelope data. A date
// the server failed to provide stays at the zero value; the aggregator
// sorts such messages as oldest rather than failing.
func summaryFromEnvelope(msg *imap.Message) *models.Message {
	out := &models.Message{
		ID: strconv.FormatUint(uint64(msg.Uid), 10),
	}

	for _, flag := range msg.Flags {
		if flag == imap.SeenFlag {
			out.IsRead = true
		}
	}

	if env := msg.Envelope; env != nil {
		out.Subject = env.Subject
		out.Date = env.Date
		if len(env.From) > 0 {
			out.From = env.From[0].Address()
			out.FromName = env.From[0].PersonalName
		}
	}
	return out
}

// readBody extracts text and HTML parts from the fetched body section.
func readBody(msg *imap.Message, section *imap.BodySectionName, out *models.Message) {
	bodyReader := msg.GetBody(section)
	if bodyReader == nil {
		return
	}

	mr, err := mail.CreateReader(bodyReader)
	if err != nil {
		return
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(ct, "text/plain"):
			out.Body = string(body)
		case strings.HasPrefix(ct, "text/html"):
			out.BodyHTML = string(body)
		}
	}
}
