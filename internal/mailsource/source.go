package mailsource

import (
	"context"
	"time"

	"github.com/dkoval/mailtriage/pkg/models"
)

// Credentials is the opaque token material needed to query one account's
// mail source. It is resolved fresh per request, held only for the
// request lifetime, and must never be logged.
type Credentials struct {
	// OAuth material (gmail provider)
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenExpiry  string `json:"token_expiry,omitempty"`

	// Password material (imap provider)
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	Server   string `json:"server,omitempty"` // host:port
}

// Scope restricts a list call to one logical folder.
type Scope string

const (
	// ScopeInbox is the default scope: candidate pools are drawn from
	// the inbox only.
	ScopeInbox Scope = "inbox"
)

// ListOptions bounds one list call.
type ListOptions struct {
	MaxResults int64
	Scope      Scope
	PageToken  string
	// Since limits results to messages newer than the given instant.
	// Zero means no lower bound.
	Since time.Time
}

// Page is one page of message summaries. Summaries carry subject,
// sender, date and snippet; bodies are fetched lazily with Get.
type Page struct {
	Messages      []*models.Message
	NextPageToken string
}

// Source retrieves messages from one kind of mail backend. Implementations
// must be safe for concurrent use across accounts: all per-call state is
// derived from the passed credentials.
type Source interface {
	// List returns a bounded pool of recent message summaries.
	List(ctx context.Context, creds Credentials, opts ListOptions) (*Page, error)
	// Get fetches the complete message, including the full body.
	Get(ctx context.Context, creds Credentials, messageID string) (*models.Message, error)
	// SendReply sends a reply to an existing message. Not used by the
	// classification pipeline itself, only by the surrounding surface.
	SendReply(ctx context.Context, creds Credentials, messageID, content string) error
}
