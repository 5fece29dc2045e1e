package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dkoval/mailtriage/internal/accounts"
	"github.com/dkoval/mailtriage/internal/classifier"
	"github.com/dkoval/mailtriage/internal/heuristic"
	"github.com/dkoval/mailtriage/internal/mailsource"
	"github.com/dkoval/mailtriage/internal/parser"
	"github.com/dkoval/mailtriage/pkg/models"
)

// fakeSource serves a fixed pool of messages for one provider.
type fakeSource struct {
	mu        sync.Mutex
	pool      []*models.Message
	listErr   error
	getErr    map[string]error // per-message detail failures
	getCalls  int
	listCalls int
}

func (s *fakeSource) List(ctx context.Context, creds mailsource.Credentials, opts mailsource.ListOptions) (*mailsource.Page, error) {
	s.mu.Lock()
	s.listCalls++
	s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	// Summaries: strip bodies so detail fetch stays observable.
	var summaries []*models.Message
	for _, m := range s.pool {
		if !opts.Since.IsZero() && m.Date.Before(opts.Since) {
			continue
		}
		copy := *m
		copy.Body = ""
		copy.BodyHTML = ""
		summaries = append(summaries, &copy)
	}
	return &mailsource.Page{Messages: summaries}, nil
}

func (s *fakeSource) Get(ctx context.Context, creds mailsource.Credentials, messageID string) (*models.Message, error) {
	s.mu.Lock()
	s.getCalls++
	s.mu.Unlock()
	if err, ok := s.getErr[messageID]; ok {
		return nil, err
	}
	for _, m := range s.pool {
		if m.ID == messageID {
			copy := *m
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("message %s not found", messageID)
}

func (s *fakeSource) SendReply(ctx context.Context, creds mailsource.Credentials, messageID, content string) error {
	return nil
}

// fakeGateway returns canned judgments keyed by message ID and counts
// calls per message so short-circuit behavior is assertable.
type fakeGateway struct {
	mu        sync.Mutex
	judgments map[string]*classifier.Judgment
	errors    map[string]error
	calls     map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		judgments: map[string]*classifier.Judgment{},
		errors:    map[string]error{},
		calls:     map[string]int{},
	}
}

func (g *fakeGateway) Classify(ctx context.Context, msg *models.Message, taskName string) (*classifier.Judgment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[msg.ID]++
	if err, ok := g.errors[msg.ID]; ok {
		return nil, err
	}
	if j, ok := g.judgments[msg.ID]; ok {
		return j, nil
	}
	return &classifier.Judgment{Priority: classifier.DefaultPriority}, nil
}

func (g *fakeGateway) callsFor(msgID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[msgID]
}

// fakeResolver serves pre-built sessions.
type fakeResolver struct {
	sessions []accounts.Session
	err      error
}

func (r *fakeResolver) Resolve(ctx context.Context, userID int64) ([]accounts.Session, error) {
	return r.sessions, r.err
}

func (r *fakeResolver) ResolveOne(ctx context.Context, userID, accountID int64) (*accounts.Session, error) {
	for i := range r.sessions {
		if r.sessions[i].Account.ID == accountID {
			return &r.sessions[i], nil
		}
	}
	return nil, errors.New("account not found")
}

func session(id int64, provider models.Provider) accounts.Session {
	return accounts.Session{
		Account: &models.Account{
			ID:       id,
			UserID:   1,
			Email:    fmt.Sprintf("acct%d@example.com", id),
			Provider: provider,
			IsActive: true,
		},
	}
}

func msg(id, subject, body string, date time.Time) *models.Message {
	return &models.Message{
		ID:      id,
		Subject: subject,
		Body:    body,
		From:    "sender@example.com",
		Date:    date,
	}
}

func newTestOrchestrator(resolver SessionResolver, gateway Classifier, sources map[models.Provider]mailsource.Source) *Orchestrator {
	return New(Deps{
		Resolver:   resolver,
		Sources:    sources,
		Matcher:    heuristic.NewMatcher(),
		Gateway:    gateway,
		HTMLParser: parser.NewHTMLParser(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		PoolFloor:  100,
		SampleSize: 10,
	})
}
