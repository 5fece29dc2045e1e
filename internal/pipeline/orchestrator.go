package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dkoval/mailtriage/internal/accounts"
	"github.com/dkoval/mailtriage/internal/classifier"
	"github.com/dkoval/mailtriage/internal/heuristic"
	"github.com/dkoval/mailtriage/internal/mailsource"
	"github.com/dkoval/mailtriage/internal/parser"
	"github.com/dkoval/mailtriage/pkg/models"
)

// VerdictSource records which tier of the classification strategy
// produced a verdict.
type VerdictSource string

const (
	SourceHeuristic VerdictSource = "heuristic"
	SourceSemantic  VerdictSource = "semantic"
)

// Verdict is the match decision for one message under one task.
type Verdict struct {
	Matched bool
	Source  VerdictSource
	// Judgment carries the raw semantic result for downstream reuse.
	// Nil for heuristic verdicts.
	Judgment *classifier.Judgment
}

// Match pairs a matched message with the account it came from.
type Match struct {
	Message *models.Message
	Account *models.Account
	Verdict Verdict
}

// FilterResult is the ranked, size-bounded response of a filter
// operation. TotalFound reports how many matches existed before
// truncation.
type FilterResult struct {
	Results    []Match
	TotalFound int
}

// RequestScope carries classification state shared by the operations
// serving one request: judgments and categorization buckets computed
// once are visible to later operations in the same scope, so a
// categorization performed earlier in the request feeds the financial
// bucket screening without a second fetch or classification cycle.
// Nothing in a scope outlives its request.
type RequestScope struct {
	cache *requestCache
}

// NewRequestScope creates the classification scope for one request.
func NewRequestScope() *RequestScope {
	return &RequestScope{cache: newRequestCache()}
}

func (s *RequestScope) requestCache() *requestCache {
	if s == nil {
		return newRequestCache()
	}
	return s.cache
}

// Classifier is the semantic classification backend as the orchestrator
// sees it.
type Classifier interface {
	Classify(ctx context.Context, msg *models.Message, taskName string) (*classifier.Judgment, error)
}

// SessionResolver yields connected accounts with request-scoped
// credentials.
type SessionResolver interface {
	Resolve(ctx context.Context, userID int64) ([]accounts.Session, error)
	ResolveOne(ctx context.Context, userID, accountID int64) (*accounts.Session, error)
}

// Orchestrator drives the two-tier classification strategy across all of
// a user's accounts and merges the results.
type Orchestrator struct {
	resolver   SessionResolver
	sources    map[models.Provider]mailsource.Source
	matcher    *heuristic.Matcher
	gateway    Classifier
	htmlParser *parser.HTMLParser
	logger     *slog.Logger
	poolFloor  int
	sampleSize int
}

// Deps are the orchestrator's constructor dependencies.
type Deps struct {
	Resolver   SessionResolver
	Sources    map[models.Provider]mailsource.Source
	Matcher    *heuristic.Matcher
	Gateway    Classifier
	HTMLParser *parser.HTMLParser
	Logger     *slog.Logger
	PoolFloor  int
	SampleSize int
}

// New creates a new classification orchestrator
func New(deps Deps) *Orchestrator {
	poolFloor := deps.PoolFloor
	if poolFloor <= 0 {
		poolFloor = 100
	}
	sampleSize := deps.SampleSize
	if sampleSize <= 0 {
		sampleSize = 10
	}
	return &Orchestrator{
		resolver:   deps.Resolver,
		sources:    deps.Sources,
		matcher:    deps.Matcher,
		gateway:    deps.Gateway,
		htmlParser: deps.HTMLParser,
		logger:     deps.Logger.With("component", "pipeline"),
		poolFloor:  poolFloor,
		sampleSize: sampleSize,
	}
}

// FilterByCategory classifies recent mail across all of a user's
// accounts and returns the desiredCount most recent matches for the
// task, with the pre-truncation total.
//
// Account failures are isolated: an account that cannot be fetched or
// resolved contributes nothing, and the remaining accounts still
// produce a result. Only malformed input, resolution of the account
// list itself, or expiry of the caller's budget fail the request.
func (o *Orchestrator) FilterByCategory(ctx context.Context, scope *RequestScope, userID int64, task Task, desiredCount int) (*FilterResult, error) {
	spec, ok := taskSpecs[task]
	if !ok {
		return nil, fmt.Errorf("unknown task %q", task)
	}
	if desiredCount < 1 {
		return nil, fmt.Errorf("desired count must be positive, got %d", desiredCount)
	}

	sessions, err := o.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	cache := scope.requestCache()
	poolSize := o.poolSize(desiredCount)

	// Append-only collector, the only state shared across accounts.
	var (
		mu        sync.Mutex
		collected []Match
	)

	var wg sync.WaitGroup
	for _, session := range sessions {
		wg.Add(1)
		go func(session accounts.Session) {
			defer wg.Done()
			matches, err := o.collectAccount(ctx, cache, session, spec, poolSize)
			if err != nil {
				o.logger.Warn("account contributed nothing",
					"account_id", session.Account.ID,
					"email", session.Account.Email,
					"error", err,
				)
				return
			}
			mu.Lock()
			collected = append(collected, matches...)
			mu.Unlock()
		}(session)
	}
	wg.Wait()

	// Budget expired mid-flight: fail closed, discard partial work.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results, total := aggregate(collected, desiredCount)
	return &FilterResult{Results: results, TotalFound: total}, nil
}

// SmartFilter is the single-account variant: it classifies one account's
// recent mail under the named kind. A kind matching a known task runs
// that task's strategy; any other kind is handed to the semantic
// classifier's generic filter and matches on the returned category.
func (o *Orchestrator) SmartFilter(ctx context.Context, scope *RequestScope, userID, accountID int64, kind string, desiredCount int) (*FilterResult, error) {
	if desiredCount < 1 {
		return nil, fmt.Errorf("desired count must be positive, got %d", desiredCount)
	}

	session, err := o.resolver.ResolveOne(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	spec, err := smartSpec(kind)
	if err != nil {
		return nil, err
	}

	cache := scope.requestCache()
	matches, err := o.collectAccount(ctx, cache, *session, spec, o.poolSize(desiredCount))
	if err != nil {
		// With a single account there is nothing else to fall back on,
		// but a fetch failure is still not a caller mistake: report
		// empty rather than erroring, matching the multi-account
		// contract.
		o.logger.Warn("account contributed nothing",
			"account_id", session.Account.ID,
			"error", err,
		)
		matches = nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results, total := aggregate(matches, desiredCount)
	return &FilterResult{Results: results, TotalFound: total}, nil
}

// smartSpec maps a smart-filter kind onto a task spec.
func smartSpec(kind string) (taskSpec, error) {
	if task, err := ParseTask(kind); err == nil {
		return taskSpecs[task], nil
	}
	if kind == "" {
		return taskSpec{}, fmt.Errorf("empty filter kind")
	}
	// Free-form kinds go through the generic filter; the judgment
	// matches when the backend assigns the requested category.
	return taskSpec{
		backendTask: classifier.TaskGenericFilter,
		escalate: func(j *classifier.Judgment) bool {
			return j.Category == kind
		},
	}, nil
}

// collectAccount runs the two-tier strategy over one account's candidate
// pool. The returned error means the whole account contributed nothing;
// individual message failures are absorbed inside the loop.
func (o *Orchestrator) collectAccount(ctx context.Context, cache *requestCache, session accounts.Session, spec taskSpec, poolSize int64) ([]Match, error) {
	source, ok := o.sources[session.Account.Provider]
	if !ok {
		return nil, fmt.Errorf("no source for provider %q", session.Account.Provider)
	}

	// Heuristic-only tasks prefer a bucket this request already built:
	// a categorization in the same scope has fetched and bucketed the
	// pool, so screening its finance bucket costs neither a second
	// fetch cycle nor a semantic call. An empty screen falls through to
	// a fresh scan of the raw pool.
	if spec.heuristicOnly {
		if buckets, ok := o.cachedBuckets(cache, session.Account.ID); ok {
			if matches := o.screenHeuristic(session, spec, buckets[BucketFinance]); len(matches) > 0 {
				return matches, nil
			}
		}
	}

	page, err := source.List(ctx, session.Credentials, mailsource.ListOptions{
		MaxResults: poolSize,
		Scope:      mailsource.ScopeInbox,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}

	if spec.heuristicOnly {
		return o.screenHeuristic(session, spec, page.Messages), nil
	}
	return o.collectTwoTier(ctx, cache, session, spec, page.Messages), nil
}

// screenHeuristic scans summary text against the task's pattern set.
// No semantic calls are spent.
func (o *Orchestrator) screenHeuristic(session accounts.Session, spec taskSpec, pool []*models.Message) []Match {
	var matches []Match
	for _, msg := range pool {
		if o.matcher.Matches(spec.patternSet, msg.Text()) {
			matches = append(matches, o.match(msg, session, Verdict{Matched: true, Source: SourceHeuristic}))
		}
	}
	return matches
}

// collectTwoTier runs heuristic-then-semantic per message. The heuristic
// always runs first: a match there skips the semantic call entirely.
// Every per-message failure (detail fetch, classifier call) drops only
// that message and is logged; the iteration continues.
func (o *Orchestrator) collectTwoTier(ctx context.Context, cache *requestCache, session accounts.Session, spec taskSpec, pool []*models.Message) []Match {
	var matches []Match

	for _, summary := range pool {
		if ctx.Err() != nil {
			// Budget expired; abandon the remaining pool rather than
			// keep spending calls.
			break
		}

		full, err := o.fetchFull(ctx, session, summary)
		if err != nil {
			o.logger.Warn("dropping message: detail fetch failed",
				"account_id", session.Account.ID,
				"message_id", summary.ID,
				"error", err,
			)
			continue
		}

		if o.matcher.Matches(spec.patternSet, full.Text()) {
			matches = append(matches, o.match(full, session, Verdict{Matched: true, Source: SourceHeuristic}))
			continue
		}

		judgment, err := o.classify(ctx, cache, full, spec.backendTask)
		if err != nil {
			// Unavailable, malformed and quota rejections all count as
			// a non-match for this message; processing continues.
			o.logger.Warn("dropping message: classification failed",
				"account_id", session.Account.ID,
				"message_id", summary.ID,
				"error", err,
			)
			continue
		}

		if spec.escalate(judgment) {
			matches = append(matches, o.match(full, session, Verdict{
				Matched:  true,
				Source:   SourceSemantic,
				Judgment: judgment,
			}))
		}
	}
	return matches
}

// fetchFull retrieves the complete message and flattens an HTML-only
// body to text for the classifiers.
func (o *Orchestrator) fetchFull(ctx context.Context, session accounts.Session, summary *models.Message) (*models.Message, error) {
	source := o.sources[session.Account.Provider]

	full, err := source.Get(ctx, session.Credentials, summary.ID)
	if err != nil {
		return nil, err
	}
	full.AccountID = session.Account.ID

	if full.Body == "" && full.BodyHTML != "" {
		text, err := o.htmlParser.Parse(full.BodyHTML)
		if err != nil {
			o.logger.Warn("failed to flatten html body", "message_id", full.ID, "error", err)
		} else {
			full.Body = text
		}
	}
	return full, nil
}

func (o *Orchestrator) match(msg *models.Message, session accounts.Session, verdict Verdict) Match {
	msg.AccountID = session.Account.ID
	return Match{Message: msg, Account: session.Account, Verdict: verdict}
}

func (o *Orchestrator) poolSize(desiredCount int) int64 {
	if desiredCount > o.poolFloor {
		return int64(desiredCount)
	}
	return int64(o.poolFloor)
}
