package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkoval/mailtriage/internal/accounts"
	"github.com/dkoval/mailtriage/internal/classifier"
	"github.com/dkoval/mailtriage/internal/mailsource"
	"github.com/dkoval/mailtriage/pkg/models"
)

// Bucket names for the semantic categorization path. The set is fixed;
// judgments outside it land in BucketOther.
const (
	BucketWork        = "work"
	BucketFinance     = "finance"
	BucketSocial      = "social"
	BucketNewsletters = "newsletters"
	BucketOther       = "other"
)

// Buckets groups one account's candidate pool by semantic category.
type Buckets map[string][]*models.Message

// requestCache holds classification results for the duration of one
// request. Nothing in it survives the request; persisting verdicts is
// out of scope. Accounts are processed concurrently, so access is
// guarded.
type requestCache struct {
	mu        sync.Mutex
	judgments map[judgmentKey]*classifier.Judgment
	buckets   map[int64]Buckets
}

type judgmentKey struct {
	task      string
	messageID string
}

func newRequestCache() *requestCache {
	return &requestCache{
		judgments: make(map[judgmentKey]*classifier.Judgment),
		buckets:   make(map[int64]Buckets),
	}
}

func (c *requestCache) judgment(key judgmentKey) (*classifier.Judgment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.judgments[key]
	return j, ok
}

func (c *requestCache) storeJudgment(key judgmentKey, j *classifier.Judgment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.judgments[key] = j
}

// classify runs one semantic call through the cache, so the same
// message/task pair costs at most one backend call per request.
func (o *Orchestrator) classify(ctx context.Context, cache *requestCache, msg *models.Message, task string) (*classifier.Judgment, error) {
	key := judgmentKey{task: task, messageID: msg.ID}
	if j, ok := cache.judgment(key); ok {
		return j, nil
	}

	j, err := o.gateway.Classify(ctx, msg, task)
	if err != nil {
		return nil, err
	}
	cache.storeJudgment(key, j)
	return j, nil
}

// Categorize groups one account's recent candidate pool into the fixed
// bucket set. It is the exposed entry of the categorization path; the
// same grouping feeds the financial fallback when both run in one
// request.
func (o *Orchestrator) Categorize(ctx context.Context, scope *RequestScope, userID, accountID int64) (Buckets, error) {
	session, err := o.resolver.ResolveOne(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	source, ok := o.sources[session.Account.Provider]
	if !ok {
		return nil, fmt.Errorf("no source for provider %q", session.Account.Provider)
	}

	cache := scope.requestCache()
	if buckets, ok := o.cachedBuckets(cache, accountID); ok {
		// Already grouped earlier in this request; no second fetch.
		return buckets, nil
	}

	page, err := source.List(ctx, session.Credentials, mailsource.ListOptions{
		MaxResults: int64(o.poolFloor),
		Scope:      mailsource.ScopeInbox,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	buckets := o.categorizeAccount(ctx, cache, *session, page.Messages)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return buckets, nil
}

// categorizeAccount groups an account's pool into the fixed bucket set
// using the semantic classifier alone, one call per message. Messages
// whose classification fails are skipped; the rest of the pool is still
// grouped. The result is stored in the request cache so the financial
// screening and repeat categorizations in the same scope reuse it.
func (o *Orchestrator) categorizeAccount(ctx context.Context, cache *requestCache, session accounts.Session, pool []*models.Message) Buckets {
	buckets := Buckets{}
	for _, msg := range pool {
		j, err := o.classify(ctx, cache, msg, classifier.TaskSmartCategory)
		if err != nil {
			o.logger.Warn("skipping message in categorization",
				"account_id", session.Account.ID,
				"message_id", msg.ID,
				"error", err,
			)
			continue
		}
		name := bucketName(j.Category)
		buckets[name] = append(buckets[name], msg)
	}

	cache.mu.Lock()
	cache.buckets[session.Account.ID] = buckets
	cache.mu.Unlock()
	return buckets
}

// cachedBuckets returns buckets already computed earlier in this request,
// without spending any classifier calls.
func (o *Orchestrator) cachedBuckets(cache *requestCache, accountID int64) (Buckets, bool) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	buckets, ok := cache.buckets[accountID]
	return buckets, ok
}

func bucketName(category string) string {
	switch category {
	case "work", "finance", "social", "newsletters":
		return category
	case "personal":
		return BucketSocial
	default:
		return BucketOther
	}
}
