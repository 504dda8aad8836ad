// Package classifier scores transactions against a keyword model and picks
// the best-matching category.
package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/hearthledger/hearthledger/internal/model"
	"github.com/hearthledger/hearthledger/internal/service"
)

// Scoring constants. These are behavioral contracts: tests depend on the
// exact values.
const (
	// scoreThreshold is the minimum winning score; at or below it the
	// classifier falls back to the other category.
	scoreThreshold = 0.5
	// prefixBoost multiplies a keyword's score when it matches at offset 0.
	prefixBoost = 2.0
	// incomePositiveBoost and incomeNegativePenalty adjust the income score
	// by amount sign: income is a positive-amount signal.
	incomePositiveBoost   = 2.0
	incomeNegativePenalty = 0.1
	// merchantPreferenceBoost rewards the category historically dominant
	// for this merchant within the household.
	merchantPreferenceBoost = 1.5
)

const (
	cacheTTL     = 5 * time.Minute
	cacheCleanup = 10 * time.Minute
)

// Classifier assigns a category to a transaction from its description and
// merchant text, the amount sign, and the household's transaction history.
type Classifier struct {
	storage       service.Storage
	merchantCache *gocache.Cache
}

// New creates a classifier backed by the given storage collaborator. The
// per-merchant dominant-category lookup is cached with a short TTL and
// invalidated on writes via InvalidateMerchant.
func New(storage service.Storage) *Classifier {
	return &Classifier{
		storage:       storage,
		merchantCache: gocache.New(cacheTTL, cacheCleanup),
	}
}

// Classify returns the best-matching category for the transaction. It is a
// deterministic function of the transaction's text and amount plus the
// household's stored history.
func (c *Classifier) Classify(ctx context.Context, txn *model.Transaction) (model.Category, error) {
	text := strings.ToLower(strings.TrimSpace(txn.Description + " " + txn.MerchantName))
	if text == "" {
		return model.CategoryOther, nil
	}

	scores := make(map[model.Category]float64, len(categoryKeywords))
	for category, keywords := range categoryKeywords {
		scores[category] = scoreKeywords(text, keywords)
	}

	// Income is a positive-amount signal.
	if txn.Amount > 0 {
		scores[model.CategoryIncome] *= incomePositiveBoost
	} else if txn.Amount < 0 {
		scores[model.CategoryIncome] *= incomeNegativePenalty
	}

	if txn.MerchantName != "" {
		preferred, err := c.dominantCategory(ctx, txn.HouseholdID, txn.MerchantName)
		if err != nil {
			return "", fmt.Errorf("failed to look up merchant history: %w", err)
		}
		if preferred != "" {
			scores[preferred] *= merchantPreferenceBoost
		}
	}

	best := model.CategoryOther
	bestScore := 0.0
	for _, category := range model.Categories {
		if scores[category] > bestScore {
			best = category
			bestScore = scores[category]
		}
	}

	if bestScore <= scoreThreshold {
		return model.CategoryOther, nil
	}
	return best, nil
}

// scoreKeywords sums the contribution of every keyword found in text:
// (1 + keywordLength/textLength), doubled when the keyword sits at offset 0.
func scoreKeywords(text string, keywords []string) float64 {
	textLen := float64(len(text))
	score := 0.0

	for _, keyword := range keywords {
		idx := strings.Index(text, keyword)
		if idx < 0 {
			continue
		}
		contribution := 1 + float64(len(keyword))/textLen
		if idx == 0 {
			contribution *= prefixBoost
		}
		score += contribution
	}

	return score
}

// dominantCategory returns the category most often recorded for this
// merchant in the household's history, or "" when the merchant is unseen
// or no category dominates. Results are cached per household+merchant.
func (c *Classifier) dominantCategory(ctx context.Context, householdID, merchant string) (model.Category, error) {
	key := cacheKey(householdID, merchant)
	if cached, ok := c.merchantCache.Get(key); ok {
		return cached.(model.Category), nil
	}

	transactions, err := c.storage.ListTransactions(ctx, householdID)
	if err != nil {
		return "", err
	}

	counts := make(map[model.Category]int)
	merchantLower := strings.ToLower(merchant)
	for i := range transactions {
		if strings.ToLower(transactions[i].MerchantName) != merchantLower {
			continue
		}
		counts[transactions[i].Category]++
	}

	dominant := model.Category("")
	bestCount := 0
	for _, category := range model.Categories {
		if counts[category] > bestCount {
			dominant = category
			bestCount = counts[category]
		}
	}

	c.merchantCache.Set(key, dominant, gocache.DefaultExpiration)
	return dominant, nil
}

// InvalidateMerchant drops the cached dominant category for a merchant.
// Callers invoke it after persisting a transaction so subsequent
// classifications see the updated history.
func (c *Classifier) InvalidateMerchant(householdID, merchant string) {
	if merchant == "" {
		return
	}
	c.merchantCache.Delete(cacheKey(householdID, merchant))
}

func cacheKey(householdID, merchant string) string {
	return householdID + "|" + strings.ToLower(merchant)
}
