// Package cache holds in-process lookup caches used by bulk operations.
package cache

import (
	"context"
	"strings"
	"time"

	"coinly/internal/core"
)

// CategoryFinder resolves a category name of one kind for a user.
type CategoryFinder interface {
	FindCategoryByName(ctx context.Context, userID int64, name string, kind core.TransactionKind) (int64, error)
}

type categoryKey struct {
	userID int64
	name   string
	kind   core.TransactionKind
}

// CategoryLookup caches successful name lookups. Misses are never cached, so a
// category created after a failed row is found on the next import.
type CategoryLookup struct {
	next  CategoryFinder
	cache *LRUCache[categoryKey, int64]
}

func NewCategoryLookup(next CategoryFinder, maxSize int, ttl time.Duration) *CategoryLookup {
	return &CategoryLookup{
		next:  next,
		cache: NewLRUCache[categoryKey, int64](maxSize, ttl),
	}
}

func (l *CategoryLookup) FindCategoryByName(ctx context.Context, userID int64, name string, kind core.TransactionKind) (int64, error) {
	key := categoryKey{userID: userID, name: strings.ToLower(strings.TrimSpace(name)), kind: kind}
	if id, ok := l.cache.Get(key); ok {
		return id, nil
	}
	id, err := l.next.FindCategoryByName(ctx, userID, name, kind)
	if err != nil {
		return 0, err
	}
	l.cache.Set(key, id)
	return id, nil
}

// Forget drops the user's cached names. Call it after a category is renamed or deleted.
func (l *CategoryLookup) Forget(userID int64) {
	l.cache.DeleteFunc(func(k categoryKey) bool { return k.userID == userID })
}
