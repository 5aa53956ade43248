package engine

import (
	"strings"
	"sync"

	"github.com/roach88/keycond/internal/ir"
	"github.com/roach88/keycond/internal/keycond"
	"github.com/roach88/keycond/internal/queryir"
	"github.com/roach88/keycond/internal/querysql"
	"github.com/roach88/keycond/internal/sets"
)

// ConditionCache reuses compiled key conditions across queries. Entries are
// keyed by ConditionFingerprint, so the same predicate over the same key of
// the same table definition compiles once. Prepared sets of IN predicates
// are shared through the embedded set cache.
//
// Thread-safety: all methods are safe for concurrent use.
type ConditionCache struct {
	mu     sync.Mutex
	conds  map[string]*keycond.KeyCondition
	sets   *sets.Cache
	hits   int64
	misses int64
}

// NewConditionCache returns an empty cache.
func NewConditionCache() *ConditionCache {
	return &ConditionCache{
		conds: make(map[string]*keycond.KeyCondition),
		sets:  sets.NewCache(),
	}
}

// Sets returns the prepared-set cache used while compiling.
func (c *ConditionCache) Sets() *sets.Cache {
	return c.sets
}

// GetOrBuild returns the cached condition for key or builds and stores it.
// A failed build is not cached. Two goroutines missing the same key may
// both build; the first stored result wins.
func (c *ConditionCache) GetOrBuild(key string, build func() (*keycond.KeyCondition, error)) (*keycond.KeyCondition, bool, error) {
	c.mu.Lock()
	if kc, ok := c.conds[key]; ok {
		c.hits++
		c.mu.Unlock()
		return kc, true, nil
	}
	c.misses++
	c.mu.Unlock()

	kc, err := build()
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.conds[key]; ok {
		return existing, true, nil
	}
	c.conds[key] = kc
	return kc, false, nil
}

// Len is the number of cached conditions.
func (c *ConditionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conds)
}

// Stats returns hit and miss counts.
func (c *ConditionCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// conditionKey fingerprints a predicate for one key of one table. The
// rendered text does not show subquery rows, so their set fingerprints are
// appended.
func conditionKey(tableFP string, keyColumns []string, pred queryir.Expr, exact bool) (string, error) {
	var b strings.Builder
	if pred != nil {
		b.WriteString(querysql.Format(pred))
	}
	if exact {
		b.WriteString(" /* exact */")
	}
	var walkErr error
	queryir.Walk(pred, func(e queryir.Expr) bool {
		sq, ok := e.(queryir.Subquery)
		if !ok || walkErr != nil {
			return walkErr == nil
		}
		fp, err := ir.SetFingerprint(sq.Types, sq.Rows)
		if err != nil {
			walkErr = err
			return false
		}
		b.WriteString(" /* ")
		b.WriteString(sq.Name)
		b.WriteString("=")
		b.WriteString(fp)
		b.WriteString(" */")
		return false
	})
	if walkErr != nil {
		return "", walkErr
	}
	return ir.ConditionFingerprint(tableFP, keyColumns, b.String())
}
