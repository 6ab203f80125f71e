package rules

import (
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/primis-cohort/pkg/decision"
)

const defaultCacheSize = 16

// LoaderStats counts rule set cache usage.
type LoaderStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Loader compiles rule sets from a rule document and caches them per vaccine
// product list.
type Loader struct {
	spec   *Spec
	cache  *lru.Cache[string, *decision.RuleSet]
	logger *logrus.Logger

	statsMu sync.Mutex
	stats   LoaderStats
}

// NewLoader creates a loader over the embedded PRIMIS rule document.
func NewLoader(logger *logrus.Logger) (*Loader, error) {
	spec, err := PRIMIS()
	if err != nil {
		return nil, err
	}
	return NewLoaderFromSpec(spec, logger)
}

// NewLoaderFromSpec creates a loader over an arbitrary rule document.
func NewLoaderFromSpec(spec *Spec, logger *logrus.Logger) (*Loader, error) {
	cache, err := lru.New[string, *decision.RuleSet](defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule set cache: %w", err)
	}
	return &Loader{spec: spec, cache: cache, logger: logger}, nil
}

// Load returns the compiled rule set for a vaccine product list. A nil list
// uses the products named in the rule document.
func (l *Loader) Load(products []string) (*decision.RuleSet, error) {
	if products == nil {
		products = l.spec.Products
	}
	key := strings.Join(products, ",")

	if set, ok := l.cache.Get(key); ok {
		l.count(true)
		return set, nil
	}
	l.count(false)

	tables, err := l.spec.Tables(products)
	if err != nil {
		return nil, err
	}
	set, err := decision.NewRuleSet(tables...)
	if err != nil {
		return nil, err
	}

	l.logger.WithFields(logrus.Fields{
		"groups":     len(tables),
		"attributes": len(set.Attributes()),
		"products":   key,
	}).Debug("Compiled rule set")

	l.cache.Add(key, set)
	return set, nil
}

// Descriptions maps group names to their published titles.
func (l *Loader) Descriptions() map[string]string {
	return l.spec.Descriptions()
}

// Products returns the vaccine products named in the rule document.
func (l *Loader) Products() []string {
	return append([]string(nil), l.spec.Products...)
}

// Stats returns cache statistics.
func (l *Loader) Stats() LoaderStats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.stats
}

func (l *Loader) count(hit bool) {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	if hit {
		l.stats.Hits++
	} else {
		l.stats.Misses++
	}
}
