// Package serving wraps fitted pipelines for repeated single-record
// prediction.
package serving

import (
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ezoic/tabml/pipeline"
	"github.com/ezoic/tabml/pkg/errors"
	"github.com/ezoic/tabml/pkg/log"
	"github.com/ezoic/tabml/schema"
)

// DefaultCacheSize is the number of predictions a CachedPredictor keeps.
const DefaultCacheSize = 4096

// Stats counts cache lookups.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// CachedPredictor memoises predictions of a fitted pipeline by the
// validated feature values of the record. Prediction is pure, so a cached
// result is identical to a fresh one. It is safe for concurrent use.
type CachedPredictor struct {
	fp     *pipeline.FittedPipeline
	cache  *lru.Cache[string, pipeline.Prediction]
	keys   []string
	hits   atomic.Uint64
	misses atomic.Uint64
	logger log.Logger
}

// NewCachedPredictor wraps fp with an LRU of size entries.
func NewCachedPredictor(fp *pipeline.FittedPipeline, size int) (*CachedPredictor, error) {
	if fp == nil {
		return nil, errors.NewValueError("NewCachedPredictor", "fitted pipeline is required")
	}
	if size < 1 {
		return nil, errors.NewValidationError("size", "must be positive", size)
	}
	cache, err := lru.New[string, pipeline.Prediction](size)
	if err != nil {
		return nil, errors.Wrap(err, "create cache")
	}
	return &CachedPredictor{
		fp:     fp,
		cache:  cache,
		keys:   fp.FeatureFields(),
		logger: log.GetLoggerWithName("CachedPredictor"),
	}, nil
}

// Pipeline returns the wrapped pipeline.
func (c *CachedPredictor) Pipeline() *pipeline.FittedPipeline { return c.fp }

// key joins the values of the fields the feature vector is computed from.
// Fields nothing on that path reads are left out.
func (c *CachedPredictor) key(rec schema.Record) string {
	var b strings.Builder
	for i, name := range c.keys {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		v, ok := rec.Get(name)
		if !ok {
			b.WriteByte(0x1e)
			continue
		}
		b.WriteString(v.String())
	}
	return b.String()
}

// Predict returns the prediction for rec, from the cache when possible.
func (c *CachedPredictor) Predict(rec schema.Record) (pipeline.Prediction, error) {
	k := c.key(rec)
	if p, ok := c.cache.Get(k); ok {
		c.hits.Add(1)
		return p, nil
	}
	c.misses.Add(1)
	p, err := c.fp.Predict(rec)
	if err != nil {
		return pipeline.Prediction{}, err
	}
	c.cache.Add(k, p)
	return p, nil
}

// PredictMap validates raw against the schema and predicts it.
func (c *CachedPredictor) PredictMap(raw map[string]string) (pipeline.Prediction, error) {
	rec, err := c.fp.Schema().ValidateMap(raw)
	if err != nil {
		return pipeline.Prediction{}, err
	}
	return c.Predict(rec)
}

// Stats returns the lookup counters.
func (c *CachedPredictor) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Len returns the number of cached predictions.
func (c *CachedPredictor) Len() int { return c.cache.Len() }

// Purge empties the cache and logs the counters so far.
func (c *CachedPredictor) Purge() {
	s := c.Stats()
	c.logger.Debug("Prediction cache purged", "hits", s.Hits, "misses", s.Misses, "entries", c.cache.Len())
	c.cache.Purge()
}
