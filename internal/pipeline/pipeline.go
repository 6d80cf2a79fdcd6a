// Package pipeline orchestrates one question's full pass: classification and
// extraction, structured and semantic retrieval, context fusion, and answer
// generation.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/fplanalytics/graphrag/internal/cache"
	"github.com/fplanalytics/graphrag/internal/entities"
	"github.com/fplanalytics/graphrag/internal/genai"
	"github.com/fplanalytics/graphrag/internal/graph"
	"github.com/fplanalytics/graphrag/internal/intent"
	"github.com/fplanalytics/graphrag/internal/observability"
	"github.com/fplanalytics/graphrag/internal/prompt"
	"github.com/fplanalytics/graphrag/internal/retrieval"
)

// Retrieval modes.
const (
	ModeBaseline = "baseline"
	ModeSemantic = "semantic"
	ModeHybrid   = "hybrid"
)

// IntentUnclassified marks a query whose intent could not be determined. The
// structured battery is skipped but semantic retrieval still runs.
const IntentUnclassified = "unclassified"

// Classifier determines a query's intent.
type Classifier interface {
	Classify(ctx context.Context, query string) (intent.Tag, error)
}

// Extractor pulls structured entities out of a query.
type Extractor interface {
	Extract(ctx context.Context, query string) (entities.Bag, error)
}

// Options tune one pipeline instance.
type Options struct {
	Mode         string
	TopK         int
	Model        string // embedding model name
	QueryTimeout time.Duration
	CacheResults bool
	CacheTTL     time.Duration
}

// Result is the full outcome of one processed query.
type Result struct {
	Query    string                    `json:"query"`
	Intent   string                    `json:"intent"`
	Entities entities.Bag              `json:"entities"`
	Evidence []retrieval.EvidenceItem  `json:"evidence"`
	Context  string                    `json:"context"`
	Answer   string                    `json:"answer"`
	Cached   bool                      `json:"cached"`
}

// Pipeline wires the stages together. All handles are injected and shared;
// the pipeline itself holds no mutable state between queries.
type Pipeline struct {
	logger     *observability.Logger
	classifier Classifier
	extractor  Extractor
	fallback   Extractor // generative extraction, used when deterministic finds nothing
	structured *retrieval.StructuredRetriever
	semantic   *retrieval.SemanticRetriever
	generator  genai.Generator
	cache      cache.Client
	opts       Options
}

func New(
	logger *observability.Logger,
	classifier Classifier,
	extractor Extractor,
	fallback Extractor,
	structured *retrieval.StructuredRetriever,
	semantic *retrieval.SemanticRetriever,
	generator genai.Generator,
	cacheClient cache.Client,
	opts Options,
) *Pipeline {
	if opts.Mode == "" {
		opts.Mode = ModeHybrid
	}
	if opts.TopK <= 0 {
		opts.TopK = retrieval.DefaultTopK
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 30 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	return &Pipeline{
		logger:     logger.WithComponent("pipeline"),
		classifier: classifier,
		extractor:  extractor,
		fallback:   fallback,
		structured: structured,
		semantic:   semantic,
		generator:  generator,
		cache:      cacheClient,
		opts:       opts,
	}
}

// Process answers one query. No partial result is ever returned: any
// terminal failure or cancellation surfaces as an error instead.
func (p *Pipeline) Process(ctx context.Context, query string) (*Result, error) {
	if cached := p.fromCache(ctx, query); cached != nil {
		return cached, nil
	}

	tag, bag := p.preprocess(ctx, query)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	evidence, err := p.retrieve(ctx, query, bag, tag)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contextBlock := retrieval.SerializeContext(evidence)

	genCtx, cancel := context.WithTimeout(ctx, p.opts.QueryTimeout)
	defer cancel()
	answer, err := p.generator.Generate(genCtx, prompt.Build(query, contextBlock, tag))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	result := &Result{
		Query:    query,
		Intent:   intentLabel(tag),
		Entities: bag,
		Evidence: evidence,
		Context:  contextBlock,
		Answer:   answer,
	}
	p.toCache(ctx, query, result)

	p.logger.Info().
		Str("intent", result.Intent).
		Int("evidence", len(evidence)).
		Msg("Query processed")
	return result, nil
}

// preprocess runs intent classification and entity extraction concurrently;
// neither depends on the other. A classification failure degrades to an
// unclassified outcome, an extraction failure to an empty bag.
func (p *Pipeline) preprocess(ctx context.Context, query string) (intent.Tag, entities.Bag) {
	stageCtx, cancel := context.WithTimeout(ctx, p.opts.QueryTimeout)
	defer cancel()

	var (
		wg  sync.WaitGroup
		tag intent.Tag
		bag entities.Bag
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		t, err := p.classifier.Classify(stageCtx, query)
		if err != nil {
			p.logger.Warn().Err(err).Msg("Intent classification failed, treating query as unclassified")
			return
		}
		tag = t
	}()
	go func() {
		defer wg.Done()
		b, err := p.extractor.Extract(stageCtx, query)
		if err != nil {
			p.logger.Warn().Err(err).Msg("Entity extraction failed, continuing with empty entities")
			b = entities.Bag{}
		}
		if b.IsEmpty() && p.fallback != nil {
			if fb, err := p.fallback.Extract(stageCtx, query); err == nil {
				b = b.Merge(fb)
			} else {
				p.logger.Warn().Err(err).Msg("Generative extraction failed")
			}
		}
		bag = b.Normalize()
	}()
	wg.Wait()

	return tag, bag
}

// retrieve runs the mode's retrieval sources, concurrently where there are
// two, and fuses the outcome.
func (p *Pipeline) retrieve(ctx context.Context, query string, bag entities.Bag, tag intent.Tag) ([]retrieval.EvidenceItem, error) {
	stageCtx, cancel := context.WithTimeout(ctx, p.opts.QueryTimeout)
	defer cancel()

	var (
		wg            sync.WaitGroup
		structured    map[string][]graph.Row
		enriched      []retrieval.Enriched
		hits          []retrieval.Hit
		structuredErr error
		semanticErr   error
	)

	runStructured := p.opts.Mode != ModeSemantic && tag != ""
	runSemantic := p.opts.Mode != ModeBaseline

	if runStructured {
		wg.Add(1)
		go func() {
			defer wg.Done()
			structured, structuredErr = p.structured.Retrieve(stageCtx, bag, tag)
		}()
	}
	if runSemantic {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.opts.Mode == ModeHybrid {
				enriched, semanticErr = p.semantic.AnswerQuery(stageCtx, query, bag, tag, p.opts.Model, p.opts.TopK)
			} else {
				hits, semanticErr = p.semantic.Search(stageCtx, query, p.opts.Model, p.opts.TopK)
			}
		}()
	}
	wg.Wait()

	// An unreachable store is terminal no matter what the other source managed.
	if errors.Is(structuredErr, graph.ErrStoreUnavailable) {
		return nil, structuredErr
	}
	if errors.Is(semanticErr, graph.ErrStoreUnavailable) {
		return nil, semanticErr
	}

	// A single failing source is tolerated as long as the other produced a
	// usable result; both failing is terminal.
	if structuredErr != nil && (!runSemantic || semanticErr != nil) {
		return nil, structuredErr
	}
	if semanticErr != nil && (!runStructured || structuredErr != nil) {
		return nil, semanticErr
	}
	if structuredErr != nil {
		p.logger.Warn().Err(structuredErr).Msg("Structured retrieval failed, using semantic results only")
	}
	if semanticErr != nil {
		p.logger.Warn().Err(semanticErr).Msg("Semantic retrieval failed, using structured results only")
	}

	return retrieval.Combine(structured, enriched, hits), nil
}

func intentLabel(tag intent.Tag) string {
	if tag == "" {
		return IntentUnclassified
	}
	return string(tag)
}

func (p *Pipeline) cacheKey(query string) string {
	h := fnv.New64a()
	h.Write([]byte(query))
	return cache.Key("answer", p.opts.Mode, p.opts.Model, fmt.Sprintf("%x", h.Sum64()))
}

func (p *Pipeline) fromCache(ctx context.Context, query string) *Result {
	if !p.opts.CacheResults || p.cache == nil {
		return nil
	}
	raw, err := p.cache.Get(ctx, p.cacheKey(query))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			p.logger.Warn().Err(err).Msg("Cache read failed")
		}
		return nil
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil
	}
	result.Cached = true
	return &result
}

func (p *Pipeline) toCache(ctx context.Context, query string, result *Result) {
	if !p.opts.CacheResults || p.cache == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, p.cacheKey(query), raw, p.opts.CacheTTL); err != nil {
		p.logger.Warn().Err(err).Msg("Cache write failed")
	}
}
