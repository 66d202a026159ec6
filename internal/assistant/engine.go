// Package assistant answers EV questions by dispatching on intent and
// entities to a dataset query or a price prediction.
package assistant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spherical-ai/ev-assistant/internal/cache"
	"github.com/spherical-ai/ev-assistant/internal/dataset"
	"github.com/spherical-ai/ev-assistant/internal/metrics"
	"github.com/spherical-ai/ev-assistant/internal/nlu"
	"github.com/spherical-ai/ev-assistant/internal/observability"
	"github.com/spherical-ai/ev-assistant/internal/pricing"
)

// Pricer predicts a price from a feature row.
type Pricer interface {
	Available() bool
	Predict(row *pricing.FeatureRow) (float64, error)
}

// Options configures an Engine.
type Options struct {
	Table  *dataset.Table
	Pricer Pricer
	Cache  cache.Client
	Logger *observability.Logger

	CacheTTL          time.Duration
	FuzzyCutoff       float64
	ListLimit         int
	PriceColumn       string
	IdentifierColumns []string
}

// Reply is the outcome of one message.
type Reply struct {
	Intent   nlu.Intent   `json:"intent"`
	Entities nlu.Entities `json:"entities"`
	Text     string       `json:"text"`
	Cached   bool         `json:"-"`
}

// Engine is the query engine. It holds no mutable state after New and is
// safe for concurrent use.
type Engine struct {
	table      *dataset.Table
	pricer     Pricer
	cache      cache.Client
	cacheTTL   time.Duration
	logger     *observability.Logger
	classifier *nlu.IntentClassifier
	extractor  *nlu.Extractor
	catalog    *nlu.CatalogMatcher
	baseline   []pricing.Feature
	limit      int
	priceCol   string
	generation string
}

// New builds an engine over an immutable table and price model.
func New(opts Options) (*Engine, error) {
	if opts.Table == nil {
		return nil, fmt.Errorf("%w: no table", dataset.ErrDataUnavailable)
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NopClient{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.FuzzyCutoff <= 0 {
		opts.FuzzyCutoff = nlu.DefaultCutoff
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = 5
	}
	if opts.PriceColumn == "" {
		opts.PriceColumn = dataset.ColPrice
	}
	if opts.IdentifierColumns == nil {
		opts.IdentifierColumns = []string{"source_url"}
	}
	if !opts.Table.HasColumn(opts.PriceColumn) {
		return nil, fmt.Errorf("%w: price column %q not found", dataset.ErrDataUnavailable, opts.PriceColumn)
	}

	e := &Engine{
		table:      opts.Table,
		pricer:     opts.Pricer,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		logger:     opts.Logger.WithComponent("assistant"),
		classifier: nlu.NewIntentClassifier(),
		extractor:  nlu.NewExtractor(opts.FuzzyCutoff),
		catalog:    nlu.NewCatalogMatcher(opts.Table, opts.FuzzyCutoff),
		limit:      opts.ListLimit,
		priceCol:   opts.PriceColumn,
	}
	e.baseline = buildBaseline(opts.Table, opts.PriceColumn, opts.IdentifierColumns)
	e.generation = replyGeneration(opts, pricerFingerprint(opts.Pricer))

	return e, nil
}

// fingerprinter is implemented by pricers that can identify their model.
type fingerprinter interface {
	Fingerprint() string
}

func pricerFingerprint(p Pricer) string {
	if p == nil || !p.Available() {
		return "none"
	}
	if f, ok := p.(fingerprinter); ok && f.Fingerprint() != "" {
		return f.Fingerprint()
	}
	return fmt.Sprintf("%T@%p", p, p)
}

// replyGeneration hashes every input besides the message that shapes a reply.
func replyGeneration(opts Options, model string) string {
	h := sha256.New()
	for _, part := range []string{
		opts.Table.Fingerprint(),
		model,
		strconv.Itoa(opts.ListLimit),
		strconv.FormatFloat(opts.FuzzyCutoff, 'g', -1, 64),
		opts.PriceColumn,
		strings.Join(opts.IdentifierColumns, ","),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// Generation identifies the dataset, price model and options behind cached
// replies. Engines with equal generations give equal replies.
func (e *Engine) Generation() string {
	return e.generation
}

// Table returns the dataset the engine answers from.
func (e *Engine) Table() *dataset.Table {
	return e.table
}

// ModelAvailable reports whether price predictions can be served.
func (e *Engine) ModelAvailable() bool {
	return e.pricer != nil && e.pricer.Available()
}

// Respond returns the reply text for a message.
func (e *Engine) Respond(ctx context.Context, text string) string {
	return e.Answer(ctx, text).Text
}

// Answer classifies and answers a message. The context only bounds the
// cache round trip.
func (e *Engine) Answer(ctx context.Context, text string) Reply {
	start := time.Now()
	key := e.cacheKey(text)

	if reply, ok := e.lookup(ctx, key); ok {
		metrics.ObserveReply(string(reply.Intent), time.Since(start))
		return reply
	}

	reply := e.answer(text)
	e.store(ctx, key, reply)

	metrics.ObserveReply(string(reply.Intent), time.Since(start))
	e.logger.WithContext(ctx).Debug().
		Str("intent", string(reply.Intent)).
		Bool("vehicle", reply.Entities.HasVehicle()).
		Dur("duration", time.Since(start)).
		Msg("Answered message")

	return reply
}

func (e *Engine) answer(text string) Reply {
	intent := e.classifier.Classify(text)
	ents := e.extractor.ExtractWithCatalog(text, e.catalog)

	var out string
	switch intent {
	case nlu.IntentPrice:
		out = e.price(ents)
	case nlu.IntentBudget:
		out = e.budget(ents)
	case nlu.IntentRecommend:
		out = e.recommend()
	case nlu.IntentInfo:
		out = e.info(ents)
	default:
		out = MsgHelp
	}

	return Reply{Intent: intent, Entities: ents, Text: out}
}

func (e *Engine) price(ents nlu.Entities) string {
	if !e.ModelAvailable() {
		metrics.PredictionsTotal.WithLabelValues(metrics.OutcomeUnavailable).Inc()
		return MsgPriceUnavailable
	}
	if !present(ents.Battery) || !present(ents.Range) {
		metrics.PredictionsTotal.WithLabelValues(metrics.OutcomeMissingInput).Inc()
		return MsgPriceMissing
	}

	row := e.featureRow(*ents.Battery, *ents.Range)
	price, err := e.pricer.Predict(row)
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		e.logger.Warn().Err(err).Msg("Price prediction failed")
		return "Prediction failed: " + predictionReason(err)
	}

	metrics.PredictionsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	return fmt.Sprintf("Estimated Price: **₹%s**", FormatRupees(price))
}

func predictionReason(err error) string {
	var perr *pricing.PredictionError
	if errors.As(err, &perr) {
		return perr.Error()
	}
	return err.Error()
}

func (e *Engine) budget(ents nlu.Entities) string {
	if !present(ents.Budget) {
		return MsgBudgetMissing
	}
	limit := *ents.Budget

	var lines []string
	for i := 0; i < e.table.Len() && len(lines) < e.limit; i++ {
		price, ok := e.table.Float(i, e.priceCol)
		if !ok || price > limit || !e.surfaceable(i) {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s %s (%s km)",
			e.table.String(i, dataset.ColBrand),
			e.table.String(i, dataset.ColModel),
			orNA(e.table.Value(i, dataset.ColRange))))
	}

	if len(lines) == 0 {
		return MsgNoBudgetMatches
	}
	return strings.Join(lines, "\n")
}

func (e *Engine) recommend() string {
	rows := make([]int, 0, e.table.Len())
	for i := 0; i < e.table.Len(); i++ {
		if e.surfaceable(i) {
			rows = append(rows, i)
		}
	}

	sort.SliceStable(rows, func(a, b int) bool {
		ra, okA := e.table.Float(rows[a], dataset.ColRange)
		rb, okB := e.table.Float(rows[b], dataset.ColRange)
		if okA != okB {
			return okA
		}
		return ra > rb
	})

	if len(rows) > e.limit {
		rows = rows[:e.limit]
	}
	if len(rows) == 0 {
		return MsgNoRecommendation
	}

	lines := make([]string, len(rows))
	for n, i := range rows {
		lines[n] = fmt.Sprintf("- %s %s – %s km",
			e.table.String(i, dataset.ColBrand),
			e.table.String(i, dataset.ColModel),
			orNA(e.table.Value(i, dataset.ColRange)))
	}
	return strings.Join(lines, "\n")
}

func (e *Engine) info(ents nlu.Entities) string {
	if !ents.HasVehicle() {
		return MsgNoModel
	}

	for i := 0; i < e.table.Len(); i++ {
		if e.table.String(i, dataset.ColBrand) != ents.Brand || e.table.String(i, dataset.ColModel) != ents.Model {
			continue
		}
		return fmt.Sprintf("### %s %s\n- Battery: %s kWh\n- Range: %s km\n- Body: %s\n- Charging: %s",
			ents.Brand, ents.Model,
			orNA(e.table.Value(i, dataset.ColBattery)),
			orNA(e.table.Value(i, dataset.ColRange)),
			orNA(e.table.Value(i, dataset.ColBodyStyle)),
			orNA(e.table.Value(i, dataset.ColChargingType)))
	}

	return MsgModelNotFound
}

// surfaceable reports whether a row has both a brand and a model.
func (e *Engine) surfaceable(i int) bool {
	return strings.TrimSpace(e.table.String(i, dataset.ColBrand)) != "" &&
		strings.TrimSpace(e.table.String(i, dataset.ColModel)) != ""
}

// present treats nil and zero as absent.
func present(v *float64) bool {
	return v != nil && *v != 0
}

type cachedReply struct {
	Intent   nlu.Intent   `json:"intent"`
	Entities nlu.Entities `json:"entities"`
	Text     string       `json:"text"`
}

const replyNamespace = "reply"

func (e *Engine) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return cache.CacheKey(replyNamespace, e.generation, hex.EncodeToString(sum[:16]))
}

// RetireStaleReplies removes replies cached by an engine of a different
// generation and records this engine's generation as current.
func (e *Engine) RetireStaleReplies(ctx context.Context) error {
	logger := e.logger.WithOperation("retire_replies")
	marker := cache.CacheKey(replyNamespace, "generation")

	prev, err := e.cache.Get(ctx, marker)
	switch {
	case err == nil && string(prev) != e.generation:
		if err := e.cache.DeleteByPrefix(ctx, cache.CacheKey(replyNamespace, string(prev), "")); err != nil {
			return fmt.Errorf("retire replies of generation %s: %w", prev, err)
		}
		logger.Info().
			Str("previous", string(prev)).
			Str("current", e.generation).
			Msg("Retired cached replies of previous generation")
	case err != nil && !errors.Is(err, cache.ErrCacheMiss):
		return fmt.Errorf("read reply generation: %w", err)
	}

	if err := e.cache.Set(ctx, marker, []byte(e.generation), e.cacheTTL); err != nil {
		return fmt.Errorf("record reply generation: %w", err)
	}
	return nil
}

func (e *Engine) lookup(ctx context.Context, key string) (Reply, bool) {
	data, err := e.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			e.logger.Warn().Err(err).Msg("Reply cache lookup failed")
		}
		metrics.ObserveCache(false)
		return Reply{}, false
	}

	var cr cachedReply
	if err := json.Unmarshal(data, &cr); err != nil {
		e.logger.Warn().Err(err).Msg("Discarding corrupt cached reply")
		if err := e.cache.Delete(ctx, key); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to delete corrupt cached reply")
		}
		metrics.ObserveCache(false)
		return Reply{}, false
	}

	metrics.ObserveCache(true)
	return Reply{Intent: cr.Intent, Entities: cr.Entities, Text: cr.Text, Cached: true}, true
}

func (e *Engine) store(ctx context.Context, key string, r Reply) {
	data, err := json.Marshal(cachedReply{Intent: r.Intent, Entities: r.Entities, Text: r.Text})
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to encode reply for cache")
		return
	}
	if err := e.cache.Set(ctx, key, data, e.cacheTTL); err != nil {
		e.logger.Warn().Err(err).Msg("Reply cache write failed")
	}
}
