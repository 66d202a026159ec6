package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/ev-assistant/internal/cache"
	"github.com/spherical-ai/ev-assistant/internal/dataset"
	"github.com/spherical-ai/ev-assistant/internal/nlu"
	"github.com/spherical-ai/ev-assistant/internal/observability"
	"github.com/spherical-ai/ev-assistant/internal/pricing"
)

var testHeader = []string{"Brand", "Model", "Battery Capacity kWh", "Range km", "Price INR", "Body Style", "Charging Type", "Source URL"}

func twoRowTable(t *testing.T) *dataset.Table {
	t.Helper()
	table, err := dataset.NewTable(testHeader, [][]string{
		{"Tesla", "Model3", "60", "400", "3500000", "Sedan", "CCS", "https://example.com/1"},
		{"Tata", "Nexon", "30", "250", "1500000", "SUV", "CCS", "https://example.com/2"},
	})
	require.NoError(t, err)
	return table
}

func linearModel(t *testing.T) *pricing.Adapter {
	t.Helper()
	adapter, err := pricing.NewAdapter(&pricing.Artifact{
		Kind:      pricing.KindLinearRegression,
		Target:    "price_inr",
		Intercept: 100000,
		Numeric: map[string]float64{
			"battery_capacity_kwh": 40000,
			"range_km":             2000,
		},
		Categorical: map[string]map[string]float64{
			"body_style": {"Sedan": 250000},
		},
	})
	require.NoError(t, err)
	return adapter
}

func newEngine(t *testing.T, table *dataset.Table, pricer Pricer, c cache.Client) *Engine {
	t.Helper()
	e, err := New(Options{Table: table, Pricer: pricer, Cache: c, Logger: observability.NopLogger()})
	require.NoError(t, err)
	return e
}

type recordingPricer struct {
	row   *pricing.FeatureRow
	price float64
	err   error
}

func (p *recordingPricer) Available() bool { return true }

func (p *recordingPricer) Predict(row *pricing.FeatureRow) (float64, error) {
	p.row = row
	return p.price, p.err
}

func TestEngine_EndToEnd(t *testing.T) {
	e := newEngine(t, twoRowTable(t), pricing.Unavailable("missing"), nil)
	ctx := context.Background()

	assert.Equal(t, "- Tesla Model3 – 400 km\n- Tata Nexon – 250 km", e.Respond(ctx, "recommend something"))
	assert.Equal(t, "- Tata Nexon (250 km)", e.Respond(ctx, "EVs under 20 lakh"))

	info := e.Respond(ctx, "tell me about Tata Nexon")
	assert.Equal(t, "### Tata Nexon\n- Battery: 30 kWh\n- Range: 250 km\n- Body: SUV\n- Charging: CCS", info)
}

func TestEngine_Price(t *testing.T) {
	ctx := context.Background()

	t.Run("model unavailable wins over entities", func(t *testing.T) {
		e := newEngine(t, twoRowTable(t), pricing.Unavailable("missing"), nil)
		for _, q := range []string{"price?", "estimate price for 40 kwh and 300 km", "price of tata nexon under 20 lakh"} {
			assert.Equal(t, MsgPriceUnavailable, e.Respond(ctx, q), q)
		}
	})

	t.Run("nil pricer is unavailable", func(t *testing.T) {
		e := newEngine(t, twoRowTable(t), nil, nil)
		assert.Equal(t, MsgPriceUnavailable, e.Respond(ctx, "estimate 40 kwh 300 km"))
	})

	t.Run("missing inputs", func(t *testing.T) {
		e := newEngine(t, twoRowTable(t), linearModel(t), nil)
		assert.Equal(t, MsgPriceMissing, e.Respond(ctx, "what's the price"))
		assert.Equal(t, MsgPriceMissing, e.Respond(ctx, "price for 40 kwh"))
		assert.Equal(t, MsgPriceMissing, e.Respond(ctx, "price for 300 km"))
		assert.Equal(t, MsgPriceMissing, e.Respond(ctx, "price for 0 kwh and 300 km"))
	})

	t.Run("estimate", func(t *testing.T) {
		e := newEngine(t, twoRowTable(t), linearModel(t), nil)
		// body_style ties between Sedan and SUV; the mode is "SUV", which has no coefficient.
		assert.Equal(t, "Estimated Price: **₹2,300,000**", e.Respond(ctx, "estimate price for 40 kwh and 300 km"))
	})

	t.Run("prediction failure", func(t *testing.T) {
		adapter, err := pricing.NewAdapter(&pricing.Artifact{
			Kind:    pricing.KindLinearRegression,
			Numeric: map[string]float64{"seats": 1},
		})
		require.NoError(t, err)
		e := newEngine(t, twoRowTable(t), adapter, nil)
		assert.Equal(t, "Prediction failed: seats: missing feature", e.Respond(ctx, "price 40 kwh 300 km"))
	})

	t.Run("opaque error", func(t *testing.T) {
		e := newEngine(t, twoRowTable(t), &recordingPricer{err: errors.New("boom")}, nil)
		assert.Equal(t, "Prediction failed: boom", e.Respond(ctx, "price 40 kwh 300 km"))
	})
}

func TestEngine_FeatureRow(t *testing.T) {
	table, err := dataset.NewTable(
		[]string{"brand", "model", "battery_capacity_kwh", "range_km", "price_inr", "body_style", "source_url", "seats"},
		[][]string{
			{"Tesla", "Model3", "60", "400", "3500000", "Sedan", "u1", "5"},
			{"Tata", "Nexon", "30", "250", "1500000", "SUV", "u2", "5"},
			{"MG", "ZS", "50", "460", "2500000", "SUV", "u3", "7"},
		},
	)
	require.NoError(t, err)

	p := &recordingPricer{price: 1234567.5}
	e := newEngine(t, table, p, nil)

	assert.Equal(t, "Estimated Price: **₹1,234,568**", e.Respond(context.Background(), "price 45 kwh 320 km"))
	require.NotNil(t, p.row)

	names := make([]string, 0, p.row.Len())
	for _, f := range p.row.Features() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"brand", "model", "battery_capacity_kwh", "range_km", "body_style", "seats"}, names)

	get := func(name string) pricing.Feature {
		f, ok := p.row.Get(name)
		require.True(t, ok, name)
		return f
	}
	assert.Equal(t, 45.0, get("battery_capacity_kwh").Value.Num)
	assert.Equal(t, 320.0, get("range_km").Value.Num)
	assert.Equal(t, "SUV", get("body_style").Value.Str)
	assert.Equal(t, 5.0, get("seats").Value.Num)
	assert.Equal(t, "MG", get("brand").Value.Str, "categorical ties resolve to the smallest value")
}

func TestEngine_Budget(t *testing.T) {
	e := newEngine(t, twoRowTable(t), nil, nil)
	ctx := context.Background()

	assert.Equal(t, MsgBudgetMissing, e.Respond(ctx, "what fits my budget"))
	assert.Equal(t, MsgBudgetMissing, e.Respond(ctx, "under 0 lakh"))
	assert.Equal(t, MsgNoBudgetMatches, e.Respond(ctx, "under 1 lakh"))
	assert.Equal(t, "- Tesla Model3 (400 km)\n- Tata Nexon (250 km)", e.Respond(ctx, "under 2 crore"))
	assert.Equal(t, "- Tata Nexon (250 km)", e.Respond(ctx, "under 15 lakh"), "price equal to the budget matches")
}

func TestEngine_ListsSkipIncompleteRows(t *testing.T) {
	rows := [][]string{
		{"", "Ghost", "70", "900", "100", "SUV", "", ""},
		{"Kia", "EV6", "77", "", "6000000", "SUV", "", ""},
	}
	for i := 0; i < 6; i++ {
		rows = append(rows, []string{"Brand", "M" + string(rune('A'+i)), "40", "300", "1000000", "SUV", "CCS", ""})
	}
	table, err := dataset.NewTable(testHeader, rows)
	require.NoError(t, err)

	e := newEngine(t, table, nil, nil)
	ctx := context.Background()

	rec := strings.Split(e.Respond(ctx, "recommend"), "\n")
	require.Len(t, rec, 5)
	assert.Equal(t, "- Brand MA – 300 km", rec[0], "stable order among equal ranges")
	assert.NotContains(t, strings.Join(rec, "\n"), "Ghost")

	budget := strings.Split(e.Respond(ctx, "under 70 lakh"), "\n")
	require.Len(t, budget, 5)
	assert.Equal(t, "- Kia EV6 (N/A km)", budget[0])
}

func TestEngine_RecommendMissingRangeLast(t *testing.T) {
	table, err := dataset.NewTable(testHeader, [][]string{
		{"Kia", "EV6", "77", "", "6000000", "SUV", "", ""},
		{"Tata", "Nexon", "30", "250", "1500000", "SUV", "", ""},
	})
	require.NoError(t, err)

	e := newEngine(t, table, nil, nil)
	assert.Equal(t, "- Tata Nexon – 250 km\n- Kia EV6 – N/A km", e.Respond(context.Background(), "suggest one"))
}

func TestEngine_Info(t *testing.T) {
	table, err := dataset.NewTable(testHeader, [][]string{
		{"Tesla", "Model3", "60", "400", "3500000", "", "", ""},
		{"Tata", "Nexon", "30.5", "", "1500000", "SUV", "CCS", ""},
	})
	require.NoError(t, err)
	e := newEngine(t, table, nil, nil)
	ctx := context.Background()

	assert.Equal(t, MsgNoModel, e.Respond(ctx, "specs"))
	assert.Equal(t, "### Tesla Model3\n- Battery: 60 kWh\n- Range: 400 km\n- Body: N/A\n- Charging: N/A",
		e.Respond(ctx, "details on the tesla model3"))
	assert.Equal(t, "### Tata Nexon\n- Battery: 30.5 kWh\n- Range: N/A km\n- Body: SUV\n- Charging: CCS",
		e.Respond(ctx, "tata nexon info"))
	assert.Equal(t, MsgModelNotFound, e.info(nlu.Entities{Brand: "Kia", Model: "EV6"}))
}

func TestEngine_Unknown(t *testing.T) {
	e := newEngine(t, twoRowTable(t), nil, nil)
	reply := e.Answer(context.Background(), "hello")
	assert.Equal(t, nlu.IntentUnknown, reply.Intent)
	assert.Equal(t, MsgHelp, reply.Text)
}

func TestEngine_Idempotent(t *testing.T) {
	e := newEngine(t, twoRowTable(t), linearModel(t), nil)
	ctx := context.Background()

	for _, q := range []string{"recommend something", "EVs under 20 lakh", "tell me about Tata Nexon", "price 40 kwh 300 km", "hi"} {
		assert.Equal(t, e.Respond(ctx, q), e.Respond(ctx, q), q)
	}
}

func TestEngine_Cache(t *testing.T) {
	mem := cache.NewMemoryClient(100)
	defer mem.Close()

	e := newEngine(t, twoRowTable(t), linearModel(t), mem)
	ctx := context.Background()

	first := e.Answer(ctx, "EVs under 20 lakh")
	assert.False(t, first.Cached)

	second := e.Answer(ctx, "EVs under 20 lakh")
	assert.True(t, second.Cached)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.Intent, second.Intent)
	assert.Equal(t, first.Entities, second.Entities)

	// A different model state must not reuse replies.
	other := newEngine(t, twoRowTable(t), pricing.Unavailable("x"), mem)
	assert.Equal(t, MsgPriceUnavailable, other.Respond(ctx, "price 40 kwh 300 km"))
	assert.Equal(t, "Estimated Price: **₹2,300,000**", e.Respond(ctx, "price 40 kwh 300 km"))
}

func TestEngine_CorruptCacheEntry(t *testing.T) {
	mem := cache.NewMemoryClient(100)
	defer mem.Close()

	e := newEngine(t, twoRowTable(t), nil, mem)
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, e.cacheKey("hello"), []byte("{not json"), time.Minute))

	reply := e.Answer(ctx, "hello")
	assert.False(t, reply.Cached)
	assert.Equal(t, MsgHelp, reply.Text)

	reply = e.Answer(ctx, "hello")
	assert.True(t, reply.Cached, "the corrupt entry is replaced")
	assert.Equal(t, MsgHelp, reply.Text)
}

func TestEngine_SharedCacheKeepsEnginesApart(t *testing.T) {
	mem := cache.NewMemoryClient(100)
	defer mem.Close()
	ctx := context.Background()
	table := twoRowTable(t)

	cheap := newEngine(t, table, &recordingPricer{price: 1_000_000}, mem)
	dear := newEngine(t, table, &recordingPricer{price: 2_000_000}, mem)
	assert.Equal(t, "Estimated Price: **₹1,000,000**", cheap.Respond(ctx, "price 40 kwh 300 km"))
	assert.Equal(t, "Estimated Price: **₹2,000,000**", dear.Respond(ctx, "price 40 kwh 300 km"))

	refit, err := pricing.NewAdapter(&pricing.Artifact{
		Kind:      pricing.KindLinearRegression,
		Target:    "price_inr",
		Intercept: 200000,
		Numeric: map[string]float64{
			"battery_capacity_kwh": 40000,
			"range_km":             2000,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Estimated Price: **₹2,300,000**", newEngine(t, table, linearModel(t), mem).Respond(ctx, "price 40 kwh 300 km"))
	assert.Equal(t, "Estimated Price: **₹2,400,000**", newEngine(t, table, refit, mem).Respond(ctx, "price 40 kwh 300 km"))

	wide, err := New(Options{Table: table, Cache: mem, ListLimit: 5})
	require.NoError(t, err)
	narrow, err := New(Options{Table: table, Cache: mem, ListLimit: 1})
	require.NoError(t, err)
	assert.Equal(t, "- Tesla Model3 – 400 km\n- Tata Nexon – 250 km", wide.Respond(ctx, "recommend"))
	assert.Equal(t, "- Tesla Model3 – 400 km", narrow.Respond(ctx, "recommend"))
	assert.NotEqual(t, wide.Generation(), narrow.Generation())

	// Equal inputs share replies.
	twin := newEngine(t, table, linearModel(t), mem)
	assert.Equal(t, newEngine(t, table, linearModel(t), mem).Generation(), twin.Generation())
	assert.True(t, twin.Answer(ctx, "price 40 kwh 300 km").Cached)
}

func TestEngine_RetireStaleReplies(t *testing.T) {
	mem := cache.NewMemoryClient(100)
	defer mem.Close()
	ctx := context.Background()
	table := twoRowTable(t)

	old := newEngine(t, table, linearModel(t), mem)
	require.NoError(t, old.RetireStaleReplies(ctx))
	old.Respond(ctx, "recommend")
	old.Respond(ctx, "EVs under 20 lakh")
	require.Equal(t, 3, mem.Len(), "two replies and the generation marker")

	// Same generation: nothing is removed.
	require.NoError(t, newEngine(t, table, linearModel(t), mem).RetireStaleReplies(ctx))
	assert.Equal(t, 3, mem.Len())

	current := newEngine(t, table, pricing.Unavailable("missing"), mem)
	require.NoError(t, current.RetireStaleReplies(ctx))
	assert.Equal(t, 1, mem.Len(), "only the marker remains")

	marker, err := mem.Get(ctx, cache.CacheKey("reply", "generation"))
	require.NoError(t, err)
	assert.Equal(t, current.Generation(), string(marker))
	assert.False(t, current.Answer(ctx, "recommend").Cached)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Options{})
	assert.True(t, errors.Is(err, dataset.ErrDataUnavailable))

	_, err = New(Options{Table: twoRowTable(t), PriceColumn: "msrp"})
	assert.True(t, errors.Is(err, dataset.ErrDataUnavailable))
}

func TestFormatRupees(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{0.4, "0"},
		{2.5, "2"},
		{3.5, "4"},
		{999, "999"},
		{1000, "1,000"},
		{1234567.5, "1,234,568"},
		{2300000, "2,300,000"},
		{-1500, "-1,500"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, FormatRupees(tc.in), "%v", tc.in)
	}
}
