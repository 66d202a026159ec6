package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/ev-assistant/internal/cache"
	"github.com/spherical-ai/ev-assistant/internal/config"
	"github.com/spherical-ai/ev-assistant/internal/dataset"
	"github.com/spherical-ai/ev-assistant/internal/observability"
)

const csvFixture = `Brand,Model,Battery Capacity kWh,Range km,Price INR,Body Style,Charging Type,Source URL
Tesla,Model3,60,400,3500000,Sedan,CCS,https://example.com/1
Tata,Nexon,30,250,1500000,SUV,CCS,https://example.com/2
`

const modelFixture = `kind: linear_regression
target: price_inr
intercept: 100000
numeric:
  battery_capacity_kwh: 40000
  range_km: 2000
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "evs.csv")
	modelPath := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(csvPath, []byte(csvFixture), 0o600))
	require.NoError(t, os.WriteFile(modelPath, []byte(modelFixture), 0o600))

	cfg := config.DefaultConfig()
	cfg.Dataset.Path = csvPath
	cfg.Model.Path = modelPath
	return cfg
}

func TestBuild(t *testing.T) {
	app, err := Build(context.Background(), testConfig(t), observability.NopLogger())
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, 2, app.Table.Len())
	assert.True(t, app.Model.Available())
	assert.IsType(t, &cache.MemoryClient{}, app.Cache)
	assert.Equal(t, "Estimated Price: **₹2,300,000**", app.Engine.Respond(context.Background(), "price 40 kwh 300 km"))

	summary := app.Summary(false)
	assert.Equal(t, 2, summary.TotalModels)
	assert.True(t, summary.ModelAvailable)
}

func TestBuild_MissingModelDegrades(t *testing.T) {
	cfg := testConfig(t)
	cfg.Model.Path = filepath.Join(t.TempDir(), "missing.yaml")

	app, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer app.Close()

	assert.False(t, app.Model.Available())
	assert.Equal(t, "Price prediction unavailable (model file missing).", app.Engine.Respond(context.Background(), "price 40 kwh 300 km"))
	assert.Equal(t, "- Tata Nexon (250 km)", app.Engine.Respond(context.Background(), "under 20 lakh"))
}

func TestBuild_MissingDatasetIsFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dataset.Path = filepath.Join(t.TempDir(), "missing.csv")

	_, err := Build(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrDataUnavailable))
}

func TestBuild_UnreachableRedisFallsBack(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Driver = "redis"
	cfg.Cache.Redis.Addr = "127.0.0.1:1"

	app, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer app.Close()

	assert.IsType(t, cache.NopClient{}, app.Cache)
	assert.NotEmpty(t, app.Engine.Respond(context.Background(), "recommend"))
}

func TestBuild_SQLiteSource(t *testing.T) {
	cfg := testConfig(t)

	table, err := dataset.NewLoader(dataset.CSVSource{Path: cfg.Dataset.Path}, nil).Load(context.Background())
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "ev.db")
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	require.NoError(t, dataset.WriteSQL(context.Background(), db, dataset.DialectSQLite, "vehicles", table, nil))
	require.NoError(t, db.Close())

	cfg.Dataset.Source = "sqlite"
	cfg.Dataset.Path = dbPath
	cfg.Dataset.Table = "vehicles"

	app, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, table.Fingerprint(), app.Table.Fingerprint())
	assert.Equal(t, "- Tesla Model3 – 400 km\n- Tata Nexon – 250 km", app.Engine.Respond(context.Background(), "recommend"))
}

func TestBuild_RetiresRepliesOfReplacedModel(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Cache.Driver = "redis"
	cfg.Cache.Redis.Addr = mr.Addr()
	ctx := context.Background()

	first, err := Build(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "Estimated Price: **₹2,300,000**", first.Engine.Respond(ctx, "price 40 kwh 300 km"))
	require.NoError(t, first.Close())
	stale := "ev:reply:" + first.Engine.Generation() + ":"

	refit := strings.Replace(modelFixture, "intercept: 100000", "intercept: 200000", 1)
	require.NoError(t, os.WriteFile(cfg.Model.Path, []byte(refit), 0o600))

	second, err := Build(ctx, cfg, nil)
	require.NoError(t, err)
	defer second.Close()
	require.NotEqual(t, first.Engine.Generation(), second.Engine.Generation())

	for _, k := range mr.Keys() {
		assert.False(t, strings.HasPrefix(k, stale), "stale reply %s kept", k)
	}
	generation, err := mr.Get("ev:reply:generation")
	require.NoError(t, err)
	assert.Equal(t, second.Engine.Generation(), generation)

	reply := second.Engine.Answer(ctx, "price 40 kwh 300 km")
	assert.False(t, reply.Cached)
	assert.Equal(t, "Estimated Price: **₹2,400,000**", reply.Text)
}
