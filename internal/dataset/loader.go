package dataset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spherical-ai/ev-assistant/internal/observability"
)

// Source produces the raw header and rows of the dataset.
type Source interface {
	// Name describes the source for logs.
	Name() string
	// Read returns the header and the raw cell values of every row.
	Read(ctx context.Context) (header []string, rows [][]string, err error)
}

// Loader reads a Source at most once and caches the resulting table.
type Loader struct {
	source Source
	logger *observability.Logger

	once  sync.Once
	table *Table
	err   error
}

// NewLoader creates a loader for the given source.
func NewLoader(source Source, logger *observability.Logger) *Loader {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Loader{source: source, logger: logger.WithComponent("dataset")}
}

// Load reads the source on the first call. Later calls return the same
// table and error without touching storage again.
func (l *Loader) Load(ctx context.Context) (*Table, error) {
	l.once.Do(func() {
		l.table, l.err = l.load(ctx)
	})
	return l.table, l.err
}

func (l *Loader) load(ctx context.Context) (*Table, error) {
	if l.source == nil {
		return nil, fmt.Errorf("%w: no source configured", ErrDataUnavailable)
	}

	logger := l.logger.With().Str("source", l.source.Name()).Logger()
	start := time.Now()
	header, rows, err := l.source.Read(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read dataset")
		if errors.Is(err, ErrDataUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrDataUnavailable, l.source.Name(), err)
	}

	table, err := NewTable(header, rows)
	if err != nil {
		logger.Error().Err(err).Msg("Dataset rejected")
		return nil, err
	}

	logger.Info().
		Int("rows", table.Len()).
		Int("columns", len(table.Columns())).
		Str("fingerprint", table.Fingerprint()).
		Dur("duration", time.Since(start)).
		Msg("Dataset loaded")

	return table, nil
}
