package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
)

// CSVSource reads the dataset from a CSV file with a header row.
type CSVSource struct {
	Path string
}

// Name implements Source.
func (s CSVSource) Name() string {
	return "csv:" + s.Path
}

// Read implements Source.
func (s CSVSource) Read(ctx context.Context) ([]string, [][]string, error) {
	file, err := os.Open(s.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%w: %s is empty", ErrDataUnavailable, s.Path)
	}

	return records[0], records[1:], nil
}
