package importer

import (
	"catalog-service/internal/apperrors"
	"catalog-service/internal/models"
)

// KeyFunc extracts the grouping key of a row.
type KeyFunc func(row models.RawRow) (string, error)

// Groups holds rows partitioned by key. Keys keep the order in which they
// were first seen and rows keep their file order within a key.
type Groups struct {
	keys []string
	rows map[string][]models.RawRow
}

func (g *Groups) Keys() []string {
	return g.keys
}

func (g *Groups) Rows(key string) []models.RawRow {
	return g.rows[key]
}

func (g *Groups) Len() int {
	return len(g.keys)
}

// GroupBy partitions rows by keyFn. It fails on the first row whose key cannot
// be extracted, before anything downstream runs.
func GroupBy(rows []models.RawRow, keyFn KeyFunc) (*Groups, error) {
	g := &Groups{rows: make(map[string][]models.RawRow)}
	for i, row := range rows {
		key, err := keyFn(row)
		if err != nil {
			if apperrors.KindOf(err) != "" {
				return nil, err
			}
			return nil, apperrors.Validation("INVALID_GROUP_KEY", "row %d: %v", i+1, err)
		}
		if _, ok := g.rows[key]; !ok {
			g.keys = append(g.keys, key)
		}
		g.rows[key] = append(g.rows[key], row)
	}
	return g, nil
}

// KeyByColumn groups rows by the value of column. A row without the column,
// or with an empty value in it, cannot be grouped.
func KeyByColumn(column string) KeyFunc {
	return func(row models.RawRow) (string, error) {
		value, ok := row[column]
		if !ok {
			return "", apperrors.Validation("MISSING_COLUMN", "grouping column %q is missing", column)
		}
		if value == "" {
			return "", apperrors.Validation("EMPTY_GROUP_KEY", "grouping column %q is empty", column)
		}
		return value, nil
	}
}
