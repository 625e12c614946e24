package importer

import (
	"strings"
	"testing"

	"catalog-service/internal/apperrors"
	"catalog-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupBy_PreservesFirstSeenOrder(t *testing.T) {
	rows := []models.RawRow{
		{"name": "A", "n": "1"},
		{"name": "B", "n": "2"},
		{"name": "A", "n": "3"},
	}

	groups, err := GroupBy(rows, KeyByColumn("name"))

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, groups.Keys())
	assert.Equal(t, 2, groups.Len())
	require.Len(t, groups.Rows("A"), 2)
	assert.Equal(t, "1", groups.Rows("A")[0]["n"])
	assert.Equal(t, "3", groups.Rows("A")[1]["n"])
	assert.Len(t, groups.Rows("B"), 1)
}

func TestGroupBy_MissingColumn(t *testing.T) {
	rows := []models.RawRow{{"name": "A"}, {"title": "B"}}

	_, err := GroupBy(rows, KeyByColumn("name"))

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "MISSING_COLUMN", apperrors.CodeOf(err))
}

func TestGroupBy_EmptyKey(t *testing.T) {
	_, err := GroupBy([]models.RawRow{{"name": ""}}, KeyByColumn("name"))

	assert.Equal(t, "EMPTY_GROUP_KEY", apperrors.CodeOf(err))
}

func TestGroupBy_PlainKeyFuncErrorIsValidation(t *testing.T) {
	keyFn := func(row models.RawRow) (string, error) {
		if row["sku"] == "" {
			return "", assert.AnError
		}
		return strings.ToUpper(row["sku"]), nil
	}

	_, err := GroupBy([]models.RawRow{{"sku": "a"}, {"sku": ""}}, keyFn)

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Contains(t, err.Error(), "row 2")
}

func TestGroupBy_NoRows(t *testing.T) {
	groups, err := GroupBy(nil, KeyByColumn("name"))

	require.NoError(t, err)
	assert.Equal(t, 0, groups.Len())
	assert.Empty(t, groups.Keys())
}
