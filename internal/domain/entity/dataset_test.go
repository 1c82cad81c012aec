package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDataset_InfersTypes(t *testing.T) {
	ds, err := NewDataset("t.csv",
		[]string{"id", "amount", "active", "name", "empty"},
		[][]string{
			{"1", "2.5", "true", "alice", ""},
			{"2", "3", "no", "bob", "NA"},
			{"3", "", "yes", "", ""},
		})
	require.NoError(t, err)

	want := map[string]ColumnType{
		"id":     ColumnInt,
		"amount": ColumnFloat,
		"active": ColumnBool,
		"name":   ColumnString,
		"empty":  ColumnString,
	}
	for name, typ := range want {
		col, ok := ds.Column(name)
		require.True(t, ok, name)
		assert.Equal(t, typ, col.Type, name)
	}

	amount, _ := ds.Column("amount")
	assert.Equal(t, []any{2.5, 3.0, nil}, amount.Values)

	active, _ := ds.Column("active")
	assert.Equal(t, []any{true, false, true}, active.Values)

	assert.Equal(t, 3, ds.NumRows())
	assert.Equal(t, 5, ds.NumCols())
}

func TestNewDataset_NormalizesHeader(t *testing.T) {
	ds, err := NewDataset("t.csv", []string{"\ufeffa", "", "a", " b "}, [][]string{{"1", "2", "3", "4", "extra"}, {"5"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "column_2", "a_1", "b"}, ds.ColumnNames())

	b, _ := ds.Column("b")
	assert.Equal(t, []any{int64(4), nil}, b.Values)
}

func TestNewDataset_NoColumns(t *testing.T) {
	_, err := NewDataset("t.csv", nil, nil)
	assert.Error(t, err)
}

func TestDataset_Summary(t *testing.T) {
	ds, err := NewDataset("sales.csv", []string{"region", "units"}, [][]string{{"north", "1"}, {"south", "2"}})
	require.NoError(t, err)

	assert.Equal(t, "sales.csv: 2 rows x 2 columns (region string, units int)", ds.Summary())
}
