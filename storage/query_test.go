package storage

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestBuildQueryKeepsFragmentAndArgOrder(t *testing.T) {
	query, args := BuildQuery("SELECT 1 WHERE 1=1",
		When(true, " AND a = ?", "a"),
		When(false, " AND b = ?", "b"),
		When(true, " AND c = ?", 3),
		When(true, " AND d = ?", "d"),
	)

	assert.Equal(t, "SELECT 1 WHERE 1=1 AND a = ? AND c = ? AND d = ?", query)
	if diff := cmp.Diff([]any{"a", 3, "d"}, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildQueryWithoutClauses(t *testing.T) {
	query, args := BuildQuery("SELECT 1", When(false, " AND x = ?", 1))
	assert.Equal(t, "SELECT 1", query)
	assert.Empty(t, args)
}

func TestCargoClausesSkipEmptyFilters(t *testing.T) {
	query, args := BuildQuery("", cargoClauses(CargoFilter{CityTo: "Казань", DateTo: "2024-06-30"})...)
	assert.Equal(t, " AND casefold(c.city_to) = casefold(?) AND date(c.date_from) <= date(?)", query)
	assert.Equal(t, []any{"Казань", "2024-06-30"}, args)

	query, args = BuildQuery("", cargoClauses(CargoFilter{})...)
	assert.Empty(t, query)
	assert.Empty(t, args)
}

func TestTruckClauses(t *testing.T) {
	query, args := BuildQuery("", truckClauses(TruckFilter{City: "Москва", DateFrom: "2024-06-01"})...)
	assert.Equal(t, " AND casefold(t.city) = casefold(?) AND date(t.date_from) >= date(?)", query)
	assert.Equal(t, []any{"Москва", "2024-06-01"}, args)
}
