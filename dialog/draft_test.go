package dialog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iabalyuk/freightbot/storage"
)

func TestFieldDistinguishesUnsetFromZero(t *testing.T) {
	var f Field[int]
	_, ok := f.Get()
	assert.False(t, ok)

	f.Set(0)
	v, ok := f.Get()
	assert.True(t, ok)
	assert.Zero(t, v)
}

func TestCargoDraftBuildReportsMissingFields(t *testing.T) {
	var d CargoDraft
	d.CityFrom.Set("Moscow")
	d.Weight.Set(5)

	_, err := d.Build(1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncompleteDraft))
	assert.Contains(t, err.Error(), "region_from")
	assert.Contains(t, err.Error(), "comment")
	assert.NotContains(t, err.Error(), "city_from,")
}

func TestCargoDraftBuildRejectsReversedRange(t *testing.T) {
	d := completeCargoDraft()
	d.DateTo.Set("2024-05-31")

	_, err := d.Build(1)
	assert.True(t, errors.Is(err, ErrInvalidRange))
}

func TestCargoDraftBuild(t *testing.T) {
	d := completeCargoDraft()
	c, err := d.Build(7)
	require.NoError(t, err)
	assert.Equal(t, storage.Cargo{
		UserID:     7,
		RegionFrom: "Moscow Oblast",
		CityFrom:   "Moscow",
		RegionTo:   "Saint Petersburg Oblast",
		CityTo:     "Saint Petersburg",
		DateFrom:   "2024-06-01",
		DateTo:     "2024-06-05",
		Weight:     12,
		BodyType:   "Тент",
		Comment:    "",
	}, c)
}

func TestTruckDraftBuildRequiresEveryField(t *testing.T) {
	var d TruckDraft
	d.Region.Set("Moscow Oblast")
	_, err := d.Build(1)
	assert.True(t, errors.Is(err, ErrIncompleteDraft))
}

func TestSearchDraftWildcardsBecomeEmptyFilters(t *testing.T) {
	var d CargoSearchDraft
	d.CityFrom.Set(Wildcard())
	d.CityTo.Set(Match("Казань"))
	d.DateFrom.Set(Wildcard())
	d.DateTo.Set(Match("2024-06-30"))

	f, err := d.Build()
	require.NoError(t, err)
	assert.Equal(t, storage.CargoFilter{CityTo: "Казань", DateTo: "2024-06-30"}, f)

	var unasked TruckSearchDraft
	unasked.City.Set(Wildcard())
	_, err = unasked.Build()
	assert.True(t, errors.Is(err, ErrIncompleteDraft))
}

func TestDatesDraftComplete(t *testing.T) {
	var d DatesDraft
	_, _, err := d.Complete()
	assert.True(t, errors.Is(err, ErrIncompleteDraft))

	d.DateFrom.Set("2024-06-02")
	d.DateTo.Set("2024-06-01")
	_, _, err = d.Complete()
	assert.True(t, errors.Is(err, ErrInvalidRange))

	d.DateTo.Set("2024-06-02")
	from, to, err := d.Complete()
	require.NoError(t, err)
	assert.Equal(t, "2024-06-02", from)
	assert.Equal(t, "2024-06-02", to)
}

func completeCargoDraft() *CargoDraft {
	var d CargoDraft
	d.RegionFrom.Set("Moscow Oblast")
	d.CityFrom.Set("Moscow")
	d.RegionTo.Set("Saint Petersburg Oblast")
	d.CityTo.Set("Saint Petersburg")
	d.DateFrom.Set("2024-06-01")
	d.DateTo.Set("2024-06-05")
	d.Weight.Set(12)
	d.BodyType.Set("Тент")
	d.IsLocal.Set(false)
	d.Comment.Set("")
	return &d
}
