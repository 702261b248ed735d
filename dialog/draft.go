package dialog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iabalyuk/freightbot/storage"
)

var (
	// ErrIncompleteDraft is returned when a draft is finalized before every
	// field was collected.
	ErrIncompleteDraft = errors.New("draft is incomplete")
	// ErrInvalidRange is returned when a draft's end date precedes its start date.
	ErrInvalidRange = errors.New("date range ends before it starts")
)

// Field is a draft value that remembers whether it has been collected.
type Field[T any] struct {
	value T
	set   bool
}

// Set stores v and marks the field collected.
func (f *Field[T]) Set(v T) {
	f.value = v
	f.set = true
}

// Get returns the value and whether it was collected.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.set
}

// IsSet reports whether the field was collected.
func (f Field[T]) IsSet() bool {
	return f.set
}

// Filter is a collected search filter. Any is the wildcard the user picked
// ("Все" or "нет"); it is distinct from a filter that was never asked.
type Filter struct {
	Any   bool
	Value string
}

// Wildcard returns the "do not constrain" filter.
func Wildcard() Filter {
	return Filter{Any: true}
}

// Match returns a filter constraining on v.
func Match(v string) Filter {
	return Filter{Value: v}
}

// sql returns the value to bind, or "" for the wildcard.
func (f Filter) sql() string {
	if f.Any {
		return ""
	}
	return f.Value
}

// checklist collects the names of missing fields.
type checklist []string

func (c *checklist) need(name string, set bool) {
	if !set {
		*c = append(*c, name)
	}
}

func (c checklist) err() error {
	if len(c) == 0 {
		return nil
	}
	return fmt.Errorf("%w: missing %s", ErrIncompleteDraft, strings.Join(c, ", "))
}

func checkRange(from, to string) error {
	if to < from {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange, from, to)
	}
	return nil
}

// RegistrationDraft collects a new user profile.
type RegistrationDraft struct {
	Name  Field[string]
	City  Field[string]
	Phone Field[string]
}

// Build returns the user record for telegramID.
func (d *RegistrationDraft) Build(telegramID int64) (storage.User, error) {
	var missing checklist
	missing.need("name", d.Name.IsSet())
	missing.need("city", d.City.IsSet())
	missing.need("phone", d.Phone.IsSet())
	if err := missing.err(); err != nil {
		return storage.User{}, err
	}
	return storage.User{
		TelegramID: telegramID,
		Name:       d.Name.value,
		City:       d.City.value,
		Phone:      d.Phone.value,
	}, nil
}

// CargoDraft collects a cargo listing.
type CargoDraft struct {
	RegionFrom Field[string]
	CityFrom   Field[string]
	RegionTo   Field[string]
	CityTo     Field[string]
	DateFrom   Field[string]
	DateTo     Field[string]
	Weight     Field[int]
	BodyType   Field[string]
	IsLocal    Field[bool]
	Comment    Field[string]
}

// Build returns the cargo record owned by ownerID.
func (d *CargoDraft) Build(ownerID int64) (storage.Cargo, error) {
	var missing checklist
	missing.need("region_from", d.RegionFrom.IsSet())
	missing.need("city_from", d.CityFrom.IsSet())
	missing.need("region_to", d.RegionTo.IsSet())
	missing.need("city_to", d.CityTo.IsSet())
	missing.need("date_from", d.DateFrom.IsSet())
	missing.need("date_to", d.DateTo.IsSet())
	missing.need("weight", d.Weight.IsSet())
	missing.need("body_type", d.BodyType.IsSet())
	missing.need("is_local", d.IsLocal.IsSet())
	missing.need("comment", d.Comment.IsSet())
	if err := missing.err(); err != nil {
		return storage.Cargo{}, err
	}
	if err := checkRange(d.DateFrom.value, d.DateTo.value); err != nil {
		return storage.Cargo{}, err
	}
	return storage.Cargo{
		UserID:     ownerID,
		RegionFrom: d.RegionFrom.value,
		CityFrom:   d.CityFrom.value,
		RegionTo:   d.RegionTo.value,
		CityTo:     d.CityTo.value,
		DateFrom:   d.DateFrom.value,
		DateTo:     d.DateTo.value,
		Weight:     d.Weight.value,
		BodyType:   d.BodyType.value,
		IsLocal:    d.IsLocal.value,
		Comment:    d.Comment.value,
	}, nil
}

// TruckDraft collects a truck listing.
type TruckDraft struct {
	Region       Field[string]
	City         Field[string]
	DateFrom     Field[string]
	DateTo       Field[string]
	Weight       Field[int]
	BodyType     Field[string]
	Direction    Field[string]
	RouteRegions Field[string]
	Comment      Field[string]
}

// Build returns the truck record owned by ownerID.
func (d *TruckDraft) Build(ownerID int64) (storage.Truck, error) {
	var missing checklist
	missing.need("region", d.Region.IsSet())
	missing.need("city", d.City.IsSet())
	missing.need("date_from", d.DateFrom.IsSet())
	missing.need("date_to", d.DateTo.IsSet())
	missing.need("weight", d.Weight.IsSet())
	missing.need("body_type", d.BodyType.IsSet())
	missing.need("direction", d.Direction.IsSet())
	missing.need("route_regions", d.RouteRegions.IsSet())
	missing.need("comment", d.Comment.IsSet())
	if err := missing.err(); err != nil {
		return storage.Truck{}, err
	}
	if err := checkRange(d.DateFrom.value, d.DateTo.value); err != nil {
		return storage.Truck{}, err
	}
	return storage.Truck{
		UserID:       ownerID,
		Region:       d.Region.value,
		City:         d.City.value,
		DateFrom:     d.DateFrom.value,
		DateTo:       d.DateTo.value,
		Weight:       d.Weight.value,
		BodyType:     d.BodyType.value,
		Direction:    d.Direction.value,
		RouteRegions: d.RouteRegions.value,
		Comment:      d.Comment.value,
	}, nil
}

// CargoSearchDraft collects the cargo search filters.
type CargoSearchDraft struct {
	CityFrom Field[Filter]
	CityTo   Field[Filter]
	DateFrom Field[Filter]
	DateTo   Field[Filter]
}

// Build returns the store filter. Wildcards become unconstrained fields.
func (d *CargoSearchDraft) Build() (storage.CargoFilter, error) {
	var missing checklist
	missing.need("city_from", d.CityFrom.IsSet())
	missing.need("city_to", d.CityTo.IsSet())
	missing.need("date_from", d.DateFrom.IsSet())
	missing.need("date_to", d.DateTo.IsSet())
	if err := missing.err(); err != nil {
		return storage.CargoFilter{}, err
	}
	return storage.CargoFilter{
		CityFrom: d.CityFrom.value.sql(),
		CityTo:   d.CityTo.value.sql(),
		DateFrom: d.DateFrom.value.sql(),
		DateTo:   d.DateTo.value.sql(),
	}, nil
}

// TruckSearchDraft collects the truck search filters.
type TruckSearchDraft struct {
	City     Field[Filter]
	DateFrom Field[Filter]
	DateTo   Field[Filter]
}

func (d *TruckSearchDraft) Build() (storage.TruckFilter, error) {
	var missing checklist
	missing.need("city", d.City.IsSet())
	missing.need("date_from", d.DateFrom.IsSet())
	missing.need("date_to", d.DateTo.IsSet())
	if err := missing.err(); err != nil {
		return storage.TruckFilter{}, err
	}
	return storage.TruckFilter{
		City:     d.City.value.sql(),
		DateFrom: d.DateFrom.value.sql(),
		DateTo:   d.DateTo.value.sql(),
	}, nil
}

// WeightDraft collects a replacement weight.
type WeightDraft struct {
	Weight Field[int]
}

func (d *WeightDraft) Complete() (int, error) {
	var missing checklist
	missing.need("weight", d.Weight.IsSet())
	return d.Weight.value, missing.err()
}

// CargoRouteDraft collects a replacement cargo route.
type CargoRouteDraft struct {
	RegionFrom Field[string]
	CityFrom   Field[string]
	RegionTo   Field[string]
	CityTo     Field[string]
}

func (d *CargoRouteDraft) Complete() (regionFrom, cityFrom, regionTo, cityTo string, err error) {
	var missing checklist
	missing.need("region_from", d.RegionFrom.IsSet())
	missing.need("city_from", d.CityFrom.IsSet())
	missing.need("region_to", d.RegionTo.IsSet())
	missing.need("city_to", d.CityTo.IsSet())
	if err := missing.err(); err != nil {
		return "", "", "", "", err
	}
	return d.RegionFrom.value, d.CityFrom.value, d.RegionTo.value, d.CityTo.value, nil
}

// TruckRouteDraft collects a replacement parking location.
type TruckRouteDraft struct {
	Region Field[string]
	City   Field[string]
}

func (d *TruckRouteDraft) Complete() (region, city string, err error) {
	var missing checklist
	missing.need("region", d.Region.IsSet())
	missing.need("city", d.City.IsSet())
	if err := missing.err(); err != nil {
		return "", "", err
	}
	return d.Region.value, d.City.value, nil
}

// DatesDraft collects a replacement date range.
type DatesDraft struct {
	DateFrom Field[string]
	DateTo   Field[string]
}

func (d *DatesDraft) Complete() (from, to string, err error) {
	var missing checklist
	missing.need("date_from", d.DateFrom.IsSet())
	missing.need("date_to", d.DateTo.IsSet())
	if err := missing.err(); err != nil {
		return "", "", err
	}
	if err := checkRange(d.DateFrom.value, d.DateTo.value); err != nil {
		return "", "", err
	}
	return d.DateFrom.value, d.DateTo.value, nil
}

// TextDraft collects a single free-text value.
type TextDraft struct {
	Text Field[string]
}

func (d *TextDraft) Complete() (string, error) {
	var missing checklist
	missing.need("text", d.Text.IsSet())
	return d.Text.value, missing.err()
}
