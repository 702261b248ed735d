package storage

import "strings"

// Clause is an optional predicate: Fragment is appended and Arg bound only
// when Present is set.
type Clause struct {
	Present  bool
	Fragment string
	Arg      any
}

// When builds a Clause.
func When(present bool, fragment string, arg any) Clause {
	return Clause{Present: present, Fragment: fragment, Arg: arg}
}

// BuildQuery appends the fragments of the present clauses to base and
// returns the positional arguments in the same order.
func BuildQuery(base string, clauses ...Clause) (string, []any) {
	var b strings.Builder
	b.WriteString(base)
	args := make([]any, 0, len(clauses))
	for _, c := range clauses {
		if !c.Present {
			continue
		}
		b.WriteString(c.Fragment)
		args = append(args, c.Arg)
	}
	return b.String(), args
}

func cargoClauses(f CargoFilter) []Clause {
	return []Clause{
		When(f.CityFrom != "", " AND casefold(c.city_from) = casefold(?)", f.CityFrom),
		When(f.CityTo != "", " AND casefold(c.city_to) = casefold(?)", f.CityTo),
		When(f.DateFrom != "", " AND date(c.date_from) >= date(?)", f.DateFrom),
		When(f.DateTo != "", " AND date(c.date_from) <= date(?)", f.DateTo),
	}
}

func truckClauses(f TruckFilter) []Clause {
	return []Clause{
		When(f.City != "", " AND casefold(t.city) = casefold(?)", f.City),
		When(f.DateFrom != "", " AND date(t.date_from) >= date(?)", f.DateFrom),
		When(f.DateTo != "", " AND date(t.date_from) <= date(?)", f.DateTo),
	}
}
