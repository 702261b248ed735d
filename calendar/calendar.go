// Package calendar renders an inline month grid and decodes its button
// tokens. It is stateless: the caller keeps the displayed month and the
// skip flag and re-renders after navigation.
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Prefix starts every calendar token.
const Prefix = "cal:"

const (
	noopData = Prefix + "noop"
	skipData = Prefix + "skip"
	navTag   = "nav:"
	dayTag   = "day:"

	// SkipText labels the optional "no date" button.
	SkipText = "Нет"
)

// ErrInvalidToken is returned for data that is not a well-formed calendar token.
var ErrInvalidToken = errors.New("calendar: invalid token")

var monthNames = [...]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

var weekdayNames = [...]string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}

// Button is one selectable (or inert) cell of the grid.
type Button struct {
	Text string
	Data string
}

// Action says what a token asks for.
type Action int

const (
	ActionNoop Action = iota
	ActionNavigate
	ActionSelect
	ActionSkip
)

// Token is a decoded calendar button.
type Token struct {
	Action Action
	Year   int
	Month  time.Month
	Day    int // only for ActionSelect
}

// Date returns the selected day for ActionSelect tokens.
func (t Token) Date() time.Time {
	return time.Date(t.Year, t.Month, t.Day, 0, 0, 0, 0, time.UTC)
}

// IsToken reports whether data belongs to the calendar protocol.
func IsToken(data string) bool {
	return strings.HasPrefix(data, Prefix)
}

// Shift moves year/month by delta months, carrying across year boundaries:
// January - 1 is December of the previous year.
func Shift(year int, month time.Month, delta int) (int, time.Month) {
	m := int(month) - 1 + delta
	year += floorDiv(m, 12)
	m -= floorDiv(m, 12) * 12
	return year, time.Month(m + 1)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// NavigateData encodes a jump to year/month.
func NavigateData(year int, month time.Month) string {
	return fmt.Sprintf("%s%s%04d-%02d", Prefix, navTag, year, int(month))
}

// SelectData encodes the choice of a single day.
func SelectData(day time.Time) string {
	return Prefix + dayTag + day.Format("2006-01-02")
}

// Render builds the grid for year/month: a navigation row, a weekday header,
// one row per week (Monday first) and, when includeSkip is set, a final row
// with the skip button.
func Render(year int, month time.Month, includeSkip bool) [][]Button {
	year, month = Shift(year, month, 0)
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)

	prevYear, prevYearMonth := Shift(year, month, -12)
	prevMonthYear, prevMonth := Shift(year, month, -1)
	nextMonthYear, nextMonth := Shift(year, month, 1)
	nextYear, nextYearMonth := Shift(year, month, 12)

	rows := [][]Button{{
		{Text: "«", Data: NavigateData(prevYear, prevYearMonth)},
		{Text: "‹", Data: NavigateData(prevMonthYear, prevMonth)},
		{Text: fmt.Sprintf("%s %d", monthNames[month-1], year), Data: noopData},
		{Text: "›", Data: NavigateData(nextMonthYear, nextMonth)},
		{Text: "»", Data: NavigateData(nextYear, nextYearMonth)},
	}}

	header := make([]Button, 0, len(weekdayNames))
	for _, name := range weekdayNames {
		header = append(header, Button{Text: name, Data: noopData})
	}
	rows = append(rows, header)

	// Monday = 0 ... Sunday = 6
	offset := (int(first.Weekday()) + 6) % 7
	days := first.AddDate(0, 1, -1).Day()

	week := make([]Button, 0, 7)
	for i := 0; i < offset; i++ {
		week = append(week, Button{Text: " ", Data: noopData})
	}
	for d := 1; d <= days; d++ {
		day := time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
		week = append(week, Button{Text: strconv.Itoa(d), Data: SelectData(day)})
		if len(week) == 7 {
			rows = append(rows, week)
			week = make([]Button, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, Button{Text: " ", Data: noopData})
		}
		rows = append(rows, week)
	}

	if includeSkip {
		rows = append(rows, []Button{{Text: SkipText, Data: skipData}})
	}
	return rows
}

// ParseToken decodes a calendar token.
func ParseToken(data string) (Token, error) {
	if !IsToken(data) {
		return Token{}, ErrInvalidToken
	}
	body := strings.TrimPrefix(data, Prefix)
	switch {
	case data == noopData:
		return Token{Action: ActionNoop}, nil
	case data == skipData:
		return Token{Action: ActionSkip}, nil
	case strings.HasPrefix(body, navTag):
		t, err := time.Parse("2006-01", strings.TrimPrefix(body, navTag))
		if err != nil {
			return Token{}, fmt.Errorf("%w: %q", ErrInvalidToken, data)
		}
		return Token{Action: ActionNavigate, Year: t.Year(), Month: t.Month()}, nil
	case strings.HasPrefix(body, dayTag):
		t, err := time.Parse("2006-01-02", strings.TrimPrefix(body, dayTag))
		if err != nil {
			return Token{}, fmt.Errorf("%w: %q", ErrInvalidToken, data)
		}
		return Token{Action: ActionSelect, Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
	}
	return Token{}, fmt.Errorf("%w: %q", ErrInvalidToken, data)
}
