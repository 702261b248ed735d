package dialog

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/iabalyuk/freightbot/validate"
)

// InputMode selects how a step is presented.
type InputMode int

const (
	ModeText InputMode = iota
	ModeCalendar
	ModeContact
)

// Rejection is a recoverable validation failure carrying the text shown
// above the re-asked prompt.
type Rejection struct {
	Message string
}

func (r *Rejection) Error() string {
	return r.Message
}

func reject(msg string) error {
	return &Rejection{Message: msg}
}

func rejectf(format string, args ...any) error {
	return &Rejection{Message: fmt.Sprintf(format, args...)}
}

// step is one field of a workflow over draft type D.
type step[D any] struct {
	name      string
	prompt    string
	mode      InputMode
	skippable bool
	// options builds the reply keyboard, nil for none.
	options func(ctx context.Context, e *Engine, d *D) ([]string, error)
	// accept validates raw and stores it in the draft. It returns a
	// *Rejection for bad input and errCorrupt when the draft lacks a
	// value the step depends on.
	accept func(e *Engine, d *D, raw string) error
}

func staticOptions[D any](values ...string) func(context.Context, *Engine, *D) ([]string, error) {
	return func(context.Context, *Engine, *D) ([]string, error) {
		return values, nil
	}
}

func isNo(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), noWord)
}

// textStep collects free text. Optional steps store "" for "нет".
func textStep[D any](name, prompt string, optional bool, field func(*D) *Field[string]) step[D] {
	return step[D]{
		name:   name,
		prompt: prompt,
		accept: func(_ *Engine, d *D, raw string) error {
			text := strings.TrimSpace(raw)
			if optional && isNo(text) {
				text = ""
			}
			if !optional && text == "" {
				return reject(msgEmpty)
			}
			field(d).Set(text)
			return nil
		},
	}
}

func regionStep[D any](name, prompt string, field func(*D) *Field[string]) step[D] {
	return step[D]{
		name:   name,
		prompt: prompt,
		options: func(_ context.Context, e *Engine, _ *D) ([]string, error) {
			return e.catalog.RegionNames(), nil
		},
		accept: func(e *Engine, d *D, raw string) error {
			text := strings.TrimSpace(raw)
			if !e.catalog.HasRegion(text) {
				return reject(msgPickRegion)
			}
			field(d).Set(text)
			return nil
		},
	}
}

// cityStep offers the cities of the region collected by an earlier step.
func cityStep[D any](name, prompt string, region, field func(*D) *Field[string]) step[D] {
	return step[D]{
		name:   name,
		prompt: prompt,
		options: func(_ context.Context, e *Engine, d *D) ([]string, error) {
			r, ok := region(d).Get()
			if !ok {
				return nil, fmt.Errorf("%w: %s without region", errCorrupt, name)
			}
			return e.catalog.Cities(r), nil
		},
		accept: func(e *Engine, d *D, raw string) error {
			r, ok := region(d).Get()
			if !ok {
				return fmt.Errorf("%w: %s without region", errCorrupt, name)
			}
			text := strings.TrimSpace(raw)
			if !e.catalog.HasCity(r, text) {
				return reject(msgPickCity)
			}
			field(d).Set(text)
			return nil
		},
	}
}

// dateStep collects a mandatory date. When lower is given the date must not
// precede the value it points to.
func dateStep[D any](name, prompt string, field, lower func(*D) *Field[string], rangeMsg string) step[D] {
	return step[D]{
		name:   name,
		prompt: prompt,
		mode:   ModeCalendar,
		accept: func(_ *Engine, d *D, raw string) error {
			iso, ok := validate.ParseDate(raw)
			if !ok {
				return reject(msgBadDate)
			}
			if lower != nil {
				from, ok := lower(d).Get()
				if !ok {
					return fmt.Errorf("%w: %s without lower bound", errCorrupt, name)
				}
				if iso < from {
					return reject(rangeMsg)
				}
			}
			field(d).Set(iso)
			return nil
		},
	}
}

func weightStep[D any](name, prompt, invalid string, field func(*D) *Field[int]) step[D] {
	return step[D]{
		name:   name,
		prompt: prompt,
		accept: func(e *Engine, d *D, raw string) error {
			ok, w := validate.Weight(raw, e.maxWeight)
			if !ok {
				return rejectf(invalid, e.maxWeight)
			}
			field(d).Set(w)
			return nil
		},
	}
}

// choiceStep accepts exactly one of choices.
func choiceStep[D any](name, prompt string, choices []string, invalid string, field func(*D) *Field[string]) step[D] {
	return step[D]{
		name:    name,
		prompt:  prompt,
		options: staticOptions[D](choices...),
		accept: func(_ *Engine, d *D, raw string) error {
			text := strings.TrimSpace(raw)
			if !slices.Contains(choices, text) {
				return reject(invalid)
			}
			field(d).Set(text)
			return nil
		},
	}
}

// bodyTypeStep is shared by the cargo and truck flows; they differ only in
// the label of the "any body" option.
func bodyTypeStep[D any](prompt, anyOption, invalid string, field func(*D) *Field[string]) step[D] {
	choices := append(slices.Clone(BodyTypes), anyOption)
	return choiceStep("body_type", prompt, choices, invalid, field)
}

// localityStep accepts anything containing "да" or "нет".
func localityStep[D any](field func(*D) *Field[bool]) step[D] {
	return step[D]{
		name:    "is_local",
		prompt:  "Внутригородской груз?",
		options: staticOptions[D](localYes, localNo),
		accept: func(_ *Engine, d *D, raw string) error {
			text := strings.ToLower(raw)
			switch {
			case strings.Contains(text, "да"):
				field(d).Set(true)
			case strings.Contains(text, noWord):
				field(d).Set(false)
			default:
				return reject(msgLocal)
			}
			return nil
		},
	}
}

// phoneStep accepts a shared contact or a typed number.
func phoneStep[D any](name, prompt string, field func(*D) *Field[string]) step[D] {
	return step[D]{
		name:   name,
		prompt: prompt,
		mode:   ModeContact,
		accept: func(_ *Engine, d *D, raw string) error {
			phone := strings.TrimSpace(raw)
			if !validate.Phone(phone) {
				return reject(msgPhone)
			}
			field(d).Set(phone)
			return nil
		},
	}
}

// cityFilterStep offers the cities present in the listings plus "Все".
func cityFilterStep[D any](name, prompt string, source func(context.Context, *Engine) ([]string, error), field func(*D) *Field[Filter]) step[D] {
	return step[D]{
		name:   name,
		prompt: prompt,
		options: func(ctx context.Context, e *Engine, _ *D) ([]string, error) {
			cities, err := source(ctx, e)
			if err != nil {
				return nil, err
			}
			return append(slices.Clone(cities), anyCity), nil
		},
		accept: func(_ *Engine, d *D, raw string) error {
			text := strings.TrimSpace(raw)
			switch {
			case text == "":
				return reject(msgEmptyCity)
			case strings.EqualFold(text, anyCity):
				field(d).Set(Wildcard())
			default:
				field(d).Set(Match(text))
			}
			return nil
		},
	}
}

// dateFilterStep collects an optional date bound; "нет" or the calendar
// skip button yields the wildcard.
func dateFilterStep[D any](name, prompt string, field, lower func(*D) *Field[Filter]) step[D] {
	return step[D]{
		name:      name,
		prompt:    prompt,
		mode:      ModeCalendar,
		skippable: true,
		accept: func(_ *Engine, d *D, raw string) error {
			if isNo(raw) {
				field(d).Set(Wildcard())
				return nil
			}
			iso, ok := validate.ParseDate(raw)
			if !ok {
				return reject(msgBadFilterDate)
			}
			if lower != nil {
				from, ok := lower(d).Get()
				if !ok {
					return fmt.Errorf("%w: %s without lower bound", errCorrupt, name)
				}
				if !from.Any && iso < from.Value {
					return reject(msgFilterRange)
				}
			}
			field(d).Set(Match(iso))
			return nil
		},
	}
}
