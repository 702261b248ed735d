package dialog

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

// WorkflowID names a workflow.
type WorkflowID string

const (
	Registration WorkflowID = "registration"
	CargoAdd     WorkflowID = "cargo_add"
	TruckAdd     WorkflowID = "truck_add"
	CargoSearch  WorkflowID = "cargo_search"
	TruckSearch  WorkflowID = "truck_search"

	ProfileName  WorkflowID = "profile_name"
	ProfileCity  WorkflowID = "profile_city"
	ProfilePhone WorkflowID = "profile_phone"

	CargoWeight WorkflowID = "cargo_weight"
	CargoRoute  WorkflowID = "cargo_route"
	CargoDates  WorkflowID = "cargo_dates"

	TruckWeight  WorkflowID = "truck_weight"
	TruckRoute   WorkflowID = "truck_route"
	TruckDates   WorkflowID = "truck_dates"
	TruckRegions WorkflowID = "truck_regions"

	Broadcast WorkflowID = "broadcast"
)

// targetKind is the record an edit workflow operates on.
type targetKind int

const (
	targetNone targetKind = iota
	targetCargo
	targetTruck
)

// policy holds the start preconditions of a workflow.
type policy struct {
	needsUser    bool
	guestOnly    bool
	operatorOnly bool
	target       targetKind
	// restart is shown when the workflow is aborted.
	restart string
}

const (
	stateDone = "done"
	eventNext = "next"
)

// stepView is a step rendered against the current draft.
type stepView struct {
	name      string
	prompt    string
	mode      InputMode
	skippable bool
	options   []string
}

// workflow is the type-erased view of a flow the engine drives.
type workflow interface {
	ID() WorkflowID
	policy() policy
	stepNames() []string
	newDraft() any
	view(ctx context.Context, e *Engine, c *Conversation, i int) (stepView, error)
	accept(e *Engine, c *Conversation, i int, raw string) error
	finish(ctx context.Context, e *Engine, s Session, c *Conversation) (Prompt, error)
}

// flow is a declarative workflow: an ordered step table over draft type D
// and a finalizer that runs once every step has been answered.
type flow[D any] struct {
	id       WorkflowID
	rules    policy
	steps    []step[D]
	finalize func(ctx context.Context, e *Engine, s Session, c *Conversation, d *D) (Prompt, error)
}

func (f *flow[D]) ID() WorkflowID { return f.id }

func (f *flow[D]) policy() policy { return f.rules }

func (f *flow[D]) stepNames() []string {
	names := make([]string, 0, len(f.steps))
	for _, s := range f.steps {
		names = append(names, s.name)
	}
	return names
}

func (f *flow[D]) newDraft() any { return new(D) }

func (f *flow[D]) draft(c *Conversation) (*D, error) {
	d, ok := c.draft.(*D)
	if !ok || d == nil {
		return nil, fmt.Errorf("%w: %s draft has type %T", errCorrupt, f.id, c.draft)
	}
	return d, nil
}

func (f *flow[D]) step(i int) (step[D], error) {
	if i < 0 || i >= len(f.steps) {
		return step[D]{}, fmt.Errorf("%w: %s has no step %d", errCorrupt, f.id, i)
	}
	return f.steps[i], nil
}

func (f *flow[D]) view(ctx context.Context, e *Engine, c *Conversation, i int) (stepView, error) {
	st, err := f.step(i)
	if err != nil {
		return stepView{}, err
	}
	d, err := f.draft(c)
	if err != nil {
		return stepView{}, err
	}
	v := stepView{name: st.name, prompt: st.prompt, mode: st.mode, skippable: st.skippable}
	if st.options != nil {
		if v.options, err = st.options(ctx, e, d); err != nil {
			return stepView{}, err
		}
	}
	return v, nil
}

func (f *flow[D]) accept(e *Engine, c *Conversation, i int, raw string) error {
	st, err := f.step(i)
	if err != nil {
		return err
	}
	d, err := f.draft(c)
	if err != nil {
		return err
	}
	return st.accept(e, d, raw)
}

func (f *flow[D]) finish(ctx context.Context, e *Engine, s Session, c *Conversation) (Prompt, error) {
	d, err := f.draft(c)
	if err != nil {
		return Prompt{}, err
	}
	return f.finalize(ctx, e, s, c, d)
}

// newMachine builds the linear step machine: every step moves to the next
// one on "next", the last one to "done".
func newMachine(names []string) *fsm.FSM {
	events := make(fsm.Events, 0, len(names))
	for i, name := range names {
		dst := stateDone
		if i+1 < len(names) {
			dst = names[i+1]
		}
		events = append(events, fsm.EventDesc{Name: eventNext, Src: []string{name}, Dst: dst})
	}
	return fsm.NewFSM(names[0], events, fsm.Callbacks{})
}
