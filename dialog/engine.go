// Package dialog drives the multi-step forms of the bot: one conversation
// per session, one pending question per conversation.
//
// The engine holds no lock. Callers must deliver the updates of a session
// sequentially; the Telegram update loop does.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/iabalyuk/freightbot/calendar"
	"github.com/iabalyuk/freightbot/locations"
	"github.com/iabalyuk/freightbot/metrics"
	"github.com/iabalyuk/freightbot/storage"
	"github.com/iabalyuk/freightbot/validate"
)

const (
	defaultPageSize   = 5
	optionsPerPage    = 8
	defaultBroadcastR = 25
)

// Options configures an Engine.
type Options struct {
	Store     storage.Store
	Transport Transport
	// Catalog defaults to locations.Default().
	Catalog *locations.Catalog
	Logger  *zerolog.Logger
	// IsOperator reports whether a Telegram user may run operator workflows.
	IsOperator func(userID int64) bool
	MaxWeight  int
	// PageSize is the number of search results per page.
	PageSize int
	// BroadcastRate is the broadcast throughput in messages per second.
	BroadcastRate float64
	Now           func() time.Time
}

// Conversation is the state of one active workflow.
type Conversation struct {
	workflow workflow
	machine  *fsm.FSM
	draft    any

	owner  storage.User
	target int64

	lastPrompt int
	calYear    int
	calMonth   time.Month
	optionPage int
}

// Step returns the name of the pending step.
func (c *Conversation) Step() string {
	return c.machine.Current()
}

func (c *Conversation) index() int {
	current := c.machine.Current()
	for i, name := range c.workflow.stepNames() {
		if name == current {
			return i
		}
	}
	return -1
}

// Engine runs workflows on behalf of sessions.
type Engine struct {
	store      storage.Store
	transport  Transport
	catalog    *locations.Catalog
	log        zerolog.Logger
	isOperator func(int64) bool
	maxWeight  int
	pageSize   int
	limiter    *rate.Limiter
	now        func() time.Time

	workflows     map[WorkflowID]workflow
	conversations map[Session]*Conversation
	results       map[Session]*resultsView

	// deferred runs once the completing turn has sent its reply.
	deferred   []func()
	deliveries sync.WaitGroup
}

// NewEngine creates an engine with every workflow registered.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		store:         opts.Store,
		transport:     opts.Transport,
		catalog:       opts.Catalog,
		log:           zerolog.Nop(),
		isOperator:    opts.IsOperator,
		maxWeight:     opts.MaxWeight,
		pageSize:      opts.PageSize,
		now:           opts.Now,
		conversations: make(map[Session]*Conversation),
		results:       make(map[Session]*resultsView),
	}
	if opts.Logger != nil {
		e.log = opts.Logger.With().Str("component", "dialog").Logger()
	}
	if e.catalog == nil {
		e.catalog = locations.Default()
	}
	if e.isOperator == nil {
		e.isOperator = func(int64) bool { return false }
	}
	if e.maxWeight <= 0 {
		e.maxWeight = validate.DefaultMaxWeight
	}
	if e.pageSize <= 0 {
		e.pageSize = defaultPageSize
	}
	if e.now == nil {
		e.now = time.Now
	}
	r := opts.BroadcastRate
	if r <= 0 {
		r = defaultBroadcastR
	}
	e.limiter = rate.NewLimiter(rate.Limit(r), 1)

	e.workflows = make(map[WorkflowID]workflow)
	for _, wf := range e.buildWorkflows() {
		e.workflows[wf.ID()] = wf
	}
	return e
}

// Active reports whether the session has a workflow in progress.
func (e *Engine) Active(s Session) bool {
	_, ok := e.conversations[s]
	return ok
}

// Current returns the active workflow and its pending step.
func (e *Engine) Current(s Session) (WorkflowID, string, bool) {
	c, ok := e.conversations[s]
	if !ok {
		return "", "", false
	}
	return c.workflow.ID(), c.Step(), true
}

// Start begins workflow id and asks its first question.
func (e *Engine) Start(ctx context.Context, s Session, id WorkflowID) error {
	return e.start(ctx, s, id, 0)
}

// StartEdit begins an edit workflow on a record owned by the session's user.
func (e *Engine) StartEdit(ctx context.Context, s Session, id WorkflowID, recordID int64) error {
	return e.start(ctx, s, id, recordID)
}

func (e *Engine) start(ctx context.Context, s Session, id WorkflowID, recordID int64) error {
	wf, ok := e.workflows[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWorkflow, id)
	}
	if e.Active(s) {
		return ErrBusy
	}
	rules := wf.policy()
	if rules.operatorOnly && !e.isOperator(s.UserID) {
		return ErrForbidden
	}
	if rules.target != targetNone && recordID == 0 {
		return fmt.Errorf("%w: %s needs a record", ErrNotFound, id)
	}

	c := &Conversation{
		workflow: wf,
		machine:  newMachine(wf.stepNames()),
		draft:    wf.newDraft(),
		target:   recordID,
	}

	if rules.needsUser || rules.guestOnly {
		u, found, err := e.store.UserByTelegramID(ctx, s.UserID)
		if err != nil {
			return fmt.Errorf("resolve user: %w", err)
		}
		if rules.guestOnly && found {
			e.send(ctx, s.ChatID, Prompt{Text: fmt.Sprintf(msgWelcomeBack, u.Name), Menu: MenuMain})
			return nil
		}
		if rules.needsUser && !found {
			return ErrNotRegistered
		}
		c.owner = u
	}

	switch rules.target {
	case targetCargo:
		_, found, err := e.store.CargoByID(ctx, c.owner.ID, recordID)
		if err != nil {
			return fmt.Errorf("load cargo %d: %w", recordID, err)
		}
		if !found {
			return ErrNotFound
		}
	case targetTruck:
		_, found, err := e.store.TruckByID(ctx, c.owner.ID, recordID)
		if err != nil {
			return fmt.Errorf("load truck %d: %w", recordID, err)
		}
		if !found {
			return ErrNotFound
		}
	}

	e.conversations[s] = c
	metrics.RecordWorkflow(string(id), "started")
	e.log.Debug().Int64("user", s.UserID).Str("workflow", string(id)).Msg("workflow started")

	e.enterStep(c)
	view, err := wf.view(ctx, e, c, 0)
	if err != nil {
		delete(e.conversations, s)
		return fmt.Errorf("render first step: %w", err)
	}
	e.ask(ctx, s, c, view, "", 0)
	return nil
}

// Cancel clears the session's conversation, if any, and returns to the main
// menu. It reports whether a conversation was active.
func (e *Engine) Cancel(ctx context.Context, s Session) bool {
	c, ok := e.conversations[s]
	if ok {
		delete(e.conversations, s)
		e.retract(ctx, s.ChatID, c.lastPrompt)
		metrics.RecordWorkflow(string(c.workflow.ID()), "cancelled")
		e.log.Debug().Int64("user", s.UserID).Str("workflow", string(c.workflow.ID())).Msg("workflow cancelled")
	}
	e.send(ctx, s.ChatID, Prompt{Text: msgCancelled, Menu: MenuMain})
	return ok
}

// Reset drops every piece of session state without messaging the user.
func (e *Engine) Reset(s Session) {
	delete(e.conversations, s)
	delete(e.results, s)
}

// Advance feeds one answer to the session's pending step.
func (e *Engine) Advance(ctx context.Context, s Session, in Input) Outcome {
	c, ok := e.conversations[s]
	if !ok {
		return Ignored
	}
	wf := c.workflow
	idx := c.index()
	if idx < 0 {
		return e.abort(ctx, s, c, fmt.Errorf("%w: state %q", errCorrupt, c.Step()))
	}
	view, err := wf.view(ctx, e, c, idx)
	if err != nil {
		if errors.Is(err, errCorrupt) {
			return e.abort(ctx, s, c, err)
		}
		return e.retain(ctx, s, c, err)
	}

	raw, outcome, handled := e.interpret(ctx, s, c, view, in)
	if handled {
		return outcome
	}

	if err := wf.accept(e, c, idx, raw); err != nil {
		var rejection *Rejection
		if errors.As(err, &rejection) {
			metrics.RecordRejection(string(wf.ID()), view.name)
			e.ask(ctx, s, c, view, rejection.Message, in.MessageID)
			return Rejected
		}
		return e.abort(ctx, s, c, err)
	}

	if idx+1 < len(wf.stepNames()) {
		// A failed render leaves the machine on the answered step.
		next, err := wf.view(ctx, e, c, idx+1)
		if err != nil {
			if errors.Is(err, errCorrupt) {
				return e.abort(ctx, s, c, err)
			}
			return e.retain(ctx, s, c, err)
		}
		if err := c.machine.Event(ctx, eventNext); err != nil {
			return e.abort(ctx, s, c, fmt.Errorf("%w: %v", errCorrupt, err))
		}
		e.enterStep(c)
		e.ask(ctx, s, c, next, "", in.MessageID)
		return Advanced
	}

	result, err := wf.finish(ctx, e, s, c)
	if err != nil {
		e.deferred = nil
		if corrupt(err) {
			return e.abort(ctx, s, c, err)
		}
		return e.retain(ctx, s, c, err)
	}
	if err := c.machine.Event(ctx, eventNext); err != nil {
		e.log.Warn().Err(err).Str("workflow", string(wf.ID())).Msg("finish transition failed")
	}
	delete(e.conversations, s)
	e.retract(ctx, s.ChatID, c.lastPrompt)
	e.retract(ctx, s.ChatID, in.MessageID)
	e.send(ctx, s.ChatID, result)
	metrics.RecordWorkflow(string(wf.ID()), "completed")
	for _, fn := range e.deferred {
		fn()
	}
	e.deferred = nil
	return Completed
}

func (e *Engine) afterTurn(fn func()) {
	e.deferred = append(e.deferred, fn)
}

// interpret turns buttons and paging replies into the raw answer. handled
// is true when the input was fully consumed without reaching the validator.
func (e *Engine) interpret(ctx context.Context, s Session, c *Conversation, view stepView, in Input) (string, Outcome, bool) {
	switch in.Kind {
	case InputButton:
		if !calendar.IsToken(in.Text) || view.mode != ModeCalendar {
			return "", Ignored, true
		}
		if in.PromptID != 0 && in.PromptID != c.lastPrompt {
			return "", Ignored, true
		}
		tok, err := calendar.ParseToken(in.Text)
		if err != nil {
			return "", Ignored, true
		}
		switch tok.Action {
		case calendar.ActionNavigate:
			c.calYear, c.calMonth = tok.Year, tok.Month
			e.redraw(ctx, s, c, view)
			return "", Navigated, true
		case calendar.ActionSelect:
			return validate.FormatDate(tok.Date().Format(validate.ISOLayout)), Ignored, false
		case calendar.ActionSkip:
			if !view.skippable {
				return "", Ignored, true
			}
			return noWord, Ignored, false
		}
		return "", Ignored, true

	default:
		if len(view.options) > optionsPerPage && (in.Text == pageNext || in.Text == pagePrev) {
			if in.Text == pageNext {
				c.optionPage++
			} else {
				c.optionPage--
			}
			c.optionPage = clampPage(c.optionPage, len(view.options))
			e.ask(ctx, s, c, view, "", in.MessageID)
			return "", Navigated, true
		}
		return in.Text, Ignored, false
	}
}

func (e *Engine) enterStep(c *Conversation) {
	now := e.now()
	c.calYear, c.calMonth = now.Year(), now.Month()
	c.optionPage = 0
}

// render builds the prompt of a step.
func (e *Engine) render(c *Conversation, view stepView, notice string) Prompt {
	p := Prompt{Text: view.prompt}
	if notice != "" {
		p.Text = notice + "\n\n" + view.prompt
	}
	switch view.mode {
	case ModeCalendar:
		p.Inline = calendar.Render(c.calYear, c.calMonth, view.skippable)
	case ModeContact:
		p.Contact = contactButton
	default:
		if len(view.options) > 0 {
			p.Replies = optionRows(view.options, c.optionPage)
		} else {
			p.Menu = MenuRemove
		}
	}
	return p
}

// ask replaces the live prompt (and the user's answer) with a new one.
func (e *Engine) ask(ctx context.Context, s Session, c *Conversation, view stepView, notice string, answerID int) {
	e.retract(ctx, s.ChatID, c.lastPrompt)
	e.retract(ctx, s.ChatID, answerID)
	c.lastPrompt = e.send(ctx, s.ChatID, e.render(c, view, notice))
}

// redraw re-renders the calendar of the live prompt in place.
func (e *Engine) redraw(ctx context.Context, s Session, c *Conversation, view stepView) {
	p := e.render(c, view, "")
	if c.lastPrompt == 0 {
		c.lastPrompt = e.send(ctx, s.ChatID, p)
		return
	}
	if err := e.transport.Edit(ctx, s.ChatID, c.lastPrompt, p); err != nil {
		metrics.RecordTransportError("edit")
		e.log.Warn().Err(err).Int64("chat", s.ChatID).Msg("failed to redraw calendar")
	}
}

func (e *Engine) abort(ctx context.Context, s Session, c *Conversation, cause error) Outcome {
	delete(e.conversations, s)
	wf := c.workflow
	metrics.RecordWorkflow(string(wf.ID()), "aborted")
	e.log.Error().Err(cause).Int64("user", s.UserID).Str("workflow", string(wf.ID())).
		Str("step", c.Step()).Msg("workflow aborted")

	text := wf.policy().restart
	switch {
	case errors.Is(cause, ErrNotRegistered):
		text = msgNoProfile
	case errors.Is(cause, ErrNotFound):
		text = msgRecordGone
	case text == "":
		text = msgRestart
	}
	e.retract(ctx, s.ChatID, c.lastPrompt)
	e.send(ctx, s.ChatID, Prompt{Text: text, Menu: MenuMain})
	return Aborted
}

func (e *Engine) retain(ctx context.Context, s Session, c *Conversation, cause error) Outcome {
	metrics.RecordWorkflow(string(c.workflow.ID()), "retained")
	e.log.Error().Err(cause).Int64("user", s.UserID).Str("workflow", string(c.workflow.ID())).
		Str("step", c.Step()).Msg("workflow step failed, state kept")
	e.send(ctx, s.ChatID, Prompt{Text: msgSaveFailed})
	return Retained
}

func corrupt(err error) bool {
	return errors.Is(err, errCorrupt) ||
		errors.Is(err, ErrIncompleteDraft) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrNotRegistered) ||
		errors.Is(err, ErrNotFound)
}

func (e *Engine) send(ctx context.Context, chatID int64, p Prompt) int {
	id, err := e.transport.Send(ctx, chatID, p)
	if err != nil {
		metrics.RecordTransportError("send")
		e.log.Warn().Err(err).Int64("chat", chatID).Msg("failed to send message")
		return 0
	}
	return id
}

func (e *Engine) retract(ctx context.Context, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if err := e.transport.Retract(ctx, chatID, messageID); err != nil {
		metrics.RecordTransportError("retract")
		e.log.Debug().Err(err).Int64("chat", chatID).Int("message", messageID).Msg("failed to retract message")
	}
}

func (e *Engine) logAction(s Session, action string) *zerolog.Event {
	return e.log.Info().Int64("user", s.UserID).Str("action", action)
}

func clampPage(page, total int) int {
	last := (total - 1) / optionsPerPage
	if page < 0 {
		return 0
	}
	if page > last {
		return last
	}
	return page
}

// optionRows lays out one option per row; long lists are paged.
func optionRows(options []string, page int) [][]string {
	if len(options) <= optionsPerPage {
		rows := make([][]string, 0, len(options))
		for _, o := range options {
			rows = append(rows, []string{o})
		}
		return rows
	}

	page = clampPage(page, len(options))
	start := page * optionsPerPage
	end := min(start+optionsPerPage, len(options))
	rows := make([][]string, 0, end-start+1)
	for _, o := range options[start:end] {
		rows = append(rows, []string{o})
	}
	var nav []string
	if start > 0 {
		nav = append(nav, pagePrev)
	}
	if end < len(options) {
		nav = append(nav, pageNext)
	}
	return append(rows, nav)
}
