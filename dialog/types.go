package dialog

import (
	"context"
	"errors"

	"github.com/iabalyuk/freightbot/calendar"
)

var (
	// ErrBusy is returned when a workflow is started while another one is active.
	ErrBusy = errors.New("another workflow is active")
	// ErrNotRegistered is returned when a workflow needs a registered owner.
	ErrNotRegistered = errors.New("user is not registered")
	// ErrForbidden is returned when a non-operator starts an operator workflow.
	ErrForbidden = errors.New("operator access required")
	// ErrNotFound is returned when an edited record does not exist or is not owned by the user.
	ErrNotFound = errors.New("record not found")
	// ErrUnknownWorkflow is returned for workflow ids the engine does not know.
	ErrUnknownWorkflow = errors.New("unknown workflow")

	// errCorrupt marks conversation state the engine cannot continue from.
	errCorrupt = errors.New("conversation state is corrupt")
)

// Session identifies one user in one chat.
type Session struct {
	ChatID int64
	UserID int64
}

// InputKind tells where an answer came from.
type InputKind int

const (
	InputText InputKind = iota
	InputButton
	InputContact
)

// Input is one inbound answer. Text holds the message text, the button data
// or the shared phone number.
type Input struct {
	Kind InputKind
	Text string
	// MessageID of the user's message, retracted with the answered prompt.
	MessageID int
	// PromptID is the message the pressed button belongs to.
	PromptID int
}

// Menu selects the reply keyboard left under a message.
type Menu int

const (
	MenuNone Menu = iota
	MenuMain
	MenuAdmin
	MenuRemove
)

// Button is an inline button.
type Button = calendar.Button

// Prompt is a transport-neutral outgoing message.
type Prompt struct {
	Text string
	HTML bool
	// Replies is a one-time reply keyboard, one row per slice.
	Replies [][]string
	// Contact, when set, labels a "share phone number" reply button.
	Contact string
	Inline  [][]Button
	// Menu is used when neither Replies, Contact nor Inline is set.
	Menu Menu
}

// Transport delivers prompts. Failures are logged by the engine and never
// interrupt a workflow.
type Transport interface {
	Send(ctx context.Context, chatID int64, p Prompt) (messageID int, err error)
	Edit(ctx context.Context, chatID int64, messageID int, p Prompt) error
	Retract(ctx context.Context, chatID int64, messageID int) error
}

// Outcome is the result of one Advance call.
type Outcome int

const (
	// Ignored: no conversation, or a stale or foreign button.
	Ignored Outcome = iota
	// Navigated: calendar or option page changed, step unchanged.
	Navigated
	// Rejected: the answer failed validation and the step was re-asked.
	Rejected
	// Advanced: the answer was stored and the next step asked.
	Advanced
	// Completed: the workflow finished and the conversation was cleared.
	Completed
	// Aborted: the state was unusable, cleared with a restart message.
	Aborted
	// Retained: persisting failed, the conversation is kept for a retry.
	Retained
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Navigated:
		return "navigated"
	case Rejected:
		return "rejected"
	case Advanced:
		return "advanced"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	case Retained:
		return "retained"
	}
	return "unknown"
}
