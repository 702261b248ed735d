package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iabalyuk/freightbot/calendar"
	"github.com/iabalyuk/freightbot/dialog"
	"github.com/iabalyuk/freightbot/validate"
)

var menuWorkflows = map[string]dialog.WorkflowID{
	btnAddCargo:  dialog.CargoAdd,
	btnAddTruck:  dialog.TruckAdd,
	btnFindCargo: dialog.CargoSearch,
	btnFindTruck: dialog.TruckSearch,
}

var profileWorkflows = map[string]dialog.WorkflowID{
	cbEditName:  dialog.ProfileName,
	cbEditCity:  dialog.ProfileCity,
	cbEditPhone: dialog.ProfilePhone,
}

var recordWorkflows = map[string]dialog.WorkflowID{
	cbEditCargoWeight:  dialog.CargoWeight,
	cbEditCargoRoute:   dialog.CargoRoute,
	cbEditCargoDates:   dialog.CargoDates,
	cbEditTruckWeight:  dialog.TruckWeight,
	cbEditTruckRoute:   dialog.TruckRoute,
	cbEditTruckDates:   dialog.TruckDates,
	cbEditTruckRegions: dialog.TruckRegions,
}

// handleMessage handles incoming messages
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	s := dialog.Session{ChatID: message.Chat.ID, UserID: message.From.ID}

	if message.IsCommand() {
		b.handleCommand(ctx, s, message.Command())
		return
	}

	if message.Contact != nil {
		phone := validate.NormalizePhone(message.Contact.PhoneNumber)
		if b.advance(ctx, s, dialog.Input{Kind: dialog.InputContact, Text: phone, MessageID: message.MessageID}) == dialog.Ignored {
			b.reply(s.ChatID, textUseMenu, mainMenu())
		}
		return
	}

	// Menu buttons never count as answers; while a workflow is active they
	// get the busy notice.
	if id, ok := menuWorkflows[message.Text]; ok {
		b.startWorkflow(ctx, s, id, 0)
		return
	}
	if message.Text == btnProfile {
		if b.engine.Active(s) {
			b.reply(s.ChatID, textBusy, nil)
			return
		}
		b.showProfile(ctx, s)
		return
	}

	if b.advance(ctx, s, dialog.Input{Kind: dialog.InputText, Text: message.Text, MessageID: message.MessageID}) == dialog.Ignored {
		b.reply(s.ChatID, textUseMenu, mainMenu())
	}
}

func (b *Bot) handleCommand(ctx context.Context, s dialog.Session, command string) {
	switch command {
	case "start":
		b.startWorkflow(ctx, s, dialog.Registration, 0)
	case "help":
		b.reply(s.ChatID, textHelp, nil)
	case "cancel":
		b.engine.Cancel(ctx, s)
	case "admin":
		if !b.isOperator(s.UserID) {
			b.reply(s.ChatID, textForbidden, nil)
			return
		}
		b.reply(s.ChatID, textAdmin, adminMenu())
	default:
		b.reply(s.ChatID, textUnknownCommand, nil)
	}
}

// handleCallbackQuery handles callback queries from inline keyboards
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	s := dialog.Session{ChatID: query.Message.Chat.ID, UserID: query.From.ID}
	data := query.Data

	if calendar.IsToken(data) {
		b.advance(ctx, s, dialog.Input{Kind: dialog.InputButton, Text: data, PromptID: query.Message.MessageID})
		b.answerCallbackQuery(query.ID, "")
		return
	}
	if page, ok := dialog.ParsePage(data); ok {
		if err := b.engine.ShowPage(ctx, s, query.Message.MessageID, page); err != nil {
			if !errors.Is(err, dialog.ErrNotFound) {
				b.log.Error().Err(err).Int64("user", s.UserID).Msg("failed to show results page")
			}
			b.answerCallbackQuery(query.ID, textResultsExpired)
			return
		}
		b.answerCallbackQuery(query.ID, "")
		return
	}
	b.answerCallbackQuery(query.ID, "")

	action, value, _ := strings.Cut(data, ":")
	if strings.HasPrefix(action, "admin_") {
		b.handleAdmin(ctx, s, action)
		return
	}

	if id, ok := profileWorkflows[action]; ok {
		b.startWorkflow(ctx, s, id, 0)
		return
	}
	if id, ok := recordWorkflows[action]; ok {
		if record, ok := parseID(value); ok {
			b.startWorkflow(ctx, s, id, record)
		}
		return
	}

	switch action {
	case cbProfile:
		b.showProfile(ctx, s)
	case cbEditProfile:
		b.reply(s.ChatID, textEditProfile, editProfileKeyboard())
	case cbManageCargo:
		b.showCargoList(ctx, s)
	case cbManageTruck:
		b.showTruckList(ctx, s)
	case cbEditCargo:
		if id, ok := parseID(value); ok {
			b.showCargo(ctx, s, id)
		}
	case cbEditTruck:
		if id, ok := parseID(value); ok {
			b.showTruck(ctx, s, id)
		}
	case cbDeleteCargo:
		if id, ok := parseID(value); ok {
			found, err := b.engine.DeleteCargo(ctx, s, id)
			b.reportDeletion(s, found, err, textCargoDeleted)
		}
	case cbDeleteTruck:
		if id, ok := parseID(value); ok {
			found, err := b.engine.DeleteTruck(ctx, s, id)
			b.reportDeletion(s, found, err, textTruckDeleted)
		}
	case cbDeleteProfile:
		b.reply(s.ChatID, textConfirmDelete, confirmDeleteKeyboard())
	case cbDeleteProfileSure:
		b.deleteProfile(ctx, s)
	default:
		b.log.Debug().Str("data", data).Msg("unhandled callback")
	}
}

// startWorkflow starts a workflow and maps refusals to user messages.
func (b *Bot) startWorkflow(ctx context.Context, s dialog.Session, id dialog.WorkflowID, record int64) {
	var err error
	if record == 0 {
		err = b.engine.Start(ctx, s, id)
	} else {
		err = b.engine.StartEdit(ctx, s, id, record)
	}
	switch {
	case err == nil:
	case errors.Is(err, dialog.ErrBusy):
		b.reply(s.ChatID, textBusy, nil)
	case errors.Is(err, dialog.ErrNotRegistered):
		b.reply(s.ChatID, textNotRegistered, nil)
	case errors.Is(err, dialog.ErrForbidden):
		b.reply(s.ChatID, textForbidden, nil)
	case errors.Is(err, dialog.ErrNotFound):
		b.reply(s.ChatID, textRecordGone, nil)
	default:
		b.log.Error().Err(err).Int64("user", s.UserID).Str("workflow", string(id)).Msg("failed to start workflow")
		b.reply(s.ChatID, textFailure, nil)
	}
}

func (b *Bot) advance(ctx context.Context, s dialog.Session, in dialog.Input) dialog.Outcome {
	out := b.engine.Advance(ctx, s, in)
	b.log.Debug().Int64("user", s.UserID).Stringer("outcome", out).Msg("input handled")
	return out
}

func (b *Bot) reportDeletion(s dialog.Session, found bool, err error, done string) {
	switch {
	case errors.Is(err, dialog.ErrNotRegistered):
		b.reply(s.ChatID, textNotRegistered, nil)
	case err != nil:
		b.log.Error().Err(err).Int64("user", s.UserID).Msg("failed to delete listing")
		b.reply(s.ChatID, textFailure, nil)
	case !found:
		b.reply(s.ChatID, textRecordGone, nil)
	default:
		b.reply(s.ChatID, done, mainMenu())
	}
}

// reply sends a message outside of any workflow; markup may be nil.
func (b *Bot) reply(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn().Err(err).Int64("chat", chatID).Msg("failed to send reply")
	}
}

func parseID(value string) (int64, bool) {
	id, err := strconv.ParseInt(value, 10, 64)
	return id, err == nil && id > 0
}
