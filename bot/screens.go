package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iabalyuk/freightbot/dialog"
	"github.com/iabalyuk/freightbot/storage"
	"github.com/iabalyuk/freightbot/validate"
	"github.com/iabalyuk/freightbot/worker"
)

const (
	latestUsers    = 20
	latestListings = 10
)

// user resolves the session's profile, replying when there is none.
func (b *Bot) user(ctx context.Context, s dialog.Session) (storage.User, bool) {
	u, found, err := b.store.UserByTelegramID(ctx, s.UserID)
	if err != nil {
		b.log.Error().Err(err).Int64("user", s.UserID).Msg("failed to load user")
		b.reply(s.ChatID, textFailure, nil)
		return storage.User{}, false
	}
	if !found {
		b.reply(s.ChatID, textNotRegistered, nil)
		return storage.User{}, false
	}
	return u, true
}

func (b *Bot) showProfile(ctx context.Context, s dialog.Session) {
	u, ok := b.user(ctx, s)
	if !ok {
		return
	}
	cargo, err := b.store.CargoByOwner(ctx, u.ID)
	if err != nil {
		b.log.Error().Err(err).Int64("user", s.UserID).Msg("failed to load cargo")
		b.reply(s.ChatID, textFailure, nil)
		return
	}
	trucks, err := b.store.TrucksByOwner(ctx, u.ID)
	if err != nil {
		b.log.Error().Err(err).Int64("user", s.UserID).Msg("failed to load trucks")
		b.reply(s.ChatID, textFailure, nil)
		return
	}
	text := fmt.Sprintf("👤 Профиль\nИмя: %s\nГород: %s\nТелефон: %s\n\nГрузов: %d\nТС: %d",
		u.Name, u.City, u.Phone, len(cargo), len(trucks))
	b.reply(s.ChatID, text, profileKeyboard())
}

func (b *Bot) showCargoList(ctx context.Context, s dialog.Session) {
	u, ok := b.user(ctx, s)
	if !ok {
		return
	}
	rows, err := b.store.CargoByOwner(ctx, u.ID)
	if err != nil {
		b.log.Error().Err(err).Int64("user", s.UserID).Msg("failed to load cargo")
		b.reply(s.ChatID, textFailure, nil)
		return
	}
	if len(rows) == 0 {
		b.reply(s.ChatID, textNoCargo, nil)
		return
	}
	b.reply(s.ChatID, textYourCargo, cargoListKeyboard(rows))
}

func (b *Bot) showTruckList(ctx context.Context, s dialog.Session) {
	u, ok := b.user(ctx, s)
	if !ok {
		return
	}
	rows, err := b.store.TrucksByOwner(ctx, u.ID)
	if err != nil {
		b.log.Error().Err(err).Int64("user", s.UserID).Msg("failed to load trucks")
		b.reply(s.ChatID, textFailure, nil)
		return
	}
	if len(rows) == 0 {
		b.reply(s.ChatID, textNoTrucks, nil)
		return
	}
	b.reply(s.ChatID, textYourTrucks, truckListKeyboard(rows))
}

func (b *Bot) showCargo(ctx context.Context, s dialog.Session, id int64) {
	u, ok := b.user(ctx, s)
	if !ok {
		return
	}
	c, found, err := b.store.CargoByID(ctx, u.ID, id)
	switch {
	case err != nil:
		b.log.Error().Err(err).Int64("cargo", id).Msg("failed to load cargo")
		b.reply(s.ChatID, textFailure, nil)
	case !found:
		b.reply(s.ChatID, textRecordGone, nil)
	default:
		b.reply(s.ChatID, describeCargo(c), cargoActionsKeyboard(id))
	}
}

func (b *Bot) showTruck(ctx context.Context, s dialog.Session, id int64) {
	u, ok := b.user(ctx, s)
	if !ok {
		return
	}
	t, found, err := b.store.TruckByID(ctx, u.ID, id)
	switch {
	case err != nil:
		b.log.Error().Err(err).Int64("truck", id).Msg("failed to load truck")
		b.reply(s.ChatID, textFailure, nil)
	case !found:
		b.reply(s.ChatID, textRecordGone, nil)
	default:
		b.reply(s.ChatID, describeTruck(t), truckActionsKeyboard(id))
	}
}

func (b *Bot) deleteProfile(ctx context.Context, s dialog.Session) {
	found, err := b.engine.DeleteProfile(ctx, s)
	switch {
	case errors.Is(err, dialog.ErrNotRegistered) || (err == nil && !found):
		b.reply(s.ChatID, textNotRegistered, nil)
	case err != nil:
		b.log.Error().Err(err).Int64("user", s.UserID).Msg("failed to delete profile")
		b.reply(s.ChatID, textFailure, nil)
	default:
		b.reply(s.ChatID, textProfileDeleted, tgbotapi.NewRemoveKeyboard(true))
	}
}

func (b *Bot) handleAdmin(ctx context.Context, s dialog.Session, action string) {
	if !b.isOperator(s.UserID) {
		b.reply(s.ChatID, textForbidden, nil)
		return
	}

	var (
		text string
		err  error
	)
	switch action {
	case cbAdminStats:
		var st storage.Stats
		st, err = b.store.Stats(ctx, time.Now().Add(-24*time.Hour))
		text = worker.FormatReport(st)
	case cbAdminUsers:
		var users []storage.User
		users, err = b.store.LatestUsers(ctx, latestUsers)
		text = formatUsers(users)
	case cbAdminCargo:
		var rows []storage.Cargo
		rows, err = b.store.LatestCargo(ctx, latestListings)
		text = formatLatestCargo(rows)
	case cbAdminTrucks:
		var rows []storage.Truck
		rows, err = b.store.LatestTrucks(ctx, latestListings)
		text = formatLatestTrucks(rows)
	case cbAdminBroadcast:
		b.startWorkflow(ctx, s, dialog.Broadcast, 0)
		return
	case cbAdminExit:
		b.reply(s.ChatID, textAdminExit, mainMenu())
		return
	default:
		return
	}
	if err != nil {
		b.log.Error().Err(err).Str("action", action).Msg("admin query failed")
		b.reply(s.ChatID, textFailure, adminMenu())
		return
	}
	b.reply(s.ChatID, text, adminMenu())
}

func describeCargo(c storage.Cargo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📦 Груз #%d\n", c.ID)
	fmt.Fprintf(&sb, "%s, %s → %s, %s\n", c.CityFrom, c.RegionFrom, c.CityTo, c.RegionTo)
	fmt.Fprintf(&sb, "Даты: с %s по %s\n", validate.FormatDate(c.DateFrom), validate.FormatDate(c.DateTo))
	fmt.Fprintf(&sb, "Вес: %d т, Кузов: %s\n", c.Weight, c.BodyType)
	if c.IsLocal {
		sb.WriteString("Внутригородской\n")
	}
	if c.Comment != "" {
		fmt.Fprintf(&sb, "Комментарий: %s\n", c.Comment)
	}
	return sb.String()
}

func describeTruck(t storage.Truck) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🚛 ТС #%d\n", t.ID)
	fmt.Fprintf(&sb, "%s, %s\n", t.City, t.Region)
	fmt.Fprintf(&sb, "Даты: с %s по %s\n", validate.FormatDate(t.DateFrom), validate.FormatDate(t.DateTo))
	fmt.Fprintf(&sb, "Грузоподъёмность: %d т, Кузов: %s\n", t.Weight, t.BodyType)
	fmt.Fprintf(&sb, "Направление: %s\n", t.Direction)
	if t.RouteRegions != "" {
		fmt.Fprintf(&sb, "Регионы: %s\n", t.RouteRegions)
	}
	if t.Comment != "" {
		fmt.Fprintf(&sb, "Комментарий: %s\n", t.Comment)
	}
	return sb.String()
}

func formatUsers(users []storage.User) string {
	if len(users) == 0 {
		return "Пользователей пока нет."
	}
	var sb strings.Builder
	sb.WriteString("👥 Последние пользователи:\n")
	for _, u := range users {
		fmt.Fprintf(&sb, "#%d %s, %s, %s (%s)\n", u.ID, u.Name, u.City, u.Phone, u.CreatedAt.Format(validate.DisplayLayout))
	}
	return sb.String()
}

func formatLatestCargo(rows []storage.Cargo) string {
	if len(rows) == 0 {
		return "Грузов пока нет."
	}
	var sb strings.Builder
	sb.WriteString("📦 Последние грузы:\n")
	for _, c := range rows {
		fmt.Fprintf(&sb, "#%d %s → %s, %d т, %s (%s)\n",
			c.ID, c.CityFrom, c.CityTo, c.Weight, validate.FormatDate(c.DateFrom), c.OwnerName)
	}
	return sb.String()
}

func formatLatestTrucks(rows []storage.Truck) string {
	if len(rows) == 0 {
		return "ТС пока нет."
	}
	var sb strings.Builder
	sb.WriteString("🚛 Последние ТС:\n")
	for _, t := range rows {
		fmt.Fprintf(&sb, "#%d %s, %d т, %s, %s (%s)\n",
			t.ID, t.City, t.Weight, t.BodyType, validate.FormatDate(t.DateFrom), t.OwnerName)
	}
	return sb.String()
}
