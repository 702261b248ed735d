package bot

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iabalyuk/freightbot/storage"
)

// Main menu buttons.
const (
	btnAddCargo  = "➕ Добавить груз"
	btnAddTruck  = "➕ Добавить ТС"
	btnFindCargo = "🔍 Найти груз"
	btnFindTruck = "🔍 Найти ТС"
	btnProfile   = "📋 Мой профиль"
)

// Callback actions. Record actions carry ":<id>".
const (
	cbProfile           = "profile"
	cbEditProfile       = "edit_profile"
	cbEditName          = "edit_name"
	cbEditCity          = "edit_city"
	cbEditPhone         = "edit_phone"
	cbManageCargo       = "manage_cargo"
	cbManageTruck       = "manage_truck"
	cbEditCargo         = "edit_cargo"
	cbEditCargoWeight   = "edit_cargo_weight"
	cbEditCargoRoute    = "edit_cargo_route"
	cbEditCargoDates    = "edit_cargo_dates"
	cbDeleteCargo       = "del_cargo"
	cbEditTruck         = "edit_truck"
	cbEditTruckWeight   = "edit_truck_weight"
	cbEditTruckRoute    = "edit_truck_route"
	cbEditTruckDates    = "edit_truck_dates"
	cbEditTruckRegions  = "edit_truck_regions"
	cbDeleteTruck       = "del_truck"
	cbDeleteProfile     = "del_profile"
	cbDeleteProfileSure = "del_profile_confirm"

	cbAdminStats     = "admin_stats"
	cbAdminUsers     = "admin_users"
	cbAdminCargo     = "admin_cargo"
	cbAdminTrucks    = "admin_trucks"
	cbAdminBroadcast = "admin_broadcast"
	cbAdminExit      = "admin_exit"
)

func withID(action string, id int64) string {
	return action + ":" + strconv.FormatInt(id, 10)
}

func mainMenu() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnAddCargo),
			tgbotapi.NewKeyboardButton(btnAddTruck),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnFindCargo),
			tgbotapi.NewKeyboardButton(btnFindTruck),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnProfile),
		),
	)
}

func adminMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📊 Статистика", cbAdminStats)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("👥 Последние пользователи", cbAdminUsers)),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📦 Последние грузы", cbAdminCargo),
			tgbotapi.NewInlineKeyboardButtonData("🚛 Последние ТС", cbAdminTrucks),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📢 Рассылка", cbAdminBroadcast)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🚪 Выход", cbAdminExit)),
	)
}

func profileKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✏️ Редактировать профиль", cbEditProfile)),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📦 Мои грузы", cbManageCargo),
			tgbotapi.NewInlineKeyboardButtonData("🚛 Мои ТС", cbManageTruck),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🗑 Удалить профиль", cbDeleteProfile)),
	)
}

func editProfileKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Имя", cbEditName),
			tgbotapi.NewInlineKeyboardButtonData("Город", cbEditCity),
			tgbotapi.NewInlineKeyboardButtonData("Телефон", cbEditPhone),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", cbProfile)),
	)
}

func confirmDeleteKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Да, удалить", cbDeleteProfileSure),
			tgbotapi.NewInlineKeyboardButtonData("Отмена", cbProfile),
		),
	)
}

// cargoListKeyboard has one button per listing.
func cargoListKeyboard(rows []storage.Cargo) tgbotapi.InlineKeyboardMarkup {
	buttons := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows)+1)
	for _, c := range rows {
		label := fmt.Sprintf("#%d %s → %s", c.ID, c.CityFrom, c.CityTo)
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, withID(cbEditCargo, c.ID))))
	}
	buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", cbProfile)))
	return tgbotapi.NewInlineKeyboardMarkup(buttons...)
}

func truckListKeyboard(rows []storage.Truck) tgbotapi.InlineKeyboardMarkup {
	buttons := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows)+1)
	for _, t := range rows {
		label := fmt.Sprintf("#%d %s, %d т", t.ID, t.City, t.Weight)
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, withID(cbEditTruck, t.ID))))
	}
	buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", cbProfile)))
	return tgbotapi.NewInlineKeyboardMarkup(buttons...)
}

func cargoActionsKeyboard(id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Вес", withID(cbEditCargoWeight, id)),
			tgbotapi.NewInlineKeyboardButtonData("Маршрут", withID(cbEditCargoRoute, id)),
			tgbotapi.NewInlineKeyboardButtonData("Даты", withID(cbEditCargoDates, id)),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🗑 Удалить", withID(cbDeleteCargo, id))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", cbManageCargo)),
	)
}

func truckActionsKeyboard(id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Грузоподъёмность", withID(cbEditTruckWeight, id)),
			tgbotapi.NewInlineKeyboardButtonData("Стоянка", withID(cbEditTruckRoute, id)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Даты", withID(cbEditTruckDates, id)),
			tgbotapi.NewInlineKeyboardButtonData("Регионы", withID(cbEditTruckRegions, id)),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🗑 Удалить", withID(cbDeleteTruck, id))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", cbManageTruck)),
	)
}
