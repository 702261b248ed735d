package bot

const (
	textHelp = "Я помогаю находить грузы и транспорт.\n\n" +
		"/start - регистрация\n" +
		"/cancel - отменить текущее действие\n" +
		"/help - эта справка\n\n" +
		"Добавляй грузы и ТС, ищи предложения и управляй ими через кнопки меню."
	textUseMenu        = "Воспользуйтесь кнопками меню."
	textUnknownCommand = "Неизвестная команда. Отправьте /help для списка команд."
	textBusy           = "Сначала завершите текущее действие или отправьте /cancel."
	textNotRegistered  = "Сначала зарегистрируйся через /start."
	textForbidden      = "Нет доступа."
	textRecordGone     = "Запись не найдена. Возможно, она уже удалена."
	textFailure        = "Произошла ошибка. Попробуйте позже."
	textResultsExpired = "Результаты устарели, повторите поиск."

	textAdmin     = "🛠 Админ-панель"
	textAdminExit = "Вы вышли из админ-панели."

	textEditProfile    = "Что изменить?"
	textConfirmDelete  = "Удалить профиль вместе со всеми грузами и ТС?"
	textProfileDeleted = "Профиль удалён. Чтобы зарегистрироваться снова, отправь /start."
	textCargoDeleted   = "Груз удалён."
	textTruckDeleted   = "ТС удалено."
	textNoCargo        = "У тебя пока нет грузов."
	textNoTrucks       = "У тебя пока нет ТС."
	textYourCargo      = "Твои грузы:"
	textYourTrucks     = "Твои ТС:"
)
