package dialog

// Fixed answer sets.
var (
	BodyTypes  = []string{"Рефрижератор", "Тент", "Изотерм"}
	Directions = []string{"Ищу заказ", "Попутный путь"}
)

const (
	anyCargoBody = "Не важно"
	anyTruckBody = "Любой"
	anyCity      = "Все"
	noWord       = "нет"

	localYes = "Да (внутригородской)"
	localNo  = "Нет (междугородний)"

	pagePrev = "⬅️ Назад"
	pageNext = "Вперёд ➡️"

	contactButton = "Отправить номер телефона"
)

const (
	msgPickRegion     = "Пожалуйста, выбери регион из списка."
	msgPickCity       = "Пожалуйста, выбери город из списка."
	msgBadDate        = "Неверный формат даты. Введите ДД.MM.ГГГГ:"
	msgBadFilterDate  = "Неверный формат даты. Введите ДД.MM.ГГГГ или «нет»."
	msgCargoRange     = "Дата прибытия не может быть раньше даты отправления. Повторите ввод:"
	msgTruckRange     = "Дата «по» не может быть раньше даты «с». Повторите ввод:"
	msgFilterRange    = "Максимальная дата не может быть раньше минимальной. Повторите ввод:"
	msgCargoWeight    = "Пожалуйста, введи вес от 1 до %d тонн цифрой (например, 12):"
	msgTruckWeight    = "Введи грузоподъёмность от 1 до %d тонн цифрой (например, 15):"
	msgCargoBody      = "Пожалуйста, нажми одну из кнопок:\n«Рефрижератор», «Тент», «Изотерм» или «Не важно»."
	msgTruckBody      = "Пожалуйста, нажми одну из кнопок: «Рефрижератор», «Тент», «Изотерм» или «Любой»."
	msgLocal          = "Пожалуйста, нажми «Да (внутригородской)» или «Нет (междугородний)»."
	msgDirection      = "Пожалуйста, нажми «Ищу заказ» или «Попутный путь»."
	msgPhone          = "Введите телефон в формате +79991234567:"
	msgEmpty          = "Ответ не может быть пустым. Попробуйте ещё раз:"
	msgEmptyCity      = "Введите название города или нажмите «Все»."
	msgEmptyBroadcast = "Текст рассылки не может быть пустым."

	msgBroadcastStarted = "Рассылка запущена. Получателей: %d."
	msgBroadcastDone    = "Рассылка завершена. Доставлено: %d из %d."
	msgBroadcastStopped = "Рассылка прервана. Доставлено: %d из %d."

	msgNotRegistered = "Сначала зарегистрируйся через /start."
	msgNoProfile     = "Не удалось найти профиль. Сначала /start."
	msgBusy          = "Сначала завершите текущее действие или отправьте /cancel."
	msgCancelled     = "Действие отменено."
	msgRestart       = "Что-то пошло не так. Начните заново."
	msgRecordGone    = "Запись не найдена. Возможно, она уже удалена."
	msgSaveFailed    = "Не удалось сохранить данные. Отправьте ответ ещё раз или /cancel."
	msgWelcome       = "Регистрация завершена! Приятно познакомиться, %s."
	msgWelcomeBack   = "Добро пожаловать обратно, %s!"

	msgNoResults      = "📬 По вашему запросу ничего не найдено."
	msgNoTruckResults = "📬 По вашему запросу ТС не найдено."
)
