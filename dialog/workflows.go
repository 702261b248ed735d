package dialog

import (
	"context"
	"fmt"
	"strings"

	"github.com/iabalyuk/freightbot/metrics"
	"github.com/iabalyuk/freightbot/storage"
)

const (
	restartCargo = "Что-то пошло не так. Попробуй «➕ Добавить груз» ещё раз."
	restartTruck = "Что-то пошло не так. Попробуй «➕ Добавить ТС» ещё раз."
)

func (e *Engine) buildWorkflows() []workflow {
	return []workflow{
		registrationFlow(),
		cargoAddFlow(),
		truckAddFlow(),
		cargoSearchFlow(),
		truckSearchFlow(),
		profileFlow(ProfileName, storage.UserName, textStep("name", "Новое имя:", false, textField), "Имя обновлено."),
		profileFlow(ProfileCity, storage.UserCity, textStep("city", "Новый город:", false, textField), "Город обновлён."),
		profileFlow(ProfilePhone, storage.UserPhone, phoneStep("phone", "Новый телефон:", textField), "Телефон обновлён."),
		cargoWeightFlow(),
		cargoRouteFlow(),
		cargoDatesFlow(),
		truckWeightFlow(),
		truckRouteFlow(),
		truckDatesFlow(),
		truckRegionsFlow(),
		broadcastFlow(),
	}
}

func textField(d *TextDraft) *Field[string] { return &d.Text }

func weightField(d *WeightDraft) *Field[int] { return &d.Weight }

func registrationFlow() workflow {
	return &flow[RegistrationDraft]{
		id:    Registration,
		rules: policy{guestOnly: true, restart: "Что-то пошло не так. Отправьте /start ещё раз."},
		steps: []step[RegistrationDraft]{
			textStep("name", "Привет! Давай зарегистрируемся. Как тебя зовут?", false,
				func(d *RegistrationDraft) *Field[string] { return &d.Name }),
			textStep("city", "В каком городе ты находишься?", false,
				func(d *RegistrationDraft) *Field[string] { return &d.City }),
			phoneStep("phone", "Отправь, пожалуйста, свой номер телефона:",
				func(d *RegistrationDraft) *Field[string] { return &d.Phone }),
		},
		finalize: func(ctx context.Context, e *Engine, s Session, _ *Conversation, d *RegistrationDraft) (Prompt, error) {
			u, err := d.Build(s.UserID)
			if err != nil {
				return Prompt{}, err
			}
			created, err := e.store.CreateUser(ctx, u)
			if err != nil {
				return Prompt{}, err
			}
			if !created {
				existing, found, err := e.store.UserByTelegramID(ctx, s.UserID)
				if err != nil {
					return Prompt{}, err
				}
				if found {
					u.Name = existing.Name
				}
				return Prompt{Text: fmt.Sprintf(msgWelcomeBack, u.Name), Menu: MenuMain}, nil
			}
			e.logAction(s, "registered").Str("city", u.City).Msg("user registered")
			return Prompt{Text: fmt.Sprintf(msgWelcome, u.Name), Menu: MenuMain}, nil
		},
	}
}

func cargoAddFlow() workflow {
	return &flow[CargoDraft]{
		id:    CargoAdd,
		rules: policy{needsUser: true, restart: restartCargo},
		steps: []step[CargoDraft]{
			regionStep("region_from", "📦 Начнём добавление груза.\nВыбери регион отправления:",
				func(d *CargoDraft) *Field[string] { return &d.RegionFrom }),
			cityStep("city_from", "Откуда (город):",
				func(d *CargoDraft) *Field[string] { return &d.RegionFrom },
				func(d *CargoDraft) *Field[string] { return &d.CityFrom }),
			regionStep("region_to", "Регион назначения:",
				func(d *CargoDraft) *Field[string] { return &d.RegionTo }),
			cityStep("city_to", "Куда (город):",
				func(d *CargoDraft) *Field[string] { return &d.RegionTo },
				func(d *CargoDraft) *Field[string] { return &d.CityTo }),
			dateStep("date_from", "Дата отправления:",
				func(d *CargoDraft) *Field[string] { return &d.DateFrom }, nil, ""),
			dateStep("date_to", "Дата прибытия:",
				func(d *CargoDraft) *Field[string] { return &d.DateTo },
				func(d *CargoDraft) *Field[string] { return &d.DateFrom }, msgCargoRange),
			weightStep("weight", "Вес (в тоннах, цифрой):", msgCargoWeight,
				func(d *CargoDraft) *Field[int] { return &d.Weight }),
			bodyTypeStep("Выбери тип кузова:", anyCargoBody, msgCargoBody,
				func(d *CargoDraft) *Field[string] { return &d.BodyType }),
			localityStep(func(d *CargoDraft) *Field[bool] { return &d.IsLocal }),
			textStep("comment", "Добавь комментарий (или напиши 'нет'):", true,
				func(d *CargoDraft) *Field[string] { return &d.Comment }),
		},
		finalize: func(ctx context.Context, e *Engine, s Session, c *Conversation, d *CargoDraft) (Prompt, error) {
			cargo, err := d.Build(c.owner.ID)
			if err != nil {
				return Prompt{}, err
			}
			id, err := e.store.CreateCargo(ctx, cargo)
			if err != nil {
				return Prompt{}, err
			}
			metrics.RecordListing("cargo", "create")
			e.logAction(s, "cargo_added").Int64("cargo", id).Msg("cargo added")
			return Prompt{Text: "✅ Груз успешно добавлен!", Menu: MenuMain}, nil
		},
	}
}

func truckAddFlow() workflow {
	return &flow[TruckDraft]{
		id:    TruckAdd,
		rules: policy{needsUser: true, restart: restartTruck},
		steps: []step[TruckDraft]{
			regionStep("region", "🚛 Начнём добавление ТС.\nВыберите регион стоянки:",
				func(d *TruckDraft) *Field[string] { return &d.Region }),
			cityStep("city", "В каком городе стоит ТС?",
				func(d *TruckDraft) *Field[string] { return &d.Region },
				func(d *TruckDraft) *Field[string] { return &d.City }),
			dateStep("date_from", "Дата доступности (с):",
				func(d *TruckDraft) *Field[string] { return &d.DateFrom }, nil, ""),
			dateStep("date_to", "Дата доступности (по):",
				func(d *TruckDraft) *Field[string] { return &d.DateTo },
				func(d *TruckDraft) *Field[string] { return &d.DateFrom }, msgTruckRange),
			weightStep("weight", "Грузоподъёмность (в тоннах):", msgTruckWeight,
				func(d *TruckDraft) *Field[int] { return &d.Weight }),
			bodyTypeStep("Выбери тип кузова ТС:", anyTruckBody, msgTruckBody,
				func(d *TruckDraft) *Field[string] { return &d.BodyType }),
			choiceStep("direction", "Выбери направление:", Directions, msgDirection,
				func(d *TruckDraft) *Field[string] { return &d.Direction }),
			textStep("route_regions", "Перечисли через запятую регионы, где готов ехать (или 'нет'):", true,
				func(d *TruckDraft) *Field[string] { return &d.RouteRegions }),
			textStep("comment", "Добавь комментарий (или напиши 'нет'):", true,
				func(d *TruckDraft) *Field[string] { return &d.Comment }),
		},
		finalize: func(ctx context.Context, e *Engine, s Session, c *Conversation, d *TruckDraft) (Prompt, error) {
			truck, err := d.Build(c.owner.ID)
			if err != nil {
				return Prompt{}, err
			}
			id, err := e.store.CreateTruck(ctx, truck)
			if err != nil {
				return Prompt{}, err
			}
			metrics.RecordListing("truck", "create")
			e.logAction(s, "truck_added").Int64("truck", id).Msg("truck added")
			return Prompt{Text: "✅ ТС успешно добавлено!", Menu: MenuMain}, nil
		},
	}
}

func cargoSearchFlow() workflow {
	return &flow[CargoSearchDraft]{
		id:    CargoSearch,
		rules: policy{needsUser: true},
		steps: []step[CargoSearchDraft]{
			cityFilterStep("city_from", "🔍 Поиск груза.\nВыберите город отправления (или нажмите «Все»):",
				func(ctx context.Context, e *Engine) ([]string, error) { return e.store.CargoOriginCities(ctx) },
				func(d *CargoSearchDraft) *Field[Filter] { return &d.CityFrom }),
			cityFilterStep("city_to", "Введите город назначения (или нажмите «Все»):",
				func(ctx context.Context, e *Engine) ([]string, error) { return e.store.CargoDestinationCities(ctx) },
				func(d *CargoSearchDraft) *Field[Filter] { return &d.CityTo }),
			dateFilterStep("date_from", "Минимальная дата отправления:",
				func(d *CargoSearchDraft) *Field[Filter] { return &d.DateFrom }, nil),
			dateFilterStep("date_to", "Максимальная дата отправления:",
				func(d *CargoSearchDraft) *Field[Filter] { return &d.DateTo },
				func(d *CargoSearchDraft) *Field[Filter] { return &d.DateFrom }),
		},
		finalize: func(ctx context.Context, e *Engine, s Session, _ *Conversation, d *CargoSearchDraft) (Prompt, error) {
			filter, err := d.Build()
			if err != nil {
				return Prompt{}, err
			}
			view := &resultsView{kind: cargoResults, cargo: filter}
			p, err := e.renderResults(ctx, view, 0)
			if err != nil {
				return Prompt{}, err
			}
			e.results[s] = view
			metrics.RecordSearch("cargo", view.total)
			e.logAction(s, "cargo_search").Int("results", view.total).Msg("cargo search")
			return p, nil
		},
	}
}

func truckSearchFlow() workflow {
	return &flow[TruckSearchDraft]{
		id:    TruckSearch,
		rules: policy{needsUser: true},
		steps: []step[TruckSearchDraft]{
			cityFilterStep("city", "🔍 Поиск ТС.\nВыберите город (или нажмите «Все»):",
				func(ctx context.Context, e *Engine) ([]string, error) { return e.store.TruckCities(ctx) },
				func(d *TruckSearchDraft) *Field[Filter] { return &d.City }),
			dateFilterStep("date_from", "Минимальная дата начала:",
				func(d *TruckSearchDraft) *Field[Filter] { return &d.DateFrom }, nil),
			dateFilterStep("date_to", "Максимальная дата начала:",
				func(d *TruckSearchDraft) *Field[Filter] { return &d.DateTo },
				func(d *TruckSearchDraft) *Field[Filter] { return &d.DateFrom }),
		},
		finalize: func(ctx context.Context, e *Engine, s Session, _ *Conversation, d *TruckSearchDraft) (Prompt, error) {
			filter, err := d.Build()
			if err != nil {
				return Prompt{}, err
			}
			view := &resultsView{kind: truckResults, truck: filter}
			p, err := e.renderResults(ctx, view, 0)
			if err != nil {
				return Prompt{}, err
			}
			e.results[s] = view
			metrics.RecordSearch("truck", view.total)
			e.logAction(s, "truck_search").Int("results", view.total).Msg("truck search")
			return p, nil
		},
	}
}

// profileFlow updates a single profile field.
func profileFlow(id WorkflowID, field storage.UserField, st step[TextDraft], done string) workflow {
	return &flow[TextDraft]{
		id:    id,
		rules: policy{needsUser: true},
		steps: []step[TextDraft]{st},
		finalize: func(ctx context.Context, e *Engine, s Session, c *Conversation, d *TextDraft) (Prompt, error) {
			value, err := d.Complete()
			if err != nil {
				return Prompt{}, err
			}
			found, err := e.store.UpdateUser(ctx, c.owner.ID, field, value)
			if err != nil {
				return Prompt{}, err
			}
			if !found {
				return Prompt{}, ErrNotRegistered
			}
			e.logAction(s, "profile_updated").Str("field", string(field)).Msg("profile updated")
			return Prompt{Text: done, Menu: MenuMain}, nil
		},
	}
}

// updated turns an owner-scoped mutation result into the finalizer error.
func updated(found bool, err error) error {
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func cargoWeightFlow() workflow {
	return &flow[WeightDraft]{
		id:    CargoWeight,
		rules: policy{needsUser: true, target: targetCargo},
		steps: []step[WeightDraft]{
			weightStep("weight", "Новый вес (в тоннах, цифрой):", msgCargoWeight, weightField),
		},
		finalize: func(ctx context.Context, e *Engine, s Session, c *Conversation, d *WeightDraft) (Prompt, error) {
			w, err := d.Complete()
			if err != nil {
				return Prompt{}, err
			}
			if err := updated(e.store.UpdateCargoWeight(ctx, c.owner.ID, c.target, w)); err != nil {
				return Prompt{}, err
			}
			metrics.RecordListing("cargo", "update")
			e.logAction(s, "cargo_weight_updated").Int64("cargo", c.target).Msg("cargo updated")
			return Prompt{Text: "Вес обновлён.", Menu: MenuMain}, nil
		},
	}
}

func cargoRouteFlow() workflow {
	return &flow[CargoRouteDraft]{
		id:    CargoRoute,
		rules: policy{needsUser: true, target: targetCargo},
		steps: []step[CargoRouteDraft]{
			regionStep("region_from", "Регион отправления:",
				func(d *CargoRouteDraft) *Field[string] { return &d.RegionFrom }),
			cityStep("city_from", "Откуда (город):",
				func(d *CargoRouteDraft) *Field[string] { return &d.RegionFrom },
				func(d *CargoRouteDraft) *Field[string] { return &d.CityFrom }),
			regionStep("region_to", "Регион назначения:",
				func(d *CargoRouteDraft) *Field[string] { return &d.RegionTo }),
			cityStep("city_to", "Куда (город):",
				func(d *CargoRouteDraft) *Field[string] { return &d.RegionTo },
				func(d *CargoRouteDraft) *Field[string] { return &d.CityTo }),
		},
		finalize: func(ctx context.Context, e *Engine, s Session, c *Conversation, d *CargoRouteDraft) (Prompt, error) {
			regionFrom, cityFrom, regionTo, cityTo, err := d.Complete()
			if err != nil {
				return Prompt{}, err
			}
			if err := updated(e.store.UpdateCargoRoute(ctx, c.owner.ID, c.target, regionFrom, cityFrom, regionTo, cityTo)); err != nil {
				return Prompt{}, err
			}
			metrics.RecordListing("cargo", "update")
			e.logAction(s, "cargo_route_updated").Int64("cargo", c.target).Msg("cargo updated")
			return Prompt{Text: "Маршрут обновлён.", Menu: MenuMain}, nil
		},
	}
}

func datesSteps(from, to, rangeMsg string) []step[DatesDraft] {
	return []step[DatesDraft]{
		dateStep("date_from", from, func(d *DatesDraft) *Field[string] { return &d.DateFrom }, nil, ""),
		dateStep("date_to", to,
			func(d *DatesDraft) *Field[string] { return &d.DateTo },
			func(d *DatesDraft) *Field[string] { return &d.DateFrom }, rangeMsg),
	}
}

func cargoDatesFlow() workflow {
	return &flow[DatesDraft]{
		id:    CargoDates,
		rules: policy{needsUser: true, target: targetCargo},
		steps: datesSteps("Новая дата отправления:", "Новая дата прибытия:", msgCargoRange),
		finalize: func(ctx context.Context, e *Engine, s Session, c *Conversation, d *DatesDraft) (Prompt, error) {
			from, to, err := d.Complete()
			if err != nil {
				return Prompt{}, err
			}
			if err := updated(e.store.UpdateCargoDates(ctx, c.owner.ID, c.target, from, to)); err != nil {
				return Prompt{}, err
			}
			metrics.RecordListing("cargo", "update")
			e.logAction(s, "cargo_dates_updated").Int64("cargo", c.target).Msg("cargo updated")
			return Prompt{Text: "Даты обновлены.", Menu: MenuMain}, nil
		},
	}
}

func truckWeightFlow() workflow {
	return &flow[WeightDraft]{
		id:    TruckWeight,
		rules: policy{needsUser: true, target: targetTruck},
		steps: []step[WeightDraft]{
			weightStep("weight", "Новая грузоподъёмность (в тоннах):", msgTruckWeight, weightField),
		},
		finalize: func(ctx context.Context, e *Engine, s Session, c *Conversation, d *WeightDraft) (Prompt, error) {
			w, err := d.Complete()
			if err != nil {
				return Prompt{}, err
			}
			if err := updated(e.store.UpdateTruckWeight(ctx, c.owner.ID, c.target, w)); err != nil {
				return Prompt{}, err
			}
			metrics.RecordListing("truck", "update")
			e.logAction(s, "truck_weight_updated").Int64("truck", c.target).Msg("truck updated")
			return Prompt{Text: "Грузоподъёмность обновлена.", Menu: MenuMain}, nil
		},
	}
}

func truckRouteFlow() workflow {
	return &flow[TruckRouteDraft]{
		id:    TruckRoute,
		rules: policy{needsUser: true, target: targetTruck},
		steps: []step[TruckRouteDraft]{
			regionStep("region", "Выберите регион стоянки:",
				func(d *TruckRouteDraft) *Field[string] { return &d.Region }),
			cityStep("city", "В каком городе стоит ТС?",
				func(d *TruckRouteDraft) *Field[string] { return &d.Region },
				func(d *TruckRouteDraft) *Field[string] { return &d.City }),
		},
		finalize: func(ctx context.Context, e *Engine, s Session, c *Conversation, d *TruckRouteDraft) (Prompt, error) {
			region, city, err := d.Complete()
			if err != nil {
				return Prompt{}, err
			}
			if err := updated(e.store.UpdateTruckRoute(ctx, c.owner.ID, c.target, region, city)); err != nil {
				return Prompt{}, err
			}
			metrics.RecordListing("truck", "update")
			e.logAction(s, "truck_route_updated").Int64("truck", c.target).Msg("truck updated")
			return Prompt{Text: "Место стоянки обновлено.", Menu: MenuMain}, nil
		},
	}
}

func truckDatesFlow() workflow {
	return &flow[DatesDraft]{
		id:    TruckDates,
		rules: policy{needsUser: true, target: targetTruck},
		steps: datesSteps("Новая дата доступности (с):", "Новая дата доступности (по):", msgTruckRange),
		finalize: func(ctx context.Context, e *Engine, s Session, c *Conversation, d *DatesDraft) (Prompt, error) {
			from, to, err := d.Complete()
			if err != nil {
				return Prompt{}, err
			}
			if err := updated(e.store.UpdateTruckDates(ctx, c.owner.ID, c.target, from, to)); err != nil {
				return Prompt{}, err
			}
			metrics.RecordListing("truck", "update")
			e.logAction(s, "truck_dates_updated").Int64("truck", c.target).Msg("truck updated")
			return Prompt{Text: "Даты обновлены.", Menu: MenuMain}, nil
		},
	}
}

func truckRegionsFlow() workflow {
	return &flow[TextDraft]{
		id:    TruckRegions,
		rules: policy{needsUser: true, target: targetTruck},
		steps: []step[TextDraft]{
			textStep("route_regions", "Перечисли через запятую регионы, где готов ехать (или 'нет'):", true, textField),
		},
		finalize: func(ctx context.Context, e *Engine, s Session, c *Conversation, d *TextDraft) (Prompt, error) {
			regions, err := d.Complete()
			if err != nil {
				return Prompt{}, err
			}
			if err := updated(e.store.UpdateTruckRegions(ctx, c.owner.ID, c.target, regions)); err != nil {
				return Prompt{}, err
			}
			metrics.RecordListing("truck", "update")
			e.logAction(s, "truck_regions_updated").Int64("truck", c.target).Msg("truck updated")
			return Prompt{Text: "Регионы обновлены.", Menu: MenuMain}, nil
		},
	}
}

func broadcastFlow() workflow {
	return &flow[TextDraft]{
		id:    Broadcast,
		rules: policy{operatorOnly: true},
		steps: []step[TextDraft]{{
			name:   "text",
			prompt: "Введите текст рассылки:",
			accept: func(_ *Engine, d *TextDraft, raw string) error {
				if strings.TrimSpace(raw) == "" {
					return reject(msgEmptyBroadcast)
				}
				d.Text.Set(raw)
				return nil
			},
		}},
		finalize: func(ctx context.Context, e *Engine, s Session, _ *Conversation, d *TextDraft) (Prompt, error) {
			text, err := d.Complete()
			if err != nil {
				return Prompt{}, err
			}
			ids, err := e.store.TelegramIDs(ctx)
			if err != nil {
				return Prompt{}, err
			}
			e.startBroadcast(ctx, s, text, ids)
			e.logAction(s, "broadcast").Int("total", len(ids)).Msg("broadcast started")
			return Prompt{
				Text: fmt.Sprintf(msgBroadcastStarted, len(ids)),
				Menu: MenuAdmin,
			}, nil
		},
	}
}
