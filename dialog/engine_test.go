package dialog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iabalyuk/freightbot/calendar"
	"github.com/iabalyuk/freightbot/locations"
	"github.com/iabalyuk/freightbot/storage"
)

const operatorID = 99

type message struct {
	chatID int64
	id     int
	prompt Prompt
}

// recordingTransport keeps every outgoing message in memory.
type recordingTransport struct {
	mu        sync.Mutex
	nextID    int
	sent      []message
	edits     []message
	retracted []int
	failSend  bool
}

func (r *recordingTransport) Send(_ context.Context, chatID int64, p Prompt) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSend {
		return 0, errors.New("send failed")
	}
	r.nextID++
	r.sent = append(r.sent, message{chatID: chatID, id: r.nextID, prompt: p})
	return r.nextID, nil
}

func (r *recordingTransport) Edit(_ context.Context, chatID int64, messageID int, p Prompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, message{chatID: chatID, id: messageID, prompt: p})
	return nil
}

func (r *recordingTransport) Retract(_ context.Context, _ int64, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retracted = append(r.retracted, messageID)
	return nil
}

func (r *recordingTransport) last() message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return message{}
	}
	return r.sent[len(r.sent)-1]
}

type harness struct {
	t       *testing.T
	ctx     context.Context
	store   *storage.SQLiteStore
	tr      *recordingTransport
	engine  *Engine
	session Session
	msgID   int
}

func newHarness(t *testing.T, opts ...func(*Options)) *harness {
	t.Helper()

	store, err := storage.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"), storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tr := &recordingTransport{nextID: 1000}
	o := Options{
		Store:         store,
		Transport:     tr,
		IsOperator:    func(id int64) bool { return id == operatorID },
		PageSize:      5,
		BroadcastRate: 1000,
		Now:           func() time.Time { return time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC) },
	}
	for _, apply := range opts {
		apply(&o)
	}
	return &harness{
		t:       t,
		ctx:     context.Background(),
		store:   store,
		tr:      tr,
		engine:  NewEngine(o),
		session: Session{ChatID: 1, UserID: 1},
	}
}

func (h *harness) register(telegramID int64, name string) storage.User {
	h.t.Helper()
	_, err := h.store.CreateUser(h.ctx, storage.User{TelegramID: telegramID, Name: name, City: "Moscow", Phone: "+79991234567"})
	require.NoError(h.t, err)
	u, ok, err := h.store.UserByTelegramID(h.ctx, telegramID)
	require.NoError(h.t, err)
	require.True(h.t, ok)
	return u
}

func (h *harness) say(text string) Outcome {
	h.msgID++
	return h.engine.Advance(h.ctx, h.session, Input{Kind: InputText, Text: text, MessageID: h.msgID})
}

func (h *harness) press(data string) Outcome {
	return h.engine.Advance(h.ctx, h.session, Input{Kind: InputButton, Text: data, PromptID: h.tr.last().id})
}

func (h *harness) step() string {
	_, step, ok := h.engine.Current(h.session)
	if !ok {
		return ""
	}
	return step
}

func (h *harness) answerAll(answers ...string) []Outcome {
	out := make([]Outcome, 0, len(answers))
	for _, a := range answers {
		out = append(out, h.say(a))
	}
	return out
}

func day(y int, m time.Month, d int) string {
	return calendar.SelectData(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

var cargoAnswers = []string{
	"Moscow Oblast", "Moscow", "Saint Petersburg Oblast", "Saint Petersburg",
	"01.06.2024", "05.06.2024", "12", "Тент", "Нет", "нет",
}

func TestCargoAddHappyPath(t *testing.T) {
	h := newHarness(t)
	u := h.register(1, "Иван")

	require.NoError(t, h.engine.Start(h.ctx, h.session, CargoAdd))
	assert.Equal(t, "region_from", h.step())
	assert.Equal(t, "📦 Начнём добавление груза.\nВыбери регион отправления:", h.tr.last().prompt.Text)

	outcomes := h.answerAll(cargoAnswers...)
	for i, o := range outcomes[:len(outcomes)-1] {
		assert.Equal(t, Advanced, o, "answer %d (%s)", i, cargoAnswers[i])
	}
	assert.Equal(t, Completed, outcomes[len(outcomes)-1])
	assert.False(t, h.engine.Active(h.session))
	assert.Equal(t, "✅ Груз успешно добавлен!", h.tr.last().prompt.Text)

	rows, err := h.store.CargoByOwner(h.ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	c := rows[0]
	assert.Equal(t, 12, c.Weight)
	assert.Equal(t, "", c.Comment)
	assert.Equal(t, "2024-06-01", c.DateFrom)
	assert.Equal(t, "2024-06-05", c.DateTo)
	assert.Equal(t, "Moscow", c.CityFrom)
	assert.Equal(t, "Saint Petersburg", c.CityTo)
	assert.Equal(t, "Тент", c.BodyType)
	assert.False(t, c.IsLocal)
}

func TestCargoAddInvalidWeightStaysOnStep(t *testing.T) {
	h := newHarness(t)
	u := h.register(1, "Иван")
	require.NoError(t, h.engine.Start(h.ctx, h.session, CargoAdd))

	h.answerAll(cargoAnswers[:6]...)
	require.Equal(t, "weight", h.step())

	assert.Equal(t, Rejected, h.say("abc"))
	assert.Equal(t, "weight", h.step())
	last := h.tr.last().prompt.Text
	assert.True(t, strings.HasPrefix(last, fmt.Sprintf(msgCargoWeight, 1000)))
	assert.Contains(t, last, "Вес (в тоннах, цифрой):")

	rows, err := h.store.CargoByOwner(h.ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.Equal(t, Rejected, h.say("1001"))
	assert.Equal(t, Advanced, h.say("12"))
	assert.Equal(t, "body_type", h.step())
}

func TestRejectionRetractsPreviousPromptAndAnswer(t *testing.T) {
	h := newHarness(t)
	h.register(1, "Иван")
	require.NoError(t, h.engine.Start(h.ctx, h.session, CargoAdd))
	first := h.tr.last().id

	assert.Equal(t, Rejected, h.say("Atlantis"))
	assert.Contains(t, h.tr.retracted, first)
	assert.Contains(t, h.tr.retracted, h.msgID)
	assert.True(t, strings.HasPrefix(h.tr.last().prompt.Text, msgPickRegion))
}

func TestCityMustBelongToRegion(t *testing.T) {
	h := newHarness(t)
	h.register(1, "Иван")
	require.NoError(t, h.engine.Start(h.ctx, h.session, CargoAdd))

	assert.Equal(t, Advanced, h.say("Moscow Oblast"))
	if diff := cmp.Diff([][]string{{"Moscow"}, {"Khimki"}, {"Podolsk"}}, h.tr.last().prompt.Replies); diff != "" {
		t.Errorf("city options mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Rejected, h.say("Berdsk"))
	assert.Equal(t, "city_from", h.step())
}

func TestDateRangeCrossFieldCheck(t *testing.T) {
	h := newHarness(t)
	h.register(1, "Иван")
	require.NoError(t, h.engine.Start(h.ctx, h.session, CargoAdd))
	h.answerAll(cargoAnswers[:4]...)

	assert.Equal(t, Rejected, h.say("31.02.2024"))
	assert.True(t, strings.HasPrefix(h.tr.last().prompt.Text, msgBadDate))
	assert.Equal(t, Advanced, h.say("05.06.2024"))
	assert.Equal(t, Rejected, h.say("01.06.2024"))
	assert.True(t, strings.HasPrefix(h.tr.last().prompt.Text, msgCargoRange))
	assert.Equal(t, "date_to", h.step())
	assert.Equal(t, Advanced, h.say("05.06.2024"), "same-day range is valid")
}

func TestCalendarNavigationDoesNotAdvance(t *testing.T) {
	h := newHarness(t)
	h.register(1, "Иван")
	require.NoError(t, h.engine.Start(h.ctx, h.session, CargoAdd))
	h.answerAll(cargoAnswers[:4]...)
	require.Equal(t, "date_from", h.step())

	prompt := h.tr.last().prompt
	require.NotEmpty(t, prompt.Inline)
	assert.Equal(t, "Июнь 2024", prompt.Inline[0][2].Text)

	assert.Equal(t, Navigated, h.press(calendar.NavigateData(2024, time.May)))
	assert.Equal(t, "date_from", h.step())
	require.Len(t, h.tr.edits, 1)
	edited := h.tr.edits[0]
	assert.Equal(t, h.tr.last().id, edited.id)
	assert.Equal(t, "Май 2024", edited.prompt.Inline[0][2].Text)
	for _, row := range edited.prompt.Inline {
		for _, b := range row {
			assert.NotEqual(t, calendar.SkipText, b.Text, "mandatory dates offer no skip")
		}
	}

	assert.Equal(t, Ignored, h.press("cal:noop"))
	assert.Equal(t, Ignored, h.press("cal:skip"), "skip is not offered for mandatory dates")

	assert.Equal(t, Advanced, h.press(day(2024, time.May, 30)))
	assert.Equal(t, "date_to", h.step())
	assert.Equal(t, Rejected, h.press(day(2024, time.May, 29)))
	assert.Equal(t, Advanced, h.press(day(2024, time.June, 2)))
	assert.Equal(t, "weight", h.step())
}

func TestStaleCalendarButtonIgnored(t *testing.T) {
	h := newHarness(t)
	h.register(1, "Иван")
	require.NoError(t, h.engine.Start(h.ctx, h.session, CargoAdd))
	h.answerAll(cargoAnswers[:4]...)

	out := h.engine.Advance(h.ctx, h.session, Input{Kind: InputButton, Text: day(2024, time.June, 3), PromptID: 1})
	assert.Equal(t, Ignored, out)
	assert.Equal(t, "date_from", h.step())
}

func TestButtonOutsideCalendarStepIgnored(t *testing.T) {
	h := newHarness(t)
	h.register(1, "Иван")
	require.NoError(t, h.engine.Start(h.ctx, h.session, CargoAdd))

	assert.Equal(t, Ignored, h.press(day(2024, time.June, 3)))
	assert.Equal(t, Ignored, h.press("manage_cargo"))
	assert.Equal(t, "region_from", h.step())
}

func TestTruckAddFlow(t *testing.T) {
	h := newHarness(t)
	u := h.register(1, "Иван")
	require.NoError(t, h.engine.Start(h.ctx, h.session, TruckAdd))

	assert.Equal(t, Advanced, h.say("Novosibirsk Oblast"))
	assert.Equal(t, Advanced, h.say("Berdsk"))
	assert.Equal(t, Advanced, h.press(day(2024, time.June, 11)))
	assert.Equal(t, Advanced, h.say("20.06.2024"))
	assert.Equal(t, Advanced, h.say("20"))
	assert.Equal(t, Rejected, h.say("Не важно"), "cargo wildcard is not a truck option")
	assert.Equal(t, Advanced, h.say("Любой"))
	assert.Equal(t, Rejected, h.say("Куда угодно"))
	assert.Equal(t, Advanced, h.say("Попутный путь"))
	assert.Equal(t, Advanced, h.say("Татарстан, Чувашия"))
	assert.Equal(t, Completed, h.say("Без перегруза"))

	trucks, err := h.store.TrucksByOwner(h.ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, trucks, 1)
	tr := trucks[0]
	assert.Equal(t, "Berdsk", tr.City)
	assert.Equal(t, "2024-06-11", tr.DateFrom)
	assert.Equal(t, "2024-06-20", tr.DateTo)
	assert.Equal(t, "Любой", tr.BodyType)
	assert.Equal(t, "Попутный путь", tr.Direction)
	assert.Equal(t, "Татарстан, Чувашия", tr.RouteRegions)
	assert.Equal(t, "Без перегруза", tr.Comment)
}

func TestSearchWithSkippedFilters(t *testing.T) {
	h := newHarness(t)
	u := h.register(1, "Иван")
	for _, city := range []string{"Moscow", "Khimki"} {
		_, err := h.store.CreateCargo(h.ctx, storage.Cargo{
			UserID: u.ID, RegionFrom: "Moscow Oblast", CityFrom: city,
			RegionTo: "Moscow Oblast", CityTo: "Podolsk",
			DateFrom: "2024-06-01", DateTo: "2024-06-02", Weight: 3, BodyType: "Тент",
		})
		require.NoError(t, err)
	}

	require.NoError(t, h.engine.Start(h.ctx, h.session, CargoSearch))
	if diff := cmp.Diff([][]string{{"Khimki"}, {"Moscow"}, {"Все"}}, h.tr.last().prompt.Replies); diff != "" {
		t.Errorf("origin options mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, Advanced, h.say("Все"))
	assert.Equal(t, Advanced, h.say("Все"))
	assert.Equal(t, Advanced, h.say("нет"))
	assert.Equal(t, Completed, h.say("нет"))

	result := h.tr.last().prompt
	assert.True(t, result.HTML)
	assert.Contains(t, result.Text, "Найденные грузы")
	assert.Contains(t, result.Text, "Moscow, Moscow Oblast")
	assert.Contains(t, result.Text, "Khimki, Moscow Oblast")
	assert.Equal(t, 2, h.engine.results[h.session].total)
}

// flakyStore fails the destination city lookup the given number of times.
type flakyStore struct {
	storage.Store
	failures int
}

func (f *flakyStore) CargoDestinationCities(ctx context.Context) ([]string, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("database is locked")
	}
	return f.Store.CargoDestinationCities(ctx)
}

func TestFailedNextStepKeepsAnsweredStep(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Store = &flakyStore{Store: o.Store, failures: 1}
	})
	u := h.register(1, "Иван")
	_, err := h.store.CreateCargo(h.ctx, storage.Cargo{
		UserID: u.ID, RegionFrom: "Moscow Oblast", CityFrom: "Moscow",
		RegionTo: "Moscow Oblast", CityTo: "Podolsk",
		DateFrom: "2024-06-01", DateTo: "2024-06-02", Weight: 3, BodyType: "Тент",
	})
	require.NoError(t, err)

	require.NoError(t, h.engine.Start(h.ctx, h.session, CargoSearch))
	assert.Equal(t, Retained, h.say("Moscow"))
	assert.Equal(t, "city_from", h.step())
	assert.Equal(t, msgSaveFailed, h.tr.last().prompt.Text)

	assert.Equal(t, Advanced, h.say("Moscow"))
	assert.Equal(t, "city_to", h.step())
	if diff := cmp.Diff([][]string{{"Podolsk"}, {"Все"}}, h.tr.last().prompt.Replies); diff != "" {
		t.Errorf("destination options mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, Advanced, h.say("Podolsk"))
	d, ok := h.engine.conversations[h.session].draft.(*CargoSearchDraft)
	require.True(t, ok)
	from, _ := d.CityFrom.Get()
	to, _ := d.CityTo.Get()
	assert.Equal(t, Filter{Value: "Moscow"}, from)
	assert.Equal(t, Filter{Value: "Podolsk"}, to)
}

func TestSearchCalendarSkipAndFilters(t *testing.T) {
	h := newHarness(t)
	u := h.register(1, "Иван")
	_, err := h.store.CreateTruck(h.ctx, storage.Truck{
		UserID: u.ID, Region: "Moscow Oblast", City: "Moscow", DateFrom: "2024-06-15", DateTo: "2024-06-20",
		Weight: 10, BodyType: "Тент", Direction: "Ищу заказ",
	})
	require.NoError(t, err)

	require.NoError(t, h.engine.Start(h.ctx, h.session, TruckSearch))
	assert.Equal(t, Advanced, h.say("moscow"))

	last := h.tr.last().prompt.Inline
	assert.Equal(t, calendar.SkipText, last[len(last)-1][0].Text, "optional dates offer skip")
	assert.Equal(t, Advanced, h.press(day(2024, time.June, 20)))
	assert.Equal(t, Rejected, h.press(day(2024, time.June, 19)))
	assert.True(t, strings.HasPrefix(h.tr.last().prompt.Text, msgFilterRange))
	assert.Equal(t, Completed, h.press("cal:skip"))

	assert.Equal(t, msgNoTruckResults, h.tr.last().prompt.Text)
	assert.Equal(t, 0, h.engine.results[h.session].total)
}

func TestSearchResultPages(t *testing.T) {
	h := newHarness(t)
	u := h.register(1, "Иван")
	for i := 0; i < 7; i++ {
		_, err := h.store.CreateTruck(h.ctx, storage.Truck{
			UserID: u.ID, Region: "Moscow Oblast", City: "Khimki", DateFrom: "2024-06-15", DateTo: "2024-06-20",
			Weight: 10 + i, BodyType: "Тент", Direction: "Ищу заказ",
		})
		require.NoError(t, err)
	}

	require.NoError(t, h.engine.Start(h.ctx, h.session, TruckSearch))
	h.answerAll("Все", "нет")
	assert.Equal(t, Completed, h.say("нет"))

	first := h.tr.last()
	require.Len(t, first.prompt.Inline, 1)
	assert.Equal(t, []Button{{Text: "Вперёд", Data: "page:1"}}, first.prompt.Inline[0])
	assert.Equal(t, 5, strings.Count(first.prompt.Text, "ID: "))

	page, ok := ParsePage(first.prompt.Inline[0][0].Data)
	require.True(t, ok)
	require.NoError(t, h.engine.ShowPage(h.ctx, h.session, first.id, page))
	require.Len(t, h.tr.edits, 1)
	second := h.tr.edits[0]
	assert.Equal(t, first.id, second.id)
	assert.Equal(t, 2, strings.Count(second.prompt.Text, "ID: "))
	assert.Equal(t, []Button{{Text: "Назад", Data: "page:0"}}, second.prompt.Inline[0])

	err := h.engine.ShowPage(h.ctx, Session{ChatID: 5, UserID: 5}, first.id, 1)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRegistrationIsIdempotent(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.engine.Start(h.ctx, h.session, Registration))
	assert.Equal(t, "Привет! Давай зарегистрируемся. Как тебя зовут?", h.tr.last().prompt.Text)
	assert.Equal(t, Advanced, h.say("Иван"))
	assert.Equal(t, Advanced, h.say("Москва"))
	assert.Equal(t, contactButton, h.tr.last().prompt.Contact)
	assert.Equal(t, Rejected, h.say("12345"))
	assert.Equal(t, Completed, h.engine.Advance(h.ctx, h.session, Input{Kind: InputContact, Text: "79991234567"}))
	assert.Equal(t, fmt.Sprintf(msgWelcome, "Иван"), h.tr.last().prompt.Text)

	// A second run for the same account completes without a duplicate row.
	other := Session{ChatID: 2, UserID: 1}
	require.NoError(t, h.engine.Start(h.ctx, other, Registration))
	assert.False(t, h.engine.Active(other), "registered users are greeted, not re-registered")
	assert.Equal(t, fmt.Sprintf(msgWelcomeBack, "Иван"), h.tr.last().prompt.Text)

	st, err := h.store.Stats(h.ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalUsers)
}

func TestRegistrationRaceYieldsWelcomeBack(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Start(h.ctx, h.session, Registration))
	h.answerAll("Иван", "Москва")

	h.register(1, "Пётр")
	assert.Equal(t, Completed, h.say("+79991234567"))
	assert.Equal(t, fmt.Sprintf(msgWelcomeBack, "Пётр"), h.tr.last().prompt.Text)

	st, err := h.store.Stats(h.ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalUsers)
}

func TestStartPreconditions(t *testing.T) {
	h := newHarness(t)

	err := h.engine.Start(h.ctx, h.session, CargoAdd)
	assert.True(t, errors.Is(err, ErrNotRegistered))
	assert.False(t, h.engine.Active(h.session))

	err = h.engine.Start(h.ctx, h.session, Broadcast)
	assert.True(t, errors.Is(err, ErrForbidden))

	err = h.engine.Start(h.ctx, h.session, WorkflowID("nope"))
	assert.True(t, errors.Is(err, ErrUnknownWorkflow))

	h.register(1, "Иван")
	require.NoError(t, h.engine.Start(h.ctx, h.session, CargoAdd))
	err = h.engine.Start(h.ctx, h.session, TruckAdd)
	assert.True(t, errors.Is(err, ErrBusy))
	id, step, ok := h.engine.Current(h.session)
	assert.True(t, ok)
	assert.Equal(t, CargoAdd, id)
	assert.Equal(t, "region_from", step)
}

func TestCancelClearsConversation(t *testing.T) {
	h := newHarness(t)
	u := h.register(1, "Иван")
	require.NoError(t, h.engine.Start(h.ctx, h.session, CargoAdd))
	h.answerAll(cargoAnswers[:3]...)
	live := h.tr.last().id

	assert.True(t, h.engine.Cancel(h.ctx, h.session))
	assert.False(t, h.engine.Active(h.session))
	assert.Contains(t, h.tr.retracted, live)
	assert.Equal(t, Prompt{Text: msgCancelled, Menu: MenuMain}, h.tr.last().prompt)
	assert.Equal(t, Ignored, h.say("Moscow"))

	rows, err := h.store.CargoByOwner(h.ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.False(t, h.engine.Cancel(h.ctx, h.session))
	require.NoError(t, h.engine.Start(h.ctx, h.session, TruckAdd))
}

func TestPersistenceFailureRetainsConversation(t *testing.T) {
	h := newHarness(t)
	h.register(1, "Иван")
	require.NoError(t, h.engine.Start(h.ctx, h.session, CargoAdd))
	h.answerAll(cargoAnswers[:9]...)
	require.Equal(t, "comment", h.step())

	require.NoError(t, h.store.Close())
	assert.Equal(t, Retained, h.say("нет"))
	assert.True(t, h.engine.Active(h.session))
	assert.Equal(t, "comment", h.step())
	assert.Equal(t, msgSaveFailed, h.tr.last().prompt.Text)
}

func TestCorruptDraftAborts(t *testing.T) {
	h := newHarness(t)
	h.register(1, "Иван")
	require.NoError(t, h.engine.Start(h.ctx, h.session, CargoAdd))

	h.engine.conversations[h.session].draft = &TruckDraft{}
	assert.Equal(t, Aborted, h.say("Moscow Oblast"))
	assert.False(t, h.engine.Active(h.session))
	assert.Equal(t, restartCargo, h.tr.last().prompt.Text)
}

func TestOwnerDeletedMidFlowAborts(t *testing.T) {
	h := newHarness(t)
	u := h.register(1, "Иван")
	require.NoError(t, h.engine.Start(h.ctx, h.session, ProfileCity))

	_, err := h.store.DeleteUser(h.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, Aborted, h.say("Казань"))
	assert.Equal(t, msgNoProfile, h.tr.last().prompt.Text)
}

func TestProfileEdits(t *testing.T) {
	h := newHarness(t)
	h.register(1, "Иван")

	require.NoError(t, h.engine.Start(h.ctx, h.session, ProfileName))
	assert.Equal(t, Rejected, h.say("   "))
	assert.Equal(t, Completed, h.say("Иван Петров"))
	assert.Equal(t, "Имя обновлено.", h.tr.last().prompt.Text)

	require.NoError(t, h.engine.Start(h.ctx, h.session, ProfilePhone))
	assert.Equal(t, Rejected, h.say("7999123456"))
	assert.Equal(t, Completed, h.say("+79990000000"))

	u, _, err := h.store.UserByTelegramID(h.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Иван Петров", u.Name)
	assert.Equal(t, "+79990000000", u.Phone)
}

func TestEditWorkflowsAreOwnerScoped(t *testing.T) {
	h := newHarness(t)
	me := h.register(1, "Иван")
	other := h.register(2, "Пётр")

	mine, err := h.store.CreateCargo(h.ctx, storage.Cargo{
		UserID: me.ID, RegionFrom: "Moscow Oblast", CityFrom: "Moscow", RegionTo: "Moscow Oblast", CityTo: "Khimki",
		DateFrom: "2024-06-01", DateTo: "2024-06-02", Weight: 3, BodyType: "Тент",
	})
	require.NoError(t, err)
	theirs, err := h.store.CreateCargo(h.ctx, storage.Cargo{
		UserID: other.ID, RegionFrom: "Moscow Oblast", CityFrom: "Moscow", RegionTo: "Moscow Oblast", CityTo: "Khimki",
		DateFrom: "2024-06-01", DateTo: "2024-06-02", Weight: 3, BodyType: "Тент",
	})
	require.NoError(t, err)

	err = h.engine.StartEdit(h.ctx, h.session, CargoWeight, theirs)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, h.engine.Active(h.session))

	require.NoError(t, h.engine.StartEdit(h.ctx, h.session, CargoWeight, mine))
	assert.Equal(t, Completed, h.say("7"))

	require.NoError(t, h.engine.StartEdit(h.ctx, h.session, CargoRoute, mine))
	assert.Equal(t, Completed, h.answerAll("Novosibirsk Oblast", "Novosibirsk", "Moscow Oblast", "Podolsk")[3])

	require.NoError(t, h.engine.StartEdit(h.ctx, h.session, CargoDates, mine))
	assert.Equal(t, Completed, h.answerAll("10.06.2024", "12.06.2024")[1])

	c, ok, err := h.store.CargoByID(h.ctx, me.ID, mine)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, c.Weight)
	assert.Equal(t, "Novosibirsk", c.CityFrom)
	assert.Equal(t, "Podolsk", c.CityTo)
	assert.Equal(t, "2024-06-10", c.DateFrom)
	assert.Equal(t, "2024-06-12", c.DateTo)

	origins, err := h.store.CargoOriginCities(h.ctx)
	require.NoError(t, err)
	assert.Contains(t, origins, "Novosibirsk", "route edits invalidate the projections")
}

func TestTruckEditWorkflows(t *testing.T) {
	h := newHarness(t)
	me := h.register(1, "Иван")
	id, err := h.store.CreateTruck(h.ctx, storage.Truck{
		UserID: me.ID, Region: "Moscow Oblast", City: "Moscow", DateFrom: "2024-06-15", DateTo: "2024-06-20",
		Weight: 10, BodyType: "Тент", Direction: "Ищу заказ",
	})
	require.NoError(t, err)

	require.NoError(t, h.engine.StartEdit(h.ctx, h.session, TruckWeight, id))
	assert.Equal(t, Completed, h.say("15"))
	require.NoError(t, h.engine.StartEdit(h.ctx, h.session, TruckRoute, id))
	assert.Equal(t, Completed, h.answerAll("Saint Petersburg Oblast", "Pushkin")[1])
	require.NoError(t, h.engine.StartEdit(h.ctx, h.session, TruckDates, id))
	assert.Equal(t, Completed, h.answerAll("01.07.2024", "03.07.2024")[1])
	require.NoError(t, h.engine.StartEdit(h.ctx, h.session, TruckRegions, id))
	assert.Equal(t, Completed, h.say("нет"))

	tr, ok, err := h.store.TruckByID(h.ctx, me.ID, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 15, tr.Weight)
	assert.Equal(t, "Pushkin", tr.City)
	assert.Equal(t, "2024-07-03", tr.DateTo)
	assert.Equal(t, "", tr.RouteRegions)

	err = h.engine.StartEdit(h.ctx, h.session, TruckWeight, 0)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteProfileCascades(t *testing.T) {
	h := newHarness(t)
	u := h.register(1, "Иван")
	for i := 0; i < 2; i++ {
		_, err := h.store.CreateCargo(h.ctx, storage.Cargo{
			UserID: u.ID, RegionFrom: "Moscow Oblast", CityFrom: "Moscow", RegionTo: "Moscow Oblast", CityTo: "Khimki",
			DateFrom: "2024-06-01", DateTo: "2024-06-02", Weight: 3, BodyType: "Тент",
		})
		require.NoError(t, err)
	}
	truckID, err := h.store.CreateTruck(h.ctx, storage.Truck{
		UserID: u.ID, Region: "Moscow Oblast", City: "Moscow", DateFrom: "2024-06-15", DateTo: "2024-06-20",
		Weight: 10, BodyType: "Тент", Direction: "Ищу заказ",
	})
	require.NoError(t, err)

	found, err := h.engine.DeleteTruck(h.ctx, h.session, truckID)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = h.engine.DeleteProfile(h.ctx, h.session)
	require.NoError(t, err)
	assert.True(t, found)

	st, err := h.store.Stats(h.ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, storage.Stats{}, st)

	_, err = h.engine.DeleteCargo(h.ctx, h.session, 1)
	assert.True(t, errors.Is(err, ErrNotRegistered))
}

func TestBroadcastReachesEveryUser(t *testing.T) {
	h := newHarness(t)
	h.register(10, "Иван")
	h.register(20, "Пётр")
	op := Session{ChatID: operatorID, UserID: operatorID}

	require.NoError(t, h.engine.Start(h.ctx, op, Broadcast))
	out := h.engine.Advance(h.ctx, op, Input{Kind: InputText, Text: "Сервис обновлён"})
	assert.Equal(t, Completed, out)
	assert.False(t, h.engine.Active(op))

	h.engine.Wait()
	var (
		delivered []int64
		order     []string
	)
	for _, m := range h.tr.sent {
		switch m.prompt.Text {
		case "Сервис обновлён":
			delivered = append(delivered, m.chatID)
			order = append(order, "delivery")
		case fmt.Sprintf(msgBroadcastStarted, 2):
			assert.Equal(t, MenuAdmin, m.prompt.Menu)
			order = append(order, "started")
		}
	}
	assert.Equal(t, []int64{10, 20}, delivered)
	assert.Equal(t, []string{"started", "delivery", "delivery"}, order)
	assert.Equal(t, message{chatID: operatorID, id: h.tr.last().id, prompt: Prompt{Text: "Рассылка завершена. Доставлено: 2 из 2."}}, h.tr.last())
}

func TestBroadcastDoesNotBlockTheTurn(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.BroadcastRate = 2 })
	for id := int64(10); id < 16; id++ {
		h.register(id, fmt.Sprintf("user %d", id))
	}
	op := Session{ChatID: operatorID, UserID: operatorID}
	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()

	require.NoError(t, h.engine.Start(ctx, op, Broadcast))
	begin := time.Now()
	out := h.engine.Advance(ctx, op, Input{Kind: InputText, Text: "Плановые работы"})
	assert.Equal(t, Completed, out)
	assert.Less(t, time.Since(begin), time.Second)

	// Other sessions are served while delivery is still in progress.
	require.NoError(t, h.engine.Start(ctx, h.session, Registration))
	assert.True(t, h.engine.Active(h.session))

	cancel()
	h.engine.Wait()
	summary := h.tr.last()
	assert.Equal(t, int64(operatorID), summary.chatID)
	assert.Contains(t, summary.prompt.Text, "Рассылка прервана")
	assert.Contains(t, summary.prompt.Text, "из 6.")
}

func TestLongOptionListsArePaged(t *testing.T) {
	var yaml strings.Builder
	yaml.WriteString("regions:\n")
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&yaml, "  - name: Region %02d\n    cities: [City %02d]\n", i, i)
	}
	catalog, err := locations.Parse([]byte(yaml.String()))
	require.NoError(t, err)

	h := newHarness(t, func(o *Options) { o.Catalog = catalog })
	h.register(1, "Иван")
	require.NoError(t, h.engine.Start(h.ctx, h.session, TruckAdd))

	replies := h.tr.last().prompt.Replies
	require.Len(t, replies, optionsPerPage+1)
	assert.Equal(t, []string{pageNext}, replies[optionsPerPage])

	assert.Equal(t, Navigated, h.say(pageNext))
	replies = h.tr.last().prompt.Replies
	assert.Equal(t, [][]string{{"Region 09"}, {"Region 10"}, {pagePrev}}, replies)
	assert.Equal(t, "region", h.step())

	assert.Equal(t, Advanced, h.say("Region 10"))
	assert.Equal(t, [][]string{{"City 10"}}, h.tr.last().prompt.Replies)
}

func TestTransportFailuresAreSwallowed(t *testing.T) {
	h := newHarness(t)
	u := h.register(1, "Иван")
	h.tr.failSend = true

	require.NoError(t, h.engine.Start(h.ctx, h.session, CargoAdd))
	outcomes := h.answerAll(cargoAnswers...)
	assert.Equal(t, Completed, outcomes[len(outcomes)-1])

	rows, err := h.store.CargoByOwner(h.ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestOptionRows(t *testing.T) {
	assert.Equal(t, [][]string{{"a"}, {"b"}}, optionRows([]string{"a", "b"}, 3))

	opts := make([]string, 17)
	for i := range opts {
		opts[i] = fmt.Sprint(i)
	}
	middle := optionRows(opts, 1)
	assert.Equal(t, []string{pagePrev, pageNext}, middle[len(middle)-1])
	last := optionRows(opts, 5)
	assert.Equal(t, [][]string{{"16"}, {pagePrev}}, last)
}
