package dialog

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/iabalyuk/freightbot/storage"
	"github.com/iabalyuk/freightbot/validate"
)

// PagePrefix starts the inline tokens of the search result pager.
const PagePrefix = "page:"

type resultsKind int

const (
	cargoResults resultsKind = iota
	truckResults
)

// resultsView is the last search of a session, re-queried on page changes.
type resultsView struct {
	kind  resultsKind
	cargo storage.CargoFilter
	truck storage.TruckFilter
	total int
}

// PageData encodes a pager token.
func PageData(page int) string {
	return PagePrefix + strconv.Itoa(page)
}

// ParsePage decodes a pager token.
func ParsePage(data string) (int, bool) {
	raw, ok := strings.CutPrefix(data, PagePrefix)
	if !ok {
		return 0, false
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 0 {
		return 0, false
	}
	return page, true
}

// ShowPage replaces the results message messageID with another page of the
// session's last search.
func (e *Engine) ShowPage(ctx context.Context, s Session, messageID, page int) error {
	view, ok := e.results[s]
	if !ok {
		return ErrNotFound
	}
	p, err := e.renderResults(ctx, view, page)
	if err != nil {
		return err
	}
	if err := e.transport.Edit(ctx, s.ChatID, messageID, p); err != nil {
		e.log.Warn().Err(err).Int64("chat", s.ChatID).Msg("failed to show results page")
	}
	return nil
}

func (e *Engine) renderResults(ctx context.Context, view *resultsView, page int) (Prompt, error) {
	offset := page * e.pageSize
	var (
		body  string
		count int
	)
	switch view.kind {
	case cargoResults:
		rows, total, err := e.store.SearchCargo(ctx, view.cargo, e.pageSize, offset)
		if err != nil {
			return Prompt{}, err
		}
		view.total, count = total, len(rows)
		if total == 0 {
			return Prompt{Text: msgNoResults, Menu: MenuMain}, nil
		}
		body = FormatCargoResults(rows)
	case truckResults:
		rows, total, err := e.store.SearchTrucks(ctx, view.truck, e.pageSize, offset)
		if err != nil {
			return Prompt{}, err
		}
		view.total, count = total, len(rows)
		if total == 0 {
			return Prompt{Text: msgNoTruckResults, Menu: MenuMain}, nil
		}
		body = FormatTruckResults(rows)
	}

	p := Prompt{Text: body, HTML: true}
	var nav []Button
	if page > 0 {
		nav = append(nav, Button{Text: "Назад", Data: PageData(page - 1)})
	}
	if offset+count < view.total {
		nav = append(nav, Button{Text: "Вперёд", Data: PageData(page + 1)})
	}
	if len(nav) > 0 {
		p.Inline = [][]Button{nav}
		p.Text += fmt.Sprintf("\nСтраница %d из %d", page+1, (view.total+e.pageSize-1)/e.pageSize)
	} else {
		p.Menu = MenuMain
	}
	return p, nil
}

// FormatCargoResults renders one page of cargo search results as HTML.
func FormatCargoResults(rows []storage.Cargo) string {
	var b strings.Builder
	b.WriteString("📋 <b>Найденные грузы:</b>\n\n")
	for _, c := range rows {
		fmt.Fprintf(&b, "ID: %d\nВладелец: %s\n%s, %s → %s, %s\nДата отправления: %s\nВес: %d т, Кузов: %s\n\n",
			c.ID, html.EscapeString(c.OwnerName),
			html.EscapeString(c.CityFrom), html.EscapeString(c.RegionFrom),
			html.EscapeString(c.CityTo), html.EscapeString(c.RegionTo),
			validate.FormatDate(c.DateFrom), c.Weight, html.EscapeString(c.BodyType))
	}
	return b.String()
}

// FormatTruckResults renders one page of truck search results as HTML.
func FormatTruckResults(rows []storage.Truck) string {
	var b strings.Builder
	b.WriteString("📋 <b>Найденные ТС:</b>\n\n")
	for _, t := range rows {
		fmt.Fprintf(&b, "ID: %d\nВладелец: %s\n%s, %s\nДата доступно: %s\nГрузоподъёмность: %d т, Кузов: %s\nНаправление: %s\n\n",
			t.ID, html.EscapeString(t.OwnerName),
			html.EscapeString(t.City), html.EscapeString(t.Region),
			validate.FormatDate(t.DateFrom), t.Weight, html.EscapeString(t.BodyType),
			html.EscapeString(t.Direction))
	}
	return b.String()
}
