package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/iabalyuk/freightbot/dialog"
	"github.com/iabalyuk/freightbot/locations"
	"github.com/iabalyuk/freightbot/storage"
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Options configures a Bot.
type Options struct {
	Store      storage.Store
	Catalog    *locations.Catalog
	Logger     *zerolog.Logger
	IsOperator func(userID int64) bool
	// Operators receive the worker reports.
	Operators     []int64
	MaxWeight     int
	PageSize      int
	BroadcastRate float64
}

// Bot is the Telegram front end of the freight marketplace.
type Bot struct {
	api        API
	engine     *dialog.Engine
	store      storage.Store
	log        zerolog.Logger
	isOperator func(int64) bool
	operators  []int64
	notifyCh   chan string
}

// Connect authorizes token against the Bot API.
func Connect(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = debug
	return api, nil
}

// New creates a bot and the dialog engine it drives.
func New(api API, opts Options) *Bot {
	b := &Bot{
		api:        api,
		store:      opts.Store,
		log:        zerolog.Nop(),
		isOperator: opts.IsOperator,
		operators:  opts.Operators,
		notifyCh:   make(chan string, 16),
	}
	if opts.Logger != nil {
		b.log = opts.Logger.With().Str("component", "bot").Logger()
	}
	if b.isOperator == nil {
		b.isOperator = func(int64) bool { return false }
	}
	b.engine = dialog.NewEngine(dialog.Options{
		Store:         opts.Store,
		Transport:     b,
		Catalog:       opts.Catalog,
		Logger:        opts.Logger,
		IsOperator:    b.isOperator,
		MaxWeight:     opts.MaxWeight,
		PageSize:      opts.PageSize,
		BroadcastRate: opts.BroadcastRate,
	})
	return b
}

// Start processes updates until ctx is cancelled. Updates are handled one at
// a time; the dialog engine relies on it.
func (b *Bot) Start(ctx context.Context) error {
	go b.handleNotifications(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	b.log.Info().Msg("bot started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.engine.Wait()
			b.log.Info().Msg("bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// NotifyChannel receives operator reports.
func (b *Bot) NotifyChannel() chan<- string {
	return b.notifyCh
}

// handleNotifications forwards worker reports to every operator.
func (b *Bot) handleNotifications(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case notification := <-b.notifyCh:
			for _, id := range b.operators {
				if _, err := b.Send(ctx, id, dialog.Prompt{Text: notification}); err != nil {
					b.log.Warn().Err(err).Int64("operator", id).Msg("failed to deliver report")
				}
			}
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}
