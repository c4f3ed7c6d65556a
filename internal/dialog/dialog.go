// Package dialog is the conversation router: it owns the per-chat state
// machine, feeds free text through the intent classifier, and dispatches to
// the weather, currency and AI handlers.
package dialog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/olzhask/aqylbot/internal/currency"
	"github.com/olzhask/aqylbot/internal/history"
	"github.com/olzhask/aqylbot/internal/intent"
	"github.com/olzhask/aqylbot/internal/persona"
	"github.com/olzhask/aqylbot/internal/session"
	"github.com/olzhask/aqylbot/internal/weather"
	"github.com/olzhask/aqylbot/llm"
)

// Main menu button labels.
const (
	BtnWeather  = "🌤 Погода"
	BtnAI       = "🤖 ИИ"
	BtnCurrency = "💱 Валюты"
)

// Fixed user-facing strings.
const (
	MsgGreeting     = "Привет! Я бот-помощник 🤖\nВыбери действие:"
	MsgReset        = "Ок, сброшено."
	MsgAskCity      = "Введи название города:"
	MsgAskQuestion  = "Задай вопрос ИИ:"
	MsgAskDirection = "Напиши валютную пару, например: USD в KZT"
	MsgAskAmount    = "Введи сумму:"
	MsgBadDirection = "Не понял пару. Пример: USD в KZT"
	MsgBadAmount    = "Нужно число, например: 10 или 2,5"
	MsgEmptyText    = "Напиши вопрос текстом."
	MsgCityNotFound = "Город не найден 😕 Проверь название и попробуй ещё раз."
	MsgPairNotFound = "Не нашёл курс для этой пары."
	MsgWeatherError = "Сервис погоды сейчас недоступен, попробуй позже."
	MsgAIError      = "ИИ сейчас недоступен, попробуй позже."
	MsgApology      = "Что-то пошло не так 😔 Начнём заново: /start"
)

// WeatherService is the slice of the weather client the router needs.
type WeatherService interface {
	Current(ctx context.Context, city string) (weather.Current, error)
	Forecast(ctx context.Context, city string) (*weather.Forecast, error)
}

// CurrencyService converts an amount for a parsed direction.
type CurrencyService interface {
	Convert(ctx context.Context, amount float64, dir session.Direction) (float64, string, error)
}

// Asker answers free text in a given persona mode with recent history as
// context, returning the answer and the provider tag that produced it.
type Asker interface {
	Ask(ctx context.Context, mode session.Mode, text string, recent []history.DialogMessage) (string, string, error)
}

// Recorder receives every appended dialog message for the audit trail.
// Implementations must be best-effort; errors are logged by the caller.
type Recorder interface {
	Record(ctx context.Context, chatID int64, msg history.DialogMessage) error
}

// Reply is what the transport sends back.
type Reply struct {
	Text     string
	ShowMenu bool
}

type Dispatcher struct {
	Sessions      *session.Store
	Rules         []intent.Rule
	AI            Asker
	Weather       WeatherService
	Currency      CurrencyService
	Audit         Recorder
	Logger        *slog.Logger
	HistoryWindow int
	Now           func() time.Time

	// OnMutate is called after any session mutation; the snapshotter hangs
	// off it. Never blocks.
	OnMutate func()
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *Dispatcher) mutated() {
	if d.OnMutate != nil {
		d.OnMutate()
	}
}

// Handle processes one inbound message and returns the reply. It never
// panics: anything unclassified becomes an apology and the session returns
// to the idle menu so the user is not stranded mid-prompt.
func (d *Dispatcher) Handle(ctx context.Context, chatID int64, text string) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			d.logger().Error("dialog_panic", "chat_id", chatID, "panic", r)
			d.Sessions.Update(chatID, func(s *session.Session) {
				s.ResetState()
			})
			reply = Reply{Text: MsgApology, ShowMenu: true}
		}
	}()

	text = strings.TrimSpace(text)

	if cmd := slashCommand(text); cmd != "" {
		return d.handleCommand(chatID, cmd)
	}

	// Snapshot the state under the chat lock, act on it outside.
	var (
		pending session.PendingInput
		mode    session.Mode
		dir     session.Direction
	)
	d.Sessions.View(chatID, func(s *session.Session) {
		pending = s.Pending
		mode = s.Mode
		dir = s.Direction
	})

	switch pending {
	case session.PendingCity:
		return d.handleCity(ctx, chatID, text)
	case session.PendingCurrencyDirection:
		return d.handleDirection(chatID, text)
	case session.PendingCurrencyAmount:
		return d.handleAmount(ctx, chatID, text, dir)
	case session.PendingQuestion:
		if text == "" {
			return Reply{Text: MsgEmptyText}
		}
		return d.handleQuestion(ctx, chatID, mode, text)
	}

	// Idle: menu triggers, inline currency requests, then the intent router.
	switch {
	case isWeatherTrigger(text):
		d.setPending(chatID, session.PendingCity)
		return Reply{Text: MsgAskCity}
	case isAITrigger(text):
		d.setPending(chatID, session.PendingQuestion)
		return Reply{Text: MsgAskQuestion}
	case isCurrencyTrigger(text):
		d.setPending(chatID, session.PendingCurrencyDirection)
		return Reply{Text: MsgAskDirection}
	}

	if amount, reqDir, ok := currency.ParseRequest(text); ok {
		return d.convert(ctx, chatID, text, amount, reqDir)
	}

	if text == "" {
		return Reply{}
	}
	return d.handleQuestion(ctx, chatID, mode, text)
}

func (d *Dispatcher) handleCommand(chatID int64, cmd string) Reply {
	switch cmd {
	case "/start", "/help":
		d.Sessions.Update(chatID, func(s *session.Session) {
			s.ResetState()
			s.History.Reset()
		})
		d.mutated()
		return Reply{Text: MsgGreeting, ShowMenu: true}
	case "/reset":
		d.Sessions.Update(chatID, func(s *session.Session) {
			s.ResetState()
			s.History.Reset()
		})
		d.mutated()
		return Reply{Text: MsgReset, ShowMenu: true}
	default:
		// Unknown commands fall back to the menu.
		return Reply{Text: MsgGreeting, ShowMenu: true}
	}
}

func (d *Dispatcher) setPending(chatID int64, p session.PendingInput) {
	d.Sessions.Update(chatID, func(s *session.Session) {
		s.Pending = p
		s.Direction = session.Direction{}
	})
	d.mutated()
}

// exchange appends the user/assistant pair, audits it, and applies the state
// transition in one locked step.
func (d *Dispatcher) exchange(ctx context.Context, chatID int64, userText, answer, producedBy string, apply func(*session.Session)) {
	now := d.now()
	var appended []history.DialogMessage
	d.Sessions.Update(chatID, func(s *session.Session) {
		appended = append(appended,
			s.History.Append(history.RoleUser, userText, "", now),
			s.History.Append(history.RoleAssistant, answer, producedBy, now),
		)
		if apply != nil {
			apply(s)
		}
	})
	d.mutated()
	if d.Audit != nil {
		for _, m := range appended {
			if err := d.Audit.Record(ctx, chatID, m); err != nil {
				d.logger().Warn("audit_error", "chat_id", chatID, "error", err.Error())
			}
		}
	}
}

func (d *Dispatcher) handleCity(ctx context.Context, chatID int64, city string) Reply {
	var text string
	cur, err := d.Weather.Current(ctx, city)
	switch {
	case errors.Is(err, weather.ErrCityNotFound):
		text = MsgCityNotFound
	case err != nil:
		d.logger().Warn("weather_error", "chat_id", chatID, "error", err.Error())
		text = MsgWeatherError
	default:
		// Forecast is a bonus line; its failure does not fail the lookup.
		fc, fcErr := d.Weather.Forecast(ctx, city)
		if fcErr != nil {
			d.logger().Warn("forecast_error", "chat_id", chatID, "error", fcErr.Error())
			fc = nil
		}
		text = weather.Summary(city, cur, fc)
	}
	// Back to the menu regardless of lookup success.
	d.exchange(ctx, chatID, city, text, "weather", func(s *session.Session) {
		s.Pending = session.PendingNone
	})
	return Reply{Text: text, ShowMenu: true}
}

func (d *Dispatcher) handleDirection(chatID int64, text string) Reply {
	dir, ok := currency.ParseDirection(text)
	if !ok {
		return Reply{Text: MsgBadDirection}
	}
	d.Sessions.Update(chatID, func(s *session.Session) {
		s.Pending = session.PendingCurrencyAmount
		s.Direction = dir
	})
	d.mutated()
	return Reply{Text: MsgAskAmount}
}

func (d *Dispatcher) handleAmount(ctx context.Context, chatID int64, text string, dir session.Direction) Reply {
	amount, ok := currency.ParseAmount(text)
	if !ok {
		return Reply{Text: MsgBadAmount}
	}
	return d.convert(ctx, chatID, text, amount, dir)
}

func (d *Dispatcher) convert(ctx context.Context, chatID int64, userText string, amount float64, dir session.Direction) Reply {
	var text string
	converted, _, err := d.Currency.Convert(ctx, amount, dir)
	switch {
	case errors.Is(err, currency.ErrPairNotFound):
		text = MsgPairNotFound
	case err != nil:
		d.logger().Warn("currency_error", "chat_id", chatID, "error", err.Error())
		text = MsgPairNotFound
	default:
		text = currency.FormatResult(amount, dir, converted)
	}
	d.exchange(ctx, chatID, userText, text, "currency", func(s *session.Session) {
		s.Pending = session.PendingNone
		s.Direction = session.Direction{}
	})
	return Reply{Text: text, ShowMenu: true}
}

func (d *Dispatcher) handleQuestion(ctx context.Context, chatID int64, mode session.Mode, text string) Reply {
	newMode := intent.Route(d.Rules, mode, text)

	var recent []history.DialogMessage
	d.Sessions.View(chatID, func(s *session.Session) {
		recent = s.History.Last(d.HistoryWindow)
	})

	answer, provider, err := d.AI.Ask(ctx, newMode, text, recent)
	if err != nil {
		d.logger().Warn("ai_error", "chat_id", chatID, "mode", string(newMode), "error", err.Error())
		answer = MsgAIError
		provider = ""
	}
	d.exchange(ctx, chatID, text, answer, provider, func(s *session.Session) {
		s.Pending = session.PendingNone
		s.Mode = newMode
	})
	return Reply{Text: answer}
}

func slashCommand(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := text
	if i := strings.IndexAny(cmd, " \t"); i >= 0 {
		cmd = cmd[:i]
	}
	// Group chats address commands as /start@botname.
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}

func matchesTrigger(text string, labels ...string) bool {
	lowered := strings.ToLower(strings.TrimSpace(text))
	for _, l := range labels {
		if lowered == strings.ToLower(l) {
			return true
		}
	}
	return false
}

func isWeatherTrigger(text string) bool {
	return matchesTrigger(text, BtnWeather, "погода", "weather")
}

func isAITrigger(text string) bool {
	return matchesTrigger(text, BtnAI, "ии", "ai", "ask")
}

func isCurrencyTrigger(text string) bool {
	return matchesTrigger(text, BtnCurrency, "валюты", "валюта", "курс", "currency")
}

// Engine is the production Asker: persona templates plus per-mode provider
// chains with fallback.
type Engine struct {
	Pack          *persona.Pack
	Chains        map[session.Mode]*llm.Chain
	DefaultChain  *llm.Chain
	HistoryWindow int
}

func (e *Engine) Ask(ctx context.Context, mode session.Mode, text string, recent []history.DialogMessage) (string, string, error) {
	chain := e.DefaultChain
	if c, ok := e.Chains[mode]; ok && c != nil {
		chain = c
	}
	if chain == nil {
		return "", "", errors.New("dialog: no provider chain configured")
	}
	msgs := e.Pack.Messages(mode, text, recent, e.HistoryWindow)
	res, provider, err := chain.Chat(ctx, llm.Request{Messages: msgs})
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(res.Text), provider, nil
}
