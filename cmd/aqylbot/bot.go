package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/olzhask/aqylbot/internal/audit"
	"github.com/olzhask/aqylbot/internal/currency"
	"github.com/olzhask/aqylbot/internal/dialog"
	"github.com/olzhask/aqylbot/internal/logutil"
	"github.com/olzhask/aqylbot/internal/persona"
	"github.com/olzhask/aqylbot/internal/session"
	"github.com/olzhask/aqylbot/internal/snapshot"
	"github.com/olzhask/aqylbot/internal/telegram"
	"github.com/olzhask/aqylbot/internal/weather"
	"github.com/olzhask/aqylbot/llm"
	"github.com/olzhask/aqylbot/providers/gemini"
	"github.com/olzhask/aqylbot/providers/openai"
)

const msgTooFast = "Слишком много сообщений, подожди немного."

type chatJob struct {
	Text string
}

type chatWorker struct {
	Jobs    chan chatJob
	Limiter *rate.Limiter
}

func newBotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot (long poll or webhook)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context())
		},
	}
	cmd.Flags().String("telegram-token", "", "Telegram bot token.")
	_ = viper.BindPFlag("telegram.token", cmd.Flags().Lookup("telegram-token"))
	cmd.Flags().Duration("telegram-poll-timeout", 0, "Long-poll timeout.")
	_ = viper.BindPFlag("telegram.poll_timeout", cmd.Flags().Lookup("telegram-poll-timeout"))
	cmd.Flags().String("snapshot-backend", "", "History snapshot backend: file|redis.")
	_ = viper.BindPFlag("snapshot.backend", cmd.Flags().Lookup("snapshot-backend"))
	return cmd
}

func runBot(parent context.Context) error {
	logger, err := logutil.LoggerFromViper()
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	token := strings.TrimSpace(viper.GetString("telegram.token"))
	if token == "" {
		return errors.New("telegram.token is required (AQYLBOT_TELEGRAM_TOKEN)")
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pack, err := persona.Load(viper.GetString("persona.path"))
	if err != nil {
		return err
	}

	defaultChain, modeChains, err := buildChains(logger)
	if err != nil {
		return err
	}

	historyMax := viper.GetInt("history.max_messages")
	store := session.NewStore(historyMax)

	backend, closeBackend, err := buildSnapshotBackend()
	if err != nil {
		return err
	}
	defer closeBackend()

	restored, err := backend.Load(ctx)
	if err != nil {
		logger.Warn("snapshot_load_error", "error", err.Error())
	} else {
		store.RestoreHistory(restored)
		logger.Info("snapshot_loaded", "chats", len(restored))
	}

	snap := snapshot.New(backend, store, viper.GetDuration("snapshot.interval"), logger)

	var recorder dialog.Recorder
	if path := strings.TrimSpace(viper.GetString("audit.path")); path != "" {
		log, err := audit.Open(path)
		if err != nil {
			return err
		}
		defer log.Close()
		recorder = log
	}

	disp := &dialog.Dispatcher{
		Sessions: store,
		Rules:    pack.Rules(),
		AI: &dialog.Engine{
			Pack:          pack,
			Chains:        modeChains,
			DefaultChain:  defaultChain,
			HistoryWindow: viper.GetInt("history.window"),
		},
		Weather: weather.New(
			viper.GetString("weather.base_url"),
			viper.GetString("weather.api_key"),
			viper.GetDuration("weather.timeout"),
		),
		Currency: &currency.Converter{
			Fiat:   currency.NewFiatClient(viper.GetString("currency.fiat_base_url"), viper.GetDuration("currency.timeout")),
			Crypto: currency.NewCryptoClient(viper.GetString("currency.crypto_base_url"), viper.GetDuration("currency.timeout")),
			Logger: logger,
		},
		Audit:         recorder,
		Logger:        logger,
		HistoryWindow: viper.GetInt("history.window"),
		OnMutate:      snap.Mark,
	}

	api := telegram.New(nil, viper.GetString("telegram.base_url"), token)
	me, err := api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}

	maxConc := viper.GetInt("bot.max_concurrency")
	if maxConc <= 0 {
		maxConc = 3
	}
	sem := make(chan struct{}, maxConc)
	replyTimeout := viper.GetDuration("bot.reply_timeout")
	if replyTimeout <= 0 {
		replyTimeout = 60 * time.Second
	}
	rateEvery := viper.GetDuration("bot.rate_every")
	if rateEvery <= 0 {
		rateEvery = time.Second
	}
	rateBurst := viper.GetInt("bot.rate_burst")
	if rateBurst <= 0 {
		rateBurst = 3
	}

	menu := telegram.Menu(dialog.BtnWeather, dialog.BtnAI, dialog.BtnCurrency)

	var (
		mu      sync.Mutex
		workers = make(map[int64]*chatWorker)
		wg      sync.WaitGroup
	)

	send := func(chatID int64, reply dialog.Reply) {
		var kb *telegram.ReplyKeyboardMarkup
		if reply.ShowMenu {
			kb = menu
		}
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := api.SendMessage(sendCtx, chatID, reply.Text, kb); err != nil {
			logger.Warn("telegram_send_error", "chat_id", chatID, "error", err.Error())
		}
	}

	getOrStartWorkerLocked := func(chatID int64) *chatWorker {
		if w, ok := workers[chatID]; ok && w != nil {
			return w
		}
		w := &chatWorker{
			Jobs:    make(chan chatJob, 16),
			Limiter: rate.NewLimiter(rate.Every(rateEvery), rateBurst),
		}
		workers[chatID] = w

		wg.Add(1)
		go func(chatID int64, w *chatWorker) {
			defer wg.Done()
			// Per chat serial; across chats parallel, capped by sem.
			for job := range w.Jobs {
				sem <- struct{}{}
				func() {
					defer func() { <-sem }()
					handleCtx, cancel := context.WithTimeout(context.Background(), replyTimeout)
					defer cancel()
					send(chatID, disp.Handle(handleCtx, chatID, job.Text))
				}()
			}
		}(chatID, w)
		return w
	}

	dispatch := func(msg *telegram.Message) {
		if msg == nil || msg.Chat == nil {
			return
		}
		if msg.From != nil && msg.From.IsBot {
			return
		}
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			return
		}
		chatID := msg.Chat.ID

		// Stateless; answered inline without touching the session.
		if t := strings.ToLower(text); t == "/id" || strings.HasPrefix(t, "/id@") {
			send(chatID, dialog.Reply{Text: fmt.Sprintf("ID чата: %d (%s)", chatID, msg.Chat.Type)})
			return
		}

		mu.Lock()
		w := getOrStartWorkerLocked(chatID)
		mu.Unlock()

		if !w.Limiter.Allow() {
			logger.Warn("rate_limited", "chat_id", chatID)
			send(chatID, dialog.Reply{Text: msgTooFast})
			return
		}

		select {
		case w.Jobs <- chatJob{Text: text}:
		default:
			logger.Warn("worker_queue_full", "chat_id", chatID)
		}
	}

	snapDone := make(chan struct{})
	go func() {
		snap.Run(ctx)
		close(snapDone)
	}()

	logger.Info("bot_start",
		"bot_username", me.Username,
		"bot_id", me.ID,
		"max_concurrency", maxConc,
		"history_max_messages", historyMax,
		"snapshot_backend", viper.GetString("snapshot.backend"),
	)

	webhookURL := strings.TrimSpace(viper.GetString("telegram.webhook_url"))
	if webhookURL != "" {
		err = serveWebhook(ctx, logger, api, webhookURL, dispatch)
	} else {
		err = pollLoop(ctx, logger, api, dispatch)
	}

	// Drain workers, then wait for the snapshotter's final flush.
	mu.Lock()
	for _, w := range workers {
		close(w.Jobs)
	}
	mu.Unlock()
	wg.Wait()
	<-snapDone

	logger.Info("bot_stop")
	return err
}

func pollLoop(ctx context.Context, logger *slog.Logger, api *telegram.Client, dispatch func(*telegram.Message)) error {
	// A leftover webhook makes getUpdates return 409.
	if err := api.DeleteWebhook(ctx); err != nil {
		logger.Warn("delete_webhook_error", "error", err.Error())
	}

	pollTimeout := viper.GetDuration("telegram.poll_timeout")
	var offset int64
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, next, err := api.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("get_updates_error", "error", err.Error())
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		offset = next
		for _, u := range updates {
			dispatch(u.Inbound())
		}
	}
}

func serveWebhook(ctx context.Context, logger *slog.Logger, api *telegram.Client, webhookURL string, dispatch func(*telegram.Message)) error {
	if err := api.SetWebhook(ctx, webhookURL); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	defer func() {
		delCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := api.DeleteWebhook(delCtx); err != nil {
			logger.Warn("delete_webhook_error", "error", err.Error())
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/webhook", func(w http.ResponseWriter, req *http.Request) {
		u, err := telegram.ParseUpdate(req.Body)
		if err != nil {
			logger.Warn("webhook_decode_error", "error", err.Error())
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		dispatch(u.Inbound())
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              viper.GetString("telegram.webhook_bind"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("webhook_listen", "bind", srv.Addr, "url", webhookURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// buildChains assembles the default provider chain plus any per-mode
// overrides (llm.mode_order.study etc.).
func buildChains(logger *slog.Logger) (*llm.Chain, map[session.Mode]*llm.Chain, error) {
	defaultChain, err := buildChain(logger, viper.GetStringSlice("llm.order"))
	if err != nil {
		return nil, nil, err
	}
	chains := make(map[session.Mode]*llm.Chain)
	for _, mode := range []session.Mode{session.ModeStudy, session.ModeCoding, session.ModeCreative} {
		key := "llm.mode_order." + string(mode)
		if !viper.IsSet(key) {
			continue
		}
		c, err := buildChain(logger, viper.GetStringSlice(key))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", key, err)
		}
		chains[mode] = c
	}
	return defaultChain, chains, nil
}

func buildChain(logger *slog.Logger, order []string) (*llm.Chain, error) {
	timeout := viper.GetDuration("llm.request_timeout")
	var attempts []llm.Named
	for _, name := range order {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "gemini":
			key := strings.TrimSpace(viper.GetString("llm.gemini.api_key"))
			if key == "" {
				continue
			}
			attempts = append(attempts, llm.Named{
				Name: "gemini",
				Client: gemini.New(
					viper.GetString("llm.gemini.base_url"),
					key,
					viper.GetString("llm.gemini.model"),
					timeout,
				),
			})
		case "openai":
			key := strings.TrimSpace(viper.GetString("llm.openai.api_key"))
			if key == "" {
				continue
			}
			attempts = append(attempts, llm.Named{
				Name: "openai",
				Client: openai.New(
					viper.GetString("llm.openai.base_url"),
					key,
					viper.GetString("llm.openai.model"),
					timeout,
				),
			})
		default:
			return nil, fmt.Errorf("unknown llm provider in llm.order: %s", name)
		}
	}
	if len(attempts) == 0 {
		return nil, errors.New("no llm provider configured: set llm.gemini.api_key or llm.openai.api_key")
	}
	return llm.NewChain(logger, attempts...), nil
}

func buildSnapshotBackend() (snapshot.Backend, func(), error) {
	switch strings.ToLower(strings.TrimSpace(viper.GetString("snapshot.backend"))) {
	case "", "file":
		return snapshot.NewFileBackend(viper.GetString("snapshot.file.path")), func() {}, nil
	case "redis":
		b := snapshot.NewRedisBackend(
			viper.GetString("snapshot.redis.addr"),
			viper.GetString("snapshot.redis.password"),
			viper.GetInt("snapshot.redis.db"),
			viper.GetString("snapshot.redis.key"),
		)
		return b, func() { _ = b.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown snapshot.backend: %s", viper.GetString("snapshot.backend"))
	}
}
