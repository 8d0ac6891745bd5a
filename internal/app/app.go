// Package app assembles the bot from its parts and owns their
// lifecycle. All wiring is explicit: every component receives its
// dependencies through its constructor, nothing reaches for globals.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"cheerbot/internal/auth"
	"cheerbot/internal/broadcast"
	"cheerbot/internal/config"
	"cheerbot/internal/content"
	"cheerbot/internal/dialog"
	"cheerbot/internal/router"
	rtsup "cheerbot/internal/runtime/supervisor"
	"cheerbot/internal/scheduler"
	"cheerbot/internal/storage"
	kit "cheerbot/internal/transport"
	"cheerbot/internal/transport/telegram"
	logx "cheerbot/pkg/logx"
	"cheerbot/pkg/tgui"
)

// updateWorkers is the number of goroutines consuming inbound updates.
// Per-actor state is guarded by the dialog manager, so concurrent
// handling of unrelated actors is safe.
const updateWorkers = 8

type App struct {
	cfg *config.Config
	log logx.Logger

	store    storage.Store
	gate     *auth.Gate
	dialogs  *dialog.Manager
	provider *content.Pixabay
	adapter  *telegram.Adapter
	dispatch *broadcast.Dispatcher
	sched    *scheduler.Service
	router   *router.Router

	captions []string
	pickN    func(n int) int

	sup     *rtsup.Supervisor
	updates chan kit.Update
}

// New wires every component from the validated config. It does not
// start anything; call Start once and Stop on the way down.
func New(cfg *config.Config, log logx.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := config.ParseDurationOrDefault("content.fetch_timeout", cfg.Content.FetchTimeout, 8*time.Second)
	if err != nil {
		return nil, err
	}
	busyTimeout, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return nil, err
	}
	sendTimeout, err := config.ParseDurationOrDefault("broadcast.send_timeout", cfg.Broadcast.SendTimeout, 0)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("component", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("component", "telegram")))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	provider, err := content.NewPixabay(content.Config{
		APIKey:  cfg.Content.PixabayAPIKey,
		Timeout: fetchTimeout,
	}, log.With(logx.String("component", "content")))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("content provider: %w", err)
	}

	secret := ""
	if cfg.Onboarding.RequireSecret {
		secret = cfg.Onboarding.Secret
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		store:    store,
		gate:     auth.NewGate(cfg.Telegram.AdminUserIDs, secret),
		dialogs:  dialog.NewManager(),
		provider: provider,
		adapter:  adapter,
		captions: cfg.Content.Captions,
		pickN:    rand.Intn,
		updates:  make(chan kit.Update, 64),
	}
	if len(a.captions) == 0 {
		a.captions = config.DefaultCaptions
	}

	a.dispatch = broadcast.NewDispatcher(broadcast.Config{
		Workers:     cfg.Broadcast.Workers,
		RatePerSec:  cfg.Broadcast.RatePerSec,
		SendTimeout: sendTimeout,
	}, adapter, log.With(logx.String("component", "dispatch")))

	a.sched, err = scheduler.New(scheduler.Config{
		Times:    cfg.Schedule.Daily,
		Timezone: cfg.Schedule.Timezone,
	}, a.runCheer, log.With(logx.String("component", "scheduler")))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	markup := tgui.ReactionKeyboard(router.CallbackLike, router.CallbackNewPhoto)
	a.router = router.New(router.Deps{
		Adapter:        adapter,
		Store:          store,
		Gate:           a.gate,
		Dialog:         a.dialogs,
		Dispatcher:     a.dispatch,
		Scheduler:      a.sched,
		Content:        provider,
		Topic:          cfg.Content.Topic,
		ReactionMarkup: markup,
		Log:            log.With(logx.String("component", "router")),
	})
	return a, nil
}

// runCheer is the single fan-out path shared by the daily schedule and
// the admin "send now" command. A content miss degrades to a text-only
// send; only a recipient enumeration failure aborts the run.
func (a *App) runCheer(ctx context.Context, kind string) (broadcast.Report, error) {
	caption := a.captions[a.pickN(len(a.captions))]

	job := broadcast.Job{Kind: kind, Text: caption}
	url, err := a.provider.Fetch(ctx, a.cfg.Content.Topic)
	switch {
	case err != nil:
		a.log.Warn("content fetch failed, sending text only", logx.Err(err), logx.String("kind", kind))
	case url == "":
		a.log.Warn("no content for topic, sending text only", logx.String("topic", a.cfg.Content.Topic), logx.String("kind", kind))
	default:
		job.Photo = &kit.Photo{URL: url, Caption: caption}
		job.Text = ""
		job.Markup = tgui.ReactionKeyboard(router.CallbackLike, router.CallbackNewPhoto)
	}

	recipients, err := a.store.ListSubscribers(ctx)
	if err != nil {
		return broadcast.Report{}, fmt.Errorf("list subscribers: %w", err)
	}

	start := time.Now()
	rep := a.dispatch.Dispatch(ctx, job, recipients)
	if err := a.store.LogDispatch(ctx, storage.DispatchRecord{
		At:        start,
		Kind:      kind,
		Attempted: rep.Attempted,
		Delivered: rep.Delivered,
		Failed:    rep.Failed(),
		TookMS:    time.Since(start).Milliseconds(),
	}); err != nil {
		a.log.Error("record dispatch", logx.Err(err), logx.String("kind", kind))
	}
	return rep, nil
}

// Start brings up the update pipeline and the schedule. It returns once
// everything is running; errors during startup leave nothing running.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log.With(logx.String("component", "supervisor"))))

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		a.sup.Cancel()
		return fmt.Errorf("start adapter: %w", err)
	}
	for i := 0; i < updateWorkers; i++ {
		a.sup.Go0(fmt.Sprintf("updates.worker.%d", i), a.consumeUpdates)
	}
	if err := a.sched.Start(a.sup.Context()); err != nil {
		a.sup.Cancel()
		return fmt.Errorf("start scheduler: %w", err)
	}

	a.log.Info("bot started",
		logx.Int("admins", len(a.gate.Admins())),
		logx.Int("daily_times", len(a.cfg.Schedule.Daily)),
		logx.Bool("secret_required", a.gate.SecretRequired()))
	return nil
}

func (a *App) consumeUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-a.updates:
			if !ok {
				return
			}
			a.router.HandleUpdate(ctx, up)
		}
	}
}

// Stop shuts everything down in reverse start order and closes the
// store last so in-flight handlers keep a usable database.
func (a *App) Stop(ctx context.Context) error {
	var errs []error

	a.sched.Stop(ctx)
	if err := a.adapter.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop adapter: %w", err))
	}

	if a.sup != nil {
		a.sup.Cancel()
		if err := a.sup.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("wait workers: %w", err))
		}
	}

	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	a.log.Info("bot stopped")
	return errors.Join(errs...)
}
