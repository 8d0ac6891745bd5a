// Package broadcast delivers one piece of content to many recipients
// with isolated per-recipient failure handling.
package broadcast

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cheerbot/internal/storage"
	kit "cheerbot/internal/transport"
	logx "cheerbot/pkg/logx"
)

// Job is one fan-out unit. Photo set means a photo send with Photo.Caption;
// otherwise Text is sent. ExcludedSender is skipped when present in the
// recipient list.
type Job struct {
	Kind           string // "daily" | "manual" | "broadcast"
	Text           string
	Photo          *kit.Photo
	ExcludedSender int64

	// Markup is adapter-specific reply markup attached to each send
	// (e.g. the reaction keyboard on cheer photos).
	Markup any
}

type Failure struct {
	RecipientID int64
	Reason      string
}

// Report reflects delivery outcomes for a single dispatch. It is never
// persisted as-is; callers summarize it for the initiating admin and the
// dispatch log.
type Report struct {
	Attempted int
	Delivered int
	Failures  []Failure
}

func (r Report) Failed() int { return len(r.Failures) }

type Config struct {
	Workers     int           // bounded concurrency; 0 means 4
	RatePerSec  int           // shared send rate cap; 0 means 10
	SendTimeout time.Duration // per-recipient; 0 means 15s
}

// Dispatcher fans a Job out over a bounded worker pool. A single
// unreachable recipient never aborts the batch, and a hung transport
// call is cut off by the per-send timeout.
type Dispatcher struct {
	cfg     Config
	adapter kit.Adapter
	limiter *rate.Limiter
	log     logx.Logger
}

func NewDispatcher(cfg Config, adapter kit.Adapter, log logx.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 10
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		cfg:     cfg,
		adapter: adapter,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:     log,
	}
}

// Dispatch attempts at most one delivery per recipient and blocks until
// every attempt finished. Recipients equal to job.ExcludedSender are
// skipped and not counted as attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job, recipients []storage.Subscriber) Report {
	start := time.Now()

	targets := recipients[:0:0]
	for _, r := range recipients {
		if r.ID == job.ExcludedSender {
			continue
		}
		targets = append(targets, r)
	}

	rep := Report{Attempted: len(targets)}
	if len(targets) == 0 {
		return rep
	}

	workers := d.cfg.Workers
	if workers > len(targets) {
		workers = len(targets)
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		queue = make(chan storage.Subscriber)
	)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for sub := range queue {
				err := d.sendOne(ctx, job, sub)
				mu.Lock()
				if err != nil {
					rep.Failures = append(rep.Failures, Failure{RecipientID: sub.ID, Reason: err.Error()})
				} else {
					rep.Delivered++
				}
				mu.Unlock()
				if err != nil {
					d.log.Warn("delivery failed",
						logx.String("kind", job.Kind),
						logx.Int64("recipient", sub.ID),
						logx.Err(err),
					)
				}
			}
		}()
	}

	for _, sub := range targets {
		queue <- sub
	}
	close(queue)
	wg.Wait()

	d.log.Info("dispatch finished",
		logx.String("kind", job.Kind),
		logx.Int("attempted", rep.Attempted),
		logx.Int("delivered", rep.Delivered),
		logx.Int("failed", rep.Failed()),
		logx.Duration("dur", time.Since(start)),
	)
	return rep
}

func (d *Dispatcher) sendOne(ctx context.Context, job Job, sub storage.Subscriber) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	sctx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	to := kit.ChatTarget{ChatID: sub.ID}
	opt := &kit.SendOptions{DisablePreview: true, ReplyMarkupAdapter: job.Markup}

	var err error
	if job.Photo != nil {
		_, err = d.adapter.SendPhoto(sctx, to, *job.Photo, opt)
	} else {
		_, err = d.adapter.SendText(sctx, to, job.Text, opt)
	}
	return err
}
