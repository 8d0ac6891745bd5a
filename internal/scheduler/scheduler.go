// Package scheduler triggers the daily cheer fan-out and serves the
// admin "send now" path through the same run function, so scheduled and
// on-demand sends are behaviorally identical.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"cheerbot/internal/broadcast"
	logx "cheerbot/pkg/logx"
)

// RunFunc performs one complete fan-out: build the job (caption + media),
// enumerate recipients, and dispatch.
type RunFunc func(ctx context.Context, kind string) (broadcast.Report, error)

type Config struct {
	Times    []string // local "HH:MM" trigger times, e.g. ["09:00", "18:00"]
	Timezone string   // IANA TZ, e.g. "Europe/Kyiv"; empty means Local
}

type Service struct {
	mu sync.Mutex

	cfg Config
	run RunFunc
	log logx.Logger

	loc    *time.Location
	parser cron.Parser
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg Config, run RunFunc, log logx.Logger) (*Service, error) {
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
		loc = l
	}
	for _, at := range cfg.Times {
		if _, _, err := ParseHHMM(at); err != nil {
			return nil, err
		}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		run:    run,
		log:    log,
		loc:    loc,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}, nil
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))

	for _, at := range s.cfg.Times {
		hour, minute, err := ParseHHMM(at)
		if err != nil {
			return err
		}
		spec := fmt.Sprintf("%d %d * * *", minute, hour)
		at := at
		// Each entry fires in its own goroutine; overlapping runs are
		// independent and permitted.
		if _, err := s.c.AddFunc(spec, func() { s.fire(at) }); err != nil {
			return fmt.Errorf("register daily trigger %q: %w", at, err)
		}
	}

	s.c.Start()
	s.log.Info("scheduler started",
		logx.String("tz", s.loc.String()),
		logx.Int("triggers", len(s.cfg.Times)),
	)
	return nil
}

func (s *Service) fire(at string) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	s.log.Info("daily trigger fired", logx.String("at", at))
	rep, err := s.run(ctx, "daily")
	if err != nil {
		s.log.Error("daily fan-out failed", logx.String("at", at), logx.Err(err))
		return
	}
	s.log.Info("daily fan-out done",
		logx.String("at", at),
		logx.Int("attempted", rep.Attempted),
		logx.Int("delivered", rep.Delivered),
		logx.Int("failed", rep.Failed()),
	)
}

// TriggerNow runs an immediate fan-out, bypassing the timer but using
// the same job construction and dispatch path as the daily trigger.
func (s *Service) TriggerNow(ctx context.Context) (broadcast.Report, error) {
	return s.run(ctx, "manual")
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}

// ParseHHMM parses a local wall-clock time like "18:00".
func ParseHHMM(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q (use HH:MM)", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
