package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"cheerbot/internal/app"
	"cheerbot/internal/config"
	logx "cheerbot/pkg/logx"
)

const stopGrace = 15 * time.Second

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	// Bootstrap logger for failures before the configured one exists.
	boot := logx.NewConsole("info")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		boot.Error("config load failed", logx.String("path", cfgPath), logx.Err(err))
		return err
	}

	log, closeLog, err := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	if err != nil {
		boot.Error("logger setup failed", logx.Err(err))
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("startup failed", logx.Err(err))
		return err
	}
	if err := a.Start(ctx); err != nil {
		log.Error("startup failed", logx.Err(err))
		return err
	}

	// Under systemd Type=notify these calls flip the unit to active and
	// feed the watchdog; outside systemd they are no-ops.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		go func() {
			t := time.NewTicker(interval / 2)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				}
			}
		}()
	}

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	log.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()
	if err := a.Stop(stopCtx); err != nil {
		log.Error("shutdown failed", logx.Err(err))
		return err
	}
	return nil
}
