package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"voxelfarm.ai/internal/bot"
	"voxelfarm.ai/internal/client"
	"voxelfarm.ai/internal/config"
	"voxelfarm.ai/internal/persistence/journal"
	"voxelfarm.ai/internal/persistence/statsdb"
	"voxelfarm.ai/internal/registry"
)

func main() {
	var (
		url        = flag.String("url", "", "world ws url (default: connection.url from config)")
		name       = flag.String("name", "", "agent name (default: connection.agent_name from config)")
		configPath = flag.String("config", "./configs/farmbot.yaml", "config path")
		dataDir    = flag.String("data", "", "runtime data directory (default: data.dir from config)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite stats index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[farmbot] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load config: %v", err)
		}
		logger.Printf("config not found path=%s, using defaults", *configPath)
		cfg = config.Defaults()
	}
	if *url != "" {
		cfg.Connection.URL = *url
	}
	if *name != "" {
		cfg.Connection.AgentName = *name
	}
	if *dataDir != "" {
		cfg.Data.Dir = *dataDir
	}
	if *disableDB {
		cfg.Data.StatsDB = false
	}

	runID := uuid.NewString()
	logger.Printf("starting run=%s url=%s agent=%s", runID, cfg.Connection.URL, cfg.Connection.AgentName)

	ctx, cancel := signalContext()
	defer cancel()

	session := client.NewSession(client.Config{
		URL:         cfg.Connection.URL,
		AgentName:   cfg.Connection.AgentName,
		ResumeToken: strings.TrimSpace(os.Getenv("FARMBOT_TOKEN")),
		MaxQueue:    cfg.Connection.MaxQueue,
		Log:         logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Run(gctx) })

	ready, err := waitReady(ctx, gctx, session.Ready(), cfg.Timing.ReadyTimeout())
	if err != nil {
		cancel()
		_ = g.Wait()
		logger.Fatalf("%v", err)
	}
	if !ready {
		_ = g.Wait()
		logger.Printf("shutdown before the world was ready run=%s", runID)
		return
	}

	blocks, items := session.Palettes()
	ids, err := registry.Resolve(blocks, items, cfg.Names, cfg.Harvest, cfg.Cover)
	if err != nil {
		cancel()
		_ = g.Wait()
		logger.Fatalf("%v", err)
	}

	var recs bot.Recorders
	var closers []func() error
	if cfg.Data.Journal {
		j := journal.Open(cfg.Data.Dir, runID, logger)
		recs = append(recs, j)
		closers = append(closers, func() error {
			if d, f := j.Dropped(), j.Failed(); d > 0 || f > 0 {
				logger.Printf("journal dropped=%d failed=%d", d, f)
			}
			return j.Close()
		})
	}
	if cfg.Data.StatsDB {
		path := cfg.Data.StatsPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Data.Dir, path)
		}
		db, err := statsdb.Open(path, statsdb.RunInfo{
			ID:      runID,
			Agent:   cfg.Connection.AgentName,
			URL:     cfg.Connection.URL,
			Started: time.Now(),
		})
		if err != nil {
			logger.Printf("stats db disabled path=%s err=%v", path, err)
		} else {
			recs = append(recs, db)
			closers = append(closers, func() error {
				st := db.Stats()
				if st.DropTotal > 0 || st.FailTotal > 0 {
					logger.Printf("stats db dropped=%d failed=%d", st.DropTotal, st.FailTotal)
				}
				return db.Close()
			})
		}
	}

	sched := bot.New(cfg, bot.Env{
		World:   session.View(),
		Actions: session,
		IDs:     ids,
		Log:     logger,
	}, bot.WithRecorder(recs))
	sched.Route(session.AgentID(), session)
	session.SetCommandHandler(sched.Command)

	g.Go(func() error { return sched.Run(gctx) })

	err = g.Wait()
	for _, c := range closers {
		if cerr := c(); cerr != nil {
			logger.Printf("close recorder: %v", cerr)
		}
	}
	if err != nil {
		if bot.IsFatal(err) {
			logger.Printf("stopped: %v", err)
			os.Exit(1)
		}
		logger.Fatalf("run: %v", err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		logger.Printf("shutdown run=%s", runID)
	}
}

// waitReady blocks until the session has seen the world. It reports false
// with a nil error when shutdown was requested through ctx.
func waitReady(ctx, gctx context.Context, ready <-chan struct{}, timeout time.Duration) (bool, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ready:
		return true, nil
	case <-gctx.Done():
		if ctx.Err() != nil {
			return false, nil
		}
		return false, fmt.Errorf("session stopped before the world was ready: %w", context.Cause(gctx))
	case <-t.C:
		return false, fmt.Errorf("world not ready after %s", timeout)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
