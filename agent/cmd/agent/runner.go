package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vitalsmon/vitalsmon/agent/internal/collector"
	"github.com/vitalsmon/vitalsmon/agent/internal/compute"
	"github.com/vitalsmon/vitalsmon/agent/internal/config"
	"github.com/vitalsmon/vitalsmon/agent/internal/security"
	"github.com/vitalsmon/vitalsmon/agent/internal/shipper"
)

type pipeline struct {
	target config.Target
	c      collector.Collector
}

// runner owns the per-target collectors and drives one collection round per
// tick. apply swaps the target set without interrupting a round in flight.
type runner struct {
	engine *compute.Engine
	certs  *security.Checker
	ship   *shipper.Shipper

	mu        sync.Mutex
	pipelines []pipeline
}

func newRunner(engine *compute.Engine, certs *security.Checker, ship *shipper.Shipper) *runner {
	return &runner{engine: engine, certs: certs, ship: ship}
}

// apply rebuilds collectors for targets. Targets whose collector cannot be
// built are skipped and logged; removed targets lose their uptime history.
func (r *runner) apply(targets []config.Target) {
	next := make([]pipeline, 0, len(targets))
	keep := make(map[string]bool, len(targets))
	for _, t := range targets {
		c, err := collector.New(t)
		if err != nil {
			slog.Error("skipping target, could not build collector", "target", t.ID, "err", err)
			continue
		}
		next = append(next, pipeline{target: t, c: c})
		keep[t.ID] = true
		slog.Info("registered target", "id", t.ID, "url", t.URL, "collector", t.Collector, "view_mode", t.ViewMode)
	}

	r.mu.Lock()
	prev := r.pipelines
	r.pipelines = next
	r.mu.Unlock()

	for _, p := range prev {
		if !keep[p.target.ID] {
			r.engine.Forget(p.target.ID)
			r.certs.Forget(p.target.ID)
			slog.Info("removed target", "id", p.target.ID)
		}
	}
}

func (r *runner) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pipelines)
}

// tick collects every target concurrently and ships the results.
func (r *runner) tick(ctx context.Context, now time.Time) {
	r.mu.Lock()
	pipelines := r.pipelines
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range pipelines {
		wg.Add(1)
		go func(p pipeline) {
			defer wg.Done()
			rd, err := p.c.Collect(ctx)
			if err != nil {
				slog.Warn("collect error", "target", p.target.ID, "err", err)
				return
			}
			res := r.engine.Process(rd, now)
			res.Cert = r.certs.Status(ctx, p.target, now)
			r.ship.Ship(res)
			slog.Debug("queued result",
				"target", p.target.ID,
				"state", res.State,
				"score", res.Score,
				"uptime_pct", res.UptimePct,
			)
		}(p)
	}
	wg.Wait()
}
