package telemetry

import (
	"sync"
	"time"
)

// InterpreterStats is a point-in-time sample of one interpreter
type InterpreterStats struct {
	Queued               int
	CompletionCandidates int
	Connected            bool
}

// StatsProvider interface for components that provide stats
type StatsProvider interface {
	Name() string
	Stats() InterpreterStats
}

// InterpreterLister interface for listing interpreters
type InterpreterLister interface {
	Providers() []StatsProvider
}

// MetricsCollector periodically collects stats and updates telemetry gauges
type MetricsCollector struct {
	lister   InterpreterLister
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(lister InterpreterLister, interval time.Duration) *MetricsCollector {
	return &MetricsCollector{
		lister:   lister,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic collection
func (mc *MetricsCollector) Start() {
	mc.wg.Add(1)
	go mc.collectLoop()
}

// Stop stops the collector
func (mc *MetricsCollector) Stop() {
	close(mc.stopCh)
	mc.wg.Wait()
}

func (mc *MetricsCollector) collectLoop() {
	defer mc.wg.Done()

	ticker := time.NewTicker(mc.interval)
	defer ticker.Stop()

	mc.collect()

	for {
		select {
		case <-ticker.C:
			mc.collect()
		case <-mc.stopCh:
			return
		}
	}
}

func (mc *MetricsCollector) collect() {
	if mc.lister == nil {
		return
	}

	providers := mc.lister.Providers()
	for _, p := range providers {
		stats := p.Stats()
		name := p.Name()

		InterpreterQueueDepth.With(name).Set(float64(stats.Queued))
		CompletionCandidates.With(name).Set(float64(stats.CompletionCandidates))
		if stats.Connected {
			InterpreterConnected.With(name).Set(1)
		} else {
			InterpreterConnected.With(name).Set(0)
		}
	}
	InterpretersRegistered.Set(float64(len(providers)))
}
