// Package metrics accumulates process-lifetime request, cache, fallback and
// stage latency counters. A Collector is safe for concurrent use and is
// shared by every request the process serves.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// DefaultWindow is the number of latency samples kept per series.
const DefaultWindow = 1000

// series is a bounded rolling window of latency samples.
type series struct {
	samples []time.Duration
	next    int
}

func newSeries(window int) *series {
	return &series{samples: make([]time.Duration, 0, window)}
}

func (s *series) add(d time.Duration) {
	if len(s.samples) < cap(s.samples) {
		s.samples = append(s.samples, d)
		return
	}
	s.samples[s.next] = d
	s.next = (s.next + 1) % len(s.samples)
}

func (s *series) stats() LatencyStats {
	if len(s.samples) == 0 {
		return LatencyStats{}
	}
	minD, maxD := s.samples[0], s.samples[0]
	var total time.Duration
	for _, d := range s.samples {
		total += d
		minD = min(minD, d)
		maxD = max(maxD, d)
	}
	return LatencyStats{
		Average: seconds(total / time.Duration(len(s.samples))),
		Min:     seconds(minD),
		Max:     seconds(maxD),
		Count:   len(s.samples),
	}
}

// Collector records counters and latency samples.
type Collector struct {
	mu sync.Mutex

	window int

	requests   int64
	cacheHits  int64
	cacheMiss  int64
	fallbacks  int64
	byProvider map[string]int64

	responseTimes *series
	stages        map[string]*series
}

// NewCollector returns an empty collector keeping window samples per
// latency series. A non-positive window selects DefaultWindow.
func NewCollector(window int) *Collector {
	if window <= 0 {
		window = DefaultWindow
	}
	c := &Collector{window: window}
	c.resetLocked()
	return c
}

func (c *Collector) resetLocked() {
	c.requests = 0
	c.cacheHits = 0
	c.cacheMiss = 0
	c.fallbacks = 0
	c.byProvider = make(map[string]int64)
	c.responseTimes = newSeries(c.window)
	c.stages = make(map[string]*series)
}

// RecordRequest counts one handled request.
func (c *Collector) RecordRequest() {
	c.mu.Lock()
	c.requests++
	c.mu.Unlock()
}

// RecordResponseTime adds one end-to-end latency sample.
func (c *Collector) RecordResponseTime(d time.Duration) {
	c.mu.Lock()
	c.responseTimes.add(d)
	c.mu.Unlock()
}

// RecordStage adds one latency sample for the named stage.
func (c *Collector) RecordStage(stage string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.stages[stage]
	if !ok {
		s = newSeries(c.window)
		c.stages[stage] = s
	}
	s.add(d)
}

// RecordCacheHit counts a cache hit.
func (c *Collector) RecordCacheHit() {
	c.mu.Lock()
	c.cacheHits++
	c.mu.Unlock()
}

// RecordCacheMiss counts a cache miss.
func (c *Collector) RecordCacheMiss() {
	c.mu.Lock()
	c.cacheMiss++
	c.mu.Unlock()
}

// RecordFallback counts one departure from the named primary provider.
func (c *Collector) RecordFallback(provider string) {
	c.mu.Lock()
	c.fallbacks++
	c.byProvider[provider]++
	c.mu.Unlock()
}

// StartTimer begins timing stage. Defer the returned timer's Stop so the
// sample is recorded on panics too.
func (c *Collector) StartTimer(stage string) *Timer {
	return &Timer{collector: c, stage: stage, start: time.Now()}
}

// Reset clears every counter and series.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
}

// Snapshot returns a consistent copy of the current values.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		TotalRequests: c.requests,
		ResponseTime:  c.responseTimes.stats(),
		Fallback: FallbackStats{
			Count:      c.fallbacks,
			Rate:       percent(c.fallbacks, c.requests),
			ByProvider: make(map[string]int64, len(c.byProvider)),
		},
		Cache: CacheStats{
			Hits:    c.cacheHits,
			Misses:  c.cacheMiss,
			HitRate: percent(c.cacheHits, c.cacheHits+c.cacheMiss),
		},
		Stages: make(map[string]LatencyStats, len(c.stages)),
	}
	for p, n := range c.byProvider {
		snap.Fallback.ByProvider[p] = n
	}
	for name, s := range c.stages {
		snap.Stages[name] = s.stats()
	}
	return snap
}

// Timer measures one stage.
type Timer struct {
	collector *Collector
	stage     string
	start     time.Time
	once      sync.Once
	elapsed   time.Duration
}

// Stop records the elapsed time once and returns it.
func (t *Timer) Stop() time.Duration {
	t.once.Do(func() {
		t.elapsed = time.Since(t.start)
		t.collector.RecordStage(t.stage, t.elapsed)
	})
	return t.elapsed
}

// Snapshot is the exported view of a Collector.
type Snapshot struct {
	TotalRequests int64                   `json:"total_requests"`
	ResponseTime  LatencyStats            `json:"response_time"`
	Fallback      FallbackStats           `json:"fallback"`
	Cache         CacheStats              `json:"cache"`
	Stages        map[string]LatencyStats `json:"stages"`
}

// StageNames returns the recorded stage names in sorted order.
func (s Snapshot) StageNames() []string {
	names := make([]string, 0, len(s.Stages))
	for name := range s.Stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LatencyStats summarizes a latency series in seconds.
type LatencyStats struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Count   int     `json:"count"`
}

// FallbackStats reports fallback usage. Rate is a percentage of requests.
type FallbackStats struct {
	Count      int64            `json:"count"`
	Rate       float64          `json:"rate"`
	ByProvider map[string]int64 `json:"by_provider"`
}

// CacheStats reports cache effectiveness. HitRate is a percentage.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func percent(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(n)/float64(total)*100, 2)
}

func seconds(d time.Duration) float64 {
	return round(d.Seconds(), 4)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
