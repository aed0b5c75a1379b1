package queue

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics tracks queue activity metrics.
type Statistics struct {
	// Atomic counters for thread-safe updates
	puts  int64
	gets  int64
	peeks int64
	drops int64

	// Protected by mutex
	mu        sync.RWMutex
	startTime time.Time
	depth     int64
	maxDepth  int64
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{
		startTime: time.Now(),
	}
}

// Put records an enqueue operation.
func (s *Statistics) Put() {
	atomic.AddInt64(&s.puts, 1)
}

// Get records a dequeue operation.
func (s *Statistics) Get() {
	atomic.AddInt64(&s.gets, 1)
}

// Peek records a peek operation.
func (s *Statistics) Peek() {
	atomic.AddInt64(&s.peeks, 1)
}

// Drop records an item dropped because the queue was closed.
func (s *Statistics) Drop() {
	atomic.AddInt64(&s.drops, 1)
}

// UpdateDepth updates the current queue depth.
func (s *Statistics) UpdateDepth(depth int64) {
	s.mu.Lock()
	s.depth = depth
	if depth > s.maxDepth {
		s.maxDepth = depth
	}
	s.mu.Unlock()
}

// Puts returns the total number of enqueue operations.
func (s *Statistics) Puts() int64 {
	return atomic.LoadInt64(&s.puts)
}

// Gets returns the total number of dequeue operations.
func (s *Statistics) Gets() int64 {
	return atomic.LoadInt64(&s.gets)
}

// Peeks returns the total number of peek operations.
func (s *Statistics) Peeks() int64 {
	return atomic.LoadInt64(&s.peeks)
}

// Drops returns the total number of dropped items.
func (s *Statistics) Drops() int64 {
	return atomic.LoadInt64(&s.drops)
}

// Depth returns the current number of queued items.
func (s *Statistics) Depth() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.depth
}

// MaxDepth returns the highest depth the queue has reached. With no bound on
// queue growth this is the number to watch when a consumer stalls.
func (s *Statistics) MaxDepth() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxDepth
}

// Throughput returns the average number of enqueues per second.
func (s *Statistics) Throughput() float64 {
	s.mu.RLock()
	elapsed := time.Since(s.startTime)
	s.mu.RUnlock()

	if elapsed == 0 {
		return 0.0
	}

	return float64(s.Puts()) / elapsed.Seconds()
}

// Uptime returns how long the queue has existed.
func (s *Statistics) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// StatsSummary is a snapshot of all statistics.
type StatsSummary struct {
	Puts       int64         `json:"puts"`
	Gets       int64         `json:"gets"`
	Peeks      int64         `json:"peeks"`
	Drops      int64         `json:"drops"`
	Depth      int64         `json:"depth"`
	MaxDepth   int64         `json:"max_depth"`
	Throughput float64       `json:"throughput"`
	Uptime     time.Duration `json:"uptime"`
}

// Summary returns a snapshot of all statistics.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Puts:       s.Puts(),
		Gets:       s.Gets(),
		Peeks:      s.Peeks(),
		Drops:      s.Drops(),
		Depth:      s.Depth(),
		MaxDepth:   s.MaxDepth(),
		Throughput: s.Throughput(),
		Uptime:     s.Uptime(),
	}
}
