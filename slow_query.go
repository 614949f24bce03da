package ygggo_mysqlrw

import (
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// SlowQueryRecord is one statement execution that exceeded the threshold.
type SlowQueryRecord struct {
	ID        string        `json:"id"`
	Query     string        `json:"query"`
	ArgCount  int           `json:"arg_count"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
	RWType    string        `json:"rw_type"`
	Endpoint  string        `json:"endpoint"`
	DBName    string        `json:"dbname,omitempty"`
	Error     string        `json:"error,omitempty"`
	Stack     string        `json:"stack,omitempty"`
}

// SlowQueryStats summarizes the retained records.
type SlowQueryStats struct {
	TotalCount      int64          `json:"total_count"`
	UniqueQueries   int64          `json:"unique_queries"`
	AverageDuration time.Duration  `json:"average_duration"`
	MaxDuration     time.Duration  `json:"max_duration"`
	MinDuration     time.Duration  `json:"min_duration"`
	LastRecordTime  time.Time      `json:"last_record_time"`
	TopQueries      []QueryPattern `json:"top_queries"`
}

// QueryPattern aggregates the slow executions of one prepared statement.
// Parameters are never part of the statement text, so the template itself is
// the pattern.
type QueryPattern struct {
	Query           string        `json:"query"`
	Count           int64         `json:"count"`
	TotalDuration   time.Duration `json:"total_duration"`
	AverageDuration time.Duration `json:"average_duration"`
	MaxDuration     time.Duration `json:"max_duration"`
	LastSeen        time.Time     `json:"last_seen"`
}

// SlowQueryConfig holds configuration for slow query recording.
type SlowQueryConfig struct {
	Threshold    time.Duration `json:"threshold" yaml:"threshold"`
	MaxRecords   int           `json:"max_records" yaml:"max_records"`
	MaxPatterns  int           `json:"max_patterns" yaml:"max_patterns"`
	IncludeStack bool          `json:"include_stack" yaml:"include_stack"`
}

// DefaultSlowQueryConfig returns default configuration.
func DefaultSlowQueryConfig() SlowQueryConfig {
	return SlowQueryConfig{
		Threshold:   100 * time.Millisecond,
		MaxRecords:  1000,
		MaxPatterns: 100,
	}
}

// SlowQueryLog keeps the most recent slow statements in memory together with
// per statement aggregates. The least recently seen pattern is evicted once
// MaxPatterns is reached. Safe for concurrent use.
type SlowQueryLog struct {
	mu       sync.RWMutex
	config   SlowQueryConfig
	records  []*SlowQueryRecord
	patterns *lru.Cache[string, *QueryPattern]
}

// NewSlowQueryLog creates a log; zero config fields take their defaults.
func NewSlowQueryLog(config SlowQueryConfig) *SlowQueryLog {
	def := DefaultSlowQueryConfig()
	if config.Threshold <= 0 {
		config.Threshold = def.Threshold
	}
	if config.MaxRecords <= 0 {
		config.MaxRecords = def.MaxRecords
	}
	if config.MaxPatterns <= 0 {
		config.MaxPatterns = def.MaxPatterns
	}
	patterns, _ := lru.New[string, *QueryPattern](config.MaxPatterns)
	return &SlowQueryLog{config: config, patterns: patterns}
}

// Config returns the configuration in effect.
func (l *SlowQueryLog) Config() SlowQueryConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// SetThreshold changes the threshold for future executions.
func (l *SlowQueryLog) SetThreshold(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	l.config.Threshold = d
	l.mu.Unlock()
}

// Observe records the execution when it ran longer than the threshold and
// reports whether it did.
func (l *SlowQueryLog) Observe(query string, argCount int, duration time.Duration, rw Intent, ep EndpointConfig, err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if duration <= l.config.Threshold {
		return false
	}
	rec := &SlowQueryRecord{
		ID:        uuid.NewString(),
		Query:     query,
		ArgCount:  argCount,
		Duration:  duration,
		Timestamp: time.Now(),
		RWType:    rw.String(),
		Endpoint:  ep.address(),
		DBName:    ep.DBName,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if l.config.IncludeStack {
		rec.Stack = string(debug.Stack())
	}

	l.records = append(l.records, rec)
	if over := len(l.records) - l.config.MaxRecords; over > 0 {
		l.records = l.records[over:]
	}

	p, ok := l.patterns.Get(query)
	if !ok {
		p = &QueryPattern{Query: query}
		l.patterns.Add(query, p)
	}
	p.Count++
	p.TotalDuration += duration
	p.AverageDuration = time.Duration(int64(p.TotalDuration) / p.Count)
	p.LastSeen = rec.Timestamp
	if duration > p.MaxDuration {
		p.MaxDuration = duration
	}
	return true
}

// Records returns up to limit records, newest first. limit <= 0 returns all.
func (l *SlowQueryLog) Records(limit int) []SlowQueryRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]SlowQueryRecord, 0, n)
	for i := len(l.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, *l.records[i])
	}
	return out
}

// Patterns returns up to limit patterns, most frequent first.
func (l *SlowQueryLog) Patterns(limit int) []QueryPattern {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.topPatterns(limit)
}

func (l *SlowQueryLog) topPatterns(limit int) []QueryPattern {
	patterns := make([]QueryPattern, 0, l.patterns.Len())
	for _, p := range l.patterns.Values() {
		patterns = append(patterns, *p)
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Count != patterns[j].Count {
			return patterns[i].Count > patterns[j].Count
		}
		return patterns[i].Query < patterns[j].Query
	})
	if limit > 0 && limit < len(patterns) {
		patterns = patterns[:limit]
	}
	return patterns
}

// Stats summarizes the retained records.
func (l *SlowQueryLog) Stats() SlowQueryStats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.records) == 0 {
		return SlowQueryStats{}
	}
	var total, maxDur time.Duration
	minDur := l.records[0].Duration
	var last time.Time
	for _, r := range l.records {
		total += r.Duration
		maxDur = max(maxDur, r.Duration)
		minDur = min(minDur, r.Duration)
		if r.Timestamp.After(last) {
			last = r.Timestamp
		}
	}
	return SlowQueryStats{
		TotalCount:      int64(len(l.records)),
		UniqueQueries:   int64(l.patterns.Len()),
		AverageDuration: time.Duration(int64(total) / int64(len(l.records))),
		MaxDuration:     maxDur,
		MinDuration:     minDur,
		LastRecordTime:  last,
		TopQueries:      l.topPatterns(10),
	}
}

// Clear removes all records and patterns.
func (l *SlowQueryLog) Clear() {
	l.mu.Lock()
	l.records = nil
	l.patterns.Purge()
	l.mu.Unlock()
}

// SetSlowQueryLog starts recording slow statements into l. nil stops it.
func (m *Manager) SetSlowQueryLog(l *SlowQueryLog) {
	if m == nil {
		return
	}
	m.slowMu.Lock()
	m.slowLog = l
	m.slowMu.Unlock()
}

// SlowQueryLog returns the installed log, or nil.
func (m *Manager) SlowQueryLog() *SlowQueryLog {
	if m == nil {
		return nil
	}
	m.slowMu.RLock()
	defer m.slowMu.RUnlock()
	return m.slowLog
}

func (m *Manager) observeSlow(query string, argCount int, duration time.Duration, rw Intent, ep EndpointConfig, err error) {
	if l := m.SlowQueryLog(); l != nil {
		l.Observe(query, argCount, duration, rw, ep, err)
	}
}
