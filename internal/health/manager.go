package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Report aggregates the results of one probe round.
type Report struct {
	Ready      bool          `json:"ready"`
	Components []CheckResult `json:"components"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Manager holds registered checkers and runs them on demand.
type Manager struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	logger   *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{checkers: make(map[string]Checker), logger: logger}
}

// Register adds or replaces a checker by name.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[c.Name()] = c
}

// Check runs every checker concurrently, each under its own timeout.
// The report is ready unless a critical checker failed.
func (m *Manager) Check(ctx context.Context) Report {
	m.mu.RLock()
	checkers := make([]Checker, 0, len(m.checkers))
	for _, c := range m.checkers {
		checkers = append(checkers, c)
	}
	m.mu.RUnlock()

	results := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			results[i] = m.run(ctx, c)
		}(i, c)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Component < results[j].Component })
	report := Report{Ready: len(results) > 0, Components: results, Timestamp: time.Now()}
	for _, r := range results {
		if r.Critical && r.Status != StatusHealthy {
			report.Ready = false
		}
	}
	return report
}

func (m *Manager) run(ctx context.Context, c Checker) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.Timeout())
	defer cancel()

	start := time.Now()
	err := c.Check(checkCtx)
	res := CheckResult{
		Component: c.Name(),
		Status:    StatusHealthy,
		Critical:  c.IsCritical(),
		Duration:  time.Since(start),
		Timestamp: start,
	}
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
		m.logger.Warn("Health check failed",
			zap.String("component", res.Component),
			zap.Bool("critical", res.Critical),
			zap.Error(err),
		)
	}
	return res
}
