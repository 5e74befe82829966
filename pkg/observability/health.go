package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Probe checks one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

type probe struct {
	name     string
	critical bool
	check    func(ctx context.Context) DependencyStatus
}

// HealthChecker answers liveness and readiness for the health listener.
// The store is always critical; redis is critical when sessions live there.
type HealthChecker struct {
	version string
	timeout time.Duration

	mu     sync.RWMutex
	probes []probe
}

// NewHealthChecker probes db and, when non-nil, redis
func NewHealthChecker(db *sql.DB, redisClient *redis.Client, version string) *HealthChecker {
	h := &HealthChecker{version: version, timeout: 5 * time.Second}
	if db != nil {
		h.probes = append(h.probes, probe{name: "database", critical: true, check: databaseProbe(db)})
	}
	if redisClient != nil {
		h.AddProbe("redis", true, func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	return h
}

// AddProbe registers an extra dependency. A failing non-critical probe
// degrades readiness without failing it.
func (h *HealthChecker) AddProbe(name string, critical bool, p Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes = append(h.probes, probe{name: name, critical: critical, check: func(ctx context.Context) DependencyStatus {
		start := time.Now()
		err := p(ctx)
		status := DependencyStatus{Status: StatusHealthy, Latency: time.Since(start), Timestamp: start}
		if err != nil {
			status.Status = StatusUnhealthy
			status.Message = err.Error()
		}
		return status
	}})
}

// HealthStatus is the readiness response body
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus is the outcome of one probe
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Check runs every probe concurrently
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	h.mu.RLock()
	probes := append([]probe(nil), h.probes...)
	h.mu.RUnlock()

	results := make([]DependencyStatus, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func(i int, p probe) {
			defer wg.Done()
			results[i] = p.check(ctx)
		}(i, p)
	}
	wg.Wait()

	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus, len(probes)),
	}
	for i, p := range probes {
		res := results[i]
		status.Dependencies[p.name] = res
		if !p.critical && res.Status == StatusUnhealthy {
			res.Status = StatusDegraded
		}
		status.Status = worst(status.Status, res.Status)
	}
	return status
}

// Liveness answers 200 while the process is serving
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness answers 503 when a critical dependency is down
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, status)
}

func writeHealth(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func worst(a, b string) string {
	rank := map[string]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// databaseProbe runs a trivial query and flags an exhausted pool as degraded
func databaseProbe(db *sql.DB) func(ctx context.Context) DependencyStatus {
	return func(ctx context.Context) DependencyStatus {
		start := time.Now()
		status := DependencyStatus{Status: StatusHealthy, Timestamp: start}

		var one int
		err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
		status.Latency = time.Since(start)
		if err != nil {
			status.Status = StatusUnhealthy
			status.Message = "query failed: " + err.Error()
			return status
		}

		if stats := db.Stats(); stats.MaxOpenConnections > 1 && stats.InUse >= stats.MaxOpenConnections {
			status.Status = StatusDegraded
			status.Message = "connection pool exhausted"
		}
		return status
	}
}

// RegisterHealthRoutes mounts /health, /health/live and /health/ready
func RegisterHealthRoutes(serveMux *http.ServeMux, checker *HealthChecker) {
	serveMux.HandleFunc("/health", checker.Readiness)
	serveMux.HandleFunc("/health/live", checker.Liveness)
	serveMux.HandleFunc("/health/ready", checker.Readiness)
}
