package health

import (
	"context"
	"sort"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component failed.
	Degraded Status = "degraded"
	// Unhealthy indicates a required component failed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

const defaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type component struct {
	name     string
	pinger   Pinger
	required bool
}

// Service coordinates health checks.
type Service struct {
	components []component
	timeout    time.Duration
}

// New creates an empty Service. Register components with Require and Optional.
func New() *Service {
	return &Service{timeout: defaultCheckTimeout}
}

// Require registers a component whose failure makes the service unhealthy.
func (s *Service) Require(name string, p Pinger) *Service {
	s.components = append(s.components, component{name: name, pinger: p, required: true})
	return s
}

// Optional registers a component whose failure only degrades the service.
// A nil pinger is skipped.
func (s *Service) Optional(name string, p Pinger) *Service {
	if p != nil {
		s.components = append(s.components, component{name: name, pinger: p})
	}
	return s
}

// Names returns the registered component names, sorted.
func (s *Service) Names() []string {
	out := make([]string, 0, len(s.components))
	for _, c := range s.components {
		out = append(out, c.name)
	}
	sort.Strings(out)
	return out
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.components))
	status := Healthy

	for _, c := range s.components {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := c.pinger.Ping(cctx)
		cancel()

		if err == nil {
			checks[c.name] = CheckOK
			continue
		}
		checks[c.name] = CheckError
		if c.required {
			status = Unhealthy
		} else if status == Healthy {
			status = Degraded
		}
	}

	return Report{Status: status, Checks: checks}
}
