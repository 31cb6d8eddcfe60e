package assertions

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jqsirls/character-canary/pkg/canary"
)

// fireStats counts validator firings on a private registry, one per canary,
// harvested into the run report after evaluation.
type fireStats struct {
	registry *prometheus.Registry
	codes    *prometheus.CounterVec
	findings *prometheus.CounterVec
}

func newFireStats() *fireStats {
	registry := prometheus.NewRegistry()
	codes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "canary_validator_fired_total",
		Help: "Validator failure codes observed on generation attempts.",
	}, []string{"code", "severity"})
	findings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "canary_findings_total",
		Help: "Assertion findings by class.",
	}, []string{"class"})
	registry.MustRegister(codes, findings)
	return &fireStats{registry: registry, codes: codes, findings: findings}
}

func (s *fireStats) recordCode(code, severity string) {
	s.codes.WithLabelValues(code, severity).Inc()
}

func (s *fireStats) recordFinding(class string) {
	s.findings.WithLabelValues(class).Inc()
}

// snapshot gathers the registry into the report's fire-rate block.
func (s *fireStats) snapshot() canary.FireRateStats {
	stats := canary.FireRateStats{
		ByCode:  map[string]int{},
		ByClass: map[string]int{},
	}
	families, err := s.registry.Gather()
	if err != nil {
		return stats
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			value := int(metric.GetCounter().GetValue())
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			switch family.GetName() {
			case "canary_validator_fired_total":
				stats.ByCode[labels["code"]] += value
				stats.Total += value
			case "canary_findings_total":
				stats.ByClass[labels["class"]] += value
			}
		}
	}
	return stats
}
