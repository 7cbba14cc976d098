package collector

import (
	"time"

	"stampede/internal/core"
)

// ComputeMetrics computes metrics from events. Pure function, no side effects.
//
// Flow statistics are grouped by event flow name. Journey statistics are
// derived from run IDs: each run counts once, its duration is the sum of its
// flow durations, and it is failed when its terminal event is not a success.
func ComputeMetrics(events []core.Event, testDuration time.Duration) *Metrics {
	m := &Metrics{
		Flows:        make(map[string]*FlowMetrics),
		Journeys:     make(map[string]*JourneyMetrics),
		Classes:      make(map[string]int),
		TestDuration: testDuration,
	}

	if len(events) == 0 {
		return m
	}

	allDurations := make([]time.Duration, 0, len(events))
	flowDurations := make(map[string][]time.Duration)

	runDuration := make(map[string]time.Duration)
	runJourney := make(map[string]string)
	runFailed := make(map[string]bool)
	runOrder := make([]string, 0)
	journeyDurations := make(map[string][]time.Duration)

	for _, e := range events {
		m.TotalFlows++
		if e.Success {
			m.SuccessCount++
		} else {
			m.FailureCount++
			if e.Class != "" {
				m.Classes[e.Class]++
			}
		}

		allDurations = append(allDurations, e.Duration)

		if _, exists := m.Flows[e.Flow]; !exists {
			m.Flows[e.Flow] = &FlowMetrics{}
			flowDurations[e.Flow] = make([]time.Duration, 0)
		}

		fm := m.Flows[e.Flow]
		fm.Count++
		if e.Success {
			fm.Success++
		} else {
			fm.Failed++
		}
		flowDurations[e.Flow] = append(flowDurations[e.Flow], e.Duration)

		if e.RunID != "" {
			if _, seen := runJourney[e.RunID]; !seen {
				runJourney[e.RunID] = e.Journey
				runOrder = append(runOrder, e.RunID)
			}
			runDuration[e.RunID] += e.Duration
			if e.Terminal && !e.Success {
				runFailed[e.RunID] = true
			}
		}
	}

	for _, runID := range runOrder {
		journey := runJourney[runID]
		if _, exists := m.Journeys[journey]; !exists {
			m.Journeys[journey] = &JourneyMetrics{}
			journeyDurations[journey] = make([]time.Duration, 0)
		}
		jm := m.Journeys[journey]
		jm.Runs++
		if runFailed[runID] {
			jm.Failed++
		}
		journeyDurations[journey] = append(journeyDurations[journey], runDuration[runID])
	}

	if m.TotalFlows > 0 {
		m.SuccessRate = float64(m.SuccessCount) / float64(m.TotalFlows) * 100
	}

	if m.TestDuration > 0 {
		m.FlowsPerSec = float64(m.TotalFlows) / m.TestDuration.Seconds()
	}

	m.Duration = ComputeDurationMetrics(allDurations)

	for flow, durations := range flowDurations {
		m.Flows[flow].Duration = ComputeDurationMetrics(durations)
	}

	for journey, durations := range journeyDurations {
		jm := m.Journeys[journey]
		jm.Duration = ComputeDurationMetrics(durations)
		if jm.Runs > 0 {
			jm.FailureRate = float64(jm.Failed) / float64(jm.Runs) * 100
		}
	}

	return m
}

// JourneyFailureRate returns the failure rate across all journeys, in percent.
func (m *Metrics) JourneyFailureRate() float64 {
	var runs, failed int
	for _, jm := range m.Journeys {
		runs += jm.Runs
		failed += jm.Failed
	}
	if runs == 0 {
		return 0
	}
	return float64(failed) / float64(runs) * 100
}
