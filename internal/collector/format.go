package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// FormatText writes metrics in human-readable format.
func FormatText(w io.Writer, m *Metrics, thresholds *ThresholdResults) {
	if m.TotalFlows == 0 {
		fmt.Fprintln(w, "No events collected")
		return
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Stampede - Load Test Results")
	fmt.Fprintln(w, "==============================")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Duration:     %v\n", m.TestDuration.Round(time.Millisecond))
	fmt.Fprintf(w, "Total Flows:  %s\n", formatNumber(m.TotalFlows))
	fmt.Fprintf(w, "Success Rate: %.1f%% (%s / %s)\n",
		m.SuccessRate, formatNumber(m.SuccessCount), formatNumber(m.TotalFlows))
	fmt.Fprintf(w, "Flows/sec:    %.1f\n", m.FlowsPerSec)
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Flow Times:")
	fmt.Fprintf(w, "  Min:    %s\n", FormatDuration(m.Duration.Min))
	fmt.Fprintf(w, "  Avg:    %s\n", FormatDuration(m.Duration.Avg))
	fmt.Fprintf(w, "  P50:    %s\n", FormatDuration(m.Duration.P50))
	fmt.Fprintf(w, "  P90:    %s\n", FormatDuration(m.Duration.P90))
	fmt.Fprintf(w, "  P95:    %s\n", FormatDuration(m.Duration.P95))
	fmt.Fprintf(w, "  P99:    %s\n", FormatDuration(m.Duration.P99))
	fmt.Fprintf(w, "  Max:    %s\n", FormatDuration(m.Duration.Max))
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "By Flow:")
	for _, flow := range sortedKeys(m.Flows) {
		fm := m.Flows[flow]
		fmt.Fprintf(w, "  %-18s %s runs   avg=%s  p95=%s  p99=%s\n",
			flow, formatNumber(fm.Count),
			FormatDuration(fm.Duration.Avg),
			FormatDuration(fm.Duration.P95),
			FormatDuration(fm.Duration.P99))
	}

	if len(m.Journeys) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "By Journey:")
		for _, journey := range sortedKeys(m.Journeys) {
			jm := m.Journeys[journey]
			fmt.Fprintf(w, "  %-22s %s runs   failed=%s (%.1f%%)   avg=%s  p95=%s\n",
				journey, formatNumber(jm.Runs),
				formatNumber(jm.Failed), jm.FailureRate,
				FormatDuration(jm.Duration.Avg),
				FormatDuration(jm.Duration.P95))
		}
	}

	if len(m.Classes) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Failure Classes:")
		classes := make([]string, 0, len(m.Classes))
		for class := range m.Classes {
			classes = append(classes, class)
		}
		sort.Strings(classes)
		for _, class := range classes {
			fmt.Fprintf(w, "  %-22s %s\n", class, formatNumber(m.Classes[class]))
		}
	}

	if thresholds != nil && len(thresholds.Results) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Thresholds:")
		for _, result := range thresholds.Results {
			symbol := "✓"
			if !result.Passed {
				symbol = "✗"
			}
			fmt.Fprintf(w, "  %s %s < %s (actual: %s)\n",
				symbol, result.Name, result.Threshold, result.Actual)
		}
	}
}

// FormatJSON writes metrics in JSON format.
func FormatJSON(w io.Writer, m *Metrics, thresholds *ThresholdResults) {
	output := struct {
		Duration     string                        `json:"duration"`
		TotalFlows   int                           `json:"totalFlows"`
		SuccessCount int                           `json:"successCount"`
		FailureCount int                           `json:"failureCount"`
		SuccessRate  float64                       `json:"successRate"`
		FlowsPerSec  float64                       `json:"flowsPerSec"`
		Durations    jsonDurationMetrics           `json:"durations"`
		Flows        map[string]jsonFlowMetrics    `json:"flows"`
		Journeys     map[string]jsonJourneyMetrics `json:"journeys"`
		Classes      map[string]int                `json:"failureClasses,omitempty"`
		Thresholds   *ThresholdResults             `json:"thresholds,omitempty"`
	}{
		Duration:     m.TestDuration.Round(time.Millisecond).String(),
		TotalFlows:   m.TotalFlows,
		SuccessCount: m.SuccessCount,
		FailureCount: m.FailureCount,
		SuccessRate:  m.SuccessRate,
		FlowsPerSec:  m.FlowsPerSec,
		Durations:    toJSONDurationMetrics(m.Duration),
		Flows:        make(map[string]jsonFlowMetrics),
		Journeys:     make(map[string]jsonJourneyMetrics),
		Classes:      m.Classes,
		Thresholds:   thresholds,
	}

	for flow, fm := range m.Flows {
		output.Flows[flow] = jsonFlowMetrics{
			Count:       fm.Count,
			Success:     fm.Success,
			Failed:      fm.Failed,
			SuccessRate: float64(fm.Success) / float64(fm.Count) * 100,
			Durations:   toJSONDurationMetrics(fm.Duration),
		}
	}

	for journey, jm := range m.Journeys {
		output.Journeys[journey] = jsonJourneyMetrics{
			Runs:        jm.Runs,
			Failed:      jm.Failed,
			FailureRate: jm.FailureRate,
			Durations:   toJSONDurationMetrics(jm.Duration),
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output) // stdout errors are unrecoverable
}

type jsonDurationMetrics struct {
	Min string `json:"min"`
	Max string `json:"max"`
	Avg string `json:"avg"`
	P50 string `json:"p50"`
	P90 string `json:"p90"`
	P95 string `json:"p95"`
	P99 string `json:"p99"`
}

type jsonFlowMetrics struct {
	Count       int                 `json:"count"`
	Success     int                 `json:"success"`
	Failed      int                 `json:"failed"`
	SuccessRate float64             `json:"successRate"`
	Durations   jsonDurationMetrics `json:"durations"`
}

type jsonJourneyMetrics struct {
	Runs        int                 `json:"runs"`
	Failed      int                 `json:"failed"`
	FailureRate float64             `json:"failureRate"`
	Durations   jsonDurationMetrics `json:"durations"`
}

func toJSONDurationMetrics(d DurationMetrics) jsonDurationMetrics {
	return jsonDurationMetrics{
		Min: FormatDuration(d.Min),
		Max: FormatDuration(d.Max),
		Avg: FormatDuration(d.Avg),
		P50: FormatDuration(d.P50),
		P90: FormatDuration(d.P90),
		P95: FormatDuration(d.P95),
		P99: FormatDuration(d.P99),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%d,%03d", n/1000, n%1000)
}
