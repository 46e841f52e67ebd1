package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/opa-acceptor/types"
)

const (
	MetricsNamespace = "opa_acceptor"
)

var (
	Debug                bool = true
	validResults              = []types.TestStatus{types.TestStatusPass, types.TestStatusFail, types.TestStatusSkip, types.TestStatusError}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "validations_total",
		Help:      "Count of executed acceptance tests",
	}, []string{
		"target",
		"run_id",
		"category",
		"test",
		"result",
	})

	acceptanceResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "acceptance_results",
		Help:      "Result of acceptance runs",
	}, []string{
		"target",
		"run_id",
		"result",
	})

	acceptanceTestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "acceptance_test_total",
		Help:      "Total number of acceptance tests",
	}, []string{
		"target",
		"run_id",
	})

	acceptanceTestPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "acceptance_test_passed",
		Help:      "Number of passed acceptance tests",
	}, []string{
		"target",
		"run_id",
	})

	acceptanceTestFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "acceptance_test_failed",
		Help:      "Number of failed acceptance tests",
	}, []string{
		"target",
		"run_id",
	})

	acceptanceTestDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "acceptance_test_duration",
		Help:      "Duration of acceptance runs",
	}, []string{
		"target",
		"run_id",
	})

	thresholdExceededTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "threshold_exceeded_total",
		Help:      "Count of tests whose response time exceeded the configured maximum",
	}, []string{
		"target",
		"run_id",
		"category",
		"test",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordValidation(target string, runID string, category string, test string, result types.TestStatus) {
	if !isValidResult(result) {
		log.Error("RecordValidation - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "validations_total",
			"target", target,
			"run_id", runID,
			"category", category,
			"test", test,
			"result", result)
	}
	validationsTotal.WithLabelValues(target, runID, category, test, string(result)).Inc()
}

// RecordThresholdExceeded marks a test whose duration went over the
// configured per-category maximum response time.
func RecordThresholdExceeded(target string, runID string, category string, test string) {
	thresholdExceededTotal.WithLabelValues(target, runID, category, test).Inc()
}

func RecordAcceptance(
	target string,
	runID string,
	result string,
	total int,
	passed int,
	failed int,
	duration time.Duration,
) {
	acceptanceResults.WithLabelValues(target, runID, result).Set(1)
	acceptanceTestTotal.WithLabelValues(target, runID).Add(float64(total))
	acceptanceTestPassed.WithLabelValues(target, runID).Add(float64(passed))
	acceptanceTestFailed.WithLabelValues(target, runID).Add(float64(failed))
	acceptanceTestDuration.WithLabelValues(target, runID).Set(duration.Seconds())
}

func isValidResult(result types.TestStatus) bool {
	return slices.Contains(validResults, result)
}
