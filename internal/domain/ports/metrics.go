package ports

// Metric result labels
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultCache = "cache"
	// ResultInvalid marks a submission blocked by validation
	ResultInvalid = "invalid"
)

// MetricsRecorder receives engine counters. Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	LookupCompleted(lookupType, result string)
	RegistrySaveCompleted(result string)
	SubmissionCompleted(entityType, result string)
	StaleResponseDiscarded()
}

// NopMetrics discards every observation
type NopMetrics struct{}

func (NopMetrics) LookupCompleted(string, string)     {}
func (NopMetrics) RegistrySaveCompleted(string)       {}
func (NopMetrics) SubmissionCompleted(string, string) {}
func (NopMetrics) StaleResponseDiscarded()            {}
