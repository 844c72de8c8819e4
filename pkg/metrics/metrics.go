// Package metrics holds the prometheus collectors shared by the binaries.
// Every constructor accepts a nil registerer and returns a no-op collector.
package metrics

const namespace = "designdrop"

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

func outcomeOf(err error) string {
	if err != nil {
		return outcomeFailure
	}
	return outcomeSuccess
}

func labelOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
