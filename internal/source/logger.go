package source

import (
	"log"
	"time"
)

// LogRequest logs an API request being made.
func LogRequest(source, method, url string, params map[string]interface{}) {
	if len(params) > 0 {
		log.Printf("[%s] %s %s params=%v", source, method, url, params)
	} else {
		log.Printf("[%s] %s %s", source, method, url)
	}
}

// LogResponse logs an API response received.
func LogResponse(source string, statusCode int, duration time.Duration, resultCount int) {
	log.Printf("[%s] response status=%d duration=%dms results=%d",
		source, statusCode, duration.Milliseconds(), resultCount)
}

// LogError logs an error from an API operation.
func LogError(source, operation string, err error) {
	log.Printf("[%s] %s error: %v", source, operation, err)
}

// LogRetry logs a transient failure that will be retried.
func LogRetry(source string, attempt int, wait time.Duration, err error) {
	log.Printf("[%s] attempt %d failed (%v), retrying in %s", source, attempt, err, wait)
}

// LogReject logs a record dropped during normalization.
func LogReject(source, id string, err error) {
	if id == "" {
		id = "?"
	}
	log.Printf("[%s] rejected record %s: %v", source, id, err)
}

// LogDiscard logs a field value that was dropped while the record was kept.
func LogDiscard(source, id, field string, value interface{}) {
	log.Printf("[%s] record %s: discarding %s=%v", source, id, field, value)
}

// LogFetch logs the outcome of a complete fetch.
func LogFetch(source string, count int, duration time.Duration) {
	log.Printf("[%s] fetched %d records in %dms", source, count, duration.Milliseconds())
}
