package types

import "time"

type CollectionStatus string

const (
	StatusSuccess CollectionStatus = "success"
	StatusPartial CollectionStatus = "partial"
	StatusError   CollectionStatus = "error"
)

// CollectionLogEntry is the audit row written once per adapter invocation.
type CollectionLogEntry struct {
	ID               int64            `json:"id"`
	RunID            string           `json:"run_id"`
	ProviderID       *int64           `json:"provider_id"`
	ProviderName     string           `json:"provider_name"`
	Status           CollectionStatus `json:"status"`
	RecordsCollected int              `json:"records_collected"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	ExecutionMs      int64            `json:"execution_time_ms"`
	CollectionTime   time.Time        `json:"collection_time"`
}
