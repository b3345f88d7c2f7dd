package resolution

import "time"

// ResolutionStatus represents the lifecycle of an async event resolution.
type ResolutionStatus string

const (
	StatusQueued     ResolutionStatus = "queued"
	StatusProcessing ResolutionStatus = "processing"
	StatusResolved   ResolutionStatus = "resolved"
	StatusEmpty      ResolutionStatus = "empty"
	StatusFailed     ResolutionStatus = "failed"
)

// ResolutionLog records one event accepted for async resolution and, once
// the worker has run, the recipient list handed to the dispatch layer.
type ResolutionLog struct {
	ID             string               `json:"id"`
	DealerID       string               `json:"dealer_id"`
	Module         string               `json:"module"`
	Event          string               `json:"event"`
	Metadata       map[string]any       `json:"metadata,omitempty"`
	EventTimestamp time.Time            `json:"event_timestamp"`
	Status         ResolutionStatus     `json:"status"`
	Recipients     []*ResolvedRecipient `json:"recipients,omitempty"`
	RecipientCount int                  `json:"recipient_count"`
	ErrorMessage   string               `json:"error_message,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	ResolvedAt     *time.Time           `json:"resolved_at,omitempty"`
}

// EventContext rebuilds the transient event the log was created from.
func (l *ResolutionLog) EventContext() *EventContext {
	return &EventContext{
		DealerID:  l.DealerID,
		Module:    l.Module,
		Event:     l.Event,
		Metadata:  l.Metadata,
		Timestamp: l.EventTimestamp,
	}
}

// ListFilter defines pagination and filtering options for listing
// resolution logs.
type ListFilter struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	DealerID string `form:"dealer_id"`
	Module   string `form:"module"`
	Event    string `form:"event"`
	Status   string `form:"status"`
}

// ListResponse wraps a paginated list of resolution logs.
type ListResponse struct {
	Resolutions []*ResolutionLog `json:"resolutions"`
	Total       int              `json:"total"`
	Page        int              `json:"page"`
	PageSize    int              `json:"page_size"`
}
