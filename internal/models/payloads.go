package models

// These structs define the JSON payloads exchanged with the ingest and query
// Cloud Functions and printed by the CLI.

// Ingest statuses. A partial ingest saved some records before failing; a failed
// one saved none.
const (
	IngestOK      = "ok"
	IngestPartial = "partial"
	IngestFailed  = "failed"
)

// IngestResponse is the outcome of ingesting one PDF object.
type IngestResponse struct {
	Status         string   `json:"status"`
	SourceDocument string   `json:"sourceDocument"`
	RecordIDs      []string `json:"recordIds"`
	Pages          int      `json:"pages"`
	Tables         int      `json:"tables"`
}

// AskRequest is the input for the query function.
type AskRequest struct {
	Question string `json:"question"`
}

// Answer statuses. Only AnswerOK and AnswerRawFallback carry records.
const (
	AnswerOK          = "ok"
	AnswerNoResults   = "no_results"
	AnswerFailed      = "failed"
	AnswerRawFallback = "raw_fallback"
)

// AskResponse is the outcome of a natural-language question. Failed answers carry
// the failing stage and, when one was generated, the offending query.
type AskResponse struct {
	Status   string            `json:"status"`
	Question string            `json:"question"`
	Query    string            `json:"query,omitempty"`
	Summary  string            `json:"summary,omitempty"`
	Records  []MonitoringEvent `json:"records,omitempty"`
	Stage    string            `json:"stage,omitempty"`
	Error    string            `json:"error,omitempty"`
}
