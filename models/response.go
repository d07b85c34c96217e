package models

// AnswerResponse is returned on a successful chat request. Sources are
// already grouped by origin document.
type AnswerResponse struct {
	Text            string             `json:"text"`
	SourceDocuments []AggregatedSource `json:"sourceDocuments"`
}

// ErrorResponse is returned for any failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatsResponse describes the configured namespace.
type StatsResponse struct {
	Namespace string `json:"namespace"`
	Chunks    int    `json:"chunks"`
}
