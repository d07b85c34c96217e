package models

// AnswerRequest is the body of POST /api/chat and /api/v1/chat.
type AnswerRequest struct {
	Question string  `json:"question"`
	History  History `json:"history"`
}
