package services

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github/itish2003/rentalqa/models"
)

// Sentinel answers. When the model replies with one of these the response
// carries no sources.
const (
	FallbackAnswer = "Hmm, I'm not sure."
	IdentityAnswer = "I am an AI assistant."
)

// IsFallbackAnswer reports whether text is one of the sentinel non-answers.
func IsFallbackAnswer(text string) bool {
	return text == FallbackAnswer || text == IdentityAnswer
}

const systemPrompt = `You are Rental Copilot, a helpful assistant for questions about residential tenancies: leases, bonds, rent, repairs, inspections and ending a tenancy.

Answer using only the context passages supplied with each question. Do not use outside knowledge and do not invent facts, figures or section numbers.
If the context does not contain enough information to answer, reply with exactly: ` + FallbackAnswer + `
If you are asked who or what you are, reply with exactly: ` + IdentityAnswer + `
Answer in markdown. Keep answers concise.`

var condensePrompt = prompts.NewPromptTemplate(`Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question that can be understood without the conversation.

Chat History:
{{.chat_history}}
Follow Up Input: {{.question}}
Standalone question:`, []string{"chat_history", "question"})

var qaPrompt = prompts.NewPromptTemplate(`Use the following pieces of context to answer the question at the end.

{{.context}}

Question: {{.question}}
Helpful answer in markdown:`, []string{"context", "question"})

// SystemPrompt returns the fixed instruction used for grounded generation.
func SystemPrompt() string { return systemPrompt }

// FormatHistory renders turns the way the condense prompt expects.
func FormatHistory(h models.History) string {
	var sb strings.Builder
	for _, t := range h.Turns() {
		sb.WriteString("Human: ")
		sb.WriteString(t.Question)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(t.Answer)
		sb.WriteString("\n")
	}
	return sb.String()
}

// CondensePrompt builds the question-rewriting prompt.
func CondensePrompt(h models.History, question string) (string, error) {
	p, err := condensePrompt.Format(map[string]any{
		"chat_history": FormatHistory(h),
		"question":     question,
	})
	if err != nil {
		return "", fmt.Errorf("format condense prompt: %w", err)
	}
	return p, nil
}

// QAPrompt builds the grounded answering prompt from retrieved passages.
func QAPrompt(docs []models.RetrievedDocument, question string) (string, error) {
	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, d.PageContent)
	}
	p, err := qaPrompt.Format(map[string]any{
		"context":  strings.Join(texts, "\n\n"),
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("format qa prompt: %w", err)
	}
	return p, nil
}
