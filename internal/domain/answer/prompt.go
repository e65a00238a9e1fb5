// Package answer builds the grounding prompt for document questions.
package answer

import (
	"fmt"
	"strings"
)

// MaxQueryLength bounds a question, in bytes.
const MaxQueryLength = 2000

// Refusal is the reply the model must give when the context lacks the answer.
func Refusal(query string) string {
	return fmt.Sprintf("Sorry, I cannot find the answer to your question \"%s\" in this document.", query)
}

// JoinContext concatenates segment texts in rank order, separated by blank lines.
func JoinContext(texts []string) string {
	return strings.Join(texts, "\n\n")
}

// Prompt renders the single-turn grounding prompt.
func Prompt(query string, texts []string) string {
	var b strings.Builder
	b.WriteString("You are an assistant that answers questions strictly from the provided context ")
	b.WriteString("taken from a single document. Do not use outside knowledge and do not make ")
	b.WriteString("assumptions beyond the context. If the context does not contain enough ")
	b.WriteString("information, reply exactly with: ")
	b.WriteString(Refusal(query))
	b.WriteString("\n\nContext from the document:\n")
	b.WriteString(JoinContext(texts))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\n\nGive a complete answer using only the information in the context above.")
	return b.String()
}
