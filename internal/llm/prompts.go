// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package llm

import (
	"bytes"
	"text/template"
)

// Plain text/template prompts, matching the teacher's preference for
// stdlib templating over a templating SDK (cmd/hive-server/main.go
// uses html/template for its pages the same way).

var condenseTmpl = template.Must(template.New("condense").Parse(
	`Given the conversation so far and a follow-up question, rephrase the
follow-up into a standalone question that carries its own context.
Return only the rewritten question.

Conversation:
{{.History}}

Follow-up question: {{.Question}}

Standalone question:`))

var contextualPrefixTmpl = template.Must(template.New("contextual_prefix").Parse(
	`Document excerpt (for context):
{{.DocumentExcerpt}}

Chunk to situate within the document above:
{{.ChunkText}}

Write a short (1-2 sentence) context statement that situates this
chunk within the overall document, to be prepended to the chunk before
it is embedded. Return only the context statement.`))

const SystemAnswerPrompt = `You are a precise assistant that answers questions using only the
provided source excerpts. If the excerpts do not contain enough
information to answer, respond with exactly: "I don't have enough information to answer this question."
Cite sources by their document name where relevant. Do not invent
information that is not present in the excerpts.`

type condenseVars struct {
	History  string
	Question string
}

// RenderCondense builds the condense-question prompt for turning a
// follow-up into a standalone retrieval query.
func RenderCondense(history, question string) (string, error) {
	var buf bytes.Buffer
	if err := condenseTmpl.Execute(&buf, condenseVars{History: history, Question: question}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type contextualPrefixVars struct {
	DocumentExcerpt string
	ChunkText       string
}

// RenderContextualPrefix builds the per-chunk contextual-retrieval
// prompt used during ingestion (4.E).
func RenderContextualPrefix(documentExcerpt, chunkText string) (string, error) {
	var buf bytes.Buffer
	if err := contextualPrefixTmpl.Execute(&buf, contextualPrefixVars{DocumentExcerpt: documentExcerpt, ChunkText: chunkText}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
