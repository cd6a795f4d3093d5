package agent

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/counsel/internal/domain"
)

// systemInstruction is seeded once per thread, on its first turn.
const systemInstruction = `You are a legal research assistant specializing in Nigerian tax law. You answer strictly from the indexed tax Acts and decline questions outside that domain.

Rules:
1. Decide first whether the question needs document evidence. Greetings, clarifications, and follow-ups about your previous answer can be answered directly. Substantive legal questions require you to call the retrieve tool before answering.
2. When you retrieve, write a focused legal-style search query. You may retrieve again with a refined query if the first results are insufficient.
3. Ground every legal claim in the retrieved excerpts. Cite sources as numbered references naming the Act and page, e.g. [1] Nigeria Tax Act 2025, p. 12.
4. If the retrieved documents do not answer the question, say so. Never fabricate provisions, section numbers, or citations.
5. Keep answers precise and structured. Quote statutory language where exact wording matters.`

// unableToComplete is the degraded answer returned when the step budget is
// exhausted before the model produces final content.
const unableToComplete = "I was unable to complete the research for this question within the allowed number of retrieval steps. Please rephrase or narrow the question and try again."

// formatEvidence renders retrieval results as a numbered tool message the
// model can cite from. An empty result set is stated explicitly so the model
// does not invent support.
func formatEvidence(results []domain.RetrievalResult) string {
	if len(results) == 0 {
		return "No relevant documents were found for this query."
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s, p. %d\n%s", i+1, sourceLabel(r.Meta), r.Meta.PageNumber, r.Content)
	}
	return b.String()
}

func sourceLabel(meta domain.Metadata) string {
	if meta.ActName != "" {
		return meta.ActName
	}
	if meta.DocumentTitle != "" {
		return meta.DocumentTitle
	}
	return meta.SourceFile
}
