package enhancer

import (
	"fmt"
	"strings"
)

// Each prompt ends with a distinct answer cue; the mock model routes on them.
const (
	expandCue  = "Enhanced query:"
	scoreCue   = "Relevance score:"
	verdictCue = "Verdict:"
	snippetCue = "Snippet:"
)

func expandPrompt(query, locale string) string {
	var b strings.Builder
	b.WriteString("You are an expert search query enhancer. Expand the search query below so it finds ")
	b.WriteString("the most accurate information. Add only relevant terms, keep it concise and keep the original intent.\n")
	if locale = strings.TrimSpace(locale); len(locale) == 2 {
		fmt.Fprintf(&b, "The searcher is located in the country with code %s. ", strings.ToUpper(locale))
		b.WriteString("Favour terms relevant to that location when appropriate.\n")
	}
	fmt.Fprintf(&b, "\nOriginal query: %s\n\n%s", query, expandCue)
	return b.String()
}

func scorePrompt(query, title, snippet string) string {
	return fmt.Sprintf(`Query: %s

Document title: %s
Document snippet: %s

On a scale from 0.0 to 10.0, how relevant is this document to the query?
Answer with the number only.

%s`, query, title, snippet, scoreCue)
}

func verdictPrompt(title, snippet string) string {
	return fmt.Sprintf(`Document title: %s
Document snippet: %s

Does this content look like spam, a content farm, misleading, or irrelevant to most searches?
Answer with FILTER or KEEP only.

%s`, title, snippet, verdictCue)
}

func snippetPrompt(html string) string {
	return fmt.Sprintf(`Extract the most informative summary from this HTML content.
Write a factual snippet that directly addresses the likely user intent, under 200 characters.

HTML content:
%s

%s`, html, snippetCue)
}
