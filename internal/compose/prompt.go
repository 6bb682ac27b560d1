package compose

import (
	"fmt"
	"strings"

	"github.com/pagewright/pagewright/internal/rank"
)

// buildPlannerPrompt assembles the planner instruction with numbered source
// excerpts. The planner must cite sources as [n] markers matching the
// numbering used here, which is also the numbering of the sources footer.
func buildPlannerPrompt(question string, sources []rank.Source, layout string, excerptChars int) string {
	ctxLines := make([]string, 0, len(sources))
	for i, s := range sources {
		text := truncate(s.Text, excerptChars)
		title := s.Title
		if title == "" {
			title = "Untitled"
		}
		ctxLines = append(ctxLines, fmt.Sprintf("[%d] %s - %s\n%s", i+1, title, s.URL, text))
	}
	return "You are a content planner. Output ONE JSON object ONLY (no markdown, no extra text).\n" +
		"Use only facts from the sources. Every factual sentence must end with a [n] citation that matches a numbered source.\n" +
		"If a claim is not supported by the sources, omit it.\n" +
		fmt.Sprintf("Layout: %s\n", layout) +
		"Schema: { \"title\": str, \"summary\": str, \"show_toc\": bool, \"sections\": [ {\"id\": str, \"heading\": str, \"paragraphs\": [str], \"bullets\": [str]} ] }\n\n" +
		fmt.Sprintf("User question:\n%s\n\n", question) +
		"Relevant sources (cite as [n]):\n" + strings.Join(ctxLines, "\n\n")
}
