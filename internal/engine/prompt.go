package engine

import (
	"fmt"
	"unicode/utf8"
)

// systemPrompt is the fixed system message for brief generation.
const systemPrompt = "You are a research assistant that creates structured research briefs from academic and professional texts. Always respond with valid JSON only."

// buildBriefPrompt embeds the source text in the generation prompt, clamped
// to charLimit characters. The clamp keeps one oversized document from
// blowing the model's input window; there is no multi-call chunking.
//
// The summary-layout rules exist because the stored summary is rendered
// verbatim: section titles ending in ":" and lines starting with "• ". The
// model does not always obey them, which is what the normalizer is for.
func buildBriefPrompt(text string, charLimit int) string {
	return fmt.Sprintf(`Analyze the following text and generate a research brief in JSON format with the following structure:
{
    "title": "A concise, descriptive title for this research (max 200 characters)",
    "citation": "A properly formatted citation for this source (author, title, publication, date if available, or general format)",
    "summary": "A bullet-point summary of the key findings, main points, and important information."
}

Rules for the summary field:
- It must be a single plain-text string, never a nested JSON object or array.
- Organize it into sections. Each section title is on its own line and ends with ":" (for example "Key Findings:", "Methodology:", "Conclusions:").
- Every point under a section is on its own line and starts with "• ".
- Separate lines with newlines (\n). Keep it comprehensive but concise.

Text to analyze:
%s`, truncateRunes(text, charLimit))
}

// truncateRunes truncates s to maxRunes runes (Unicode-safe).
func truncateRunes(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes])
}
