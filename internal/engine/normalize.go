package engine

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/ewagner/briefstack/internal/model"
)

// BriefFields is the canonical record shape produced by normalization.
// Summary is the exact text stored verbatim; nothing rewrites it downstream.
type BriefFields struct {
	Title    string
	Citation string
	Summary  string
}

// knownSections is the preferred ordering for summary sections. The model is
// not required to emit sections in a fixed order, but the UI renders them in
// this order for readability.
var knownSections = []string{
	"Key Findings",
	"Main Points",
	"Methodology/Approach",
	"Methodology",
	"Approach",
	"Conclusions/Recommendations",
	"Conclusions",
	"Recommendations",
}

// sectionByLower maps lowercased section names to their canonical form.
var sectionByLower = func() map[string]string {
	m := make(map[string]string, len(knownSections))
	for _, s := range knownSections {
		m[strings.ToLower(s)] = s
	}
	return m
}()

// Normalize repairs and reshapes the model's raw response into the canonical
// {title, citation, summary} record.
//
// The summary key may arrive as a string, a list of strings, or a mapping of
// section name to string-or-list; each shape is decoded explicitly before any
// formatting runs. Parse failures are reported verbatim as *InvalidJSONError;
// over-length title/citation are reported, never truncated.
func Normalize(raw string) (BriefFields, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return BriefFields{}, &InvalidJSONError{Err: err}
	}

	title, err := requireTextField(obj, "title")
	if err != nil {
		return BriefFields{}, err
	}
	citation, err := requireTextField(obj, "citation")
	if err != nil {
		return BriefFields{}, err
	}

	summaryRaw, ok := obj["summary"]
	if !ok || isJSONNull(summaryRaw) {
		return BriefFields{}, &MissingFieldError{Field: "summary"}
	}
	summary, err := coerceSummary(summaryRaw)
	if err != nil {
		return BriefFields{}, err
	}

	summary = cleanupSummary(summary)

	// A single-line summary still gets a bullet.
	if summary != "" && !strings.Contains(summary, "\n") && !strings.HasPrefix(summary, "•") {
		summary = "• " + summary
	}

	if n := utf8.RuneCountInString(title); n > model.MaxTitleLen {
		return BriefFields{}, &FieldTooLongError{Field: "title", Length: n, Limit: model.MaxTitleLen}
	}
	if n := utf8.RuneCountInString(citation); n > model.MaxCitationLen {
		return BriefFields{}, &FieldTooLongError{Field: "citation", Length: n, Limit: model.MaxCitationLen}
	}

	return BriefFields{Title: title, Citation: citation, Summary: summary}, nil
}

// requireTextField returns the named key as text: JSON strings are unquoted,
// anything else keeps its compact JSON form.
func requireTextField(obj map[string]json.RawMessage, name string) (string, error) {
	raw, ok := obj[name]
	if !ok || isJSONNull(raw) {
		return "", &MissingFieldError{Field: name}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	return strings.TrimSpace(string(raw)), nil
}

func isJSONNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// coerceSummary converts whichever runtime shape the summary arrived in to a
// candidate plain-text form.
func coerceSummary(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "", &MissingFieldError{Field: "summary"}
	}

	switch trimmed[0] {
	case '{':
		return formatSections(raw)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return "", &InvalidJSONError{Err: err}
		}
		lines := make([]string, 0, len(items))
		for _, item := range items {
			text := rawToText(item)
			if text == "" {
				continue
			}
			if !strings.HasPrefix(text, "•") {
				text = "• " + text
			}
			lines = append(lines, text)
		}
		return strings.Join(lines, "\n"), nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", &InvalidJSONError{Err: err}
		}
		return s, nil
	default:
		// Numbers, booleans: keep the literal text.
		return trimmed, nil
	}
}

// formatSections renders a mapping-shaped summary. Known sections come first
// in their preferred order; any remaining keys follow in the order the model
// emitted them, which is why the object is decoded key-by-key rather than
// into a Go map.
func formatSections(raw json.RawMessage) (string, error) {
	pairs, err := decodeOrderedObject(raw)
	if err != nil {
		return "", &InvalidJSONError{Err: err}
	}

	emitted := make(map[int]bool, len(pairs))
	var lines []string

	appendSection := func(header string, value json.RawMessage) {
		lines = append(lines, header+":")
		lines = append(lines, sectionItems(value)...)
	}

	for _, section := range knownSections {
		for i, p := range pairs {
			if emitted[i] {
				continue
			}
			if strings.EqualFold(p.key, section) {
				emitted[i] = true
				appendSection(section, p.value)
			}
		}
	}
	for i, p := range pairs {
		if !emitted[i] {
			appendSection(p.key, p.value)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// sectionItems renders a section value as "• item" lines: one per element
// for a sequence, one per non-blank line for a string.
func sectionItems(raw json.RawMessage) []string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil
	}

	var items []string
	if trimmed[0] == '[' {
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			items = []string{stripQuotes(trimmed)}
		} else {
			for _, e := range elems {
				if text := rawToText(e); text != "" {
					items = append(items, text)
				}
			}
		}
	} else {
		for _, line := range strings.Split(rawToText(raw), "\n") {
			if text := stripQuotes(line); text != "" {
				items = append(items, text)
			}
		}
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		if strings.HasPrefix(item, "•") {
			lines = append(lines, item)
		} else {
			lines = append(lines, "• "+item)
		}
	}
	return lines
}

type orderedPair struct {
	key   string
	value json.RawMessage
}

// decodeOrderedObject walks a JSON object token-by-token to preserve key
// order, which encoding/json maps discard.
func decodeOrderedObject(raw json.RawMessage) ([]orderedPair, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	var pairs []orderedPair
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		pairs = append(pairs, orderedPair{key: key, value: value})
	}
	return pairs, nil
}

// rawToText converts a JSON value to display text: strings are unquoted and
// quote-stripped, everything else keeps its compact form.
func rawToText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return stripQuotes(s)
	}
	return stripQuotes(string(raw))
}

// stripQuotes removes residual quote characters left around a fragment by
// naive JSON-to-text conversion.
func stripQuotes(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"'`))
}

// cleanupSummary is the line-by-line repair pass over the candidate text.
// Each non-blank line is classified as a section header (one of the known
// names, ignoring quotes and whitespace) or a content line. Headers become
// "<Name>:" with no bullet; content lines get exactly one "• " marker
// whatever marker they arrived with. Blank lines are dropped entirely to
// keep stored summaries compact. Running the pass over its own output is a
// no-op.
func cleanupSummary(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		stripped := stripQuotes(line)
		if stripped == "" {
			continue
		}
		if name, ok := matchSectionHeader(stripped); ok {
			out = append(out, name+":")
			continue
		}
		out = append(out, "• "+stripBulletMarkers(stripped))
	}
	return strings.Join(out, "\n")
}

// matchSectionHeader reports whether the line is one of the known section
// names, with or without a trailing colon, and returns the canonical name.
func matchSectionHeader(line string) (string, bool) {
	candidate := strings.TrimSpace(strings.TrimSuffix(line, ":"))
	candidate = stripQuotes(candidate)
	name, ok := sectionByLower[strings.ToLower(candidate)]
	return name, ok
}

// stripBulletMarkers removes any leading run of bullet markers so the caller
// can re-prefix exactly one.
func stripBulletMarkers(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "-*•\t "))
}
