package engine

import (
	"context"
)

// StubModelClient returns a canned structured brief (for development without
// API credentials).
type StubModelClient struct{}

var _ ModelClient = (*StubModelClient)(nil)

func (m *StubModelClient) ModelName() string { return "stub" }

func (m *StubModelClient) Complete(_ context.Context, _ string) (string, error) {
	return `{
  "title": "Stub Brief",
  "citation": "Stub Author (2026). Stub Brief. Local Development Press.",
  "summary": {
    "Key Findings": [
      "The document was processed by the stub model client.",
      "No API credentials were configured, so canned content is returned."
    ],
    "Conclusions": "Configure an API key to generate real research briefs."
  }
}`, nil
}

// StubPageExtractor returns fixed page text (for development/testing).
type StubPageExtractor struct {
	Pages []string
	Err   error
}

var _ PageExtractor = (*StubPageExtractor)(nil)

func (e *StubPageExtractor) ExtractPages(_ []byte) ([]string, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	if e.Pages != nil {
		return e.Pages, nil
	}
	return []string{
		"This is stub page text standing in for real document extraction. " +
			"It is long enough to pass the minimum source length checks and " +
			"describes software engineering practices in general terms.",
	}, nil
}

// StubURLFetcher returns fixed article text (for development/testing).
type StubURLFetcher struct {
	Text string
	Err  error
}

var _ URLFetcher = (*StubURLFetcher)(nil)

func (f *StubURLFetcher) Fetch(_ context.Context, url string) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	if f.Text != "" {
		return f.Text, nil
	}
	return "This is a stub extracted article about " + url + ". It contains useful " +
		"information about software engineering, system design, and best practices, " +
		"padded to satisfy minimum source length requirements.", nil
}
