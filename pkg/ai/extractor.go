package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hireflow/pkg/domain"
)

const extractorSystemPrompt = "You are a strict JSON extractor. Output ONLY valid JSON. Do not use Markdown blocks."

const extractorPromptTemplate = `You are an automated CV data parser.
Task: extract data from the CV text below and match it against the job description.

Output MUST be valid JSON with exactly this shape:
{
    "education": [{"institution": "University name", "degree": "Degree", "major": "Major", "year": "Year"}],
    "experience": [{"company": "Company name", "role": "Position", "duration": "Time employed", "details": "Short description"}],
    "skills": ["Skill 1", "Skill 2"],
    "verdict": "Short rationale why this candidate does or does not fit (max 2 sentences).",
    "summary": "One-sentence professional profile summary."
}

Rules:
1. If a field is unknown, use null or [].
2. NO preamble text. Start directly with the opening brace.
3. The JSON must parse.

=== CV TEXT ===
%s

=== JOB DESCRIPTION ===
%s`

// Extraction is the structured result of one LLM profile extraction.
// Fallback marks results synthesized locally after a provider or parse
// failure; callers branch on the tag instead of on an error.
type Extraction struct {
	Education  []domain.EducationEntry  `json:"education"`
	Experience []domain.ExperienceEntry `json:"experience"`
	Skills     []string                 `json:"skills"`
	Verdict    string                   `json:"verdict"`
	Summary    string                   `json:"summary"`
	Fallback   bool                     `json:"-"`
}

// ProfileExtractor turns retrieval context plus a job description into a
// structured candidate profile via an injected TextGenerator.
type ProfileExtractor struct {
	generator  TextGenerator
	timeout    time.Duration
	retryDelay time.Duration
}

// NewProfileExtractor builds the extractor. timeout bounds each provider
// call; zero means 60s.
func NewProfileExtractor(generator TextGenerator, timeout time.Duration) *ProfileExtractor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ProfileExtractor{
		generator:  generator,
		timeout:    timeout,
		retryDelay: 2 * time.Second,
	}
}

// Extract requests the structured profile. It never fails: any provider
// error, timeout, or unparsable output degrades to FallbackExtraction. One
// retry is attempted for transport-level errors.
func (e *ProfileExtractor) Extract(ctx context.Context, cvContext, jobText string) Extraction {
	prompt := fmt.Sprintf(extractorPromptTemplate, cvContext, jobText)

	var raw string
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		raw, err = e.generator.GenerateText(callCtx, extractorSystemPrompt, prompt)
		cancel()
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		slog.Warn("profile extraction attempt failed", "attempt", attempt+1, "err", err)
		select {
		case <-ctx.Done():
		case <-time.After(e.retryDelay):
		}
	}
	if err != nil {
		return FallbackExtraction()
	}

	parsed, ok := parseExtraction(raw)
	if !ok {
		slog.Warn("profile extraction returned unparsable output")
		return FallbackExtraction()
	}
	return parsed
}

// FallbackExtraction is the well-defined placeholder profile returned when
// analysis fails.
func FallbackExtraction() Extraction {
	return Extraction{
		Education:  []domain.EducationEntry{{Institution: "Unknown", Degree: "-", Major: "-", Year: "-"}},
		Experience: []domain.ExperienceEntry{{Company: "-", Role: "-", Duration: "-", Details: "-"}},
		Skills:     []string{},
		Summary:    "Automatic profile analysis failed.",
		Verdict:    "The AI response could not be parsed.",
		Fallback:   true,
	}
}

func parseExtraction(raw string) (Extraction, bool) {
	block, ok := firstJSONObject(raw)
	if !ok {
		block = strings.TrimSpace(raw)
	}
	var out Extraction
	if err := json.Unmarshal([]byte(block), &out); err != nil {
		return Extraction{}, false
	}
	if out.Skills == nil {
		out.Skills = []string{}
	}
	return out, true
}

// firstJSONObject extracts the first balanced {...} block so that providers
// wrapping the JSON in prose or code fences still parse.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
