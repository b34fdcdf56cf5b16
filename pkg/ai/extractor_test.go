package ai

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type stubGenerator struct {
	response string
	err      error
	calls    int
}

func (g *stubGenerator) GenerateText(_ context.Context, _, _ string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func newTestExtractor(g TextGenerator) *ProfileExtractor {
	e := NewProfileExtractor(g, time.Second)
	e.retryDelay = time.Millisecond
	return e
}

func TestExtractParsesCleanJSON(t *testing.T) {
	gen := &stubGenerator{response: `{"education":[{"institution":"ITB","degree":"S1","major":"Informatics","year":"2020"}],"experience":[],"skills":["Go","SQL"],"verdict":"Strong fit.","summary":"Backend engineer."}`}
	got := newTestExtractor(gen).Extract(context.Background(), "cv text", "job text")
	if got.Fallback {
		t.Fatalf("unexpected fallback: %+v", got)
	}
	if len(got.Education) != 1 || got.Education[0].Institution != "ITB" {
		t.Fatalf("education = %+v", got.Education)
	}
	if len(got.Skills) != 2 || got.Verdict != "Strong fit." {
		t.Fatalf("skills/verdict = %v %q", got.Skills, got.Verdict)
	}
}

func TestExtractToleratesProseWrappedJSON(t *testing.T) {
	gen := &stubGenerator{response: "Sure! Here is the data you asked for:\n```json\n{\"education\":[],\"experience\":[],\"skills\":[\"Python\"],\"verdict\":\"ok\",\"summary\":\"s\"}\n```\nLet me know if you need anything else."}
	got := newTestExtractor(gen).Extract(context.Background(), "cv", "job")
	if got.Fallback {
		t.Fatalf("prose-wrapped JSON should parse, got fallback")
	}
	if len(got.Skills) != 1 || got.Skills[0] != "Python" {
		t.Fatalf("skills = %v", got.Skills)
	}
}

func TestExtractFallsBackOnProviderError(t *testing.T) {
	gen := &stubGenerator{err: fmt.Errorf("connection refused")}
	got := newTestExtractor(gen).Extract(context.Background(), "cv", "job")
	if !got.Fallback {
		t.Fatalf("expected fallback extraction")
	}
	if gen.calls != 2 {
		t.Fatalf("expected one retry, got %d calls", gen.calls)
	}
	if got.Verdict == "" || got.Summary == "" {
		t.Fatalf("fallback must carry placeholder verdict and summary")
	}
	if len(got.Education) == 0 || len(got.Experience) == 0 {
		t.Fatalf("fallback must carry placeholder rows")
	}
}

func TestExtractFallsBackOnGarbageOutput(t *testing.T) {
	gen := &stubGenerator{response: "I cannot help with that."}
	got := newTestExtractor(gen).Extract(context.Background(), "cv", "job")
	if !got.Fallback {
		t.Fatalf("expected fallback for unparsable output")
	}
}

func TestExtractRespectsCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &stubGenerator{err: fmt.Errorf("deadline exceeded")}
	got := newTestExtractor(gen).Extract(ctx, "cv", "job")
	if !got.Fallback {
		t.Fatalf("canceled context must yield fallback, not block")
	}
	if gen.calls != 1 {
		t.Fatalf("no retry after caller cancellation, got %d calls", gen.calls)
	}
}

func TestFirstJSONObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{`noise {"a":{"b":2}} trailing {"c":3}`, `{"a":{"b":2}}`, true},
		{`{"s":"brace } inside"}`, `{"s":"brace } inside"}`, true},
		{`{"s":"esc \" quote }"} rest`, `{"s":"esc \" quote }"}`, true},
		{`no object here`, ``, false},
		{`{"unterminated":`, ``, false},
	}
	for _, tc := range cases {
		got, ok := firstJSONObject(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("firstJSONObject(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
