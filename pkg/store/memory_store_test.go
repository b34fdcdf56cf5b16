package store

import (
	"testing"

	"hireflow/pkg/domain"
)

func TestGetOrCreateJourneyLazyCreate(t *testing.T) {
	s := NewMemoryStore()

	journey, logs, err := s.GetOrCreateJourney("app-1")
	if err != nil {
		t.Fatalf("get or create journey: %v", err)
	}
	if journey.CurrentStage != domain.StageCVScreening {
		t.Fatalf("expected CV screening stage, got %s", journey.CurrentStage)
	}
	if len(logs) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(logs))
	}
	entry := logs[0]
	if entry.PreviousStage != "" {
		t.Fatalf("first entry must have empty previous stage, got %q", entry.PreviousStage)
	}
	if entry.NewStage != domain.StageCVScreening.Label() {
		t.Fatalf("unexpected new stage: %q", entry.NewStage)
	}
	if entry.Action != "Journey started - CV Screening" {
		t.Fatalf("unexpected action: %q", entry.Action)
	}
	if entry.ActorName != "System" {
		t.Fatalf("unexpected actor: %q", entry.ActorName)
	}

	again, logs, err := s.GetOrCreateJourney("app-1")
	if err != nil {
		t.Fatalf("second get or create journey: %v", err)
	}
	if again.ID != journey.ID {
		t.Fatalf("second call created a new journey: %s != %s", again.ID, journey.ID)
	}
	if len(logs) != 1 {
		t.Fatalf("second call must not add log entries, got %d", len(logs))
	}
}

func TestJourneyLogChain(t *testing.T) {
	s := NewMemoryStore()
	if _, _, err := s.GetOrCreateJourney("app-1"); err != nil {
		t.Fatalf("get or create journey: %v", err)
	}
	for _, target := range []domain.Stage{
		domain.StageAIScreening,
		domain.StageHRReview,
		domain.StagePsychotest,
	} {
		if _, err := s.TransitionJourney("app-1", target, "", "HR Admin"); err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
	}

	journey, logs, err := s.GetOrCreateJourney("app-1")
	if err != nil {
		t.Fatalf("reload journey: %v", err)
	}
	if journey.CurrentStage != domain.StagePsychotest {
		t.Fatalf("expected psychotest stage, got %s", journey.CurrentStage)
	}
	if len(logs) != 4 {
		t.Fatalf("expected 4 log entries, got %d", len(logs))
	}
	// newest first: each entry continues from the one before it
	for i := 0; i+1 < len(logs); i++ {
		if logs[i].PreviousStage != logs[i+1].NewStage {
			t.Fatalf("broken log chain at %d: %q -> %q", i, logs[i+1].NewStage, logs[i].PreviousStage)
		}
	}
	if logs[len(logs)-1].PreviousStage != "" {
		t.Fatal("oldest entry must have empty previous stage")
	}
}
