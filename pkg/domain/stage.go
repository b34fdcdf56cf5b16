package domain

import (
	"errors"
	"fmt"
)

// Stage is one named step of the recruitment funnel. The canonical wire
// token is the constant value below (e.g. "AI_SCREENING"); Label returns the
// human-readable form used in payloads and journey log rows.
type Stage string

const (
	StageCVScreening    Stage = "CV_SCREENING"
	StageAIScreening    Stage = "AI_SCREENING"
	StageRanking        Stage = "RANKING"
	StageHRReview       Stage = "HR_REVIEW"
	StagePsychotest     Stage = "PSYCHOTEST"
	StageInterviewHR    Stage = "INTERVIEW_HR"
	StageInterviewUser  Stage = "INTERVIEW_USER"
	StageFinalSelection Stage = "FINAL_SELECTION"
	StageOffering       Stage = "OFFERING"
	StageNegotiation    Stage = "NEGOTIATION"
	StageOfferAccepted  Stage = "OFFER_ACCEPTED"
	StageOfferDeclined  Stage = "OFFER_DECLINED"
	StageMCUProcess     Stage = "MCU_PROCESS"
	StageMCUReview      Stage = "MCU_REVIEW"
	StageMCUFailed      Stage = "MCU_FAILED"
	StageTicket         Stage = "TICKET"
	StageOnboarding     Stage = "ONBOARDING"
	StageHired          Stage = "HIRED"
	StageRejected       Stage = "REJECTED"
)

var (
	ErrStageUnknown         = errors.New("stage not recognized")
	ErrTransitionNotAllowed = errors.New("transition not allowed")
	ErrNotesRequired        = errors.New("notes required for rejection stage")
)

var stageLabels = map[Stage]string{
	StageCVScreening:    "CV Screening",
	StageAIScreening:    "AI Screening",
	StageRanking:        "Ranking",
	StageHRReview:       "HR Review",
	StagePsychotest:     "Psychotest",
	StageInterviewHR:    "Interview HR",
	StageInterviewUser:  "Interview User",
	StageFinalSelection: "Final Selection",
	StageOffering:       "Offering",
	StageNegotiation:    "Negotiation",
	StageOfferAccepted:  "Offer Accepted",
	StageOfferDeclined:  "Offering Declined",
	StageMCUProcess:     "Medical Check Up",
	StageMCUReview:      "SCM Clinic Team Review",
	StageMCUFailed:      "MCU Failed",
	StageTicket:         "Flight Ticket",
	StageOnboarding:     "Onboarding",
	StageHired:          "Hired",
	StageRejected:       "Rejected",
}

// rejectionStages are the terminal dead ends whose transitions require a
// non-empty notes field.
var rejectionStages = map[Stage]bool{
	StageRejected:      true,
	StageMCUFailed:     true,
	StageOfferDeclined: true,
}

// allowedNext maps each stage to its legal successors. Offer and MCU branch
// stages carry their own terminal alternatives instead of the global
// REJECTED escape hatch, which withReject appends everywhere else.
var allowedNext = map[Stage][]Stage{
	StageCVScreening:    withReject(StageAIScreening),
	StageAIScreening:    withReject(StageRanking, StageHRReview),
	StageRanking:        withReject(StageHRReview, StagePsychotest),
	StageHRReview:       withReject(StagePsychotest),
	StagePsychotest:     withReject(StageInterviewHR),
	StageInterviewHR:    withReject(StageInterviewUser),
	StageInterviewUser:  withReject(StageFinalSelection, StageOffering),
	StageFinalSelection: withReject(StageOffering),
	StageOffering:       {StageNegotiation, StageOfferAccepted, StageOfferDeclined},
	StageNegotiation:    {StageOfferAccepted, StageOfferDeclined},
	StageOfferAccepted:  {StageMCUProcess},
	StageMCUProcess:     {StageMCUReview, StageMCUFailed},
	StageMCUReview:      {StageTicket, StageOnboarding, StageMCUFailed},
	StageTicket:         {StageOnboarding},
	StageOnboarding:     {StageHired},
}

func withReject(stages ...Stage) []Stage {
	return append(stages, StageRejected)
}

// ParseStage validates a wire token against the closed stage set.
func ParseStage(token string) (Stage, error) {
	s := Stage(token)
	if _, ok := stageLabels[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrStageUnknown, token)
	}
	return s, nil
}

// Label returns the display name for the stage.
func (s Stage) Label() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return string(s)
}

// IsRejection reports whether the stage is one of the rejection-class
// terminal stages.
func (s Stage) IsRejection() bool {
	return rejectionStages[s]
}

// IsTerminal reports whether the journey ends at this stage.
func (s Stage) IsTerminal() bool {
	return s == StageHired || rejectionStages[s]
}

// AllowedNext returns the legal successor stages of s.
func AllowedNext(s Stage) []Stage {
	return allowedNext[s]
}

// CanTransition implements the transition function. An empty current stage
// means the journey does not exist yet, in which case only CV_SCREENING is
// a legal entry. Same-stage transitions are always legal so metadata-only
// saves stay idempotent.
func CanTransition(current, target Stage) bool {
	if current == "" {
		return target == StageCVScreening
	}
	if current == target {
		return true
	}
	for _, next := range allowedNext[current] {
		if next == target {
			return true
		}
	}
	return false
}

// ValidateTransition returns a typed error describing exactly why a
// transition is refused, or nil when it may proceed. Notes are mandatory
// for rejection-class targets and checked before the flow check so the
// caller never mutates state on a half-valid request.
func ValidateTransition(current, target Stage, notes string) error {
	if _, ok := stageLabels[target]; !ok {
		return fmt.Errorf("%w: %q", ErrStageUnknown, string(target))
	}
	if target.IsRejection() && notes == "" {
		return fmt.Errorf("%w: %s", ErrNotesRequired, target.Label())
	}
	if !CanTransition(current, target) {
		from := "none"
		if current != "" {
			from = current.Label()
		}
		return fmt.Errorf("%w, from %s to %s", ErrTransitionNotAllowed, from, target.Label())
	}
	return nil
}
