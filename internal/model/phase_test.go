package model

import (
	"errors"
	"testing"
)

func TestParsePhase(t *testing.T) {
	for _, known := range []string{
		"initiation",
		"information_discovery",
		"framework_analysis",
		"structure_generation",
		"document_selection",
		"document_generation",
		"package_finalization",
		"completed",
	} {
		p, err := ParsePhase(known)
		if err != nil {
			t.Errorf("ParsePhase(%q): %v", known, err)
		}
		if !p.Valid() {
			t.Errorf("ParsePhase(%q) returned invalid phase", known)
		}
	}

	if _, err := ParsePhase("time_travel"); !errors.Is(err, ErrUnknownPhase) {
		t.Errorf("unknown phase: got %v, want ErrUnknownPhase", err)
	}
	if _, err := ParsePhase(""); err == nil {
		t.Error("empty phase string must not parse")
	}
}

func TestPhaseOrdering(t *testing.T) {
	if !PhaseInitiation.Before(PhaseCompleted) {
		t.Error("initiation must precede completed")
	}
	if !PhaseStructureGeneration.Before(PhaseDocumentSelection) {
		t.Error("structure_generation must precede document_selection")
	}
	if PhaseCompleted.Before(PhaseInitiation) {
		t.Error("completed must not precede initiation")
	}
	if PhaseDocumentGeneration.Before(PhaseDocumentGeneration) {
		t.Error("a phase must not precede itself")
	}
}

func TestLongRunningPhases(t *testing.T) {
	longRunning := map[Phase]bool{
		PhaseDocumentGeneration:  true,
		PhaseStructureGeneration: true,
	}
	for _, p := range []Phase{
		PhaseInitiation,
		PhaseInformationDiscovery,
		PhaseFrameworkAnalysis,
		PhaseStructureGeneration,
		PhaseDocumentSelection,
		PhaseDocumentGeneration,
		PhasePackageFinalization,
		PhaseCompleted,
	} {
		if got := p.LongRunning(); got != longRunning[p] {
			t.Errorf("%s.LongRunning() = %v, want %v", p, got, longRunning[p])
		}
	}
}
