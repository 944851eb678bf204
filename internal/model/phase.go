package model

import "fmt"

// Phase represents a stage in the server-driven compliance workflow.
// The server is the sole authority over phase transitions; the client
// adopts whatever phase the server last asserted.
type Phase string

const (
	PhaseInitiation           Phase = "initiation"
	PhaseInformationDiscovery Phase = "information_discovery"
	PhaseFrameworkAnalysis    Phase = "framework_analysis"
	PhaseStructureGeneration  Phase = "structure_generation"
	PhaseDocumentSelection    Phase = "document_selection"
	PhaseDocumentGeneration   Phase = "document_generation"
	PhasePackageFinalization  Phase = "package_finalization"
	PhaseCompleted            Phase = "completed"
)

// phaseOrder gives the canonical workflow ordering.
var phaseOrder = map[Phase]int{
	PhaseInitiation:           0,
	PhaseInformationDiscovery: 1,
	PhaseFrameworkAnalysis:    2,
	PhaseStructureGeneration:  3,
	PhaseDocumentSelection:    4,
	PhaseDocumentGeneration:   5,
	PhasePackageFinalization:  6,
	PhaseCompleted:            7,
}

// ParsePhase validates a phase value received from the server.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPhase, s)
	}
	return p, nil
}

// Valid reports whether p is one of the eight known phases.
func (p Phase) Valid() bool {
	_, ok := phaseOrder[p]
	return ok
}

// Ordinal returns the position of p in the workflow, or -1 for unknown phases.
func (p Phase) Ordinal() int {
	if ord, ok := phaseOrder[p]; ok {
		return ord
	}
	return -1
}

// Before reports whether p comes earlier than other in the workflow ordering.
func (p Phase) Before(other Phase) bool {
	return p.Ordinal() < other.Ordinal()
}

// LongRunning reports whether the phase drives the elapsed-time counter.
func (p Phase) LongRunning() bool {
	return p == PhaseDocumentGeneration || p == PhaseStructureGeneration
}

func (p Phase) String() string {
	return string(p)
}
