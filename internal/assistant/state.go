package assistant

import "github.com/compliance-assistant/client/internal/model"

// State is the client-side view of the live session. It is owned by one
// Client and mutated only under its lock, from socket-event and
// user-action paths; State() hands out copies.
type State struct {
	SessionID string
	Phase     model.Phase
	Messages  []model.ChatMessage

	// PendingAction names the workflow action currently in flight.
	PendingAction string
	Loading       bool

	SubmittingSelection bool

	// Phase-scoped caches. Each is created when its event class first
	// arrives and cleared when the phase moves away from its stage.
	DocumentProgress *model.DocumentProgress
	Framework        *model.FrameworkResult
	Structure        *model.StructureResult
	Finalization     *model.FinalizationProgress
	Quota            *model.QuotaStatus
	Selection        *model.DocumentSelectionRequest

	// ElapsedSeconds counts up while the phase is long-running.
	ElapsedSeconds int
}

// clone returns a deep-enough copy for external readers: slices are
// copied, cache structs are copied by value.
func (s *State) clone() State {
	out := *s
	out.Messages = append([]model.ChatMessage(nil), s.Messages...)
	if s.DocumentProgress != nil {
		dp := *s.DocumentProgress
		out.DocumentProgress = &dp
	}
	if s.Framework != nil {
		fr := *s.Framework
		fr.Alternatives = append([]model.FrameworkAlternative(nil), s.Framework.Alternatives...)
		out.Framework = &fr
	}
	if s.Structure != nil {
		st := *s.Structure
		st.Tree = append([]string(nil), s.Structure.Tree...)
		out.Structure = &st
	}
	if s.Finalization != nil {
		fin := *s.Finalization
		out.Finalization = &fin
	}
	if s.Quota != nil {
		q := *s.Quota
		out.Quota = &q
	}
	if s.Selection != nil {
		sel := *s.Selection
		sel.Documents = append([]string(nil), s.Selection.Documents...)
		out.Selection = &sel
	}
	return out
}
