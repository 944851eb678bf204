package assistant

import (
	"time"

	"go.uber.org/zap"

	"github.com/compliance-assistant/client/internal/model"
	"github.com/compliance-assistant/client/internal/protocol"
)

// eventHandlers is the dispatch table: one apply function per event
// class, each mutating its own slice of state. Unknown event types are
// logged and ignored.
var eventHandlers = map[string]func(*Client, *protocol.ServerEvent, *pending){
	"info":                        (*Client).applyInfo,
	"question":                    (*Client).applyQuestion,
	"phase_change":                (*Client).applyPhaseChange,
	"phase_transition":            (*Client).applyPhaseChange,
	"workflow_started":            (*Client).applyWorkflowStarted,
	"workflow_progress":           (*Client).applyWorkflowProgress,
	"workflow_completed":          (*Client).applyWorkflowCompleted,
	"workflow_error":              (*Client).applyWorkflowError,
	"framework_inference_result":  (*Client).applyFrameworkResult,
	"structure_generation_result": (*Client).applyStructureResult,
	"document_generated":          (*Client).applyDocumentGenerated,
	"manifest_generated":          (*Client).applyManifestGenerated,
	"package_created":             (*Client).applyPackageCreated,
	"quota_status":                (*Client).applyQuotaStatus,
	"document_selection_request":  (*Client).applySelectionRequest,
	"document_selection_response": (*Client).applySelectionResponse,
	"error":                       (*Client).applyError,
}

// pending accumulates callbacks during dispatch; they run after the
// client lock is released.
type pending struct {
	calls []func()
}

func (p *pending) add(fn func()) {
	if fn != nil {
		p.calls = append(p.calls, fn)
	}
}

// dispatch applies one parsed event to local state. All mutation happens
// under the lock; registered callbacks fire afterwards in order.
func (c *Client) dispatch(evt *protocol.ServerEvent) {
	handler, ok := eventHandlers[evt.EventType]
	if !ok {
		c.log.Debug("ignoring unknown event", zap.String("event_type", evt.EventType))
		return
	}

	var p pending

	c.mu.Lock()
	c.adoptSessionLocked(evt, &p)
	handler(c, evt, &p)
	c.mu.Unlock()

	for _, call := range p.calls {
		call()
	}
}

// adoptSessionLocked takes the first session identifier the stream
// offers as the durable handle for this conversation.
func (c *Client) adoptSessionLocked(evt *protocol.ServerEvent, p *pending) {
	if evt.SessionID == "" || c.state.SessionID != "" {
		return
	}
	c.state.SessionID = evt.SessionID
	id := evt.SessionID
	p.add(func() { c.notifySession(id) })
}

type infoBody struct {
	Phase       string `json:"phase"`
	Message     string `json:"message"`
	IsRetryable *bool  `json:"is_retryable"`
}

func (c *Client) applyInfo(evt *protocol.ServerEvent, p *pending) {
	var body infoBody
	if err := evt.DecodeBody(&body); err != nil {
		c.log.Debug("undecodable info event", zap.Error(err))
	}

	if body.Phase != "" {
		if phase, err := model.ParsePhase(body.Phase); err == nil {
			c.applyPhaseLocked(phase, false, "", p)
		} else {
			c.log.Debug("info carried unknown phase", zap.String("phase", body.Phase))
		}
	}

	text := firstNonEmpty(body.Message, evt.Text)
	if text != "" {
		c.appendLocked(model.ChatMessage{
			Role:      model.RoleAssistant,
			Content:   text,
			CreatedAt: time.Now(),
			IsSystem:  true,
			ShowRetry: retryable(body.IsRetryable, text),
		}, p)
	}
}

func (c *Client) applyQuestion(evt *protocol.ServerEvent, p *pending) {
	var body struct {
		Question string `json:"question"`
		Message  string `json:"message"`
	}
	if err := evt.DecodeBody(&body); err != nil {
		c.log.Debug("undecodable question event", zap.Error(err))
	}

	text := firstNonEmpty(evt.Text, body.Question, body.Message)
	if text == "" {
		return
	}
	c.state.Loading = false
	c.appendLocked(model.ChatMessage{
		Role:      model.RoleAssistant,
		Content:   text,
		CreatedAt: time.Now(),
	}, p)
}

type phaseChangeBody struct {
	Phase         string `json:"phase"`
	AutoContinued bool   `json:"auto_continued"`
	Message       string `json:"message"`
}

func (c *Client) applyPhaseChange(evt *protocol.ServerEvent, p *pending) {
	var body phaseChangeBody
	if err := evt.DecodeBody(&body); err != nil {
		c.log.Debug("undecodable phase event", zap.Error(err))
		return
	}

	phase, err := model.ParsePhase(body.Phase)
	if err != nil {
		c.log.Warn("server asserted unknown phase", zap.String("phase", body.Phase))
		return
	}
	c.applyPhaseLocked(phase, body.AutoContinued, body.Message, p)
}

// applyPhaseLocked adopts the server-asserted phase verbatim, resets the
// phase-scoped caches that no longer apply, and manages the elapsed
// counter for long-running phases.
func (c *Client) applyPhaseLocked(phase model.Phase, auto bool, message string, p *pending) {
	from := c.state.Phase
	if from == phase {
		return
	}
	c.state.Phase = phase

	if phase != model.PhaseDocumentGeneration {
		c.state.DocumentProgress = nil
	}
	if phase != model.PhasePackageFinalization {
		c.state.Finalization = nil
	}

	// The counter restarts from zero on every transition, running only
	// through the long-running phases.
	c.stopTimerLocked()
	if phase.LongRunning() {
		c.startTimerLocked()
	}

	if cb := c.events.OnPhaseChange; cb != nil {
		p.add(func() { cb(from, phase, auto) })
	}
	if message != "" && !auto {
		c.appendLocked(model.ChatMessage{
			Role:      model.RoleAssistant,
			Content:   message,
			CreatedAt: time.Now(),
			IsSystem:  true,
		}, p)
	}
}

func (c *Client) applyWorkflowStarted(evt *protocol.ServerEvent, p *pending) {
	var body struct {
		Action  string `json:"action"`
		Message string `json:"message"`
	}
	if err := evt.DecodeBody(&body); err != nil {
		c.log.Debug("undecodable workflow_started event", zap.Error(err))
	}

	c.state.PendingAction = body.Action
	c.state.Loading = true
	if body.Message != "" {
		c.appendLocked(model.ChatMessage{
			Role:      model.RoleAssistant,
			Content:   body.Message,
			CreatedAt: time.Now(),
			IsSystem:  true,
		}, p)
	}
}

func (c *Client) applyWorkflowProgress(evt *protocol.ServerEvent, p *pending) {
	var body struct {
		Total int `json:"total"`
	}
	if err := evt.DecodeBody(&body); err != nil {
		c.log.Debug("undecodable workflow_progress event", zap.Error(err))
		return
	}

	// Only the running total is trusted here; per-document snapshots
	// come from document_generated. Loading stays on.
	if body.Total > 0 {
		if c.state.DocumentProgress == nil {
			c.state.DocumentProgress = &model.DocumentProgress{}
		}
		c.state.DocumentProgress.Total = body.Total
	}
}

func (c *Client) applyWorkflowCompleted(evt *protocol.ServerEvent, p *pending) {
	c.state.PendingAction = ""
	c.state.Loading = false
}

type workflowErrorBody struct {
	Action      string `json:"action"`
	ErrorType   string `json:"error_type"`
	Message     string `json:"message"`
	IsRetryable *bool  `json:"is_retryable"`
}

func (c *Client) applyWorkflowError(evt *protocol.ServerEvent, p *pending) {
	var body workflowErrorBody
	if err := evt.DecodeBody(&body); err != nil {
		c.log.Debug("undecodable workflow_error event", zap.Error(err))
	}

	c.state.PendingAction = ""
	c.state.Loading = false
	c.state.SubmittingSelection = false

	message := firstNonEmpty(body.Message, evt.Text, "The workflow failed.")
	if quotaRelated(body.ErrorType, message) {
		if cb := c.events.OnUpgradeRequired; cb != nil {
			p.add(func() { cb(message) })
		}
		return
	}

	showRetry := true
	if body.IsRetryable != nil {
		showRetry = *body.IsRetryable
	}
	c.appendLocked(model.ChatMessage{
		Role:      model.RoleAssistant,
		Content:   message,
		CreatedAt: time.Now(),
		IsSystem:  true,
		ShowRetry: showRetry,
	}, p)
}

func (c *Client) applyFrameworkResult(evt *protocol.ServerEvent, p *pending) {
	var body struct {
		model.FrameworkResult
		Message string `json:"message"`
	}
	if err := evt.DecodeBody(&body); err != nil {
		c.log.Debug("undecodable framework result", zap.Error(err))
		return
	}

	result := body.FrameworkResult
	c.state.Framework = &result
	if cb := c.events.OnFramework; cb != nil {
		p.add(func() { cb(result) })
	}
	if body.Message != "" {
		c.appendLocked(model.ChatMessage{
			Role:      model.RoleAssistant,
			Content:   body.Message,
			CreatedAt: time.Now(),
		}, p)
	}
}

func (c *Client) applyStructureResult(evt *protocol.ServerEvent, p *pending) {
	var result model.StructureResult
	if err := evt.DecodeBody(&result); err != nil {
		c.log.Debug("undecodable structure result", zap.Error(err))
		return
	}

	c.state.Structure = &result
	if cb := c.events.OnStructure; cb != nil {
		p.add(func() { cb(result) })
	}
}

type documentGeneratedBody struct {
	Progress        int     `json:"progress"`
	Total           int     `json:"total"`
	Percent         *int    `json:"percent"`
	CurrentDocument string  `json:"current_document"`
	QualityScore    float64 `json:"quality_score"`
	Sequence        int64   `json:"sequence"`
}

// applyDocumentGenerated replaces the progress snapshot wholesale: a
// later event fully supersedes an earlier one. When the server numbers
// its events, stale snapshots are dropped instead of regressing the
// display.
func (c *Client) applyDocumentGenerated(evt *protocol.ServerEvent, p *pending) {
	var body documentGeneratedBody
	if err := evt.DecodeBody(&body); err != nil {
		c.log.Debug("undecodable document_generated event", zap.Error(err))
		return
	}

	if prev := c.state.DocumentProgress; prev != nil && body.Sequence > 0 && body.Sequence <= prev.Sequence {
		c.log.Debug("dropping stale progress snapshot",
			zap.Int64("sequence", body.Sequence), zap.Int64("have", prev.Sequence))
		return
	}

	percent := 0
	switch {
	case body.Percent != nil:
		percent = *body.Percent
	case body.Total > 0:
		percent = body.Progress * 100 / body.Total
	}

	snapshot := model.DocumentProgress{
		Current:         body.Progress,
		Total:           body.Total,
		Percent:         percent,
		CurrentDocument: body.CurrentDocument,
		QualityScore:    body.QualityScore,
		Sequence:        body.Sequence,
	}
	c.state.DocumentProgress = &snapshot
	if cb := c.events.OnProgress; cb != nil {
		p.add(func() { cb(snapshot) })
	}
}

func (c *Client) applyManifestGenerated(evt *protocol.ServerEvent, p *pending) {
	if c.state.Finalization == nil {
		c.state.Finalization = &model.FinalizationProgress{}
	}
	c.state.Finalization.ManifestCreated = true

	snapshot := *c.state.Finalization
	if cb := c.events.OnFinalization; cb != nil {
		p.add(func() { cb(snapshot) })
	}
}

func (c *Client) applyPackageCreated(evt *protocol.ServerEvent, p *pending) {
	var body struct {
		ZipName      string `json:"zip_name"`
		ZipSizeBytes int64  `json:"zip_size_bytes"`
		DownloadURL  string `json:"download_url"`
	}
	if err := evt.DecodeBody(&body); err != nil {
		c.log.Debug("undecodable package_created event", zap.Error(err))
	}

	if c.state.Finalization == nil {
		c.state.Finalization = &model.FinalizationProgress{}
	}
	c.state.Finalization.ZipCreated = true
	c.state.Finalization.ZipName = body.ZipName
	c.state.Finalization.ZipSizeBytes = body.ZipSizeBytes
	c.state.Finalization.DownloadURL = body.DownloadURL
	c.state.Loading = false

	snapshot := *c.state.Finalization
	if cb := c.events.OnFinalization; cb != nil {
		p.add(func() { cb(snapshot) })
	}
}

func (c *Client) applyQuotaStatus(evt *protocol.ServerEvent, p *pending) {
	var quota model.QuotaStatus
	if err := evt.DecodeBody(&quota); err != nil {
		c.log.Debug("undecodable quota_status event", zap.Error(err))
		return
	}

	c.state.Quota = &quota
	if cb := c.events.OnQuota; cb != nil {
		p.add(func() { cb(quota) })
	}
}

func (c *Client) applySelectionRequest(evt *protocol.ServerEvent, p *pending) {
	var request model.DocumentSelectionRequest
	if err := evt.DecodeBody(&request); err != nil {
		c.log.Debug("undecodable selection request", zap.Error(err))
		return
	}

	c.state.Selection = &request
	c.state.Loading = false

	explain := firstNonEmpty(evt.Text,
		"Your plan covers fewer documents than were generated. Please choose which to keep.")
	c.appendLocked(model.ChatMessage{
		Role:      model.RoleAssistant,
		Content:   explain,
		CreatedAt: time.Now(),
		IsSystem:  true,
	}, p)

	if cb := c.events.OnSelectionRequest; cb != nil {
		p.add(func() { cb(request) })
	}
}

func (c *Client) applySelectionResponse(evt *protocol.ServerEvent, p *pending) {
	c.state.Selection = nil
	c.state.SubmittingSelection = false

	if cb := c.events.OnSelectionConfirmed; cb != nil {
		p.add(cb)
	}
	if cb := c.events.OnNotice; cb != nil {
		p.add(func() { cb(NoticeSuccess, "Document selection confirmed.") })
	}
}

type errorBody struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	IsRetryable *bool  `json:"is_retryable"`
}

// applyError handles the generic error event: subscription-required
// opens the upgrade prompt, workflow errors get a retry affordance,
// anything else is a plain notice.
func (c *Client) applyError(evt *protocol.ServerEvent, p *pending) {
	var body errorBody
	if err := evt.DecodeBody(&body); err != nil {
		c.log.Debug("undecodable error event", zap.Error(err))
	}

	message := firstNonEmpty(body.Message, evt.Text, "Something went wrong.")

	switch body.Code {
	case "subscription_required":
		if cb := c.events.OnUpgradeRequired; cb != nil {
			p.add(func() { cb(message) })
		}
		c.appendLocked(model.ChatMessage{
			Role:      model.RoleAssistant,
			Content:   message,
			CreatedAt: time.Now(),
			IsSystem:  true,
		}, p)
	case "workflow_error":
		showRetry := true
		if body.IsRetryable != nil {
			showRetry = *body.IsRetryable
		}
		c.appendLocked(model.ChatMessage{
			Role:      model.RoleAssistant,
			Content:   message,
			CreatedAt: time.Now(),
			IsSystem:  true,
			ShowRetry: showRetry,
		}, p)
	default:
		if cb := c.events.OnNotice; cb != nil {
			p.add(func() { cb(NoticeError, message) })
		}
	}
}

// appendLocked adds a line to the transcript and queues the message
// callback.
func (c *Client) appendLocked(msg model.ChatMessage, p *pending) {
	c.state.Messages = append(c.state.Messages, msg)
	if cb := c.events.OnMessage; cb != nil {
		p.add(func() { cb(msg) })
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
