package assistant

import "github.com/compliance-assistant/client/internal/model"

// ConnState describes the socket lifecycle.
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
)

// NoticeLevel classifies transient user-facing notices.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Events is the callback set a front end registers to observe the
// session. Callbacks are invoked from the client's socket goroutines,
// never while the client's lock is held; nil callbacks are skipped.
// Failures never escape through panics — every failure path ends in a
// notice, a chat-line annotation, or a log line.
type Events struct {
	OnMessage            func(msg model.ChatMessage)
	OnPhaseChange        func(from, to model.Phase, autoContinued bool)
	OnProgress           func(p model.DocumentProgress)
	OnFramework          func(r model.FrameworkResult)
	OnStructure          func(r model.StructureResult)
	OnFinalization       func(p model.FinalizationProgress)
	OnQuota              func(q model.QuotaStatus)
	OnSelectionRequest   func(r model.DocumentSelectionRequest)
	OnSelectionConfirmed func()
	OnNotice             func(level NoticeLevel, text string)
	OnUpgradeRequired    func(reason string)
	OnConnectionChange   func(state ConnState)
	OnTick               func(elapsedSeconds int)
}
