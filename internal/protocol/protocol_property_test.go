package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// For all inbound frames larger than the size bound, the parser returns
// no result regardless of content.
func TestInboundSizeBoundProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("oversized frames are always rejected", prop.ForAll(
		func(extra int) bool {
			frame := make([]byte, MaxInboundFrameSize+1+extra)
			for i := range frame {
				frame[i] = 'x'
			}
			frame[0] = '{'
			frame[len(frame)-1] = '}'
			_, err := ParseServerEvent(frame)
			return err == ErrFrameTooLarge
		},
		gen.IntRange(0, 4096),
	))

	properties.Property("well-formed frames within bound are accepted", prop.ForAll(
		func(eventType, text string) bool {
			if eventType == "" {
				eventType = "info"
			}
			frame, err := json.Marshal(map[string]string{
				"event_type": eventType,
				"text":       text,
			})
			if err != nil {
				return false
			}
			if len(frame) > MaxInboundFrameSize {
				return true // out of scope for this property
			}
			evt, err := ParseServerEvent(frame)
			if err != nil {
				return false
			}
			return evt.EventType == eventType && evt.Text == text
		},
		genEventType(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// For all frames missing a string event_type, the parser returns no result.
func TestMissingEventTypeProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("objects without event_type are rejected", prop.ForAll(
		func(key, value string) bool {
			if key == "event_type" {
				key = "something_else"
			}
			frame, err := json.Marshal(map[string]string{key: value})
			if err != nil {
				return false
			}
			_, perr := ParseServerEvent(frame)
			return perr == ErrMissingEventType
		},
		gen.AlphaString(),
		gen.AnyString(),
	))

	properties.Property("numeric event_type is rejected", prop.ForAll(
		func(n int) bool {
			frame, err := json.Marshal(map[string]int{"event_type": n})
			if err != nil {
				return false
			}
			_, perr := ParseServerEvent(frame)
			return perr == ErrMissingEventType
		},
		gen.Int(),
	))

	properties.TestingRun(t)
}

// For all outbound payloads over their limits, the sanitizer returns no
// result and nothing is serialized.
func TestOutboundLimitsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("text over the limit is never encoded", prop.ForAll(
		func(overage int) bool {
			msg := &ClientMessage{Text: strings.Repeat("a", MaxTextLength+overage)}
			data, err := msg.Encode()
			return err == ErrTextTooLong && data == nil
		},
		gen.IntRange(1, 2000),
	))

	properties.Property("selection lists over the limit are never encoded", prop.ForAll(
		func(overage int) bool {
			docs := make([]string, MaxSelectedDocuments+overage)
			for i := range docs {
				docs[i] = "policy.md"
			}
			msg := &ClientMessage{SelectedDocuments: docs}
			data, err := msg.Encode()
			return err == ErrTooManySelections && data == nil
		},
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}

// Cross-check of the two validators' size assumptions: any frame the
// sanitizer emits is a JSON object within the inbound parser's size
// bound. The schemas differ, so only the shape checks apply.
func TestOutboundInboundSymmetryProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("sanitized frames satisfy inbound shape checks", prop.ForAll(
		func(text string, docs []string) bool {
			msg := &ClientMessage{Text: text, SelectedDocuments: docs}
			data, err := msg.Encode()
			if err != nil {
				// Sanitizer rejected it; nothing to cross-check.
				return true
			}
			if len(data) > MaxInboundFrameSize {
				return false
			}
			var obj map[string]json.RawMessage
			return json.Unmarshal(data, &obj) == nil
		},
		gen.AnyString(),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func genEventType() gopter.Gen {
	return gen.AlphaString().SuchThat(func(s string) bool {
		return len(s) <= MaxEventTypeLength
	})
}
