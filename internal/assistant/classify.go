package assistant

import "strings"

// retryPhrases drive the fallback heuristic that marks an assistant
// message retry-eligible. A structured is_retryable field from the
// server always takes precedence; the substring match only covers
// backends that do not send one.
var retryPhrases = []string{
	"couldn't generate",
	"could not generate",
	"failed to generate",
	"generation failed",
	"something went wrong",
	"please try again",
}

// retryable resolves the retry affordance for a message: structured
// signal first, text heuristic as fallback.
func retryable(structured *bool, text string) bool {
	if structured != nil {
		return *structured
	}
	return looksRetryable(text)
}

func looksRetryable(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range retryPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// quotaRelated classifies a workflow error as plan/quota-driven. Quota
// errors open an upgrade prompt instead of a retry affordance.
func quotaRelated(errorType, message string) bool {
	s := strings.ToLower(errorType + " " + message)
	for _, marker := range []string{"quota", "subscription", "plan limit", "upgrade"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
