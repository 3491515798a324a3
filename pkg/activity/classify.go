package activity

import "strings"

// classify maps a raw provider error onto our taxonomy using the error
// text. Providers wrap HTTP failures with status codes in the message.
func classify(activityName string, err error) *Error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota"):
		return WrapError(ErrorTypeRateLimit, activityName, err)
	case strings.Contains(msg, "safety") || strings.Contains(msg, "content policy") || strings.Contains(msg, "blocked"):
		return WrapError(ErrorTypeContentPolicy, activityName, err)
	case strings.Contains(msg, "400") || strings.Contains(msg, "invalid argument") || strings.Contains(msg, "invalid request"):
		return WrapError(ErrorTypeInvalidRequest, activityName, err)
	case strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection") ||
		strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "eof") ||
		strings.Contains(msg, "500") ||
		strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "504"):
		return WrapError(ErrorTypeTransient, activityName, err)
	default:
		return WrapError(ErrorTypeUnknown, activityName, err)
	}
}
