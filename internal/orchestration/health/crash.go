// Package health implements the engine's periodic health evaluation: crash
// detection, stall detection, bounded respawn, and periodic cleanup (§4.5).
package health

import "regexp"

// crashPatterns match tail output strings that indicate the backend CLI (or
// its host process) has died abnormally (§4.5).
var crashPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)out of memory`),
	regexp.MustCompile(`(?i)stack overflow`),
	regexp.MustCompile(`(?i)context window exceeded`),
	regexp.MustCompile(`(?i)(disconnected|connection (reset|closed))`),
	regexp.MustCompile(`(?i)fatal error`),
}

// MatchesCrash reports whether tail contains a recognized crash signature
// and, if so, the text of tail that the pattern matched as the crash reason.
func MatchesCrash(tail string) (reason string, matched bool) {
	for _, re := range crashPatterns {
		if loc := re.FindString(tail); loc != "" {
			return loc, true
		}
	}
	return "", false
}
