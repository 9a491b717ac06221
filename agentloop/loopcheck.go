package agentloop

import (
	"crypto/sha256"
	"fmt"
)

// toolCallSignature computes a deterministic signature for a tool call
// (name + hash of canonical args).
func toolCallSignature(name, serializedArgs string) string {
	h := sha256.Sum256([]byte(serializedArgs))
	return fmt.Sprintf("%s:%x", name, h[:8])
}

// DetectRepeatingCalls checks whether the last windowSize tool-call
// signatures follow a repeating pattern of length 1, 2, or 3. The caller
// records signatures in execution order.
func DetectRepeatingCalls(signatures []string, windowSize int) bool {
	if windowSize <= 0 || len(signatures) < windowSize {
		return false
	}
	window := signatures[len(signatures)-windowSize:]

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if windowSize%patternLen != 0 {
			continue
		}
		pattern := window[:patternLen]
		allMatch := true
		for i := patternLen; i < windowSize && allMatch; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if window[i+j] != pattern[j] {
					allMatch = false
					break
				}
			}
		}
		if allMatch {
			return true
		}
	}
	return false
}
