package agentloop

import "testing"

func sig(name string, args string) string {
	return toolCallSignature(name, args)
}

func TestSignatureDeterministic(t *testing.T) {
	a := sig("calculator", `{"op":"add"}`)
	b := sig("calculator", `{"op":"add"}`)
	if a != b {
		t.Errorf("identical calls produced different signatures: %q vs %q", a, b)
	}
	if a == sig("calculator", `{"op":"subtract"}`) {
		t.Error("different args must produce different signatures")
	}
	if a == sig("kv", `{"op":"add"}`) {
		t.Error("different tools must produce different signatures")
	}
}

func TestDetectSingleRepeatedCall(t *testing.T) {
	same := sig("echo", "{}")
	signatures := []string{same, same, same, same}
	if !DetectRepeatingCalls(signatures, 4) {
		t.Error("expected length-1 pattern detected")
	}
}

func TestDetectAlternatingPattern(t *testing.T) {
	a, b := sig("a", "{}"), sig("b", "{}")
	signatures := []string{a, b, a, b, a, b}
	if !DetectRepeatingCalls(signatures, 6) {
		t.Error("expected length-2 pattern detected")
	}
}

func TestDetectTripletPattern(t *testing.T) {
	a, b, c := sig("a", "{}"), sig("b", "{}"), sig("c", "{}")
	signatures := []string{a, b, c, a, b, c}
	if !DetectRepeatingCalls(signatures, 6) {
		t.Error("expected length-3 pattern detected")
	}
}

func TestNoDetectionOnVariedCalls(t *testing.T) {
	signatures := []string{
		sig("a", "{}"), sig("b", "{}"), sig("c", "{}"),
		sig("d", "{}"), sig("e", "{}"), sig("f", "{}"),
	}
	if DetectRepeatingCalls(signatures, 6) {
		t.Error("varied calls must not be flagged")
	}
}

func TestNoDetectionBelowWindow(t *testing.T) {
	same := sig("echo", "{}")
	if DetectRepeatingCalls([]string{same, same}, 4) {
		t.Error("too few signatures for the window must not be flagged")
	}
}

func TestOnlyRecentWindowInspected(t *testing.T) {
	a, b := sig("a", "{}"), sig("b", "{}")
	// Early repetition followed by varied recent calls.
	signatures := []string{a, a, a, a, b, a, sig("c", "{}"), sig("d", "{}")}
	if DetectRepeatingCalls(signatures, 4) {
		t.Error("detection must only consider the recent window")
	}
}
