// Digest function tests.
//
// Digests exist so operators can compare two archives entry by entry
// without shipping payloads around. Three properties matter:
// determinism, the fixed 16-hex-char output that tooling diffs
// positionally, and algorithm independence so a mismatch in configured
// algorithms is detectable rather than silently "all different".
package ledger

import (
	"regexp"
	"testing"
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]{16}$`)

// TestDigestXXHash3 verifies the default algorithm produces a valid
// 16-hex-char fingerprint.
func TestDigestXXHash3(t *testing.T) {
	result := digest([]byte("test"), AlgXXHash3)
	if !hexPattern.MatchString(result) {
		t.Errorf("xxHash3 did not produce 16 hex chars: %q", result)
	}
}

// TestDigestFNV1a verifies the dependency-free alternative.
func TestDigestFNV1a(t *testing.T) {
	result := digest([]byte("test"), AlgFNV1a)
	if !hexPattern.MatchString(result) {
		t.Errorf("FNV-1a did not produce 16 hex chars: %q", result)
	}
}

// TestDigestBlake2b verifies the cryptographic alternative.
func TestDigestBlake2b(t *testing.T) {
	result := digest([]byte("test"), AlgBlake2b)
	if !hexPattern.MatchString(result) {
		t.Errorf("Blake2b did not produce 16 hex chars: %q", result)
	}
}

// TestDigestDeterministic verifies the same payload always maps to the
// same fingerprint and different payloads to different ones.
func TestDigestDeterministic(t *testing.T) {
	for _, alg := range []int{AlgXXHash3, AlgFNV1a, AlgBlake2b} {
		a := digest([]byte("payload"), alg)
		b := digest([]byte("payload"), alg)
		c := digest([]byte("payload2"), alg)
		if a != b {
			t.Errorf("alg %d not deterministic: %q vs %q", alg, a, b)
		}
		if a == c {
			t.Errorf("alg %d collides on trivially different payloads", alg)
		}
	}
}

// TestDigestAlgorithmsDiffer verifies the algorithms are actually
// distinct functions.
func TestDigestAlgorithmsDiffer(t *testing.T) {
	payload := []byte("same payload")
	x := digest(payload, AlgXXHash3)
	f := digest(payload, AlgFNV1a)
	b := digest(payload, AlgBlake2b)
	if x == f || x == b || f == b {
		t.Errorf("algorithms collide: %q %q %q", x, f, b)
	}
}

// TestArchiveDigest verifies the archive-level accessor fingerprints
// the stored payload and rejects sequences past the end.
func TestArchiveDigest(t *testing.T) {
	a := openTestArchive(t)
	payload := []byte("fingerprint me")
	a.WriteEntry(writerP1, 1, 1, payload)

	got, err := a.Digest(0)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if want := digest(payload, AlgXXHash3); got != want {
		t.Errorf("Digest = %q, want %q", got, want)
	}

	if _, err := a.Digest(1); err == nil {
		t.Error("Digest past end succeeded")
	}
}
