package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinBurst(t *testing.T) {
	krl := New(1, 3)
	defer krl.Stop()

	for i := 0; i < 3; i++ {
		if !krl.Allow("10.0.0.1") {
			t.Fatalf("request %d within burst was denied", i)
		}
	}
	if krl.Allow("10.0.0.1") {
		t.Error("request beyond burst was allowed")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	krl := New(1, 1)
	defer krl.Stop()

	if !krl.Allow("10.0.0.1") {
		t.Fatal("first request for key A was denied")
	}
	if !krl.Allow("10.0.0.2") {
		t.Error("first request for key B was denied after key A consumed its token")
	}
	if krl.Allow("10.0.0.1") {
		t.Error("second request for key A was allowed with burst 1")
	}
}

func TestTokenRefill(t *testing.T) {
	krl := New(100, 1)
	defer krl.Stop()

	if !krl.Allow("k") {
		t.Fatal("first request was denied")
	}
	if krl.Allow("k") {
		t.Fatal("second immediate request was allowed")
	}

	// At 100 rps a token refills within 10ms.
	time.Sleep(20 * time.Millisecond)
	if !krl.Allow("k") {
		t.Error("request after refill interval was denied")
	}
}
