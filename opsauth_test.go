package main

import "testing"

func TestOpsAuthLoginAndValidate(t *testing.T) {
	auth, err := NewOpsAuth(nil, "letmein")
	if err != nil {
		t.Fatalf("new ops auth: %v", err)
	}

	token, err := auth.Login("letmein", "198.51.100.1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := auth.ValidateToken(token); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
}

func TestOpsAuthRejectsBadPassword(t *testing.T) {
	auth, err := NewOpsAuth(nil, "letmein")
	if err != nil {
		t.Fatalf("new ops auth: %v", err)
	}
	if _, err := auth.Login("wrong", "198.51.100.1"); err == nil {
		t.Error("expected login failure")
	}
}

func TestOpsAuthRejectsGarbageToken(t *testing.T) {
	auth, err := NewOpsAuth(nil, "letmein")
	if err != nil {
		t.Fatalf("new ops auth: %v", err)
	}
	if err := auth.ValidateToken("not.a.token"); err == nil {
		t.Error("expected validation failure")
	}
	if err := auth.ValidateToken(""); err == nil {
		t.Error("expected validation failure for empty token")
	}
}

func TestOpsAuthRateLimit(t *testing.T) {
	auth, err := NewOpsAuth(nil, "letmein")
	if err != nil {
		t.Fatalf("new ops auth: %v", err)
	}
	ip := "203.0.113.77"
	for i := 0; i < maxLoginAttempts; i++ {
		auth.Login("wrong", ip)
	}
	if _, err := auth.Login("letmein", ip); err == nil {
		t.Error("expected rate limit after repeated failures")
	}
	// A different IP is unaffected.
	if _, err := auth.Login("letmein", "203.0.113.78"); err != nil {
		t.Errorf("unrelated IP rate limited: %v", err)
	}
}
