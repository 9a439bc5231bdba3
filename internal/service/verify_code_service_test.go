package service

import (
	"context"
	"testing"

	"github.com/accountd/internal/cache"
	"github.com/accountd/internal/config"
	"github.com/accountd/internal/constants"
)

func newTestVerifyCodeService(length int) *VerifyCodeService {
	cfg := &config.VerifyCodeConfig{TTLMinutes: 5, Length: length}
	return NewVerifyCodeService(cfg, cache.NewMemoryCodeStore())
}

func TestVerifyCodeServiceCreateProducesDigits(t *testing.T) {
	svc := newTestVerifyCodeService(6)
	ctx := context.Background()

	code, err := svc.Create(ctx, "user@example.com", constants.CodePurposeActivate)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code length want 6 got %d", len(code))
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("code must be numeric, got %q", code)
		}
	}
}

func TestVerifyCodeServiceLengthFallsBackOutOfRange(t *testing.T) {
	cases := []struct {
		name   string
		length int
		want   int
	}{
		{name: "zero", length: 0, want: constants.DefaultCodeLength},
		{name: "too short", length: 3, want: constants.DefaultCodeLength},
		{name: "too long", length: 11, want: constants.DefaultCodeLength},
		{name: "valid", length: 8, want: 8},
	}
	ctx := context.Background()
	for _, tc := range cases {
		svc := newTestVerifyCodeService(tc.length)
		code, err := svc.Create(ctx, "user@example.com", constants.CodePurposeActivate)
		if err != nil {
			t.Fatalf("%s: Create failed: %v", tc.name, err)
		}
		if len(code) != tc.want {
			t.Fatalf("%s: length want %d got %d", tc.name, tc.want, len(code))
		}
	}
}

func TestVerifyCodeServiceValidateRoundTrip(t *testing.T) {
	svc := newTestVerifyCodeService(6)
	ctx := context.Background()

	code, err := svc.Create(ctx, "user@example.com", constants.CodePurposeResetPassword)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	ok, err := svc.Validate(ctx, "user@example.com", constants.CodePurposeResetPassword, code)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected valid code to pass")
	}

	ok, err = svc.Validate(ctx, "user@example.com", constants.CodePurposeResetPassword, code)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if ok {
		t.Fatalf("code must be single-use")
	}
}

func TestVerifyCodeServiceRejectsUnknownPurpose(t *testing.T) {
	svc := newTestVerifyCodeService(6)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "user@example.com", "verify_phone"); err != ErrInvalidVerifyPurpose {
		t.Fatalf("want ErrInvalidVerifyPurpose got %v", err)
	}
	if _, err := svc.Validate(ctx, "user@example.com", "verify_phone", "123456"); err != ErrInvalidVerifyPurpose {
		t.Fatalf("want ErrInvalidVerifyPurpose got %v", err)
	}
}

func TestVerifyCodeServiceEmptyCandidateNeverValidates(t *testing.T) {
	svc := newTestVerifyCodeService(6)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "user@example.com", constants.CodePurposeActivate); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	ok, err := svc.Validate(ctx, "user@example.com", constants.CodePurposeActivate, "")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if ok {
		t.Fatalf("empty candidate must not validate")
	}
}
