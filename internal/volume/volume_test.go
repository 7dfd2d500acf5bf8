package volume

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/coderelay/sessiond/internal/engine/enginetest"
)

func TestGenerateNameDeterministic(t *testing.T) {
	if GenerateName(12345) != GenerateName(12345) {
		t.Error("GenerateName is not deterministic")
	}
	if GenerateName(12345) != NamePrefix+"12345" {
		t.Errorf("GenerateName(12345) = %q", GenerateName(12345))
	}
}

func TestGenerateNameInjective(t *testing.T) {
	ids := []int64{0, 1, 7, 42, 12345, 999999999, -1}
	seen := make(map[string]int64)
	for _, id := range ids {
		name := GenerateName(id)
		if prev, ok := seen[name]; ok {
			t.Errorf("ids %d and %d both map to %q", prev, id, name)
		}
		seen[name] = id
	}
}

func TestGenerateNameValidates(t *testing.T) {
	// Every generated name must pass the allow-list check, including
	// negative ids (group chats are negative in some chat transports).
	for _, id := range []int64{0, 1, 42, 12345, 1 << 40, -1, -987654} {
		if err := ValidateKey(GenerateName(id)); err != nil {
			t.Errorf("ValidateKey(GenerateName(%d)) = %v", id, err)
		}
	}
}

func TestValidateKey(t *testing.T) {
	valid := []string{
		"user123",
		"user-123",
		"user_123",
		"user.123",
		"coding-session-data-42",
		strings.Repeat("a", 200),
	}
	for _, name := range valid {
		if err := ValidateKey(name); err != nil {
			t.Errorf("ValidateKey(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{
		"",
		"user/123",
		"../escape",
		"a..b",
		"user-data..",
		"user 123",
		"user@123",
		"user#123",
		"-leading-hyphen",
		strings.Repeat("a", 201),
	}
	for _, name := range invalid {
		if err := ValidateKey(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateKey(%q) = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestEnsureIdempotent(t *testing.T) {
	fake := enginetest.New()
	ctx := context.Background()

	name1, err := Ensure(ctx, fake, 42)
	if err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	name2, err := Ensure(ctx, fake, 42)
	if err != nil {
		t.Fatalf("second Ensure: %v", err)
	}

	if name1 != name2 {
		t.Errorf("Ensure returned different names: %q vs %q", name1, name2)
	}
	if got := fake.VolumeCreates[name1]; got != 1 {
		t.Errorf("volume created %d times, want 1", got)
	}
}

func TestEnsurePropagatesEngineFailure(t *testing.T) {
	fake := enginetest.New()
	fake.VolumeErr = errors.New("engine down")

	if _, err := Ensure(context.Background(), fake, 42); err == nil {
		t.Fatal("expected error from engine failure")
	}
	if fake.HasVolume(GenerateName(42)) {
		t.Error("no volume should exist after a failed Ensure")
	}
}

func TestAuthMounts(t *testing.T) {
	mounts := AuthMounts("coding-session-data-42")
	if len(mounts) != 1 {
		t.Fatalf("got %d mounts, want 1", len(mounts))
	}
	m := mounts[0]
	if m.Source != "coding-session-data-42" {
		t.Errorf("mount source = %q", m.Source)
	}
	if m.Target != DataDir {
		t.Errorf("mount target = %q, want %q", m.Target, DataDir)
	}
	if m.ReadOnly {
		t.Error("auth mount must be read-write")
	}
}
