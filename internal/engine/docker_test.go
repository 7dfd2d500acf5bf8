package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/mount"
)

func TestMatchName(t *testing.T) {
	tests := []struct {
		name   string
		names  []string
		prefix string
		want   string
		wantOK bool
	}{
		{"leading slash stripped", []string{"/coding-session-42"}, "coding-session-", "coding-session-42", true},
		{"no match", []string{"/other-container"}, "coding-session-", "", false},
		{"second name matches", []string{"/alias", "/coding-session-7"}, "coding-session-", "coding-session-7", true},
		{"empty names", nil, "coding-session-", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := matchName(tt.names, tt.prefix)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("matchName(%v, %q) = (%q, %v), want (%q, %v)",
					tt.names, tt.prefix, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestToDockerMount(t *testing.T) {
	m := toDockerMount(Mount{Type: MountVolume, Source: "vol", Target: "/volume_data"})
	if m.Type != mount.TypeVolume {
		t.Errorf("mount type = %v, want volume", m.Type)
	}
	if m.ReadOnly {
		t.Error("mount should be read-write by default")
	}

	b := toDockerMount(Mount{Type: MountBind, Source: "/host", Target: "/ctr", ReadOnly: true})
	if b.Type != mount.TypeBind {
		t.Errorf("mount type = %v, want bind", b.Type)
	}
	if !b.ReadOnly {
		t.Error("expected read-only bind mount")
	}
}

func TestWrapEngine(t *testing.T) {
	if wrapEngine("op", nil) != nil {
		t.Error("nil error should stay nil")
	}

	err := wrapEngine("removing container", errdefs.ErrNotFound)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("not-found error not classified: %v", err)
	}

	err = wrapEngine("creating exec", fmt.Errorf("request: %w", context.DeadlineExceeded))
	if !errors.Is(err, ErrTimedOut) {
		t.Errorf("deadline expiry not classified as timeout: %v", err)
	}

	err = wrapEngine("creating container", errors.New("invalid reference format"))
	if !errors.Is(err, ErrEngineError) {
		t.Errorf("generic error not classified as engine error: %v", err)
	}
}

func TestExecResultCombined(t *testing.T) {
	r := ExecResult{Stdout: "out\n", Stderr: "err\n"}
	if got := r.Combined(); got != "out\nerr" {
		t.Errorf("Combined() = %q", got)
	}

	empty := ExecResult{}
	if got := empty.Combined(); got != "" {
		t.Errorf("Combined() on empty result = %q", got)
	}
}
