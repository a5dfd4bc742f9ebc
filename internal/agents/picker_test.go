package agents

import (
	"io"
	"log/slog"
	"testing"

	"github.com/user/agentdesk/internal/registry"
)

func newRegistry() *registry.Registry {
	return registry.New(registry.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestPickerStart(t *testing.T) {
	reg := newRegistry()
	picker := NewPicker(reg)

	id, err := picker.Start("seo-agent")
	if err != nil {
		t.Fatal(err)
	}
	sess, ok := reg.Get(id)
	if !ok {
		t.Fatal("expected session to exist")
	}
	if sess.Agent != "SEO Agent" {
		t.Errorf("expected SEO Agent, got %q", sess.Agent)
	}

	auto, err := picker.Start(AutoID)
	if err != nil {
		t.Fatal(err)
	}
	sess, _ = reg.Get(auto)
	if sess.Agent != "" {
		t.Errorf("expected auto start to leave agent unset, got %q", sess.Agent)
	}

	if _, err := picker.Start("nope"); err == nil {
		t.Error("expected error for unknown agent")
	}
	if reg.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", reg.Len())
	}
}

func TestPickerAssign(t *testing.T) {
	reg := newRegistry()
	picker := NewPicker(reg)
	id := reg.CreateSession("")

	ok, err := picker.Assign(id, "campaign-agent")
	if err != nil || !ok {
		t.Fatalf("expected assign to apply, got %v %v", ok, err)
	}
	sess, _ := reg.Get(id)
	if sess.Agent != "Campaign Agent" {
		t.Errorf("expected Campaign Agent, got %q", sess.Agent)
	}

	ok, err = picker.Assign("gone", "ui-agent")
	if err != nil || ok {
		t.Errorf("expected silent no-op for unknown session, got %v %v", ok, err)
	}
	if _, err := picker.Assign(id, "bogus"); err == nil {
		t.Error("expected error for unknown agent id")
	}
}
