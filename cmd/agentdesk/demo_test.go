package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRunDemo(t *testing.T) {
	var buf bytes.Buffer
	if err := runDemo(context.Background(), &buf); err != nil {
		t.Fatalf("runDemo: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"UI Agent (1)",
		"SEO Agent (1)",
		"Performance Marketing Agent (1)",
		"Spring SEO plan",
		"3 sessions remain",
		"Redesign the dashboard for better engagement [UI Agent]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("demo output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Unassigned") {
		t.Errorf("every demo session should be routed:\n%s", out)
	}
}
