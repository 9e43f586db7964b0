package core

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClientFromContext(t *testing.T) {
	ctx := ContextWithClient(context.Background(), "10.1.2.3", "curl/8.0")

	ip, ua := ClientFromContext(ctx)
	if ip != "10.1.2.3" || ua != "curl/8.0" {
		t.Errorf("ClientFromContext() = (%q, %q)", ip, ua)
	}

	want := []any{"client_ip", "10.1.2.3", "user_agent", "curl/8.0"}
	if diff := cmp.Diff(want, clientFields(ctx)); diff != "" {
		t.Errorf("clientFields() mismatch (-want +got):\n%s", diff)
	}
}

func TestClientFromContext_Empty(t *testing.T) {
	ip, ua := ClientFromContext(context.Background())
	if ip != "" || ua != "" {
		t.Errorf("ClientFromContext() = (%q, %q), want empty", ip, ua)
	}
	if got := clientFields(context.Background()); got != nil {
		t.Errorf("clientFields() = %v, want nil", got)
	}
}
