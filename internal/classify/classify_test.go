package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/JonMunkholm/clashtriage/internal/core"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  error
		anyErr   bool
	}{
		{
			name:    "missing key",
			cfg:     Config{Provider: "openai"},
			wantErr: core.ErrClassifierUnavailable,
		},
		{
			name:     "default provider is gemini",
			cfg:      Config{APIKey: "k"},
			wantName: ProviderGemini,
		},
		{
			name:     "openai",
			cfg:      Config{Provider: "OpenAI", APIKey: "k"},
			wantName: ProviderOpenAI,
		},
		{
			name:     "claude alias",
			cfg:      Config{Provider: "claude", APIKey: "k"},
			wantName: ProviderAnthropic,
		},
		{
			name:   "unknown provider",
			cfg:    Config{Provider: "ollama", APIKey: "k"},
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(context.Background(), tt.cfg)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			case tt.anyErr:
				if err == nil {
					t.Fatal("New() error = nil, want error")
				}
				if got := core.MapError(err).Code; got != "AI002" {
					t.Errorf("MapError code = %s, want AI002", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if c.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", c.Name(), tt.wantName)
			}
		})
	}
}

func TestMissingCredentialMapsToAI001(t *testing.T) {
	if got := core.MapError(ErrMissingCredential).Code; got != "AI001" {
		t.Errorf("MapError(ErrMissingCredential) = %s, want AI001", got)
	}
}
