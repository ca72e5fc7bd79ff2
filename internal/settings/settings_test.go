package settings

import "testing"

func TestMasked(t *testing.T) {
	tests := []struct {
		name         string
		in           Settings
		wantAPIKey   string
		wantPassword string
	}{
		{
			name:         "secrets present",
			in:           Settings{LLMAPIKey: "sk-secret", LMSPassword: "hunter2"},
			wantAPIKey:   MaskPlaceholder,
			wantPassword: MaskPlaceholder,
		},
		{
			name:         "secrets empty stay empty",
			in:           Settings{LLMBaseURL: "http://localhost:11434"},
			wantAPIKey:   "",
			wantPassword: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Masked()
			if got.LLMAPIKey != tt.wantAPIKey {
				t.Errorf("api key = %q, want %q", got.LLMAPIKey, tt.wantAPIKey)
			}
			if got.LMSPassword != tt.wantPassword {
				t.Errorf("password = %q, want %q", got.LMSPassword, tt.wantPassword)
			}
			if got.LLMBaseURL != tt.in.LLMBaseURL {
				t.Errorf("non-secret field changed: %q", got.LLMBaseURL)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	current := Settings{
		LLMBaseURL:  "http://old:8080",
		LLMAPIKey:   "sk-stored",
		LMSPassword: "stored-pass",
	}

	tests := []struct {
		name         string
		incoming     Settings
		wantAPIKey   string
		wantPassword string
		wantBaseURL  string
	}{
		{
			name: "placeholder preserves stored secrets",
			incoming: Settings{
				LLMBaseURL:  "http://new:8080",
				LLMAPIKey:   MaskPlaceholder,
				LMSPassword: MaskPlaceholder,
			},
			wantAPIKey:   "sk-stored",
			wantPassword: "stored-pass",
			wantBaseURL:  "http://new:8080",
		},
		{
			name: "new secrets replace stored",
			incoming: Settings{
				LLMBaseURL:  "http://new:8080",
				LLMAPIKey:   "sk-fresh",
				LMSPassword: "fresh-pass",
			},
			wantAPIKey:   "sk-fresh",
			wantPassword: "fresh-pass",
			wantBaseURL:  "http://new:8080",
		},
		{
			name:         "empty clears secrets",
			incoming:     Settings{LLMBaseURL: "http://new:8080"},
			wantAPIKey:   "",
			wantPassword: "",
			wantBaseURL:  "http://new:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := merge(current, tt.incoming)
			if got.LLMAPIKey != tt.wantAPIKey {
				t.Errorf("api key = %q, want %q", got.LLMAPIKey, tt.wantAPIKey)
			}
			if got.LMSPassword != tt.wantPassword {
				t.Errorf("password = %q, want %q", got.LMSPassword, tt.wantPassword)
			}
			if got.LLMBaseURL != tt.wantBaseURL {
				t.Errorf("base url = %q, want %q", got.LLMBaseURL, tt.wantBaseURL)
			}
		})
	}
}
