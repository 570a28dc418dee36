package story

import "testing"

func TestOutcome_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		outcome Outcome
		wantErr bool
	}{
		{
			name: "successful text and audio",
			outcome: Outcome{
				RequestID:     "r1",
				Success:       true,
				TextContent:   "story",
				AudioBytes:    []byte("mp3"),
				AudioProvider: "elevenlabs",
				Attempts:      []Attempt{{Provider: "elevenlabs", Succeeded: true}},
			},
		},
		{
			name: "successful text only",
			outcome: Outcome{
				RequestID:   "r2",
				Success:     true,
				TextContent: "story",
				Attempts: []Attempt{
					{Provider: "elevenlabs", Succeeded: false, ErrorKind: "provider_error"},
				},
			},
		},
		{
			name: "failed with message",
			outcome: Outcome{
				RequestID:    "r3",
				Success:      false,
				ErrorMessage: "text generation failed",
			},
		},
		{
			name: "audio without provider",
			outcome: Outcome{
				RequestID:   "r4",
				Success:     true,
				TextContent: "story",
				AudioBytes:  []byte("mp3"),
			},
			wantErr: true,
		},
		{
			name: "provider without audio",
			outcome: Outcome{
				RequestID:     "r5",
				Success:       true,
				TextContent:   "story",
				AudioProvider: "elevenlabs",
			},
			wantErr: true,
		},
		{
			name: "failed but carries text",
			outcome: Outcome{
				RequestID:    "r6",
				Success:      false,
				TextContent:  "leaked",
				ErrorMessage: "boom",
			},
			wantErr: true,
		},
		{
			name: "failed without message",
			outcome: Outcome{
				RequestID: "r7",
				Success:   false,
			},
			wantErr: true,
		},
		{
			name: "successful attempt with error kind",
			outcome: Outcome{
				RequestID:   "r8",
				Success:     true,
				TextContent: "story",
				Attempts:    []Attempt{{Provider: "x", Succeeded: true, ErrorKind: "timeout"}},
			},
			wantErr: true,
		},
		{
			name: "failed attempt without error kind",
			outcome: Outcome{
				RequestID:   "r9",
				Success:     true,
				TextContent: "story",
				Attempts:    []Attempt{{Provider: "x", Succeeded: false}},
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.outcome.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
