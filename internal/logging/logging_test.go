package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)

	logger := Component("planner")
	logger.Info().Msg("plan built")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v", err)
	}
	if entry["cmp"] != "planner" {
		t.Errorf("cmp = %v, want planner", entry["cmp"])
	}
	if entry["message"] != "plan built" {
		t.Errorf("message = %v, want plan built", entry["message"])
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		verbose bool
		wantErr bool
	}{
		{"default level", "", false, false},
		{"explicit debug", "debug", false, false},
		{"verbose overrides", "error", true, false},
		{"bad level", "chatty", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Setup(tt.level, tt.verbose)
			if (err != nil) != tt.wantErr {
				t.Errorf("Setup(%q, %v) error = %v, wantErr %v", tt.level, tt.verbose, err, tt.wantErr)
			}
		})
	}
}
