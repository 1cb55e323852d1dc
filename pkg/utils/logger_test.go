package utils

import (
	"testing"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{
			name:   "debug json",
			level:  "debug",
			format: "json",
		},
		{
			name:   "info console",
			level:  "info",
			format: "console",
		},
		{
			name:   "warn accepts warning alias",
			level:  "warning",
			format: "json",
		},
		{
			name:   "error text alias",
			level:  "error",
			format: "text",
		},
		{
			name:   "empty defaults to info json",
			level:  "",
			format: "",
		},
		{
			name:   "level is case insensitive",
			level:  "DEBUG",
			format: "json",
		},
		{
			name:    "unknown level",
			level:   "trace",
			format:  "json",
			wantErr: true,
		},
		{
			name:    "unknown format",
			level:   "info",
			format:  "xml",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := InitLogger(tt.level, tt.format)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if logger == nil {
				t.Fatal("expected logger, got nil")
			}
			_ = logger.Sync()
		})
	}
}

func TestMustInitLogger(t *testing.T) {
	t.Run("valid config does not panic", func(t *testing.T) {
		logger := MustInitLogger("info", "json")
		if logger == nil {
			t.Fatal("expected logger, got nil")
		}
	})

	t.Run("invalid config panics", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic, got none")
			}
		}()
		MustInitLogger("bogus", "json")
	})
}
