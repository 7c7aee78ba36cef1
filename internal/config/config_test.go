package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	tmpDir := t.TempDir()
	promptFile := filepath.Join(tmpDir, "prompt.txt")
	require.NoError(t, os.WriteFile(promptFile, []byte("Summarize the following code.\n"), 0644))

	cfg := DefaultConfig
	cfg.PromptFile = promptFile
	cfg.Service.APIKey = "test-key"
	return &cfg
}

func TestValidate(t *testing.T) {
	cfg := validConfig(t)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := validConfig(t)
	cfg.Service.APIKey = ""
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
}

func TestValidate_MissingPromptFile(t *testing.T) {
	cfg := validConfig(t)
	cfg.PromptFile = filepath.Join(t.TempDir(), "absent.txt")
	assert.ErrorIs(t, cfg.Validate(), ErrMissingPrompt)
}

func TestValidate_ClampsOutputTokens(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{name: "below floor", in: 100, want: 2048},
		{name: "within range", in: 3000, want: 3000},
		{name: "above ceiling", in: 10000, want: 4096},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			cfg.Service.MaxOutputTokens = tt.in
			require.NoError(t, cfg.Validate())
			assert.Equal(t, tt.want, cfg.Service.MaxOutputTokens)
		})
	}
}

func TestValidate_RejectsBadBudgets(t *testing.T) {
	cfg := validConfig(t)
	cfg.ContextTokens = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig(t)
	cfg.BatchSize = -1
	assert.Error(t, cfg.Validate())
}

func TestLoadPreamble(t *testing.T) {
	cfg := validConfig(t)
	preamble, err := cfg.LoadPreamble()
	require.NoError(t, err)
	assert.Equal(t, "Summarize the following code.\n", preamble)
}

func TestFinalSummaryPath(t *testing.T) {
	cfg := DefaultConfig
	cfg.OutputDir = filepath.Join("work", "dest")
	assert.Equal(t, filepath.Join("work", "final_summary.txt"), cfg.FinalSummaryPath())
}
