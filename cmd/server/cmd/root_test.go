package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommandHelp(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		expectedOutput string
		expectError    bool
	}{
		{
			name:           "help flag",
			args:           []string{"--help"},
			expectedOutput: "Praktika server",
			expectError:    false,
		},
		{
			name:           "short help flag",
			args:           []string{"-h"},
			expectedOutput: "Praktika server",
			expectError:    false,
		},
		{
			name:           "invalid flag",
			args:           []string{"--invalid-flag"},
			expectedOutput: "unknown flag: --invalid-flag",
			expectError:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			rootCmd.SetOut(buf)
			rootCmd.SetErr(buf)
			rootCmd.SetArgs(tt.args)

			err := rootCmd.Execute()
			output := buf.String()

			if tt.expectError && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !strings.Contains(output, tt.expectedOutput) {
				t.Errorf("expected output to contain %q, got:\n%s", tt.expectedOutput, output)
			}
		})
	}
}

func TestRootCommandPersistentFlags(t *testing.T) {
	flags := []string{"config", "log-level", "log-format"}
	for _, flag := range flags {
		if f := rootCmd.PersistentFlags().Lookup(flag); f == nil {
			t.Errorf("expected persistent flag %q to be defined", flag)
		}
	}
}

func TestRootCommandSubcommands(t *testing.T) {
	expectedCommands := []string{"serve", "version", "healthcheck", "migrate", "ledger", "seed"}
	for _, cmdName := range expectedCommands {
		found := false
		for _, subCmd := range rootCmd.Commands() {
			if subCmd.Name() == cmdName {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected subcommand %q to be registered", cmdName)
		}
	}
}

func TestLedgerSubcommands(t *testing.T) {
	expected := []string{"verify", "show"}
	for _, name := range expected {
		found := false
		for _, subCmd := range ledgerCmd.Commands() {
			if subCmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected ledger subcommand %q to be registered", name)
		}
	}
}

func TestMigrateSubcommands(t *testing.T) {
	expected := []string{"up", "down", "river"}
	for _, name := range expected {
		found := false
		for _, subCmd := range migrateCmd.Commands() {
			if subCmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected migrate subcommand %q to be registered", name)
		}
	}
}
