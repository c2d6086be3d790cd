package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	expected := []string{
		"version",
		"serve",
		"audit",
		"export",
		"analytics",
		"search",
		"feedback",
		"retention",
		"tools",
		"doctor",
		"config",
	}
	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range expected {
		assert.True(t, registered[name], "subcommand %q should be registered", name)
	}
}

func TestRootCommand_HelpOutput(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"--help"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "records every exchange")
	assert.Contains(t, output, "version")
	assert.Contains(t, output, "serve")
	assert.Contains(t, output, "retention")
}

func TestVersionVars_HaveDefaults(t *testing.T) {
	assert.Equal(t, "dev", Version)
	assert.Equal(t, "none", Commit)
	assert.Equal(t, "unknown", BuildDate)
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	tests := []struct {
		name     string
		flagName string
	}{
		{"config flag", "config"},
		{"verbose flag", "verbose"},
		{"log-level flag", "log-level"},
		{"log-format flag", "log-format"},
		{"otel flag", "otel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := rootCmd.PersistentFlags().Lookup(tt.flagName)
			assert.NotNil(t, flag, "flag %q should be registered", tt.flagName)
		})
	}
}

func TestRootCommand_UseAndShort(t *testing.T) {
	assert.Equal(t, "kiralog", rootCmd.Use)
	assert.Equal(t, "Privacy-aware logging and analytics for AI assistant interactions", rootCmd.Short)
}

func TestPackageLevelTracer_IsNotNil(t *testing.T) {
	assert.NotNil(t, tracer, "package-level tracer should be initialized")
}

func TestSubcommandTrees(t *testing.T) {
	want := map[string][]string{
		"audit":     {"list", "verify"},
		"feedback":  {"analyze", "summary", "submit"},
		"retention": {"show", "set", "run"},
		"tools":     {"list", "validate", "format"},
		"config":    {"show"},
	}
	for _, parent := range rootCmd.Commands() {
		subs, ok := want[parent.Name()]
		if !ok {
			continue
		}
		registered := map[string]bool{}
		for _, c := range parent.Commands() {
			registered[c.Name()] = true
		}
		for _, s := range subs {
			assert.True(t, registered[s], "%s subcommand %q should be registered", parent.Name(), s)
		}
		delete(want, parent.Name())
	}
	assert.Empty(t, want, "parent commands missing")
}
