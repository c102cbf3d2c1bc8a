package modes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinCatalog(t *testing.T) {
	c := Builtin()

	assert.Len(t, c.ListAll(), 22)
	assert.Equal(t, []string{"clarity", "controversial", "deep_research"}, c.ListPopular())
	assert.Equal(t, "clarity", c.Default())

	instruction, ok := c.InstructionFor("clarity")
	require.True(t, ok)
	assert.Equal(t, "Rewrite the prompt so that the LLM will produce an extremely clear and unambiguous response. Eliminate vagueness, add specific details, and enforce a logical structure.", instruction)

	_, ok = c.InstructionFor("missing")
	assert.False(t, ok)
}

func TestListAllKeepsDefinitionOrder(t *testing.T) {
	all := Builtin().ListAll()

	assert.Equal(t, "deep_research", all[0])
	assert.Equal(t, "satirical", all[len(all)-1])
}

func TestListsAreCopies(t *testing.T) {
	c := Builtin()
	popular := c.ListPopular()
	popular[0] = "mutated"

	assert.Equal(t, "clarity", c.ListPopular()[0])
}

func TestModesFlagsPopular(t *testing.T) {
	var popular []string
	for _, m := range Builtin().Modes() {
		if m.Popular {
			popular = append(popular, m.ID)
		}
	}

	assert.ElementsMatch(t, []string{"clarity", "controversial", "deep_research"}, popular)
}

func TestNewRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name        string
		modes       []Mode
		popular     []string
		defaultMode string
	}{
		{name: "empty", defaultMode: "a"},
		{name: "blank id", modes: []Mode{{ID: " ", Instruction: "x"}}, defaultMode: "a"},
		{name: "blank instruction", modes: []Mode{{ID: "a", Instruction: ""}}, defaultMode: "a"},
		{name: "duplicate", modes: []Mode{{ID: "a", Instruction: "x"}, {ID: "a", Instruction: "y"}}, defaultMode: "a"},
		{name: "unknown popular", modes: []Mode{{ID: "a", Instruction: "x"}}, popular: []string{"b"}, defaultMode: "a"},
		{name: "unknown default", modes: []Mode{{ID: "a", Instruction: "x"}}, defaultMode: "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.modes, tt.popular, tt.defaultMode)
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modes.yaml")
	content := `default: terse
popular: [terse]
modes:
  - id: terse
    instruction: Make it short.
  - id: verbose
    instruction: Make it long.
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "terse", c.Default())
	assert.Equal(t, []string{"terse", "verbose"}, c.ListAll())
	assert.True(t, c.IsPopular("terse"))
	assert.False(t, c.IsPopular("verbose"))
}

func TestParseDefaultsToClarity(t *testing.T) {
	_, err := Parse([]byte("modes:\n  - id: terse\n    instruction: Short.\n"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), `default mode "clarity"`)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Step By Step", Label("step_by_step"))
	assert.Equal(t, "Clarity", Label("clarity"))
}
