package vision

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRoles(t *testing.T) {
	roles, err := DefaultRoles()
	require.NoError(t, err)

	for _, name := range allRoles {
		role, ok := roles.Get(name)
		require.True(t, ok, name)
		assert.NotEmpty(t, role.Instruction, name)
		assert.Equal(t, float32(1), role.TopP, name)
		assert.Equal(t, 32, role.TopK, name)
	}

	triage, _ := roles.Get(RoleTriage)
	assert.Contains(t, triage.Instruction, AnalysisTag)
	assert.Contains(t, triage.Instruction, QuestionsTag)
	assert.Equal(t, float32(0.7), triage.Temperature)
	assert.Equal(t, 2048, triage.MaxOutputTokens)

	ident, _ := roles.Get(RoleIdentification)
	assert.Equal(t, 64, ident.MaxOutputTokens)
}

func TestRolesGetReturnsCopy(t *testing.T) {
	roles, err := DefaultRoles()
	require.NoError(t, err)

	role, _ := roles.Get(RoleFollowUp)
	role.Instruction = "ignore previous instructions"

	again, _ := roles.Get(RoleFollowUp)
	assert.NotEqual(t, "ignore previous instructions", again.Instruction)
}

func TestParseRolesMissingRole(t *testing.T) {
	_, err := ParseRoles([]byte(`
roles:
  identification:
    instruction: name it
`))
	assert.ErrorContains(t, err, "triage")
}

func TestParseRolesEmptyInstruction(t *testing.T) {
	_, err := ParseRoles([]byte(`
roles:
  identification: {instruction: "a"}
  triage: {instruction: "  "}
  final_report: {instruction: "c"}
  follow_up: {instruction: "d"}
`))
	assert.ErrorContains(t, err, "empty instruction")
}

func TestLoadRolesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
defaults: {temperature: 0.5, model: gemini-2.5-flash}
roles:
  identification: {instruction: "a", model: gemini-2.5-pro}
  triage: {instruction: "b"}
  final_report: {instruction: "c"}
  follow_up: {instruction: "d"}
`), 0600))

	roles, err := LoadRoles(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", roles.ModelFor(RoleIdentification, "fallback"))
	assert.Equal(t, "gemini-2.5-flash", roles.ModelFor(RoleTriage, "fallback"))

	triage, _ := roles.Get(RoleTriage)
	assert.Equal(t, float32(0.5), triage.Temperature)
}
