package install

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupLegacyManagedDirs(t *testing.T) {
	root := t.TempDir()
	legacySkills := filepath.Join(root, ".pi", "skills")
	legacyAgents := filepath.Join(root, ".pi", "agents")
	writeFile(t, filepath.Join(ManagedDir(legacySkills), "a", "SKILL.md"), "a")
	writeFile(t, filepath.Join(legacySkills, "mine", "SKILL.md"), "mine")

	removed, err := CleanupLegacyManagedDirs([]string{legacySkills, legacyAgents})
	require.NoError(t, err)
	assert.Equal(t, []string{ManagedDir(legacySkills)}, removed)

	_, err = os.Stat(ManagedDir(legacySkills))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, []string{"mine"}, entryNames(t, legacySkills))

	_, err = os.Stat(legacyAgents)
	assert.True(t, os.IsNotExist(err), "missing legacy paths are not created")
}
