package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/rocketscienceinc/duel-backend/internal"
)

func TestParseCommand(t *testing.T) {
	t.Run("AI match with difficulty", func(t *testing.T) {
		cmd, configPath, err := parseCommand([]string{"ai", "arena", "-name", "alice", "-difficulty", "hard"})

		require.NoError(t, err)
		assert.Equal(t, app.Command{Name: "ai", Code: "arena", Pseudo: "alice", Difficulty: "hard"}, cmd)
		assert.Equal(t, "./config.yml", configPath)
	})

	t.Run("Reaper takes no code", func(t *testing.T) {
		cmd, configPath, err := parseCommand([]string{"reaper", "-config", "/etc/duel.yml"})

		require.NoError(t, err)
		assert.Equal(t, app.CommandReaper, cmd.Name)
		assert.Equal(t, "/etc/duel.yml", configPath)
	})

	t.Run("Players need a code and a name", func(t *testing.T) {
		_, _, err := parseCommand([]string{"join"})
		require.Error(t, err)

		_, _, err = parseCommand([]string{"join", "arena"})
		require.Error(t, err)

		_, _, err = parseCommand(nil)
		require.Error(t, err)
	})
}
