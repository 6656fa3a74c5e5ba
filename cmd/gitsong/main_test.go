package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/gitsong/internal/orchestrator"
)

func TestGenerateOptions_SongRequest(t *testing.T) {
	t.Parallel()

	opts := &generateOptions{
		repository:   "octo/hello",
		window:       "custom",
		start:        "2024-03-01",
		end:          "2024-03-08T12:00:00+02:00",
		style:        "lo-fi",
		instrumental: true,
	}
	req, err := opts.songRequest()
	require.NoError(t, err)
	assert.Equal(t, orchestrator.WindowCustom, req.Window)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), req.Start)
	assert.Equal(t, time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC), req.End)
	assert.True(t, req.Date.IsZero())
	assert.True(t, req.Instrumental)

	opts.start = "last tuesday"
	_, err = opts.songRequest()
	assert.ErrorContains(t, err, "--start")
}

func TestRootCmd_Commands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	for _, path := range [][]string{
		{"generate"},
		{"task", "get"},
		{"task", "poll"},
		{"task", "wait"},
		{"ratelimit"},
		{"migrate"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestRootCmd_ArgumentErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"generate without repo", []string{"generate"}, `required flag(s) "repo" not set`},
		{"unknown migration", []string{"migrate", "sideways"}, "invalid argument"},
		{"task wait without id", []string{"task", "wait"}, "accepts 1 arg(s)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			root := newRootCmd()
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetErr(&out)
			root.SetArgs(tc.args)

			err := root.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
