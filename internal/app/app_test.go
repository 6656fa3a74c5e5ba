package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/gitsong/internal/artifact"
	"github.com/phrazzld/gitsong/internal/config"
	"github.com/phrazzld/gitsong/internal/platform/logger"
)

func TestArtifactStore_Filesystem(t *testing.T) {
	t.Parallel()

	a := &App{
		Config: &config.Config{Storage: config.StorageConfig{
			Backend:       "filesystem",
			Dir:           t.TempDir(),
			PublicBaseURL: "http://localhost:8080/artifacts",
		}},
		Logger: logger.Discard(),
	}
	s, err := a.artifactStore(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &artifact.FilesystemStore{}, s)
	assert.Empty(t, a.closers)
}

func TestArtifactStore_UnknownBackend(t *testing.T) {
	t.Parallel()

	a := &App{Config: &config.Config{Storage: config.StorageConfig{Backend: "tape"}}}
	_, err := a.artifactStore(context.Background())
	assert.ErrorContains(t, err, "unknown storage backend")
}

func TestClose_ReverseOrderAndJoinedErrors(t *testing.T) {
	t.Parallel()

	var order []int
	errFirst := errors.New("first")
	a := &App{closers: []func() error{
		func() error { order = append(order, 1); return errFirst },
		func() error { order = append(order, 2); return nil },
	}}

	err := a.Close()
	assert.ErrorIs(t, err, errFirst)
	assert.Equal(t, []int{2, 1}, order)
	assert.NoError(t, a.Close())
}
