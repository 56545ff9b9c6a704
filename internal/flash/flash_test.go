package flash

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"board-service/internal/model"
)

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "firmware.bin")
	require.NoError(t, os.WriteFile(path, []byte{0xDE, 0xAD}, 0o644))
	return path
}

func fakeTool(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	return path
}

func newFlasher(toolPath string, run func(context.Context, string, ...string) ([]byte, error)) *CLIFlasher {
	return &CLIFlasher{
		Run:     run,
		Timeout: time.Second,
		tools: []flashTool{{
			name:     "prog",
			override: toolPath,
			args: func(port, imagePath string) []string {
				return []string{"-w", imagePath}
			},
		}},
		logger: zap.NewNop(),
	}
}

func TestFlashSucceedsWithInstalledTool(t *testing.T) {
	image := writeImage(t)
	var gotArgs []string
	f := newFlasher(fakeTool(t), func(_ context.Context, _ string, args ...string) ([]byte, error) {
		gotArgs = args
		return []byte("done"), nil
	})

	err := f.Flash(context.Background(), &model.Device{Port: "COM3"}, image)

	require.NoError(t, err)
	assert.Equal(t, []string{"-w", image}, gotArgs)
}

func TestFlashMissingImageFails(t *testing.T) {
	f := newFlasher(fakeTool(t), nil)
	err := f.Flash(context.Background(), &model.Device{Port: "COM3"}, "/nonexistent.bin")
	assert.Error(t, err)
}

func TestFlashToolFailureIsSurfaced(t *testing.T) {
	f := newFlasher(fakeTool(t), func(context.Context, string, ...string) ([]byte, error) {
		return []byte("target not responding"), errors.New("exit status 1")
	})

	err := f.Flash(context.Background(), &model.Device{Port: "COM3"}, writeImage(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "target not responding")
}

func TestFlashNoToolInstalled(t *testing.T) {
	f := &CLIFlasher{
		Run:     nil,
		Timeout: time.Second,
		tools: []flashTool{{
			name:     "definitely-not-installed-tool",
			override: "/nonexistent/prog",
		}},
		logger: zap.NewNop(),
	}

	err := f.Flash(context.Background(), &model.Device{Port: "COM3"}, writeImage(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no programmer tool")
}
