package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/dslhost/internal/app"
	"go.trai.ch/dslhost/internal/core/domain"
	"go.trai.ch/dslhost/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func provide(a *app.App, log *mocks.MockLogger) ComponentProvider {
	return func(_ context.Context) (*app.Components, func(), error) {
		return &app.Components{App: a, Logger: log}, func() {}, nil
	}
}

// workspace writes script into a temp dir and returns a loader resolving
// the default configuration for it.
func workspace(t *testing.T, ctrl *gomock.Controller, script string) (string, *mocks.MockConfigLoader) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.dsl"), []byte(script), domain.FilePerm))

	cfg := domain.DefaultConfig(dir)
	cfg.PersistentCache = false
	loader := mocks.NewMockConfigLoader(ctrl)
	loader.EXPECT().Load(dir).Return(cfg, nil).AnyTimes()
	return dir, loader
}

// TestRun_Success verifies that the run function returns 0 when the command succeeds.
func TestRun_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	application := app.New(mocks.NewMockConfigLoader(ctrl), mockLogger, nil, nil)

	exitCode := run(context.Background(), []string{"version"}, new(bytes.Buffer), provide(application, mockLogger))
	assert.Equal(t, 0, exitCode)
}

// TestRun_InitializationError verifies that run returns 1 when component initialization fails.
func TestRun_InitializationError(t *testing.T) {
	provider := func(_ context.Context) (*app.Components, func(), error) {
		return nil, nil, errors.New("init failed")
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stderr, provider)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error: init failed")
}

// TestRun_ExecutionError verifies that run logs the error and returns 1 when the command fails.
func TestRun_ExecutionError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLoader := mocks.NewMockConfigLoader(ctrl)
	mockLoader.EXPECT().Load(gomock.Any()).Return(nil, errors.New("load failed"))
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Error(gomock.Any())

	application := app.New(mockLoader, mockLogger, nil, nil)
	exitCode := run(context.Background(), []string{"run", "main.dsl"}, new(bytes.Buffer), provide(application, mockLogger))

	assert.Equal(t, 1, exitCode)
}

// TestRun_ExitStatus verifies that the status a script exits with becomes
// the process exit code without being logged as an error.
func TestRun_ExitStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir, loader := workspace(t, ctrl, "exit 3\n")
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Debug(gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Info(gomock.Any()).AnyTimes()

	application := app.New(loader, mockLogger, nil, nil).WithOutput(io.Discard)
	exitCode := run(context.Background(), []string{"run", "main.dsl"}, new(bytes.Buffer), provide(application, mockLogger),
		func(a *app.App) { a.WithWorkingDirectory(dir) })

	assert.Equal(t, 3, exitCode)
}

// TestRun_CheckFailed verifies that failed checks are reported once, by the report.
func TestRun_CheckFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir, loader := workspace(t, ctrl, "echo missing\n")
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Debug(gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Info(gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Warn(gomock.Any()).AnyTimes()

	out := new(bytes.Buffer)
	application := app.New(loader, mockLogger, nil, nil).WithOutput(out)
	exitCode := run(context.Background(), []string{"check"}, new(bytes.Buffer), provide(application, mockLogger),
		func(a *app.App) { a.WithWorkingDirectory(dir) })

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, out.String(), "1 failed")
}

// TestRun_Signal verifies that the context is canceled on signal.
func TestRun_Signal(t *testing.T) {
	ctrl := gomock.NewController(t)

	// We need a loader that blocks until the context is done.
	blockCh := make(chan struct{})

	mockLoader := mocks.NewMockConfigLoader(ctrl)
	mockLoader.EXPECT().Load(gomock.Any()).DoAndReturn(func(_ string) (*domain.Config, error) {
		select {
		case <-blockCh:
			return nil, context.Canceled
		case <-time.After(5 * time.Second):
			return nil, errors.New("timeout in mock")
		}
	})

	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Error(gomock.Any()).AnyTimes()

	application := app.New(mockLoader, mockLogger, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan int)

	go func() {
		errCh <- run(ctx, []string{"run", "main.dsl"}, io.Discard, provide(application, mockLogger))
	}()

	// Wait a bit to ensure run() reaches Load()
	time.Sleep(100 * time.Millisecond)

	cancel()
	close(blockCh)

	select {
	case ret := <-errCh:
		assert.NotEqual(t, 0, ret)
	case <-time.After(2 * time.Second):
		t.Fatal("TestRun_Signal timed out waiting for run() to return")
	}
}
