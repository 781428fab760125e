package procstream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallReturnsExitCode(t *testing.T) {
	code, err := Call(context.Background(), []string{"sh", "-c", "exit 4"})
	require.NoError(t, err)
	assert.Equal(t, 4, code)

	code, err = Call(context.Background(), []string{"true"})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestCallUnknownCommand(t *testing.T) {
	_, err := Call(context.Background(), []string{"definitely-not-a-real-command-xyz"})
	require.Error(t, err)

	var notFound *CommandNotFoundError

	require.ErrorAs(t, err, &notFound)
}

func TestOutputCapturesBothStreams(t *testing.T) {
	code, stdout, stderr, err := Output(context.Background(),
		[]string{"sh", "-c", "echo out; echo err >&2; exit 2"})
	require.NoError(t, err)

	assert.Equal(t, 2, code)
	assert.Equal(t, "out\n", string(stdout))
	assert.Equal(t, "err\n", string(stderr))
}

func TestOutputAppliesEnvAndCwd(t *testing.T) {
	code, stdout, _, err := Output(context.Background(),
		[]string{"sh", "-c", "printf '%s:' \"$PROCSTREAM_TEST_VAR\"; pwd"},
		WithEnv(map[string]string{"PROCSTREAM_TEST_VAR": "marker"}),
		WithCwd("/tmp"))
	require.NoError(t, err)

	assert.Equal(t, 0, code)
	assert.Equal(t, "marker:/tmp\n", string(stdout))
}

func TestBlockingHelpersRejectBadOptions(t *testing.T) {
	assertConfigError := func(t *testing.T, err error) {
		t.Helper()
		require.Error(t, err)

		var cfgErr *ConfigError

		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "chunk_size", cfgErr.Field)
	}

	_, err := Call(context.Background(), []string{"true"}, WithChunkSize(-1))
	assertConfigError(t, err)

	_, _, _, err = Output(context.Background(), []string{"true"}, WithChunkSize(-1))
	assertConfigError(t, err)

	_, _, err = Start(context.Background(), []string{"true"}, WithChunkSize(-1))
	assertConfigError(t, err)
}

func TestOutputEmptyCommand(t *testing.T) {
	_, _, _, err := Output(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyCommand)
}

func TestStartAndTerminate(t *testing.T) {
	proc, terminate, err := Start(context.Background(), []string{"sh", "-c", "sleep 30"})
	require.NoError(t, err)

	assert.Positive(t, proc.PID())

	_, exited := proc.Poll()
	assert.False(t, exited)

	require.NoError(t, terminate())
	require.NoError(t, terminate())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = proc.Wait(ctx)
	require.NoError(t, err)
}
