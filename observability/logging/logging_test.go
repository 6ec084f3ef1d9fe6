package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWriterRenamesKeysAndRedacts(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWriter(&buf, "custodyd", "test", slog.LevelDebug)
	logger.Info("booted", slog.String("token", "abc"), slog.String("asset", "0x01"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "booted", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "custodyd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, RedactedValue, line["token"])
	require.Equal(t, "0x01", line["asset"])
	require.Contains(t, line, "timestamp")
}

func TestMaskValueKeepsEmpty(t *testing.T) {
	require.Equal(t, "", MaskValue(""))
	require.Equal(t, RedactedValue, MaskValue("secret"))
	require.True(t, IsSensitive("Authorization"))
	require.False(t, IsSensitive("asset"))
}

func TestFileConfigWriterDefaultsToStdout(t *testing.T) {
	var buf bytes.Buffer
	require.Same(t, &buf, FileConfig{}.Writer(&buf))
}
