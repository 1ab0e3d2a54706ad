package logging

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitLoggerProducesAUsableLogger(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(wd)
	require.NoError(t, os.Chdir(t.TempDir()))

	InitLogger("test", true, "debug")
	require.NotNil(t, Logger)
	Logger.Named("sub").Info("smoke test")
}
