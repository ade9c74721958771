package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

// TestModule_Provides 测试模块提供 Recorder
func TestModule_Provides(t *testing.T) {
	var rec *Recorder

	app := fxtest.New(t,
		Module,
		fx.Populate(&rec),
	)
	defer app.RequireStart().RequireStop()

	require.NotNil(t, rec)
	assert.NotNil(t, rec.Registry())
}

// TestModule_WritesTextfileOnStop 测试停止时写出 textfile
func TestModule_WritesTextfileOnStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ninat.prom")
	var rec *Recorder

	app := fxtest.New(t,
		Module,
		fx.Supply(Config{TextfilePath: path}),
		fx.Populate(&rec),
	)
	app.RequireStart()

	rec.Probe("E1", OutcomeAnswered, 20*time.Millisecond)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "textfile is written only on stop")

	app.RequireStop()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ninat_probe_probes_total")
}
