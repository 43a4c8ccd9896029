package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOptions struct {
	Ingest struct {
		ChunkSize  int    `mapstructure:"chunk-size"`
		StorageDir string `mapstructure:"storage-dir"`
	} `mapstructure:"ingest"`
	completed bool
}

func (o *testOptions) AddFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.Ingest.ChunkSize, "ingest.chunk-size", 256, "words per chunk")
	fs.StringVar(&o.Ingest.StorageDir, "ingest.storage-dir", "data", "storage dir")
}

func (o *testOptions) Validate() error { return nil }

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func TestAppLoadsConfigEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "paperline.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("ingest:\n  chunk-size: 128\n  storage-dir: ${PAPERLINE_TEST_DIR}/out\n"), 0o600))

	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("PAPERLINE_TEST_DIR=/srv/papers\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PAPERLINE_TEST_DIR") })

	opts := &testOptions{}
	var gotArgs []string
	a := NewApp(
		WithName("paperline"),
		WithOptions(opts),
		WithNoVersion(),
		WithRunFunc(func(_ context.Context, args []string) error {
			gotArgs = args
			return nil
		}),
	)

	cmd := a.Command()
	cmd.SetArgs([]string{"--config", cfg, "--env-file", envFile, "--ingest.chunk-size", "64", "papers/"})
	require.NoError(t, cmd.Execute())

	assert.True(t, opts.completed)
	assert.Equal(t, 64, opts.Ingest.ChunkSize, "changed flags win over the config file")
	assert.Equal(t, "/srv/papers/out", opts.Ingest.StorageDir)
	assert.Equal(t, []string{"papers/"}, gotArgs)
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
	assert.NoError(t, loadDotEnv(""))
}
