package cmd

import (
	"bytes"
	"context"
	"io/ioutil"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/paninifs/panini/pkg/blob"
	"github.com/paninifs/panini/pkg/config"
	"github.com/paninifs/panini/pkg/semantic"
	"github.com/paninifs/panini/pkg/workspace"
)

type exitMocks struct {
	calls    int
	messages []string
}

func (m *exitMocks) Fatalf(format string, v ...interface{}) {
	m.calls++
	m.messages = append(m.messages, format)
}

func (m *exitMocks) Fatalln(v ...interface{}) {
	m.calls++
}

var mocks *exitMocks

func setupTests(t *testing.T) string {
	mocks = new(exitMocks)
	logFatalf = mocks.Fatalf
	logFatalln = mocks.Fatalln
	return t.TempDir()
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd executes the command line against a workspace and returns its output
func runCmd(t *testing.T, ws string, args []string, intentMsg string, expectError bool) string {
	t.Helper()
	fatalCallsBefore := mocks.calls
	resetFlags(rootCmd)
	paniniFlags = flagsT{}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--workspace=" + ws, "--log-level=none"}, args...))
	require.NoError(t, rootCmd.Execute(), "error executing '"+strings.Join(args, " ")+"' : "+intentMsg)

	if expectError {
		require.Equal(t, fatalCallsBefore+1, mocks.calls,
			"ran '"+strings.Join(args, " ")+"' expecting error and didn't see one in mocks : "+intentMsg)
	} else {
		require.Equal(t, fatalCallsBefore, mocks.calls,
			"unexpected error in mocks on '"+strings.Join(args, " ")+"' : "+intentMsg+": "+strings.Join(mocks.messages, "; "))
	}
	return out.String()
}

func randomBytes(t testing.TB, size int) []byte {
	data := make([]byte, size)
	_, err := rand.New(rand.NewSource(42)).Read(data)
	require.NoError(t, err)
	return data
}

func TestInline(t *testing.T) {
	ws := setupTests(t)
	src := filepath.Join(ws, "binary.dat")
	encoded := filepath.Join(ws, "binary.txt")
	decoded := filepath.Join(ws, "binary.out")
	data := append([]byte("plain text: ~ with spaces.\n"), randomBytes(t, 512)...)
	require.NoError(t, ioutil.WriteFile(src, data, 0600))

	runCmd(t, ws, []string{"inline", "encode", src, "--out", encoded, "--width", "40"}, "encode binary file", false)
	text, err := ioutil.ReadFile(encoded)
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimSpace(string(text)), "\n") {
		assert.LessOrEqual(t, len(line), 40)
		assert.NotContains(t, line, " ")
	}

	runCmd(t, ws, []string{"inline", "decode", encoded, "--out", decoded}, "decode text file", false)
	back, err := ioutil.ReadFile(decoded)
	require.NoError(t, err)
	assert.Equal(t, data, back)

	out := runCmd(t, ws, []string{"inline", "encode", src, "--width", "0"}, "encode on a single line", false)
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.True(t, strings.HasPrefix(out, "plain~stext~c~s~i~swith~sspaces~d~l"))

	bad := filepath.Join(ws, "bad.txt")
	require.NoError(t, ioutil.WriteFile(bad, []byte("broken~q"), 0600))
	runCmd(t, ws, []string{"inline", "decode", bad}, "decode invalid escape", true)
}

func TestBlob(t *testing.T) {
	ws := setupTests(t)
	src := filepath.Join(ws, "input.dat")
	data := randomBytes(t, 3000)
	require.NoError(t, ioutil.WriteFile(src, data, 0600))

	out := runCmd(t, ws, []string{"blob", "put", src}, "put blob", false)
	var ref blob.Ref
	require.NoError(t, yaml.Unmarshal([]byte(out), &ref))
	assert.Equal(t, int64(len(data)), ref.Size)
	assert.Equal(t, "2^12", ref.Bucket)

	t.Run("get by address", func(t *testing.T) {
		got := runCmd(t, ws, []string{"blob", "get", ref.Key.String()}, "get blob to stdout", false)
		assert.Equal(t, data, []byte(got))
	})

	t.Run("get with bucket to file", func(t *testing.T) {
		dest := filepath.Join(ws, "output.dat")
		runCmd(t, ws, []string{"blob", "get", ref.Key.String(), "--bucket", ref.Bucket, "--out", dest}, "get blob to file", false)
		got, err := ioutil.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("get from wrong bucket", func(t *testing.T) {
		runCmd(t, ws, []string{"blob", "get", ref.Key.String(), "--bucket", "2^10"}, "get blob from wrong bucket", true)
	})

	t.Run("invalid address", func(t *testing.T) {
		runCmd(t, ws, []string{"blob", "get", "not-an-address"}, "get invalid address", true)
	})

	t.Run("stats", func(t *testing.T) {
		out := runCmd(t, ws, []string{"blob", "stats"}, "blob stats", false)
		var usage []bucketUsage
		require.NoError(t, yaml.Unmarshal([]byte(out), &usage))
		var count int
		var total int64
		for _, u := range usage {
			count += u.Count
			total += u.Bytes
		}
		assert.Equal(t, 1, count)
		assert.Equal(t, int64(len(data)), total)
	})

	t.Run("gc", func(t *testing.T) {
		out := runCmd(t, ws, []string{"blob", "gc"}, "reclaim unreferenced blobs", false)
		var res blob.SweepResult
		require.NoError(t, yaml.Unmarshal([]byte(out), &res))
		assert.Equal(t, 1, res.Removed)
		assert.Equal(t, int64(len(data)), res.Freed)

		runCmd(t, ws, []string{"blob", "get", ref.Key.String()}, "get reclaimed blob", true)
	})
}

func TestMetaQuery(t *testing.T) {
	ws := setupTests(t)
	ctx := context.Background()

	settings := config.Defaults()
	settings.Workspace = ws
	cfg, err := config.New(settings)
	require.NoError(t, err)
	w, err := workspace.Open(ctx, cfg, workspace.Logger(zap.NewNop()))
	require.NoError(t, err)
	require.NoError(t, w.FS().WriteFile(ctx, "/report.txt", []byte("quarterly numbers")))
	require.NoError(t, w.Close(ctx))

	out := runCmd(t, ws, []string{"meta", "query", "/report.txt"}, "query assertions", false)
	var assertions []semantic.Assertion
	require.NoError(t, yaml.Unmarshal([]byte(out), &assertions))
	require.NotEmpty(t, assertions)
	predicates := make([]string, 0, len(assertions))
	for _, a := range assertions {
		assert.Equal(t, "/report.txt", a.Subject)
		predicates = append(predicates, a.Predicate)
	}
	assert.Contains(t, predicates, semantic.PredicateKind)
	assert.Contains(t, predicates, semantic.PredicateContent)

	out = runCmd(t, ws, []string{"meta", "query", "/unknown"}, "query unknown path", false)
	assert.Equal(t, "[]\n", out)
}

func TestVolume(t *testing.T) {
	ws := setupTests(t)
	out := runCmd(t, ws, []string{"volume", "--label", "Reports"}, "print volume", false)

	var report map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	volume, ok := report["volume"].(map[interface{}]interface{})
	require.True(t, ok)
	assert.Equal(t, "Reports", volume["label"])
	assert.Contains(t, report, "space")
}

func TestConfig(t *testing.T) {
	ws := setupTests(t)
	out := runCmd(t, ws, []string{"config", "--label", "Archive", "--buckets", "4KiB,1MiB", "--cache-size", "12"}, "print config", false)

	var settings config.Settings
	require.NoError(t, yaml.Unmarshal([]byte(out), &settings))
	assert.Equal(t, ws, settings.Workspace)
	assert.Equal(t, "Archive", settings.VolumeLabel)
	assert.Equal(t, []string{"2^12", "2^20"}, settings.Buckets)
	assert.Equal(t, 12, settings.CacheSize)
	assert.Equal(t, filepath.Join(ws, config.MetaDir), settings.MetaPath)

	runCmd(t, ws, []string{"config", "--buckets", "nonsense"}, "invalid buckets", true)
	runCmd(t, ws, []string{"config", "--log-level", "loud"}, "invalid log level", true)
}
