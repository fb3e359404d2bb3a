// internal/cli/cli_test.go
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tamzrod/status-broker/internal/auth"
	"github.com/tamzrod/status-broker/internal/broker"
	"github.com/tamzrod/status-broker/internal/client"
	"github.com/tamzrod/status-broker/internal/config"
)

// ---- helpers ----

type harness struct {
	dir    string
	stdout bytes.Buffer
	euid   int
	input  []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{dir: t.TempDir()}
}

func (h *harness) run(args ...string) error {
	env := Env{
		Stdin:  strings.NewReader(""),
		Stdout: &h.stdout,
		// the global logger may point here after the command returns
		Stderr: io.Discard,
		ReadPassword: func() ([]byte, error) {
			if len(h.input) == 0 {
				return nil, errors.New("no input")
			}
			line := h.input[0]
			h.input = h.input[1:]
			return []byte(line), nil
		},
		Geteuid: func() int { return h.euid },
	}
	cmd := NewRootCmd("1.2.3", env)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func (h *harness) path(name string) string { return filepath.Join(h.dir, name) }

func testGate(t *testing.T) *auth.Gate {
	t.Helper()
	hash, err := auth.Hash("secret", bcrypt.MinCost)
	require.NoError(t, err)
	g, err := auth.NewGate(hash)
	require.NoError(t, err)
	return g
}

func startApp(t *testing.T, body string) (*App, string) {
	t.Helper()
	dir := t.TempDir()

	statusFile := filepath.Join(dir, "status.dat")
	require.NoError(t, os.WriteFile(statusFile, []byte(body), 0o644))

	cfg := config.Default()
	cfg.StatusFile = statusFile
	cfg.Workers = 2
	cfg.RefreshInterval = time.Hour
	require.NoError(t, config.Validate(cfg))

	ln, err := broker.Listen("127.0.0.1", 0)
	require.NoError(t, err)

	app, err := Build(cfg, testGate(t), ln)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("app did not stop")
		}
	})

	return app, ln.Addr().String()
}

func query(t *testing.T, addr, cred, sid string) string {
	t.Helper()
	var res client.Result
	// the broker is added to the tree asynchronously
	require.Eventually(t, func() bool {
		c, err := client.Dial(context.Background(), addr, time.Second)
		if err != nil {
			return false
		}
		defer c.Close()
		res, err = c.Query(cred, sid)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	return res.String()
}

// ---- flags ----

func TestRoot_Version(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("-v"))
	assert.Equal(t, "statusbrokerd 1.2.3\n", h.stdout.String())
}

func TestRoot_Help(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("-h"))
	out := h.stdout.String()
	for _, flag := range []string{"-c, --status-file", "-p, --port", "-n, --workers", "-P, --reset-passphrase", "-D, --foreground"} {
		assert.Contains(t, out, flag)
	}
}

func TestRoot_ArgumentErrors(t *testing.T) {
	cases := [][]string{
		{"stray"},
		{"--no-such-flag"},
		{"-p", "notanumber"},
		{"-p", "0"},
		{"-p", "70000"},
		{"-n", "0"},
		{"--log-level", "loud"},
	}
	for _, args := range cases {
		h := newHarness(t)
		assert.Error(t, h.run(args...), "args %v", args)
	}
}

func TestResolveConfig_FlagsOverrideFile(t *testing.T) {
	h := newHarness(t)
	cfgPath := h.path("statusbrokerd.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("port: 2000\nworkers: 3\nstatus_file: /from/file\n"), 0o644))

	cmd := NewRootCmd("test", Env{})
	require.NoError(t, cmd.ParseFlags([]string{"--config", cfgPath, "-n", "5"}))

	// ParseFlags marks -n as changed; the values come from f
	f := rootFlags{configFile: cfgPath, workers: 5}
	cfg, err := resolveConfig(cmd, &f)
	require.NoError(t, err)

	assert.Equal(t, 2000, cfg.Port)
	assert.Equal(t, 5, cfg.Workers)
	assert.Equal(t, "/from/file", cfg.StatusFile)
	assert.Equal(t, config.DefaultQueueDepth, cfg.QueueDepth)
}

func TestResolveConfig_ExplicitZeroQueueDepth(t *testing.T) {
	cmd := NewRootCmd("test", Env{})
	require.NoError(t, cmd.ParseFlags([]string{"--queue-depth", "0"}))

	cfg, err := resolveConfig(cmd, &rootFlags{queueDepth: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.QueueDepth)
	assert.Equal(t, config.DefaultEnqueueTimeout, cfg.EnqueueTimeout)
}

// ---- passphrase reset ----

func TestResetPassphrase_RequiresRoot(t *testing.T) {
	h := newHarness(t)
	h.euid = 1000

	err := h.run("-P", "--auth-file", h.path("auth"), "--pid-file", h.path("pid"))
	assert.True(t, errors.Is(err, auth.ErrPermission))

	_, statErr := os.Stat(h.path("auth"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestResetPassphrase_StoresHash(t *testing.T) {
	h := newHarness(t)
	h.input = []string{"s3cret", "s3cret"}

	require.NoError(t, h.run("-P", "--auth-file", h.path("auth"), "--pid-file", h.path("pid")))
	assert.Contains(t, h.stdout.String(), "Passphrase updated")

	g, err := auth.NewStore(h.path("auth"), h.path("pid"), 0).Load()
	require.NoError(t, err)
	assert.True(t, g.Check("s3cret"))
	assert.False(t, g.Check("secret"))
}

func TestResetPassphrase_Mismatch(t *testing.T) {
	h := newHarness(t)
	h.input = []string{"one", "two"}

	err := h.run("-P", "--auth-file", h.path("auth"), "--pid-file", h.path("pid"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do not match")
}

func TestServe_MissingPassphraseFails(t *testing.T) {
	h := newHarness(t)

	err := h.run("-D", "-p", "1", "--auth-file", h.path("auth"), "--pid-file", h.path("pid"))
	assert.True(t, errors.Is(err, auth.ErrNoCredential))
}

// ---- running daemon ----

func TestApp_ServesScenario(t *testing.T) {
	_, addr := startApp(t, "svc1,0\nsvc2,2\n")

	assert.Equal(t, "0#Normal", query(t, addr, "secret", "svc1"))
	assert.Equal(t, "-2#Wrong authentication", query(t, addr, "wrong", "svc1"))
	assert.Equal(t, "-1#Not found", query(t, addr, "secret", "svc9"))
	assert.Equal(t, "2#svc1=0;svc2=2", query(t, addr, "secret", ""))
}

func TestApp_TriggerReloadPicksUpChanges(t *testing.T) {
	app, addr := startApp(t, "svc1,0\n")
	assert.Equal(t, "0#Normal", query(t, addr, "secret", "svc1"))

	require.NoError(t, os.WriteFile(app.Config.StatusFile, []byte("svc1,2\n"), 0o644))
	app.TriggerReload()

	require.Eventually(t, func() bool {
		c, err := client.Dial(context.Background(), addr, time.Second)
		if err != nil {
			return false
		}
		defer c.Close()
		res, err := c.Query("secret", "svc1")
		return err == nil && res.String() == "2#Critical"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestQueryCommand(t *testing.T) {
	_, addr := startApp(t, "web/http,1\n")
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	// wait for the broker
	query(t, addr, "secret", "web/http")

	h := newHarness(t)
	require.NoError(t, h.run("query", "web/http", "--host", host, "-p", port, "--secret", "secret"))
	assert.Equal(t, "1#Warning\n", h.stdout.String())

	h = newHarness(t)
	h.input = []string{"secret"}
	require.NoError(t, h.run("query", "--host", host, "-p", port))
	assert.Equal(t, fmt.Sprintf("1#%s=1\n", "web/http"), h.stdout.String())
}

func TestBuild_Validates(t *testing.T) {
	_, err := Build(nil, nil, nil)
	assert.Error(t, err)
}
