// Package harness builds the formulary binary and runs it against fixture
// workspaces for the end-to-end tests.
package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"formulary/internal/audit"
)

// Result is the outcome of one CLI invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

func (r Result) String() string {
	return fmt.Sprintf("exit code %d\nstdout:\n%s\nstderr:\n%s", r.ExitCode, r.Stdout, r.Stderr)
}

var (
	binOnce sync.Once
	binPath string
	binErr  error
)

// Binary compiles ./cmd/formulary once per test process.
func Binary(t *testing.T) string {
	t.Helper()
	binOnce.Do(func() {
		root, err := moduleRoot()
		if err != nil {
			binErr = err
			return
		}
		dir, err := os.MkdirTemp("", "formulary-it-")
		if err != nil {
			binErr = fmt.Errorf("create build dir: %w", err)
			return
		}
		out := filepath.Join(dir, "formulary")
		cmd := exec.Command("go", "build", "-o", out, "./cmd/formulary")
		cmd.Dir = root
		if output, err := cmd.CombinedOutput(); err != nil {
			binErr = fmt.Errorf("go build: %w\n%s", err, output)
			return
		}
		binPath = out
	})
	require.NoError(t, binErr)
	return binPath
}

// ModuleRoot returns the directory holding go.mod.
func ModuleRoot(t *testing.T) string {
	t.Helper()
	root, err := moduleRoot()
	require.NoError(t, err)
	return root
}

func moduleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working dir: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found above working dir")
		}
		dir = parent
	}
}

// Run executes bin in dir. The audit database override of the calling
// environment is cleared; env entries are applied last and win.
func Run(t *testing.T, bin, dir string, env map[string]string, args ...string) Result {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), audit.EnvDBPath+"=")
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case err != nil:
		require.NoError(t, err, "start %s", bin)
	}
	return res
}

// CopyFixture copies integration/fixtures/<name> into a fresh temp dir and
// returns its path.
func CopyFixture(t *testing.T, name string) string {
	t.Helper()
	src := filepath.Join(ModuleRoot(t), "integration", "fixtures", name)
	dst := t.TempDir()
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return fmt.Errorf("fixture %s: %s is not a regular file", name, rel)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
	require.NoError(t, err, "copy fixture %s", name)
	return dst
}

// AuditEvents counts the events of each type in a workspace's audit log.
func AuditEvents(t *testing.T, workspace string) map[string]int {
	t.Helper()
	events, err := audit.NewLogger(filepath.Join(workspace, "state", "audit.sqlite")).Events("")
	require.NoError(t, err)
	counts := make(map[string]int, len(events))
	for _, ev := range events {
		counts[ev.Type]++
	}
	return counts
}

// RequireAuditEvents fails the test unless each type was logged at least once.
func RequireAuditEvents(t *testing.T, workspace string, types ...string) {
	t.Helper()
	counts := AuditEvents(t, workspace)
	for _, typ := range types {
		require.Positive(t, counts[typ], "audit event %s missing from %v", typ, counts)
	}
}
