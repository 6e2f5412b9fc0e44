package mmio_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// goEnv returns `go env key`, or "" if the go command is unavailable.
func goEnv(t *testing.T, goTool, key string) string {
	t.Helper()
	out, err := exec.Command(goTool, "env", key).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// TestStartup_RegistersDuringDlopen builds examples/uart as a shared
// library and loads it from a C host, which checks that every plugin was
// registered before dlopen returned and that my_plugin answers through
// the registered table.
func TestStartup_RegistersDuringDlopen(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a c-shared library")
	}
	if runtime.GOOS != "linux" {
		t.Skipf("dlopen host is linux-only, running on %s", runtime.GOOS)
	}

	goTool := filepath.Join(runtime.GOROOT(), "bin", "go")
	if _, err := os.Stat(goTool); err != nil {
		var lookErr error
		if goTool, lookErr = exec.LookPath("go"); lookErr != nil {
			t.Skip("go command not found")
		}
	}
	if goEnv(t, goTool, "CGO_ENABLED") != "1" {
		t.Skip("cgo is disabled")
	}
	cc := strings.Fields(goEnv(t, goTool, "CC"))
	if len(cc) == 0 {
		cc = []string{"cc"}
	}
	if _, err := exec.LookPath(cc[0]); err != nil {
		t.Skipf("C compiler %q not found", cc[0])
	}

	dir := t.TempDir()
	lib := filepath.Join(dir, "libuart.so")
	host := filepath.Join(dir, "host")

	build := exec.Command(goTool, "build", "-buildmode=c-shared", "-o", lib, "./examples/uart")
	out, err := build.CombinedOutput()
	require.NoError(t, err, "building plugin library:\n%s", out)

	args := append(cc[1:], "-o", host, filepath.Join("testdata", "cshared_host.c"), "-rdynamic", "-ldl")
	out, err = exec.Command(cc[0], args...).CombinedOutput()
	require.NoError(t, err, "building host:\n%s", out)

	run := exec.Command(host, lib)
	run.Env = append(os.Environ(), "MMIO_LOG_LEVEL=error", "MMIO_CONFIG=", "MMIO_METRICS_ADDR=")
	var stderr strings.Builder
	run.Stderr = &stderr
	stdout, err := run.Output()
	require.NoError(t, err, "host failed:\nstdout:\n%s\nstderr:\n%s", stdout, stderr.String())

	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	assert.Equal(t, []string{
		"register my_plugin during_dlopen=1",
		"register ram during_dlopen=1",
		"register uart during_dlopen=1",
		"registered 3",
		"load ok=1 2a 00 00 00",
		"store ok=1",
		"reload ok=1 2a 00 00 00",
		"empty ok=1",
		"dealloc done",
	}, lines, "stderr:\n%s", stderr.String())
}
