package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/remiblancher/hybridkey/internal/audit"
)

// cheapConfig keeps Argon2id fast enough for tests.
const cheapConfig = `kdf:
  time: 1
  memory_kb: 64
  threads: 1
`

// executeCommand executes a Cobra command with the given args and returns output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err = root.Execute()
	_ = audit.Close()
	return buf.String(), err
}

// resetFlags restores every flag of cmd and its children to its default
// and clears the changed markers cobra uses for required flag checks.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// testContext holds test resources.
type testContext struct {
	t       *testing.T
	tempDir string
	config  string
}

// newTestContext creates a test context with a temp directory and a config
// file using cheap KDF parameters.
func newTestContext(t *testing.T) *testContext {
	t.Helper()
	t.Setenv("HKEY_AUDIT_LOG", "")
	resetFlags(rootCmd)
	rootCmd.SetIn(strings.NewReader(""))

	tc := &testContext{t: t, tempDir: t.TempDir()}
	tc.config = tc.writeFile("hkey.yaml", cheapConfig)
	return tc
}

// path returns a path within the temp directory.
func (tc *testContext) path(name string) string {
	return filepath.Join(tc.tempDir, name)
}

// writeFile writes content to a file in the temp directory.
func (tc *testContext) writeFile(name, content string) string {
	tc.t.Helper()
	path := tc.path(name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		tc.t.Fatalf("Failed to write file %s: %v", name, err)
	}
	return path
}

// readFile returns the content of a file in the temp directory.
func (tc *testContext) readFile(path string) []byte {
	tc.t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		tc.t.Fatalf("Failed to read %s: %v", path, err)
	}
	return data
}

// run executes hkey with the test configuration.
func (tc *testContext) run(args ...string) (string, error) {
	resetFlags(rootCmd)
	return executeCommand(rootCmd, append([]string{"--config", tc.config}, args...)...)
}

// mustRun executes hkey and fails the test on error.
func (tc *testContext) mustRun(args ...string) string {
	tc.t.Helper()
	out, err := tc.run(args...)
	if err != nil {
		tc.t.Fatalf("hkey %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

// genKey creates a master key file and returns its path.
func (tc *testContext) genKey(name string, extra ...string) string {
	tc.t.Helper()
	path := tc.path(name)
	tc.mustRun(append([]string{"gen", "--out", path}, extra...)...)
	return path
}

// fingerprintOf returns the fingerprint printed for a key file.
func (tc *testContext) fingerprintOf(args ...string) string {
	tc.t.Helper()
	return strings.TrimSpace(tc.mustRun(append([]string{"fingerprint"}, args...)...))
}

// readAuditEvents parses every event of an audit log.
func readAuditEvents(t *testing.T, path string) []audit.Event {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}
	var events []audit.Event
	for _, line := range bytes.Split(bytes.TrimSpace(data), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var e audit.Event
		if err := json.Unmarshal(line, &e); err != nil {
			t.Fatalf("Failed to parse audit event: %v", err)
		}
		events = append(events, e)
	}
	return events
}

func eventTypes(events []audit.Event) []audit.EventType {
	types := make([]audit.EventType, len(events))
	for i, e := range events {
		types[i] = e.EventType
	}
	return types
}

func assertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("output does not contain %q:\n%s", substr, s)
	}
}
