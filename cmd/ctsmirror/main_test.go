package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctsmirror/internal/config"
	"ctsmirror/internal/talent"
	"ctsmirror/internal/talent/talenttest"
)

type harness struct {
	t       *testing.T
	dir     string
	cfgPath string
	remote  *talenttest.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.App.DataDir = dir
	cfg.Project.ID = "p1"
	cfg.Batch.PollInterval = time.Millisecond
	cfg.Batch.MaxPollWait = 5 * time.Second
	cfgPath := filepath.Join(dir, "config.yml")
	require.NoError(t, config.SaveAtomic(cfgPath, cfg))

	return &harness{t: t, dir: dir, cfgPath: cfgPath, remote: talenttest.New()}
}

// run executes one command line and returns stdout, stderr and the exit code.
func (h *harness) run(args ...string) (string, string, int) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	e := env{
		stdout: &stdout,
		stderr: &stderr,
		newRemote: func(context.Context, config.Config) (talent.Service, error) {
			return h.remote, nil
		},
	}
	code := Execute(context.Background(), e, append([]string{"--config", h.cfgPath}, args...)...)
	return stdout.String(), stderr.String(), code
}

func (h *harness) file(name, content string) string {
	h.t.Helper()
	p := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func lines(s string) []map[string]any {
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(s), "\n") {
		if l == "" {
			continue
		}
		var m map[string]any
		if json.Unmarshal([]byte(l), &m) == nil {
			out = append(out, m)
		}
	}
	return out
}

func TestTenantLifecycle(t *testing.T) {
	h := newHarness(t)

	out, errOut, code := h.run("tenant", "create", "t1")
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, `"external_id":"t1"`)

	_, errOut, code = h.run("tenant", "create", "t1")
	assert.Equal(t, exitValidation, code)
	assert.Contains(t, errOut, "already mirrored")

	out, errOut, code = h.run("tenant", "get", "--ids", "t1,ghost")
	assert.Equal(t, exitNotFound, code)
	assert.Contains(t, out, `"external_id":"t1"`)
	assert.Contains(t, errOut, "ghost")

	out, _, code = h.run("tenant", "get", "--all")
	require.Equal(t, exitOK, code)
	assert.Len(t, lines(out), 1)

	_, errOut, code = h.run("tenant", "delete", "t1")
	require.Equal(t, exitOK, code, errOut)
	assert.Equal(t, 1, h.remote.Calls("DeleteTenant"))

	out, _, code = h.run("tenant", "get", "--all")
	require.Equal(t, exitOK, code)
	assert.Empty(t, strings.TrimSpace(out))
}

func TestGetRequiresIdsOrAll(t *testing.T) {
	h := newHarness(t)
	_, _, code := h.run("tenant", "get")
	assert.NotEqual(t, exitOK, code)

	_, _, code = h.run("tenant", "get", "--ids", "a", "--all")
	assert.NotEqual(t, exitOK, code)
}

func TestCompanyAndJobsUnderTenant(t *testing.T) {
	h := newHarness(t)

	_, errOut, code := h.run("tenant", "create", "t1")
	require.Equal(t, exitOK, code, errOut)

	companies := h.file("companies.json", `{"external_id":"acme","display_name":"Acme"}
{"external_id":"globex","display_name":"Globex","website_uri":"https://globex.example"}`)
	out, errOut, code := h.run("--tenant", "t1", "company", "create", "--file", companies)
	require.Equal(t, exitOK, code, errOut)
	assert.Len(t, lines(out), 2)

	jobs := h.file("jobs.jsonl", strings.Join([]string{
		`{"requisition_id":"R1","title":"Engineer","description":"<p>Build</p>","company":"acme","language_code":"en"}`,
		`{"requisition_id":"R2","title":"Engineer","description":"<p>Build</p>","company":"acme","language_code":"en"}`,
		`not json`,
	}, "\n")+"\n")
	out, errOut, code = h.run("--tenant", "t1", "job", "create", "--file", jobs)
	assert.Equal(t, exitPartial, code, errOut)
	rep := lines(out)
	require.Len(t, rep, 1)
	counts := rep[0]["counts"].(map[string]any)
	assert.Equal(t, float64(2), counts["success"])
	assert.Equal(t, float64(1), counts["parse_failed"])

	out, errOut, code = h.run("--tenant", "t1", "job", "get", "--company", "acme", "--ids", "R1,R3")
	assert.Equal(t, exitNotFound, code)
	assert.Contains(t, out, `"external_id":"R1"`)
	assert.Contains(t, errOut, "R3/en")

	_, errOut, code = h.run("--tenant", "t1", "job", "delete", "--company", "acme", "R1")
	require.Equal(t, exitOK, code, errOut)

	out, _, code = h.run("--tenant", "t1", "job", "get", "--company", "acme", "--all")
	require.Equal(t, exitOK, code)
	assert.Len(t, lines(out), 1)

	// companies are scoped by tenant
	out, _, code = h.run("company", "get", "--all")
	require.Equal(t, exitOK, code)
	assert.Empty(t, strings.TrimSpace(out))
}

func TestSingleJobCreate(t *testing.T) {
	h := newHarness(t)
	companies := h.file("c.json", `{"external_id":"acme","display_name":"Acme"}`)
	_, errOut, code := h.run("company", "create", "--file", companies)
	require.Equal(t, exitOK, code, errOut)

	out, errOut, code := h.run("job", "create", "--json",
		`{"requisition_id":"R9","title":"Engineer","description":"<p>Build</p>","company":"acme","language_code":"en"}`)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, `"requisition_id":"R9"`)

	_, _, code = h.run("job", "create", "--json", `{"requisition_id":"R9"}`)
	assert.Equal(t, exitValidation, code)
}

func TestSyncPrunesMissing(t *testing.T) {
	h := newHarness(t)
	_, errOut, code := h.run("tenant", "create", "t1")
	require.Equal(t, exitOK, code, errOut)

	// remove it behind the mirror's back
	require.NoError(t, h.remote.DeleteTenant(context.Background(), "projects/p1/tenants/1"))

	out, errOut, code := h.run("sync")
	require.Equal(t, exitOK, code, errOut)
	rep := lines(out)[0]
	assert.Equal(t, float64(1), rep["checked"])
	assert.Equal(t, float64(0), rep["pruned"])

	out, errOut, code = h.run("sync", "--prune")
	require.Equal(t, exitOK, code, errOut)
	assert.Equal(t, float64(1), lines(out)[0]["pruned"])

	out, _, _ = h.run("tenant", "get", "--all")
	assert.Empty(t, strings.TrimSpace(out))
}

func TestConfigCommands(t *testing.T) {
	h := newHarness(t)

	out, _, code := h.run("config", "path")
	require.Equal(t, exitOK, code)
	assert.Equal(t, h.cfgPath, strings.TrimSpace(out))

	out, _, code = h.run("config", "validate")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, `"errors"`)

	_, _, code = h.run("--project", "bad/project", "config", "validate")
	assert.Equal(t, exitValidation, code)
}

func TestExitCodeClassification(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitPartial, exitCode(withCode(exitPartial, assert.AnError)))
	assert.Equal(t, exitRemote, exitCode(&talent.RemoteCallError{Op: "get", Code: 500}))
	assert.Equal(t, exitFailure, exitCode(assert.AnError))
}
