package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"
)

// TestHostAgainstRealPeers is an end-to-end test of the mcphost binary. It:
//  1. Compiles mcphost and the echo-params test server
//  2. Drives the bundled task peer through call, read and capabilities
//  3. Drives the test server to check argument passing and retries
//  4. Runs serve and exercises the REST API over HTTP
func TestHostAgainstRealPeers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}

	root := projectRoot(t)
	binDir := t.TempDir()
	hostBin := filepath.Join(binDir, "mcphost")
	build := exec.Command("go", "build", "-o", hostBin, ".")
	build.Dir = root
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("build mcphost: %v\n%s", err, out)
	}
	testServerBin := filepath.Join(binDir, "echo-params-server")
	buildServer := exec.Command("go", "build", "-o", testServerBin, "./testserver")
	buildServer.Dir = filepath.Join(root, "e2e")
	if out, err := buildServer.CombinedOutput(); err != nil {
		t.Fatalf("build test server: %v\n%s", err, out)
	}

	// runHost executes mcphost from an empty directory so no config file is
	// picked up, and returns stdout.
	runHost := func(t *testing.T, env []string, args ...string) (string, error) {
		t.Helper()
		cmd := exec.Command(hostBin, args...)
		cmd.Dir = t.TempDir()
		cmd.Env = append(os.Environ(), "MCPHOST_RETRY_DELAY=10ms", "MCPHOST_CONNECT_DELAY=10ms")
		cmd.Env = append(cmd.Env, env...)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		err := cmd.Run()
		if err != nil {
			err = fmt.Errorf("%w\nstderr:\n%s", err, stderr.String())
		}
		return strings.TrimSpace(stdout.String()), err
	}

	t.Run("bundled_peer_list_tasks", func(t *testing.T) {
		out, err := runHost(t, nil, "call", "list_tasks", "--args", `{"status":"pending"}`)
		if err != nil {
			t.Fatalf("call list_tasks: %v", err)
		}
		var result struct {
			Count  int    `json:"count"`
			Filter string `json:"filter"`
		}
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatalf("parse list_tasks output: %v\nraw output: %q", err, out)
		}
		if result.Count != 3 || result.Filter != "pending" {
			t.Errorf("list_tasks = %+v, want 3 pending", result)
		}
	})

	t.Run("bundled_peer_read_statistics", func(t *testing.T) {
		out, err := runHost(t, nil, "read", "tasks://statistics")
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !strings.Contains(out, `"total": 5`) {
			t.Errorf("statistics = %s, want 5 seeded tasks", out)
		}
	})

	t.Run("bundled_peer_capabilities_yaml", func(t *testing.T) {
		out, err := runHost(t, nil, "capabilities", "--output", "yaml", "--include-tools", "get_task")
		if err != nil {
			t.Fatalf("capabilities: %v", err)
		}
		if !strings.Contains(out, "name: get_task") || strings.Contains(out, "name: create_task") {
			t.Errorf("capabilities output:\n%s", out)
		}
		if !strings.Contains(out, "uriTemplate: task://{task_id}") {
			t.Errorf("capabilities output missing template:\n%s", out)
		}
	})

	t.Run("unknown_tool_suggestion", func(t *testing.T) {
		_, err := runHost(t, nil, "call", "list_task")
		if err == nil {
			t.Fatal("call of unknown tool succeeded")
		}
		if !strings.Contains(err.Error(), `did you mean "list_tasks"?`) {
			t.Errorf("error = %v, want a suggestion", err)
		}
	})

	t.Run("echo_params_passes_arguments", func(t *testing.T) {
		out, err := runHost(t, nil, "--server", testServerBin, "call", "echo_params", "--args", `{"query":"test","title":"hello"}`)
		if err != nil {
			t.Fatalf("call echo_params: %v", err)
		}
		var params map[string]any
		if err := json.Unmarshal([]byte(out), &params); err != nil {
			t.Fatalf("parse server response as JSON: %v\nraw output: %q", err, out)
		}
		if params["query"] != "test" || params["title"] != "hello" {
			t.Errorf("params = %v, want query=test title=hello", params)
		}
	})

	t.Run("set_and_presets_merge", func(t *testing.T) {
		cfgPath := filepath.Join(t.TempDir(), "mcphost.yaml")
		cfg := "presets:\n  global:\n    title: preset\n  tools:\n    echo_params:\n      query: preset\n"
		if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
			t.Fatal(err)
		}
		out, err := runHost(t, nil, "--config", cfgPath, "--server", testServerBin,
			"call", "echo_params", "--args", `{"title":"from args"}`, "--set", "query=from set")
		if err != nil {
			t.Fatalf("call echo_params: %v", err)
		}
		var params map[string]any
		if err := json.Unmarshal([]byte(out), &params); err != nil {
			t.Fatalf("parse server response as JSON: %v\nraw output: %q", err, out)
		}
		if params["query"] != "from set" || params["title"] != "from args" {
			t.Errorf("params = %v, want query from --set and title from --args", params)
		}
	})

	t.Run("flaky_tool_is_retried", func(t *testing.T) {
		out, err := runHost(t, nil, "--server", testServerBin, "--env", "FLAKY_FAILURES=2", "call", "flaky")
		if err != nil {
			t.Fatalf("call flaky: %v", err)
		}
		if out != "succeeded on call 3" {
			t.Errorf("output = %q, want %q", out, "succeeded on call 3")
		}
	})

	t.Run("flaky_tool_exhausts_attempts", func(t *testing.T) {
		_, err := runHost(t, nil, "--server", testServerBin, "--env", "FLAKY_FAILURES=5", "call", "flaky")
		if err == nil {
			t.Fatal("call flaky succeeded, want exhausted attempts")
		}
		if !strings.Contains(err.Error(), "transient failure 3") {
			t.Errorf("error = %v, want the last failure message", err)
		}
	})

	t.Run("rejected_tool_not_retried", func(t *testing.T) {
		out, err := runHost(t, nil, "--server", testServerBin, "call", "reject")
		if err == nil || !strings.Contains(err.Error(), "rejected: nothing to do") {
			t.Errorf("error = %v, want the isError text", err)
		}
		if out != "" {
			t.Errorf("stdout = %q, want nothing for a rejected call", out)
		}
		if err != nil && strings.Contains(err.Error(), "call attempt failed") {
			t.Errorf("rejected call was retried:\n%v", err)
		}
	})

	t.Run("serve_rest_api", func(t *testing.T) {
		addr := freeAddr(t)
		cmd := exec.Command(hostBin, "serve", "--addr", addr)
		cmd.Dir = t.TempDir()
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Start(); err != nil {
			t.Fatalf("start serve: %v", err)
		}
		defer func() {
			_ = cmd.Process.Signal(syscall.SIGTERM)
			done := make(chan error, 1)
			go func() { done <- cmd.Wait() }()
			select {
			case err := <-done:
				if err != nil {
					t.Errorf("serve exited with %v\nstderr:\n%s", err, stderr.String())
				}
			case <-time.After(15 * time.Second):
				_ = cmd.Process.Kill()
				t.Error("serve did not shut down after SIGTERM")
			}
		}()

		base := "http://" + addr
		waitHealthy(t, base+"/health")

		resp, err := http.Post(base+"/api/tasks", "application/json",
			strings.NewReader(`{"title":"E2E","description":"created over HTTP","priority":"low"}`))
		if err != nil {
			t.Fatalf("POST /api/tasks: %v", err)
		}
		var task struct {
			ID       string `json:"id"`
			Priority string `json:"priority"`
		}
		decodeBody(t, resp, http.StatusCreated, &task)
		if task.ID == "" || task.Priority != "low" {
			t.Fatalf("created task = %+v", task)
		}

		resp, err = http.Get(base + "/api/tasks/" + task.ID)
		if err != nil {
			t.Fatalf("GET task: %v", err)
		}
		decodeBody(t, resp, http.StatusOK, &task)

		resp, err = http.Get(base + "/api/tasks/does-not-exist")
		if err != nil {
			t.Fatalf("GET missing task: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("missing task status = %d, want %d", resp.StatusCode, http.StatusNotFound)
		}

		resp, err = http.Post(base+"/api/tasks", "text/plain", strings.NewReader("title=x"))
		if err != nil {
			t.Fatalf("POST text/plain: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnsupportedMediaType {
			t.Errorf("text/plain status = %d, want %d", resp.StatusCode, http.StatusUnsupportedMediaType)
		}
	})
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func waitHealthy(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("%s did not become healthy", url)
}

func decodeBody(t *testing.T, resp *http.Response, wantStatus int, v any) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s status = %d, want %d: %s", resp.Request.URL.Path, resp.StatusCode, wantStatus, body)
	}
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("parse body: %v\n%s", err, body)
	}
}

func projectRoot(t *testing.T) string {
	t.Helper()
	// Walk up from this test file to find go.mod
	dir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}
