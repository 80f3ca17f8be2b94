package testhelpers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// AssertJSONField decodes body and compares the value at a dotted path such as
// "pagination.total" with want. Values are compared in encoded form, so 1 and 1.0 match.
func AssertJSONField(t *testing.T, body, path string, want interface{}) {
	t.Helper()

	var cur interface{}
	if err := json.Unmarshal([]byte(body), &cur); err != nil {
		t.Fatalf("failed to parse JSON body: %v\n%s", err, body)
	}
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			t.Errorf("JSON path %q: %v is not an object", path, cur)
			return
		}
		if cur, ok = obj[key]; !ok {
			t.Errorf("JSON path %q: missing key %q", path, key)
			return
		}
	}

	wantJSON, _ := json.Marshal(want)
	gotJSON, _ := json.Marshal(cur)
	if string(wantJSON) != string(gotJSON) {
		t.Errorf("JSON path %q = %s, want %s", path, gotJSON, wantJSON)
	}
}

// WriteTestFile writes content to dir/filename and returns the full path
func WriteTestFile(t *testing.T, dir, filename, content string) string {
	t.Helper()

	path := filepath.Join(dir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test file %s: %v", path, err)
	}
	return path
}

// RunConcurrently starts n workers at once and fails the test if they have not
// all returned within timeout.
func RunConcurrently(t *testing.T, timeout time.Duration, n int, fn func(worker int)) {
	t.Helper()

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(id int) {
			defer wg.Done()
			<-start
			fn(id)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	close(start)

	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("%d workers did not finish within %v", n, timeout)
	}
}
