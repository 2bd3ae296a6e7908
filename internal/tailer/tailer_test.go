package tailer

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testConfig(follow bool) Config {
	return Config{
		Follow:         follow,
		IdleInterval:   20 * time.Millisecond,
		StaleThreshold: time.Hour,
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func collect(t *testing.T, lines <-chan string, n int) []string {
	t.Helper()
	var out []string
	timeout := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case line, ok := <-lines:
			if !ok {
				return out
			}
			out = append(out, line)
		case <-timeout:
			t.Fatalf("timed out after %d lines: %v", len(out), out)
		}
	}
	return out
}

func TestReadsWholeFileWithoutFollow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Player.log")
	writeFile(t, path, "one\ntwo\nthree\n")

	tl := New(path, testConfig(false), nil)
	defer tl.Stop()

	<-tl.Resets()
	got := collect(t, tl.Lines(), 3)
	if got[0] != "one" || got[2] != "three" {
		t.Errorf("lines = %v", got)
	}

	// Non-follow mode finishes after one pass.
	select {
	case _, ok := <-tl.Lines():
		if ok {
			t.Error("unexpected extra line")
		}
	case <-time.After(5 * time.Second):
		t.Error("lines channel not closed")
	}
}

func TestFollowPicksUpAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Player.log")
	writeFile(t, path, "first\n")

	tl := New(path, testConfig(true), nil)
	defer tl.Stop()

	<-tl.Resets()
	collect(t, tl.Lines(), 1)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("second\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got := collect(t, tl.Lines(), 1)
	if got[0] != "second" {
		t.Errorf("appended line = %q", got[0])
	}
}

func TestShrinkRestartsFromBeginning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Player.log")
	writeFile(t, path, "old line one\nold line two\n")

	tl := New(path, testConfig(true), nil)
	defer tl.Stop()

	<-tl.Resets()
	collect(t, tl.Lines(), 2)

	// Let the size check observe the full file before shrinking it.
	time.Sleep(100 * time.Millisecond)

	// Replace with a shorter file, as the client does on restart.
	writeFile(t, path, "fresh\n")

	// A new pass starts from offset zero and signals a reset first.
	select {
	case <-tl.Resets():
	case <-time.After(5 * time.Second):
		t.Fatal("no reset after shrink")
	}
	got := collect(t, tl.Lines(), 1)
	if got[0] != "fresh" {
		t.Errorf("line after shrink = %q", got[0])
	}
}

func TestNonFollowMissingFileFails(t *testing.T) {
	tl := New(filepath.Join(t.TempDir(), "absent.log"), testConfig(false), nil)
	defer tl.Stop()

	for range tl.Lines() {
	}
	if tl.Err() == nil {
		t.Error("Err() = nil for a missing file")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Player.log")
	writeFile(t, path, "x\n")

	tl := New(path, testConfig(true), nil)
	tl.Stop()
	tl.Stop()
}
