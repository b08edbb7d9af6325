package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	if info.Version == "" {
		t.Error("Version should not be empty")
	}
	if info.Commit == "" {
		t.Error("Commit should not be empty")
	}
	if info.Date == "" {
		t.Error("Date should not be empty")
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if !strings.Contains(info.Platform, "/") {
		t.Errorf("Platform = %q, want os/arch format", info.Platform)
	}
}

func TestString(t *testing.T) {
	info := Info{Version: "1.2.3", Commit: "abc1234", Date: "2026-01-01T00:00:00Z"}
	s := info.String()
	for _, want := range []string{"1.2.3", "abc1234", "2026-01-01T00:00:00Z"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}

	info.Dirty = true
	if !strings.Contains(info.String(), "-dirty") {
		t.Error("String() should flag a dirty build")
	}
}

func TestShort(t *testing.T) {
	info := Info{Version: "1.2.3"}
	if info.Short() != "1.2.3" {
		t.Errorf("Short() = %q, want %q", info.Short(), "1.2.3")
	}

	info.Dirty = true
	if info.Short() != "1.2.3-dirty" {
		t.Errorf("Short() = %q, want %q", info.Short(), "1.2.3-dirty")
	}
}
