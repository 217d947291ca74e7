package cli

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()

	if info.Version != Version {
		t.Errorf("version wrong. expected=%q, got=%q", Version, info.Version)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("go version wrong. expected=%q, got=%q", runtime.Version(), info.GoVersion)
	}
	if info.Platform != runtime.GOOS || info.Arch != runtime.GOARCH {
		t.Errorf("platform wrong. got=%s/%s", info.Platform, info.Arch)
	}
}

func TestIsTerminalOnRegularFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "plain.txt"))
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer f.Close()

	if IsTerminal(f.Fd()) {
		t.Error("regular file reported as a terminal")
	}
}

func TestColorEnabled(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "plain.txt"))
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer f.Close()

	t.Setenv("NO_COLOR", "")
	if ColorEnabled(f) {
		t.Error("color enabled for a regular file")
	}
	if ColorEnabled(nil) {
		t.Error("color enabled for a nil file")
	}

	t.Setenv("NO_COLOR", "1")
	if ColorEnabled(os.Stderr) {
		t.Error("NO_COLOR did not disable color")
	}
}

func TestValidateArgs(t *testing.T) {
	if err := ValidateArgs([]string{"a", "b"}, 2, "lingual build <file>"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := ValidateArgs([]string{"a"}, 2, "lingual build <file>")
	if err == nil {
		t.Fatal("expected error for missing arguments")
	}
	if !strings.Contains(err.Error(), "lingual build <file>") {
		t.Errorf("error should carry the usage string. got=%q", err.Error())
	}
}
