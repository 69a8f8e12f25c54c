package config

import (
	"os"
	"testing"
)

func TestStorageRootPrecedence(t *testing.T) {
	t.Setenv("TAP_HOME", "/tmp/tap-home")
	t.Setenv("TAP_ROOT", "/tmp/tap-root")
	t.Setenv("TAP_TEST_DIR", "/tmp/tap-test")

	root, err := StorageRoot(ModeProduction)
	if err != nil {
		t.Fatal(err)
	}
	if root != "/tmp/tap-home" {
		t.Fatalf("expected TAP_HOME to win, got %q", root)
	}
}

func TestStorageRootFallsBackToRoot(t *testing.T) {
	os.Unsetenv("TAP_HOME")
	t.Setenv("TAP_ROOT", "/tmp/tap-root")
	t.Setenv("TAP_TEST_DIR", "/tmp/tap-test")

	root, err := StorageRoot(ModeProduction)
	if err != nil {
		t.Fatal(err)
	}
	if root != "/tmp/tap-root" {
		t.Fatalf("expected TAP_ROOT, got %q", root)
	}
}

func TestStorageRootTestModeRequiresTestDir(t *testing.T) {
	os.Unsetenv("TAP_HOME")
	os.Unsetenv("TAP_ROOT")
	os.Unsetenv("TAP_TEST_DIR")

	if _, err := StorageRoot(ModeTest); err == nil {
		t.Fatal("expected error when TAP_TEST_DIR is unset in test mode")
	}
}
