package version

import (
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	if !strings.HasPrefix(Version, "0.1.0") {
		t.Fatalf("unexpected version %s", Version)
	}
	if Flag == "" && GitCommit == "" && Version != "0.1.0" {
		t.Fatalf("release version should carry no suffix: %s", Version)
	}
}
