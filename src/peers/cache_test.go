package peers

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestJSONCache(t *testing.T) {
	dir := t.TempDir()
	cache := NewJSONCache(filepath.Join(dir, "sub", DefaultCacheFile))

	// Nothing cached yet
	addrs, err := cache.Load()
	if err != nil {
		t.Fatalf("missing cache should not be an error: %v", err)
	}
	if len(addrs) != 0 {
		t.Fatalf("missing cache should be empty, got %v", addrs)
	}

	written, err := cache.Write([]string{"/ip4/10.0.0.3/tcp/9000", "/ip4/10.0.0.2/tcp/9000", "/ip4/10.0.0.3/tcp/9000"})
	if err != nil {
		t.Fatal(err)
	}
	if !written {
		t.Fatalf("non-empty list should be written")
	}

	addrs, err = cache.Load()
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"/ip4/10.0.0.2/tcp/9000", "/ip4/10.0.0.3/tcp/9000"}
	if !reflect.DeepEqual(addrs, expected) {
		t.Fatalf("addresses should be %v, not %v", expected, addrs)
	}

	// An empty snapshot keeps the previous cache
	written, err = cache.Write(nil)
	if err != nil || written {
		t.Fatalf("empty list should not be written")
	}
	if addrs, _ = cache.Load(); len(addrs) != 2 {
		t.Fatalf("previous cache should survive, got %v", addrs)
	}
}

func TestJSONCacheCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultCacheFile)
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewJSONCache(path).Load(); err == nil {
		t.Fatalf("corrupt cache should fail to load")
	}
}
