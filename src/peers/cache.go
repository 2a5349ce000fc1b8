package peers

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// DefaultCacheFile is the name of the cache in the data directory.
const DefaultCacheFile = "peers.json"

type cacheFile struct {
	Peers []string `json:"peers"`
}

// JSONCache is a peer-address cache backed by a JSON file.
type JSONCache struct {
	l    sync.Mutex
	path string
}

// NewJSONCache creates a cache at path. Nothing is read or written until Load
// or Write is called.
func NewJSONCache(path string) *JSONCache {
	return &JSONCache{path: path}
}

// Path returns the file backing the cache.
func (c *JSONCache) Path() string {
	return c.path
}

// Load returns the cached addresses. A missing or empty file is an empty
// cache.
func (c *JSONCache) Load() ([]string, error) {
	c.l.Lock()
	defer c.l.Unlock()

	buf, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(buf)) == 0 {
		return nil, nil
	}

	var f cacheFile
	if err := json.Unmarshal(buf, &f); err != nil {
		return nil, err
	}
	return f.Peers, nil
}

// Write replaces the cache with addrs, deduplicated and sorted. An empty list
// leaves the previous cache in place and reports false.
func (c *JSONCache) Write(addrs []string) (bool, error) {
	if len(addrs) == 0 {
		return false, nil
	}

	seen := make(map[string]bool, len(addrs))
	f := cacheFile{Peers: make([]string, 0, len(addrs))}
	for _, a := range addrs {
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		f.Peers = append(f.Peers, a)
	}
	sort.Strings(f.Peers)

	buf, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return false, err
	}

	c.l.Lock()
	defer c.l.Unlock()

	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return false, err
		}
	}

	// Write to a sibling file and rename so readers never see a partial
	// cache.
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0600); err != nil {
		return false, err
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return false, err
	}
	return true, nil
}
