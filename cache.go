package ddns

import (
	"fmt"
	"os"
	"strings"
	"sync"

	retry "github.com/avast/retry-go/v4"
)

// FileCache returns a Cache backed by a single plain-text file at path.
// A missing file means no address has been recorded yet.
func FileCache(path string) Cache {
	return &fileCache{path: path}
}

type fileCache struct {
	path string
}

func (fc *fileCache) Last() (string, error) {
	b, err := os.ReadFile(fc.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading %s: %w", fc.path, err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (fc *fileCache) Store(ip string) error {
	err := retry.Do(
		func() error { return fc.write(ip) },
		retry.Attempts(3),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("error writing %s: %w", fc.path, err)
	}
	return nil
}

// write replaces the cache file in a single rename so a kill mid-write
// never leaves a truncated value behind.
func (fc *fileCache) write(ip string) error {
	tmp := fc.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(ip+"\n"), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, fc.path)
}

type memoryCache struct {
	mu sync.Mutex
	ip string
}

func (mc *memoryCache) Last() (string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.ip, nil
}

func (mc *memoryCache) Store(ip string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.ip = ip
	return nil
}
