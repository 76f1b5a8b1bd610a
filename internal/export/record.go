package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// recordName is the cache sidecar written into the export root.
const recordName = ".assetpack_export_cache.json"

// record is the on-disk run record: the program version that produced
// it plus the names of every operation considered done.
type record struct {
	Version   string   `json:"version"`
	Cacheable []string `json:"cacheable"`
}

// readRecord loads the prior run record. The sidecar is an optional
// foreign file: absent, unparsable or produced by a different version,
// it is treated as empty rather than as an error.
func readRecord(root, version string) map[string]bool {
	done := make(map[string]bool)
	raw, err := os.ReadFile(filepath.Join(root, recordName))
	if err != nil {
		return done
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return done
	}
	if rec.Version != version {
		return done
	}
	for _, name := range rec.Cacheable {
		done[name] = true
	}
	return done
}

// writeRecord commits the sorted set of done operation names.
func writeRecord(root, version string, names []string) error {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	raw, err := json.Marshal(record{Version: version, Cacheable: sorted})
	if err != nil {
		return fmt.Errorf("export: marshal cache record: %w", err)
	}
	path := filepath.Join(root, recordName)
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("export: write cache record %s: %w", path, err)
	}
	return nil
}
