package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// WriteGroups persists the current group registry back to group.json in
// configDir, pretty-printed with stable (sorted) key order so repeated
// load→serialise→load round-trips produce byte-identical output. This is
// the only config mutation the core performs directly — it is used by the
// group-manager access-key lifecycle operations (set / rotate / delete a
// key) exposed to the front-end collaborator.
func WriteGroups(configDir string, groups map[string]GroupConfig) error {
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, id := range ids {
		g := groups[id]
		entry, err := json.MarshalIndent(g, "  ", "  ")
		if err != nil {
			return fmt.Errorf("marshal group %q: %w", id, err)
		}
		key, err := json.Marshal(id)
		if err != nil {
			return fmt.Errorf("marshal group id %q: %w", id, err)
		}
		buf.WriteString("  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(entry)
		if i < len(ids)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")

	path := filepath.Join(configDir, groupConfigFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
