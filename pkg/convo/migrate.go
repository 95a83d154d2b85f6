package convo

import (
	"encoding/json"
	"fmt"
)

// MigrateRaw upgrades a raw persisted table to the structured format.
//
// Each entry is either an array of messages (current format, kept as-is) or
// a bare JSON string (legacy format, where the whole value was the session's
// system prompt). Legacy entries become a single-element context holding the
// original string as the system message. The upgrade is one-directional and
// idempotent: running it over already-structured data changes nothing.
func MigrateRaw(raw map[string]json.RawMessage) (Table, error) {
	table := make(Table, len(raw))
	for id, value := range raw {
		var messages Context
		if err := json.Unmarshal(value, &messages); err == nil {
			table[id] = messages
			continue
		}

		var legacy string
		if err := json.Unmarshal(value, &legacy); err != nil {
			return nil, fmt.Errorf("session %q: value is neither a message array nor a legacy string", id)
		}
		table[id] = Seed(legacy)
	}
	return table, nil
}

// MigrateTable re-runs the migration over an in-memory table. Useful for
// verifying idempotence; structurally a no-op on migrated data.
func MigrateTable(t Table) (Table, error) {
	raw := make(map[string]json.RawMessage, len(t))
	for id, c := range t {
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("session %q: %w", id, err)
		}
		raw[id] = data
	}
	return MigrateRaw(raw)
}
