package convo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateRaw_LegacyScalarEntry(t *testing.T) {
	raw := map[string]json.RawMessage{
		"s1": json.RawMessage(`"hello"`),
	}

	table, err := MigrateRaw(raw)
	require.NoError(t, err)

	require.Len(t, table["s1"], 1)
	assert.Equal(t, Message{Role: RoleSystem, Content: "hello"}, table["s1"][0])
}

func TestMigrateRaw_StructuredEntryUnchanged(t *testing.T) {
	raw := map[string]json.RawMessage{
		"s1": json.RawMessage(`[{"role":"system","content":"p"},{"role":"user","content":"hi"}]`),
	}

	table, err := MigrateRaw(raw)
	require.NoError(t, err)

	require.Len(t, table["s1"], 2)
	assert.Equal(t, RoleUser, table["s1"][1].Role)
	assert.Equal(t, "hi", table["s1"][1].Content)
}

func TestMigrateRaw_MixedTable(t *testing.T) {
	raw := map[string]json.RawMessage{
		"legacy":     json.RawMessage(`"old prompt"`),
		"structured": json.RawMessage(`[{"role":"system","content":"new prompt"}]`),
	}

	table, err := MigrateRaw(raw)
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, "old prompt", table["legacy"][0].Content)
	assert.Equal(t, "new prompt", table["structured"][0].Content)
}

func TestMigrateRaw_RejectsUnknownShape(t *testing.T) {
	raw := map[string]json.RawMessage{
		"bad": json.RawMessage(`42`),
	}

	_, err := MigrateRaw(raw)
	assert.Error(t, err)
}

func TestMigrateTable_Idempotent(t *testing.T) {
	raw := map[string]json.RawMessage{
		"legacy": json.RawMessage(`"hello"`),
		"full": json.RawMessage(`[
			{"role":"system","content":"p"},
			{"role":"user","content":"q"},
			{"role":"assistant","content":"a"}
		]`),
	}

	once, err := MigrateRaw(raw)
	require.NoError(t, err)

	twice, err := MigrateTable(once)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}
