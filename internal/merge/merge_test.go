package merge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunLaterFilesWin(t *testing.T) {
	dir := t.TempDir()
	a := writeJSON(t, dir, "a.json", `{"scp-001": {"pageTitle": "old"}, "scp-002": null}`)
	b := writeJSON(t, dir, "b.json", `{"scp-001": {"pageTitle": "new"}, "scp-003": null}`)
	out := filepath.Join(dir, "out.json")

	require.NoError(t, Run([]string{a, b}, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	want := `{
    "scp-001": {
        "pageTitle": "new"
    },
    "scp-002": null,
    "scp-003": null
}`
	assert.Equal(t, want, string(data))
}

func TestObjectKeepsFirstSeenOrder(t *testing.T) {
	obj := NewObject()
	require.NoError(t, obj.Add([]byte(`{"b": 1, "a": 2}`)))
	require.NoError(t, obj.Add([]byte(`{"c": 3, "b": 4}`)))

	data, err := obj.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"b\": 4,\n    \"a\": 2,\n    \"c\": 3\n}", string(data))
	assert.Equal(t, 3, obj.Len())
}

func TestObjectKeepsRawValues(t *testing.T) {
	obj := NewObject()
	require.NoError(t, obj.Add([]byte(`{"n": 1.50, "s": "<b>&amp;</b>"}`)))

	data, err := obj.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"n\": 1.50,\n    \"s\": \"<b>&amp;</b>\"\n}", string(data))
}

func TestEmptyInputs(t *testing.T) {
	obj := NewObject()
	require.NoError(t, obj.Add([]byte(`{}`)))
	require.NoError(t, obj.Add([]byte(" {} \n")))

	data, err := obj.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestAddRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"malformed", `{"a": `},
		{"array", `[1, 2]`},
		{"string", `"x"`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, NewObject().Add([]byte(tt.input)))
		})
	}

	assert.ErrorIs(t, NewObject().Add([]byte(`[]`)), ErrNotObject)
}

func TestRunWritesNothingOnError(t *testing.T) {
	dir := t.TempDir()
	a := writeJSON(t, dir, "a.json", `{"a": 1}`)
	bad := writeJSON(t, dir, "bad.json", `not json`)
	out := filepath.Join(dir, "out.json")

	err := Run([]string{a, bad}, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.json")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))

	err = Run([]string{a, filepath.Join(dir, "missing.json")}, out)
	require.Error(t, err)
	_, statErr = os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}
