package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
	assert.Equal(t, "***@***", RedactEmail("trailing@"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("WARN"))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestLogger_RedactsAndFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO, "drip")

	l.Debug("hidden")
	assert.Zero(t, buf.Len())

	l.Info("sent", "recipient_email", "jane@acme.io", "note", "cc bob@acme.io")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "drip", entry["component"])
	assert.Equal(t, "ja***@acme.io", entry["recipient_email"])
	assert.Equal(t, "cc bo***@acme.io", entry["note"])
}
