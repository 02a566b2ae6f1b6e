package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "debug", "json")
	log.WithFields(logrus.Fields{"patient": "p1", "group": "mass"}).Debug("group_done")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "group_done", entry["msg"])
	assert.Equal(t, "p1", entry["patient"])
	assert.Equal(t, "debug", entry["level"])
}

func TestLevelFallback(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, logrus.InfoLevel, NewWithOutput(&bytes.Buffer{}, "nonsense", "json").GetLevel())

	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, logrus.WarnLevel, NewWithOutput(&bytes.Buffer{}, "", "text").GetLevel())
}
