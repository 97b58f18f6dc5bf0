package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var out bytes.Buffer
	log := &Logger{Info, "test", &out, DefaultLogger.mu}

	log.Debug("hidden")
	assert.Equal(t, 0, out.Len())

	log.Info("visible %d", 42)
	assert.Contains(t, out.String(), "visible 42")
	assert.Contains(t, out.String(), "I/test")
}

func TestNewlineAppended(t *testing.T) {
	var out bytes.Buffer
	log := &Logger{Debug, "nl", &out, DefaultLogger.mu}

	log.Warn("no newline")
	assert.True(t, strings.HasSuffix(out.String(), "\n"))

	out.Reset()
	log.Warn("has newline\n")
	assert.False(t, strings.HasSuffix(out.String(), "\n\n"))
}

func TestParseLevel(t *testing.T) {
	for s, want := range map[string]Level{
		"error": Error,
		"W":     Warn,
		"info":  Info,
		"d":     Debug,
		"trace": MaxLevel,
		"5":     Level(5),
	} {
		level, err := parseLevel(s)
		assert.NoError(t, err)
		assert.Equal(t, want, level, "level %q", s)
	}

	_, err := parseLevel("chatty")
	assert.Error(t, err)
	_, err = parseLevel("11")
	assert.Error(t, err)
}

func TestWithTag(t *testing.T) {
	tagLevels["noisy"] = Debug
	defer delete(tagLevels, "noisy")

	base := &Logger{Info, "", DefaultLogger.out, DefaultLogger.mu}
	assert.Equal(t, Debug, base.WithTag("noisy").Level)
	assert.Equal(t, Info, base.WithTag("quiet").Level)
}
