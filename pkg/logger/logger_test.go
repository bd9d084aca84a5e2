package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSpecificLevelWriter_OnlyWritesConfiguredLevels(t *testing.T) {
	var buf bytes.Buffer
	w := SpecificLevelWriter{Writer: &buf, Levels: []zerolog.Level{zerolog.ErrorLevel}}

	n, err := w.WriteLevel(zerolog.InfoLevel, []byte("info line"))
	assert.NoError(t, err)
	assert.Equal(t, len("info line"), n)
	assert.Empty(t, buf.String())

	_, err = w.WriteLevel(zerolog.ErrorLevel, []byte("error line"))
	assert.NoError(t, err)
	assert.Equal(t, "error line", buf.String())
}

func TestNop_DiscardsEverything(t *testing.T) {
	l := Nop()
	assert.Equal(t, zerolog.Disabled, l.GetLevel())
}
