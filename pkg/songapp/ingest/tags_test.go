package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id3v1(title, artist string) []byte {
	field := func(s string, n int) string { return s + strings.Repeat(" ", n-len(s)) }
	tag := "TAG" + field(title, 30) + field(artist, 30) + field("", 30) + "2020" + field("", 30)
	return append([]byte(tag), 0xff)
}

func TestTaggedArtist(t *testing.T) {
	dir := t.TempDir()

	tagged := filepath.Join(dir, "tagged.mp3")
	data := append([]byte(strings.Repeat("\x00", 256)), id3v1("Title", "Tag Artist")...)
	require.NoError(t, os.WriteFile(tagged, data, 0o644))

	artist := taggedArtist(tagged)
	require.NotNil(t, artist)
	assert.Equal(t, "Tag Artist", *artist)

	plain := filepath.Join(dir, "plain.wav")
	require.NoError(t, os.WriteFile(plain, []byte("RIFF....WAVE"), 0o644))
	assert.Nil(t, taggedArtist(plain))

	assert.Nil(t, taggedArtist(filepath.Join(dir, "missing.mp3")))
}
