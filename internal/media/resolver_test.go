package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/scan"
)

func TestFind(t *testing.T) {
	r := DefaultResolver()

	tests := []struct {
		body    string
		want    string
		omitted bool
	}{
		{body: "IMG-20240305-WA0001.jpg (file attached)", want: "IMG-20240305-WA0001.jpg"},
		{body: "\u200ePTT-20240305-WA0002.opus (file attached)", want: "PTT-20240305-WA0002.opus"},
		{body: "look at holiday.JPEG please", want: "holiday.JPEG"},
		{body: "report.docx", want: "report.docx"},
		{body: "VOICE-20240101-WA12345.xyz", want: "VOICE-20240101-WA12345.xyz"},
		{body: "<Media omitted>", omitted: true},
		{body: "image omitted", omitted: true},
		{body: "just words"},
		{body: ""},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			ref := r.Find(tt.body)
			assert.Equal(t, tt.want, ref.FileName)
			assert.Equal(t, tt.want != "", ref.Found())
			assert.Equal(t, tt.omitted, ref.Omitted)
		})
	}
}

func TestNames(t *testing.T) {
	r := DefaultResolver()
	names := r.Names([]string{
		"AUD-20240305-WA0001.opus (file attached)",
		"hello",
		"AUD-20240305-WA0001.opus (file attached)",
		"scan.pdf",
	})
	assert.Len(t, names, 2)
	assert.Contains(t, names, "AUD-20240305-WA0001.opus")
	assert.Contains(t, names, "scan.pdf")
}

func TestKindOf(t *testing.T) {
	r := DefaultResolver()
	assert.Equal(t, KindImage, r.KindOf("a.PNG"))
	assert.Equal(t, KindAudio, r.KindOf("PTT-20240305-WA0002.opus"))
	assert.Equal(t, KindVideo, r.KindOf("clip.mov"))
	assert.Equal(t, KindDocument, r.KindOf("notes.pdf"))
	assert.Equal(t, KindDocument, r.KindOf("archive.zip"))
	assert.Equal(t, "audio", KindAudio.String())
}

func TestCustomConfiguration(t *testing.T) {
	r, err := NewResolver(Extensions{Audio: []string{".amr"}}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "memo.amr", r.Find("memo.amr").FileName)
	assert.False(t, r.Find("photo.jpg").Found())
	assert.False(t, r.Find("<Media omitted>").Omitted)

	_, err = NewResolver(Extensions{}, CaptureTags, nil)
	assert.Error(t, err)
}

func TestResolveThroughIndex(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "IMG-20240305-WA0001.JPG")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	idx, err := scan.BuildIndex(root)
	require.NoError(t, err)

	ref := DefaultResolver().Find("IMG-20240305-WA0001.jpg (file attached)")
	first, ok := idx.Lookup(ref.FileName)
	require.True(t, ok)
	second, ok := idx.Lookup(ref.FileName)
	require.True(t, ok)
	assert.Equal(t, first, second)

	_, ok = idx.Lookup(DefaultResolver().Find("missing.png").FileName)
	assert.False(t, ok)
}
