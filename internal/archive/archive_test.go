package archive

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/crypt"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/media"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/timeline"
)

func sampleUnits(t *testing.T) ([]Unit, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	transcript := "hello from the voice note"
	return []Unit{
		{Event: timeline.Event{
			Timestamp: time.Date(2024, 3, 5, 0, 0, 0, 0, loc), Body: "Messages are end-to-end encrypted.",
			StableID: "20240305000000-0", Number: 1,
		}},
		{Event: timeline.Event{
			Timestamp: time.Date(2024, 3, 5, 9, 15, 0, 0, loc), Author: "Bob", Body: "<b>hi</b> & bye",
			StableID: "20240305091500-1", Number: 2,
		}},
		{
			Event: timeline.Event{
				Timestamp: time.Date(2024, 3, 5, 9, 16, 0, 0, loc), Author: "Alice", Body: "PTT-20240305-WA0001.opus (file attached)",
				StableID: "20240305091600-2", Number: 3, Attachment: "PTT-20240305-WA0001.opus",
			},
			Attachment: &Attachment{
				FileName: "PTT-20240305-WA0001.opus", Kind: media.KindAudio,
				Src: "media/PTT-20240305-WA0001.opus", Transcript: &transcript,
			},
		},
		{
			Event: timeline.Event{
				Timestamp: time.Date(2024, 3, 6, 0, 0, 0, 0, loc), Body: "AUD-20240306-WA0002.opus",
				StableID: "20240306000000-3", Number: 4, IsExternal: true, Author: "External Recorded Audio",
			},
			Attachment: &Attachment{
				FileName: "AUD-20240306-WA0002.opus", Kind: media.KindAudio,
				Src: "chat_media/AUD-20240306-WA0002.opus.aes", Encrypted: true,
			},
		},
	}, loc
}

func render(t *testing.T, opts Options, units []Unit) string {
	t.Helper()
	e, err := NewEmitter(opts)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, e.Render(&buf, units))
	return buf.String()
}

func TestRenderCarriesStableIdentity(t *testing.T) {
	units, loc := sampleUnits(t)
	out := render(t, Options{Title: "Family chat", Lang: "en", Location: loc}, units)

	for _, u := range units {
		assert.Contains(t, out, `data-msg-id="`+u.Event.StableID+`"`)
		assert.Contains(t, out, `id="cb-`+u.Event.StableID+`"`)
		assert.Contains(t, out, `id="note-`+u.Event.StableID+`"`)
	}
	assert.Contains(t, out, `data-original-number="4"`)
	assert.Contains(t, out, `<title>Family chat</title>`)
	assert.Contains(t, out, "&lt;b&gt;hi&lt;/b&gt; &amp; bye")
	assert.Contains(t, out, "Tuesday, March 5, 2024 09:15 (<b>14:15 UTC</b>)")
	assert.Contains(t, out, `id="transcription-pre-20240305091600-2"`)
	assert.Contains(t, out, "hello from the voice note")
	assert.Contains(t, out, `data-src-encrypted="chat_media/AUD-20240306-WA0002.opus.aes"`)
	assert.Contains(t, out, "msg-external")

	assert.NotContains(t, out, `name="baked-state"`)
	assert.Contains(t, out, `onclick="deleteSelected()"`)
	assert.Contains(t, out, `onclick="cyclePriority(event)"`)
	assert.Contains(t, out, `oninput="onNoteInput(this)"`)
	assert.Contains(t, out, `contenteditable="true" oninput="saveEdit(this)"`)
	assert.NotContains(t, out, "window.ENC_KEY")
}

func TestRenderIsDeterministic(t *testing.T) {
	units, loc := sampleUnits(t)
	opts := Options{Title: "t", Location: loc}
	assert.Equal(t, render(t, opts, units), render(t, opts, units))
}

func TestRenderPalette(t *testing.T) {
	units, loc := sampleUnits(t)
	out := render(t, Options{Location: loc}, units)
	// Alice sorts first and gets the blue pair, Bob the purple one
	alice := strings.Index(out, `data-msg-id="20240305091600-2"`)
	bob := strings.Index(out, `data-msg-id="20240305091500-1"`)
	require.Positive(t, alice)
	require.Positive(t, bob)
	assert.Contains(t, out[strings.LastIndex(out[:alice], "<div class=\"msg"):alice], "#e3f2fd")
	assert.Contains(t, out[strings.LastIndex(out[:bob], "<div class=\"msg"):bob], "#f3e5f5")
}

func TestRenderEmbedsKey(t *testing.T) {
	units, loc := sampleUnits(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.html")

	e, err := NewEmitter(Options{Location: loc, Key: "00112233445566778899aabbccddeeff"})
	require.NoError(t, err)
	require.NoError(t, e.WriteFile(path, units))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `window.ENC_KEY = "00112233445566778899aabbccddeeff"`)
	assert.Contains(t, string(data), "crypto.subtle")

	key, ok := crypt.KeyFromDocument(path)
	require.True(t, ok)
	assert.Equal(t, "00112233445566778899aabbccddeeff", key)
}

func TestRenderBaked(t *testing.T) {
	units, loc := sampleUnits(t)
	st := NewState()
	st.Checked["20240305091500-1"] = true
	st.Priorities["20240305091500-1"] = PriorityAmber
	st.Notes["20240305091600-2"] = "call back"
	st.Deleted["20240305000000-0"] = true
	st.Transcripts["20240305091600-2"] = "corrected transcript"

	out := render(t, Options{Lang: "fr", Location: loc, State: st}, units)

	assert.Contains(t, out, `<meta name="baked-state" content="true">`)
	assert.Contains(t, out, `id="cb-20240305091500-1" checked="checked"`)
	assert.Contains(t, out, `data-priority="amber"`)
	assert.Contains(t, out, `data-baked="true">call back</textarea>`)
	assert.Contains(t, out, "Message 1 — Supprimé")
	assert.Contains(t, out, `data-deleted="true"`)
	assert.Contains(t, out, "corrected transcript")
	assert.NotContains(t, out, "hello from the voice note")

	for _, ctl := range []string{"selectAll()", "clearAll()", "invertSel()", "deleteSelected()", "downloadHTML()", "saveCheckboxStates()", "resetCheckboxStates()"} {
		assert.NotContains(t, out, `<button onclick="`+ctl+`"`)
	}
	assert.NotContains(t, out, `onclick="cyclePriority(event)"`)
	assert.NotContains(t, out, `oninput="onNoteInput(this)"`)
	assert.NotContains(t, out, `oninput="saveEdit(this)"`)
	assert.Contains(t, out, `contenteditable="false"`)
	assert.Contains(t, out, `onclick="exportState()"`)
	// numbers survive deletion
	assert.Contains(t, out, `data-original-number="1"`)
}

func TestBakeIsIdempotent(t *testing.T) {
	units, loc := sampleUnits(t)
	fileKey := "chat.html"

	st := NewState()
	st.Priorities["20240305091500-1"] = PriorityRed
	st.Notes["20240305091600-2"] = "note"
	st.Deleted["20240306000000-3"] = true
	first := render(t, Options{Location: loc, State: st}, units)

	// export the baked state and bake it again
	store := MapStore{}
	require.NoError(t, saveState(store, fileKey, st))
	again, err := LoadState(store, fileKey)
	require.NoError(t, err)
	second := render(t, Options{Location: loc, State: again}, units)

	assert.Equal(t, first, second)
}

func TestParsePriority(t *testing.T) {
	for _, p := range Priorities {
		assert.Equal(t, p, ParsePriority(string(p)))
	}
	assert.Equal(t, PriorityNone, ParsePriority("purple"))
}

func TestLoadStateNamespacedAndLegacy(t *testing.T) {
	store := MapStore{
		"chat.html:msgPriorities":        `{"a-1":"red"}`,
		"msgPriorities":                  `{"a-1":"white","a-2":"amber"}`,
		"checkboxStates":                 `{"cb-a-1":true,"cb-a-2":false}`,
		"msgNotes":                       `{"note-a-2":"legacy note","note-a-3":"  "}`,
		"other.html:msgDeletedIds":       `["a-9"]`,
		"transcription-pre-a-1":          "legacy edit",
		"chat.html:transcription-pre-a-2": "new edit",
	}

	st, err := LoadState(store, "chat.html")
	require.NoError(t, err)

	// namespaced value wins
	assert.Equal(t, map[string]Priority{"a-1": PriorityRed}, st.Priorities)
	assert.Equal(t, map[string]bool{"a-1": true}, st.Checked)
	assert.Equal(t, map[string]string{"a-2": "legacy note"}, st.Notes)
	assert.Empty(t, st.Deleted, "other documents' state is not read")
	assert.Equal(t, map[string]string{"a-1": "legacy edit", "a-2": "new edit"}, st.Transcripts)

	// legacy keys were copied forward and kept
	assert.Equal(t, `{"cb-a-1":true,"cb-a-2":false}`, store["chat.html:checkboxStates"])
	assert.Equal(t, `{"cb-a-1":true,"cb-a-2":false}`, store["checkboxStates"])
	assert.Equal(t, "legacy edit", store["chat.html:transcription-pre-a-1"])
	assert.Equal(t, "legacy edit", store["transcription-pre-a-1"])
	assert.Equal(t, `{"a-1":"white","a-2":"amber"}`, store["msgPriorities"])
}

func TestLoadStateMalformedStore(t *testing.T) {
	store := MapStore{
		"d.html:msgNotes":      "{broken",
		"d.html:msgDeletedIds": `["x-1"]`,
	}
	st, err := LoadState(store, "d.html")
	assert.Error(t, err)
	assert.True(t, st.Deleted["x-1"])
	assert.Empty(t, st.Notes)
}

func TestReadExport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"file_key":"chat.html","items":{"chat.html:msgDeletedIds":"[\"id-1\"]"}}`), 0o644))

	exp, err := ReadExport(path)
	require.NoError(t, err)
	st, err := exp.State(filepath.Join(dir, "renamed.html"))
	require.NoError(t, err)
	assert.True(t, st.Deleted["id-1"], "the dump's own key wins")

	// without a key the dump is read under the target document's name
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"items":{"out.html:msgNotes":"{\"note-id-2\":\"hi\"}"}}`), 0o644))
	exp, err = ReadExport(path)
	require.NoError(t, err)
	st, err = exp.State(filepath.Join(dir, "out.html"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id-2": "hi"}, st.Notes)

	require.NoError(t, os.WriteFile(path, []byte(`{"version":9}`), 0o644))
	_, err = ReadExport(path)
	assert.Error(t, err)
}

func TestFileKeyAndRelativeSrc(t *testing.T) {
	assert.Equal(t, "chat.html", FileKey("/tmp/out/chat.html"))
	assert.Equal(t, "chat.html:msgNotes", StorageKey("chat.html", KeyNotes))
	assert.Equal(t, "default", FileKey("/"))
	assert.Equal(t, "media/a%20b.jpg", RelativeSrc("/x/chat.html", "/x/media/a b.jpg"))
	assert.Equal(t, "media/a%23b%3F.jpg", RelativeSrc("/x/chat.html", "/x/media/a#b?.jpg"))
	assert.Equal(t, "100%25/c.pdf", RelativeSrc("/x/chat.html", "/x/100%/c.pdf"))
}

func TestWriteFileIsWorldReadable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	units, loc := sampleUnits(t)
	path := filepath.Join(t.TempDir(), "chat.html")

	e, err := NewEmitter(Options{Location: loc})
	require.NoError(t, err)
	require.NoError(t, e.WriteFile(path, units))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestRenderMissingAndOmittedMedia(t *testing.T) {
	units, loc := sampleUnits(t)
	units[2].Attachment.Src = ""
	units = append(units, Unit{Event: timeline.Event{
		Timestamp: time.Date(2024, 3, 6, 9, 0, 0, 0, loc), Author: "Bob", Body: "<Media omitted>",
		StableID: "20240306090000-4", Number: 5, Omitted: true,
	}})

	out := render(t, Options{Location: loc}, units)
	assert.Contains(t, out, `<span class="attach-missing">PTT-20240305-WA0001.opus</span>`)
	assert.NotContains(t, out, `src="media/PTT-20240305-WA0001.opus"`)
	assert.Contains(t, out, "hello from the voice note", "the transcript survives a missing file")
	assert.Contains(t, out, "Media not included in the export")
}

// saveState writes st under fileKey the way the document's scripts do.
func saveState(s Store, fileKey string, st *State) error {
	checks := map[string]bool{}
	for id, on := range st.Checked {
		checks[checkboxIDPrefix+id] = on
	}
	notes := map[string]string{}
	for id, n := range st.Notes {
		notes[noteIDPrefix+id] = n
	}
	deleted := make([]string, 0, len(st.Deleted))
	for id, on := range st.Deleted {
		if on {
			deleted = append(deleted, id)
		}
	}
	sort.Strings(deleted)

	var errs []error
	put := func(key string, v any) {
		b, err := json.Marshal(v)
		if err == nil {
			err = s.Set(StorageKey(fileKey, key), string(b))
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("store %s: %w", key, err))
		}
	}
	put(KeyCheckboxes, checks)
	put(KeyPriorities, st.Priorities)
	put(KeyNotes, notes)
	put(KeyDeleted, deleted)
	for id, text := range st.Transcripts {
		if err := s.Set(StorageKey(fileKey, TranscriptKeyPrefix+id), text); err != nil {
			errs = append(errs, fmt.Errorf("store transcript %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

