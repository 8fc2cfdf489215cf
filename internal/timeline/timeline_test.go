package timeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/parse"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/scan"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func parseChat(t *testing.T, text string) []parse.Record {
	t.Helper()
	recs, err := parse.NewParser(nil).Parse(strings.NewReader(text))
	require.NoError(t, err)
	return recs
}

func TestParseTimestampLayouts(t *testing.T) {
	loc := newYork(t)
	a := NewAssembler(loc, nil)

	tests := []struct {
		date, clock string
		want        time.Time
	}{
		{"3/5/24", "9:15 AM", time.Date(2024, 3, 5, 9, 15, 0, 0, loc)},
		{"3/5/24", "9:15 pm", time.Date(2024, 3, 5, 21, 15, 0, 0, loc)},
		{"03/05/2024", "12:00 AM", time.Date(2024, 3, 5, 0, 0, 0, 0, loc)},
		{"3/5/24", "21:16", time.Date(2024, 3, 5, 21, 16, 0, 0, loc)},
		{"12/31/2023", "23:59", time.Date(2023, 12, 31, 23, 59, 0, 0, loc)},
	}
	for _, tt := range tests {
		got, ok := a.ParseTimestamp(tt.date, tt.clock)
		require.True(t, ok, tt.date+" "+tt.clock)
		assert.True(t, tt.want.Equal(got), "%s %s: got %v", tt.date, tt.clock, got)
	}

	for _, bad := range [][2]string{{"", "9:15"}, {"13/45/24", "9:15 AM"}, {"3/5/24", "25:00"}} {
		_, ok := a.ParseTimestamp(bad[0], bad[1])
		assert.False(t, ok, bad)
	}
}

func TestAssembleOrdersAndIdentifies(t *testing.T) {
	loc := newYork(t)
	recs := parseChat(t, strings.Join([]string{
		"orphan header line",
		"3/6/24, 7:00 AM - Bob: later",
		"3/5/24, 9:15 AM - Alice: Hello",
		"  - continued",
		"3/5/24, 12:00 AM - Messages are end-to-end encrypted.",
	}, "\n"))

	externals := []scan.ExternalAudio{
		{FileName: "AUD-20240305-WA0009.opus", Timestamp: time.Date(2024, 3, 5, 0, 0, 0, 0, loc)},
	}

	events, stats, err := NewAssembler(loc, nil).Assemble(recs, externals)
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, 1, stats.Unparseable)
	assert.Equal(t, 1, stats.External)
	assert.Equal(t, 4, stats.Events)

	// midnight tie: the system line precedes the external recording
	assert.Equal(t, "Messages are end-to-end encrypted.", events[0].Body)
	assert.False(t, events[0].IsExternal)
	assert.True(t, events[1].IsExternal)
	assert.Equal(t, scan.ExternalAudioName, events[1].Author)
	assert.Equal(t, "AUD-20240305-WA0009.opus", events[1].Attachment)
	assert.Equal(t, "Hello\n  - continued", events[2].Body)
	assert.Equal(t, "later", events[3].Body)

	assert.Equal(t, "20240305000000-0", events[0].StableID)
	assert.Equal(t, "20240305000000-1", events[1].StableID)
	assert.Equal(t, "20240305091500-2", events[2].StableID)
	assert.Equal(t, "20240306070000-3", events[3].StableID)

	seen := map[string]bool{}
	for i, e := range events {
		assert.Equal(t, i+1, e.Number)
		assert.False(t, seen[e.StableID])
		seen[e.StableID] = true
		if i > 0 {
			assert.False(t, e.Timestamp.Before(events[i-1].Timestamp))
		}
	}
}

func TestAssembleIsDeterministic(t *testing.T) {
	loc := newYork(t)
	text := "3/5/24, 9:15 AM - Alice: a\n3/5/24, 9:15 AM - Bob: b\n3/4/24, 8:00 PM - Alice: c\n"

	first, _, err := NewAssembler(loc, nil).Assemble(parseChat(t, text), nil)
	require.NoError(t, err)
	second, _, err := NewAssembler(loc, nil).Assemble(parseChat(t, text), nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAssembleDedupsReferencedExternalAudio(t *testing.T) {
	loc := newYork(t)
	recs := parseChat(t, "3/5/24, 9:15 AM - Alice: AUD-20240305-WA0001.opus (file attached)\n")
	externals := []scan.ExternalAudio{
		{FileName: "AUD-20240305-WA0001.opus", Timestamp: time.Date(2024, 3, 5, 0, 0, 0, 0, loc)},
		{FileName: "AUD-20240306-WA0002.opus", Timestamp: time.Date(2024, 3, 6, 0, 0, 0, 0, loc)},
	}

	events, stats, err := NewAssembler(loc, nil).Assemble(recs, externals)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, "AUD-20240305-WA0001.opus", events[0].Attachment)
	assert.False(t, events[0].IsExternal)
	assert.Equal(t, "AUD-20240306-WA0002.opus", events[1].Body)
}

func TestAssembleSingleExternalRecording(t *testing.T) {
	loc := newYork(t)
	ts, ok := scan.ExternalAudioTime("AUD-20240305-WA0001.opus", loc)
	require.True(t, ok)

	events, _, err := NewAssembler(loc, nil).Assemble(nil, []scan.ExternalAudio{
		{FileName: "AUD-20240305-WA0001.opus", Timestamp: ts},
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, loc), events[0].Timestamp)
	assert.Equal(t, "20240305000000-0", events[0].StableID)
}

func TestAssembleDateRange(t *testing.T) {
	loc := newYork(t)
	recs := parseChat(t, strings.Join([]string{
		"3/4/24, 11:59 PM - Alice: before",
		"3/5/24, 12:00 AM - Alice: first day",
		"3/6/24, 11:59 PM - Alice: last day",
		"3/7/24, 12:00 AM - Alice: after",
	}, "\n"))

	from, err := ParseDate("2024-03-05", loc)
	require.NoError(t, err)
	to, err := ParseDate("2024-03-06", loc)
	require.NoError(t, err)

	a := NewAssembler(loc, nil)
	a.Range = DateRange{From: from, To: to}
	events, stats, err := a.Assemble(recs, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "first day", events[0].Body)
	assert.Equal(t, "last day", events[1].Body)
	assert.Equal(t, 2, stats.Filtered)

	_, err = ParseDate("05/03/2024", loc)
	assert.Error(t, err)
}

func TestAssembleNoData(t *testing.T) {
	loc := newYork(t)
	_, _, err := NewAssembler(loc, nil).Assemble(parseChat(t, "just text\nmore text\n"), nil)
	assert.ErrorIs(t, err, ErrNoData)

	_, _, err = NewAssembler(loc, nil).Assemble(nil, nil)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestAssembleMediaReference(t *testing.T) {
	loc := newYork(t)
	recs := parseChat(t, "3/5/24, 9:15 AM - Alice: IMG-20240305-WA0001.jpg (file attached)\n3/5/24, 9:16 AM - Bob: <Media omitted>\n")

	events, _, err := NewAssembler(loc, nil).Assemble(recs, nil)
	require.NoError(t, err)
	assert.Equal(t, "IMG-20240305-WA0001.jpg", events[0].Attachment)
	assert.Empty(t, events[1].Attachment)
	assert.True(t, events[1].Omitted)
}
