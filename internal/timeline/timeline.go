package timeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/media"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/parse"
	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/scan"
)

// ErrNoData is returned when no event survives parsing and filtering.
var ErrNoData = errors.New("no messages to archive")

// DefaultLayouts are tried in order against "<date>, <time>".
var DefaultLayouts = []string{
	"1/2/06, 3:04 PM",
	"1/2/2006, 3:04 PM",
	"1/2/06, 15:04",
	"1/2/2006, 15:04",
}

const idLayout = "20060102150405"

// Event is one entry of the assembled timeline. Events are never modified
// once Assemble returns them.
type Event struct {
	SequenceIndex int // position in the input stream (records, then externals)
	Timestamp     time.Time
	Author        string
	Body          string
	IsExternal    bool
	StableID      string
	Number        int // 1-based display number, fixed at build time

	// Attachment is the referenced media file name, if any.
	Attachment string
	Omitted    bool
}

// DateRange limits events by their local calendar date, inclusive.
// A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) contains(t time.Time) bool {
	d := civilDate(t)
	if !r.From.IsZero() && d < civilDate(r.From) {
		return false
	}
	if !r.To.IsZero() && d > civilDate(r.To) {
		return false
	}
	return true
}

func civilDate(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// ParseDate reads a YYYY-MM-DD flag value. Empty input yields the zero time.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// Stats describes what happened while assembling.
type Stats struct {
	Records     int
	Unparseable int
	External    int // external recordings kept after dedup
	Duplicates  int // external recordings already referenced in the chat
	Filtered    int // dropped by the date range
	Events      int
}

// Assembler merges chat records and external recordings into one ordered,
// identified timeline. All times are computed in its location.
type Assembler struct {
	loc      *time.Location
	layouts  []string
	resolver *media.Resolver
	Range    DateRange
}

func NewAssembler(loc *time.Location, resolver *media.Resolver) *Assembler {
	if loc == nil {
		loc = time.UTC
	}
	if resolver == nil {
		resolver = media.DefaultResolver()
	}
	return &Assembler{loc: loc, layouts: DefaultLayouts, resolver: resolver}
}

func (a *Assembler) Location() *time.Location { return a.loc }

// ParseTimestamp localizes a record's raw date and time. The first layout
// that parses wins.
func (a *Assembler) ParseTimestamp(date, clock string) (time.Time, bool) {
	if date == "" || clock == "" {
		return time.Time{}, false
	}
	value := strings.TrimSpace(date) + ", " + normalizeClock(clock)
	for _, layout := range a.layouts {
		if t, err := time.ParseInLocation(layout, value, a.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizeClock folds no-break spaces and lower-case or glued meridiems
// into the "3:04 PM" shape.
func normalizeClock(s string) string {
	s = strings.NewReplacer("\u202f", " ", "\u00a0", " ").Replace(strings.TrimSpace(s))
	upper := strings.ToUpper(s)
	for _, suffix := range []string{"AM", "PM"} {
		if strings.HasSuffix(upper, suffix) {
			head := strings.TrimSpace(upper[:len(upper)-2])
			return head + " " + suffix
		}
	}
	return s
}

// Assemble builds the timeline. Records that cannot be timestamped are
// dropped, external recordings already named in any record are skipped, the
// date range is applied, then events are stably sorted by time with text
// records ahead of external ones on ties. ErrNoData is returned when nothing
// remains.
func (a *Assembler) Assemble(records []parse.Record, externals []scan.ExternalAudio) ([]Event, Stats, error) {
	stats := Stats{Records: len(records)}

	bodies := make([]string, len(records))
	for i, r := range records {
		bodies[i] = r.Msg
	}
	mentioned := a.resolver.Names(bodies)

	events := make([]Event, 0, len(records)+len(externals))
	for i, r := range records {
		ts, ok := a.ParseTimestamp(r.Date, r.Time)
		if !ok {
			stats.Unparseable++
			continue
		}
		ref := a.resolver.Find(r.Msg)
		events = append(events, Event{
			SequenceIndex: i,
			Timestamp:     ts,
			Author:        r.Name,
			Body:          r.Msg,
			Attachment:    ref.FileName,
			Omitted:       ref.Omitted,
		})
	}
	for j, ext := range externals {
		if _, dup := mentioned[ext.FileName]; dup {
			stats.Duplicates++
			continue
		}
		stats.External++
		events = append(events, Event{
			SequenceIndex: len(records) + j,
			Timestamp:     ext.Timestamp.In(a.loc),
			Author:        scan.ExternalAudioName,
			Body:          ext.FileName,
			IsExternal:    true,
			Attachment:    ext.FileName,
		})
	}

	kept := events[:0]
	for _, e := range events {
		if !a.Range.contains(e.Timestamp.In(a.loc)) {
			stats.Filtered++
			continue
		}
		kept = append(kept, e)
	}
	events = kept

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	if len(events) == 0 {
		return nil, stats, ErrNoData
	}
	for i := range events {
		events[i].StableID = StableID(events[i].Timestamp.In(a.loc), i)
		events[i].Number = i + 1
	}
	stats.Events = len(events)
	return events, stats, nil
}

// StableID is the compact local timestamp joined with the post-sort index.
func StableID(ts time.Time, index int) string {
	return fmt.Sprintf("%s-%d", ts.Format(idLayout), index)
}
