package parse

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ws also accepts the no-break spaces newer exports put before AM/PM.
const ws = `[\s\x{00A0}\x{202F}]`

// DefaultPatterns are the accepted record grammars, tried in order:
// 12-hour with author, 24-hour with author, and system lines in either form.
var DefaultPatterns = []string{
	`^(?P<date>\d{1,2}/\d{1,2}/\d{2,4}),` + ws + `(?P<time>\d{1,2}:\d{2}` + ws + `?(?i:AM|PM))` + ws + `-` + ws + `(?P<name>[^:]+):` + ws + `(?P<msg>.*)$`,
	`^(?P<date>\d{1,2}/\d{1,2}/\d{2,4}),` + ws + `(?P<time>\d{1,2}:\d{2})` + ws + `-` + ws + `(?P<name>[^:]+):` + ws + `(?P<msg>.*)$`,
	`^(?P<date>\d{1,2}/\d{1,2}/\d{2,4}),` + ws + `(?P<time>\d{1,2}:\d{2}(?:` + ws + `?(?i:AM|PM))?)` + ws + `-` + ws + `(?P<msg>.*)$`,
}

// Grammar holds the compiled record patterns. It is immutable once built.
type Grammar struct {
	patterns []*regexp.Regexp
}

// NewGrammar compiles patterns. Each must define a "msg" group and may
// define "date", "time" and "name".
func NewGrammar(patterns ...string) (*Grammar, error) {
	g := &Grammar{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile record pattern: %w", err)
		}
		if re.SubexpIndex("msg") < 0 {
			return nil, fmt.Errorf("record pattern %q has no msg group", p)
		}
		g.patterns = append(g.patterns, re)
	}
	return g, nil
}

// DefaultGrammar returns the grammar for the platform's export format.
func DefaultGrammar() *Grammar {
	g, err := NewGrammar(DefaultPatterns...)
	if err != nil {
		panic(err)
	}
	return g
}

// ParseLine matches a single physical line (without terminator) against the
// grammar. ok is false when the line is a continuation.
func (g *Grammar) ParseLine(line string) (rec Record, ok bool) {
	for _, re := range g.patterns {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		group := func(name string) string {
			if i := re.SubexpIndex(name); i >= 0 {
				return m[i]
			}
			return ""
		}
		return Record{
			Date: group("date"),
			Time: group("time"),
			Name: strings.TrimSpace(group("name")),
			Msg:  group("msg"),
			Raw:  line,
		}, true
	}
	return Record{}, false
}

type Parser struct {
	grammar *Grammar
}

func NewParser(g *Grammar) *Parser {
	if g == nil {
		g = DefaultGrammar()
	}
	return &Parser{grammar: g}
}

// ParseFile reads a chat export. Invalid UTF-8 is replaced, never rejected.
func (p *Parser) ParseFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return p.Parse(f)
}

// Parse turns r into records. A non-matching line is appended to the previous
// record's body; before any record exists it starts an authorless one.
// Lines have no length limit. Only read errors are returned.
func (p *Parser) Parse(r io.Reader) ([]Record, error) {
	dec := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	br := bufio.NewReaderSize(dec, 64*1024)

	var records []Record
	lineNum := 0
	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return records, err
		}
		if line == "" && err == io.EOF {
			break
		}
		lineNum++
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")

		if rec, ok := p.grammar.ParseLine(line); ok {
			rec.LineNumber = lineNum
			records = append(records, rec)
		} else if len(records) > 0 {
			records[len(records)-1].appendContinuation(line)
		} else {
			records = append(records, Record{Msg: line, Raw: line, LineNumber: lineNum})
		}

		if err == io.EOF {
			break
		}
	}
	return records, nil
}
