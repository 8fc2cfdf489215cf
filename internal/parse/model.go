package parse

// Record is one logical chat line. Msg and Raw grow while continuation lines
// are appended during parsing; the record is not modified afterwards.
type Record struct {
	Date string // raw date text, e.g. "3/5/24"
	Time string // raw time text, e.g. "9:15 AM"
	Name string // author; empty for system lines
	Msg  string

	Raw        string // original physical lines joined with "\n"
	LineNumber int    // 1-based line in the chat file where the record starts
}

func (r *Record) appendContinuation(line string) {
	r.Msg += "\n" + line
	r.Raw += "\n" + line
}
