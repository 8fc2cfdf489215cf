package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/i18n"
)

// Event is a notification from a running build. The set of variants is
// closed; terminal variants end the run.
type Event interface {
	isEvent()
}

// Terminal reports whether ev ends a run.
func Terminal(ev Event) bool {
	switch ev.(type) {
	case Finished, Stopped, NoData, Failed:
		return true
	}
	return false
}

type (
	CheckingEngine   struct{}
	EngineSkipped    struct{}
	CreatingMediaDir struct{ Dir string }
	LoadingChat      struct{ Path string }
	ScanningAudio    struct{}
	FoundExternal    struct{ Count int }
	Sorting          struct{ Count int }
	CountingAudio    struct{}
	Transcribing     struct {
		Current  int
		Total    int
		FileName string
	}
	Encrypting    struct{ FileName string }
	EncryptFailed struct {
		FileName string
		Err      error
	}
	Processing    struct{}
	BuildingHTML  struct{}
	StopRequested struct{}

	Finished struct{ Summary Summary }
	Stopped  struct{}
	NoData   struct{}
	Failed   struct{ Err error }
)

func (CheckingEngine) isEvent()   {}
func (EngineSkipped) isEvent()    {}
func (CreatingMediaDir) isEvent() {}
func (LoadingChat) isEvent()      {}
func (ScanningAudio) isEvent()    {}
func (FoundExternal) isEvent()    {}
func (Sorting) isEvent()          {}
func (CountingAudio) isEvent()    {}
func (Transcribing) isEvent()     {}
func (Encrypting) isEvent()       {}
func (EncryptFailed) isEvent()    {}
func (Processing) isEvent()       {}
func (BuildingHTML) isEvent()     {}
func (StopRequested) isEvent()    {}
func (Finished) isEvent()         {}
func (Stopped) isEvent()          {}
func (NoData) isEvent()           {}
func (Failed) isEvent()           {}

// Describe renders ev as a status line in the language of s.
func Describe(ev Event, s *i18n.Strings) string {
	switch e := ev.(type) {
	case CheckingEngine:
		return s.LookingForEngine
	case EngineSkipped:
		return s.SkippingEngine
	case CreatingMediaDir:
		return fmt.Sprintf(s.CreatingMediaDir, filepath.Base(e.Dir))
	case LoadingChat:
		return s.LoadingChat
	case ScanningAudio:
		return s.ScanningAudio
	case FoundExternal:
		return fmt.Sprintf(s.FoundExternal, e.Count)
	case Sorting:
		return fmt.Sprintf(s.Sorting, e.Count)
	case CountingAudio:
		return s.CountingAudio
	case Transcribing:
		return fmt.Sprintf(s.Transcribing, e.Current, e.Total, e.FileName)
	case Encrypting:
		return fmt.Sprintf(s.Encrypting, e.FileName)
	case EncryptFailed:
		return fmt.Sprintf(s.EncryptingError, e.FileName)
	case Processing:
		return s.Processing
	case BuildingHTML:
		return s.BuildingHTML
	case StopRequested:
		return s.StopRequested
	case Stopped:
		return s.Stopped
	case NoData:
		return s.NoMessages
	case Failed:
		return fmt.Sprintf(s.Failed, e.Err)
	case Finished:
		msg := s.DoneNoTime
		if e.Summary.Transcribed > 0 {
			msg = fmt.Sprintf(s.DoneTime, e.Summary.TranscriptionTime.Seconds())
		}
		if e.Summary.MediaDir != "" {
			msg += " " + fmt.Sprintf(s.EncryptedReminder, filepath.Base(e.Summary.MediaDir))
		}
		return msg
	}
	return fmt.Sprintf("%T", ev)
}
