// Package open hands archives to the system browser and chat exports to
// the user's editor.
package open

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/jojolapin/WhatsApp-HTML-Archive-Builder/internal/catalog"
)

// Archive opens a built document in the default browser.
func Archive(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file not found: %s", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return browserCommand(runtime.GOOS, u.String()).Run()
}

func browserCommand(goos, target string) *exec.Cmd {
	switch goos {
	case "darwin":
		return exec.Command("open", target)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		return exec.Command("xdg-open", target)
	}
}

// Source opens the chat export an archive was built from in $EDITOR, at
// the line of the event with hitStableID when given.
func Source(db *catalog.DB, idOrPath, hitStableID string) error {
	a, err := db.GetArchive(idOrPath)
	if err != nil {
		return fmt.Errorf("get archive: %w", err)
	}
	if a == nil {
		return fmt.Errorf("archive not found: %s", idOrPath)
	}
	if a.ChatPath == "" {
		return errors.New("archive has no recorded chat export")
	}
	if _, err := os.Stat(a.ChatPath); err != nil {
		return fmt.Errorf("file not found: %s", a.ChatPath)
	}

	lineNum := 1
	if hitStableID != "" {
		if ev, err := db.GetEvent(a.ID, hitStableID); err == nil && ev != nil && ev.LineNumber > 0 {
			lineNum = ev.LineNumber
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "less"
	}
	cmd := editorCommand(editor, a.ChatPath, lineNum)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func editorCommand(editor, filePath string, lineNum int) *exec.Cmd {
	switch {
	case strings.Contains(editor, "vim") || strings.Contains(editor, "nvim"):
		return exec.Command(editor, fmt.Sprintf("+%d", lineNum), filePath)
	case strings.Contains(editor, "code"):
		return exec.Command(editor, "--goto", filePath+":"+strconv.Itoa(lineNum))
	case strings.Contains(editor, "less"):
		return exec.Command(editor, "+"+strconv.Itoa(lineNum), filePath)
	default:
		return exec.Command(editor, filePath)
	}
}
