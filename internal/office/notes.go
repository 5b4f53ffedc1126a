package office

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// NotesFileName is the per-day meeting notes file.
func NotesFileName(date time.Time) string {
	return fmt.Sprintf("meeting_notes_%s.txt", date.Format(dateLayout))
}

// notesWriter appends round notes to the day's file. A zero dir disables it.
type notesWriter struct {
	path string
}

func newNotesWriter(dir string, date time.Time) notesWriter {
	if dir == "" {
		return notesWriter{}
	}
	return notesWriter{path: filepath.Join(dir, NotesFileName(date))}
}

func (w notesWriter) Path() string { return w.path }

func (w notesWriter) Append(round int, note string) error {
	if w.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "=== Round %d ===\n%s\n\n", round, note); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
