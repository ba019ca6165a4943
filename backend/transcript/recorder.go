// Package transcript persists conversation history to disk as it grows,
// so a crashed or interrupted run still leaves a usable record.
package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/emberhq/ember/backend/model"
	"github.com/emberhq/ember/shared"
)

const appendFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY

// Entry is one recorded message.
type Entry struct {
	Timestamp time.Time  `json:"timestamp"`
	Role      model.Role `json:"role"`
	Content   string     `json:"content"`
	ToolName  string     `json:"tool_name,omitempty"`
}

// Recorder writes two renditions of the same transcript: an append-only
// JSONL stream flushed after every message, and a JSON array rewritten on
// each append for consumers that want a single well-formed document.
type Recorder struct {
	fs        afero.Fs
	dir       string
	sessionID uuid.UUID

	mu      sync.Mutex
	entries []Entry
}

func NewRecorder(fs afero.Fs, dir string, sessionID uuid.UUID) (*Recorder, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, shared.Wrap(shared.ErrorSourceConfig, "creating transcript directory", err)
	}
	return &Recorder{fs: fs, dir: dir, sessionID: sessionID}, nil
}

func (r *Recorder) StreamPath() string {
	return filepath.Join(r.dir, fmt.Sprintf("%s.jsonl", r.sessionID))
}

func (r *Recorder) ArrayPath() string {
	return filepath.Join(r.dir, fmt.Sprintf("%s.json", r.sessionID))
}

// Record appends one message and flushes both renditions before
// returning.
func (r *Recorder) Record(msg model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := Entry{
		Timestamp: time.Now().UTC(),
		Role:      msg.Role,
		Content:   msg.Content,
		ToolName:  msg.ToolName,
	}
	r.entries = append(r.entries, entry)

	if err := r.appendStream(entry); err != nil {
		return err
	}
	return r.writeArray()
}

func (r *Recorder) appendStream(entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return shared.Wrap(shared.ErrorSourceAgent, "encoding transcript entry", err)
	}

	file, err := r.fs.OpenFile(r.StreamPath(), appendFlags, 0o644)
	if err != nil {
		return shared.Wrap(shared.ErrorSourceAgent, "opening transcript stream", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return shared.Wrap(shared.ErrorSourceAgent, "writing transcript stream", err)
	}
	return nil
}

func (r *Recorder) writeArray() error {
	data, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		return shared.Wrap(shared.ErrorSourceAgent, "encoding transcript", err)
	}
	if err := afero.WriteFile(r.fs, r.ArrayPath(), data, 0o644); err != nil {
		return shared.Wrap(shared.ErrorSourceAgent, "writing transcript", err)
	}
	return nil
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// SavePrompt stores the fully expanded prompt next to the transcript, so
// a templated command invocation can be reproduced later.
func (r *Recorder) SavePrompt(prompt string) (string, error) {
	path := filepath.Join(r.dir, fmt.Sprintf("%s.prompt.md", r.sessionID))
	if err := afero.WriteFile(r.fs, path, []byte(prompt), 0o644); err != nil {
		return "", shared.Wrap(shared.ErrorSourceAgent, "saving prompt", err)
	}
	return path, nil
}
