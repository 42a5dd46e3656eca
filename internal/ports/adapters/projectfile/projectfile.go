// Package projectfile stores a project, history included, as a versioned JSON
// or YAML document. The format is picked from the file extension.
package projectfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/forPelevin/tlcut/internal/editor"
	"github.com/forPelevin/tlcut/internal/ports"
	"github.com/forPelevin/tlcut/internal/types"
)

// Version is the document layout written by Save.
const Version = 1

var ErrUnsupportedVersion = errors.New("unsupported project file version")

type document struct {
	Version int              `json:"version" yaml:"version"`
	Name    string           `json:"name" yaml:"name"`
	SavedAt time.Time        `json:"saved_at" yaml:"saved_at"`
	Current types.Snapshot   `json:"current" yaml:"current"`
	History []types.Snapshot `json:"history,omitempty" yaml:"history,omitempty"`
	Cursor  int              `json:"cursor" yaml:"cursor"`
	Live    bool             `json:"live" yaml:"live"`
}

type Store struct {
	now func() time.Time
}

func New() *Store { return &Store{now: time.Now} }

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (s *Store) Load(path string) (ports.Project, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ports.Project{}, fmt.Errorf("read project: %w", err)
	}
	var doc document
	if isYAML(path) {
		err = yaml.Unmarshal(b, &doc)
	} else {
		dec := json.NewDecoder(bytes.NewReader(b))
		err = dec.Decode(&doc)
	}
	if err != nil {
		return ports.Project{}, fmt.Errorf("parse project %s: %w", path, err)
	}
	if doc.Version < 1 || doc.Version > Version {
		return ports.Project{}, fmt.Errorf("%w: %d (this build reads up to %d)", ErrUnsupportedVersion, doc.Version, Version)
	}
	return ports.Project{
		Name: doc.Name,
		State: editor.State{
			Current: doc.Current,
			History: doc.History,
			Cursor:  doc.Cursor,
			Live:    doc.Live,
		},
	}, nil
}

// Save writes the document next to path and renames it into place so a crash
// never leaves a half-written project.
func (s *Store) Save(path string, p ports.Project) error {
	doc := document{
		Version: Version,
		Name:    p.Name,
		SavedAt: s.now().UTC(),
		Current: p.State.Current,
		History: p.State.History,
		Cursor:  p.State.Cursor,
		Live:    p.State.Live,
	}
	var (
		b   []byte
		err error
	)
	if isYAML(path) {
		b, err = yaml.Marshal(doc)
	} else {
		b, err = json.MarshalIndent(doc, "", "  ")
		b = append(b, '\n')
	}
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	return writeFileAtomic(path, b)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir project dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

var _ ports.ProjectStore = (*Store)(nil)
