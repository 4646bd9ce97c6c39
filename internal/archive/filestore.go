// Package archive keeps confirmed questionnaires as plain text files, one
// per record, for deployments without a database.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"waitroom-intake/pkg"
)

const briefHeader = "\n\n🤖 КОРОТКИЙ ПІДСУМОК:\n"

// FileStore writes each record to <Dir>/<id>.txt.
type FileStore struct {
	Dir string
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// Put writes the reviewer report, followed by the brief when there is one.
// An existing file with the same id is overwritten.
func (s *FileStore) Put(ctx context.Context, rec pkg.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkID(rec.ID); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("archive: create dir: %w", err)
	}
	body := rec.Text
	if rec.Brief != "" {
		body += briefHeader + rec.Brief
	}
	path := s.path(rec.ID)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("archive: write %s: %w", path, err)
	}
	return nil
}

// AttachBrief appends the brief section to a record written earlier.
func (s *FileStore) AttachBrief(ctx context.Context, id, brief string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path(id), os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", id, err)
	}
	if _, err := f.WriteString(briefHeader + brief); err != nil {
		f.Close()
		return fmt.Errorf("archive: append brief %s: %w", id, err)
	}
	return f.Close()
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.Dir, id+".txt")
}

func checkID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("archive: invalid record id %q", id)
	}
	return nil
}
