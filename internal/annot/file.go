package annot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"

	"annotix/pkg/spec"
)

// ErrFileExists is returned when explicit file creation would overwrite an
// existing annotation document.
var ErrFileExists = fmt.Errorf("annotation file already exists")

// Metadata is the header block of a persisted annotation document.
type Metadata struct {
	Annotator      string            `json:"annotator"`
	Timestamp      string            `json:"timestamp"`
	UnixTimestamp  int64             `json:"unix_timestamp"`
	ProgramVersion string            `json:"program_version"`
	SystemInfo     map[string]string `json:"system_info,omitempty"`
}

type fileEntry struct {
	ID        string  `json:"id,omitempty"`
	Time      float64 `json:"time"`
	Text      string  `json:"text"`
	Type      string  `json:"type,omitempty"`
	Annotator string  `json:"annotator,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

type fileDoc struct {
	Metadata    *Metadata   `json:"metadata,omitempty"`
	Annotations []fileEntry `json:"annotations"`
}

// NewMetadata builds a header for the given annotator, stamped now, with the
// free-form system info map. extra entries (e.g. the audio fingerprint) are
// merged in.
func NewMetadata(annotator string, extra map[string]string) Metadata {
	now := time.Now()
	info := map[string]string{
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"go_version": runtime.Version(),
	}
	if u, err := user.Current(); err == nil {
		info["user"] = u.Username
	}
	for k, v := range extra {
		info[k] = v
	}
	return Metadata{
		Annotator:      annotator,
		Timestamp:      now.UTC().Format(time.RFC3339),
		UnixTimestamp:  now.Unix(),
		ProgramVersion: spec.Version,
		SystemInfo:     info,
	}
}

// Load reads an annotation document. A missing or unparseable metadata block
// is tolerated: the annotator becomes "Unknown" with a synthesized current
// timestamp. A missing file or structurally invalid annotation records are
// errors.
func Load(path, intrusionMarker string) ([]Entry, Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("read annotation file: %w", err)
	}
	var doc fileDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, Metadata{}, fmt.Errorf("parse annotation file %s: %w", path, err)
	}

	meta := Metadata{}
	if doc.Metadata != nil {
		meta = *doc.Metadata
	}
	if meta.Annotator == "" {
		now := time.Now()
		meta.Annotator = "Unknown"
		meta.Timestamp = now.UTC().Format(time.RFC3339)
		meta.UnixTimestamp = now.Unix()
	}

	entries := make([]Entry, 0, len(doc.Annotations))
	for i, fe := range doc.Annotations {
		if fe.Time < 0 {
			return nil, Metadata{}, fmt.Errorf("annotation %d of %s has negative time %v", i, path, fe.Time)
		}
		typ, tagged := ParseType(fe.Type)
		if !tagged {
			typ = ClassifyText(fe.Text, intrusionMarker)
		}
		id, err := uuid.Parse(fe.ID)
		if err != nil {
			id = uuid.New()
		}
		annotator := fe.Annotator
		if annotator == "" {
			annotator = meta.Annotator
		}
		createdAt, err := time.Parse(time.RFC3339, fe.CreatedAt)
		if err != nil {
			createdAt = time.Now()
		}
		entries = append(entries, Entry{
			ID:        id,
			Time:      fe.Time,
			Text:      fe.Text,
			Type:      typ,
			Annotator: annotator,
			CreatedAt: createdAt,
		})
	}
	return entries, meta, nil
}

// LoadLog is Load returning the entries already installed in a sorted Log.
func LoadLog(path, intrusionMarker string) (*Log, Metadata, error) {
	entries, meta, err := Load(path, intrusionMarker)
	if err != nil {
		return nil, Metadata{}, err
	}
	l := NewLog()
	l.AddBatch(entries)
	return l, meta, nil
}

// testHookFailWrite lets tests simulate a failure mid-serialization, after
// the temporary file exists but before the atomic rename.
var testHookFailWrite func() error

// Save atomically writes the log and metadata to path: serialize to a
// temporary sibling, fsync, rename. The destination is never left partially
// written; on failure the temporary file is removed and the error propagated.
func Save(l *Log, meta Metadata, path string) error {
	doc := fileDoc{Metadata: &meta, Annotations: make([]fileEntry, 0, l.Len())}
	for _, e := range l.Entries() {
		doc.Annotations = append(doc.Annotations, fileEntry{
			ID:        e.ID.String(),
			Time:      e.Time,
			Text:      e.Text,
			Type:      e.Type.String(),
			Annotator: e.Annotator,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize annotations: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".ann-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp annotation file: %w", err)
	}
	var ok bool
	defer func() {
		if !ok {
			if err := os.Remove(tmp.Name()); err != nil {
				slog.Warn("failed to remove temp annotation file", "path", tmp.Name(), "error", err)
			}
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp annotation file: %w", err)
	}
	if testHookFailWrite != nil {
		if err := testHookFailWrite(); err != nil {
			tmp.Close()
			return fmt.Errorf("write temp annotation file: %w", err)
		}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp annotation file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp annotation file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp annotation file: %w", err)
	}
	ok = true
	return nil
}

// Create writes a new annotation document, refusing to overwrite: unlike
// Save, an existing file at path is a hard error.
func Create(l *Log, meta Metadata, path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrFileExists, path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat annotation file: %w", err)
	}
	return Save(l, meta, path)
}

// Finalize promotes a temporary annotation file to its permanent name,
// refusing to overwrite an existing final document.
func Finalize(tmpPath, finalPath string) error {
	if _, err := os.Stat(finalPath); err == nil {
		return fmt.Errorf("%w: %s", ErrFileExists, finalPath)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat annotation file: %w", err)
	}
	if _, err := os.Stat(tmpPath); err != nil {
		return fmt.Errorf("stat temporary annotation file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("finalize annotation file: %w", err)
	}
	return nil
}
