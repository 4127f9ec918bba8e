package wal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/beevik/etree"
)

// Snapshot root attributes
const (
	attrLastSeq = "lastSeq"
	attrSession = "session"
	attrWritten = "written"
)

// snapshotFile holds the parsed content of a snapshot file
type snapshotFile struct {
	lastSeq  uint64
	elements []*etree.Element
}

// readSnapshot reads the snapshot at path. A missing file is an empty snapshot.
func readSnapshot(path, rootName string) (*snapshotFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &snapshotFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != rootName {
		return nil, fmt.Errorf("snapshot %s: expected root element <%s>", path, rootName)
	}

	snap := &snapshotFile{elements: root.ChildElements()}
	if v := root.SelectAttrValue(attrLastSeq, ""); v != "" {
		seq, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: invalid %s: %w", path, attrLastSeq, err)
		}
		snap.lastSeq = seq
	}
	return snap, nil
}

// writeSnapshot atomically replaces the snapshot at path: the document is
// written to a temporary file in the same directory, synced and renamed.
func writeSnapshot(path, rootName, session string, lastSeq uint64, elements []*etree.Element) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(rootName)
	root.CreateAttr(attrLastSeq, strconv.FormatUint(lastSeq, 10))
	root.CreateAttr(attrSession, session)
	root.CreateAttr(attrWritten, time.Now().UTC().Format(time.RFC3339))
	for _, el := range elements {
		root.AddChild(el)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := doc.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open snapshot directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("failed to sync snapshot directory: %w", err)
	}
	return nil
}
