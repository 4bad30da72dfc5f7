package snapshot

import (
	"os"
	"path/filepath"

	"github.com/teranos/doxa/errors"
	"github.com/teranos/doxa/kb/ontology"
)

// SaveFile writes a snapshot atomically: the document goes to a
// temporary file in the target directory, then renames over path. A
// crash mid-write leaves the previous snapshot intact.
func SaveFile(path string, st State) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".doxa-snapshot-*")
	if err != nil {
		return errors.Wrapf(err, "creating temporary snapshot in %s", dir)
	}
	tmpPath := tmp.Name()

	if err := Save(tmp, st); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "writing snapshot %s", path)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "replacing snapshot %s", path)
	}
	return nil
}

// LoadFile reads a snapshot from disk.
func LoadFile(path string, opts ...ontology.Option) (*State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening snapshot %s", path)
	}
	defer f.Close()

	st, err := Load(f, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "loading snapshot %s", path)
	}
	return st, nil
}
