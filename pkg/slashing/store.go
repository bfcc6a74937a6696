package slashing

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/validator-keymanager/pkg/validator"
)

const recordExtension = ".yml"

// Store keeps one signing record file per public key in a directory.
type Store struct {
	dir string
}

// NewStore returns a Store keeping one record file per key under dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory the store reads and writes.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the record file location for pk.
func (s *Store) Path(pk validator.PublicKey) string {
	return filepath.Join(s.dir, pk.Unprefixed()+recordExtension)
}

// Has reports whether a record file exists for pk.
func (s *Store) Has(pk validator.PublicKey) bool {
	info, err := os.Stat(s.Path(pk))
	if err != nil {
		return false
	}

	return info.Mode().IsRegular()
}

// Read loads the record for pk. A missing file yields a nil record and no error.
func (s *Store) Read(pk validator.PublicKey) (*SigningRecord, error) {
	path := s.Path(pk)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, errors.Wrapf(err, "Failed to read from file %s", path)
	}

	record := &SigningRecord{}
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(record); err != nil {
		return nil, errors.Wrapf(err, "Failed to read from file %s", path)
	}

	return record, nil
}

// Write atomically replaces the record for pk.
func (s *Store) Write(pk validator.PublicKey, record *SigningRecord) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return errors.Wrapf(err, "failed to create slashing protection directory %s", s.dir)
	}

	data, err := yaml.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to marshal signing record")
	}

	tmp, err := os.CreateTemp(s.dir, pk.Unprefixed()+"-*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary signing record")
	}

	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()

		return errors.Wrapf(err, "failed to write signing record %s", tmp.Name())
	}

	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close signing record %s", tmp.Name())
	}

	if err := os.Rename(tmp.Name(), s.Path(pk)); err != nil {
		return errors.Wrapf(err, "failed to write signing record %s", s.Path(pk))
	}

	return nil
}
