// Package registry keeps named fitted pipelines in a gzip-compressed
// on-disk store.
package registry

import (
	"bytes"
	"sort"

	"github.com/peterbourgon/diskv"

	"github.com/ezoic/tabml/core/model"
	"github.com/ezoic/tabml/pipeline"
	"github.com/ezoic/tabml/pkg/errors"
)

// cacheSizeMax bounds the in-memory read cache in bytes.
const cacheSizeMax = 4096 * 1024

// Store maps names to fitted pipelines.
type Store struct {
	dir string
	d   *diskv.Diskv
}

// Open returns a store rooted at dir. The directory is created on first
// write.
func Open(dir string) *Store {
	return &Store{
		dir: dir,
		d: diskv.New(diskv.Options{
			BasePath:     dir,
			CacheSizeMax: cacheSizeMax,
			Compression:  diskv.NewGzipCompression(),
		}),
	}
}

// ValidName reports whether name can be used as a key: non-empty ASCII
// letters, digits, '.', '_' and '-', not starting with '.'.
func ValidName(name string) bool {
	if name == "" || name[0] == '.' {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

func checkName(op, name string) error {
	if !ValidName(name) {
		return errors.NewValidationError("name", op+": invalid model name", name)
	}
	return nil
}

// Put stores fp under name, replacing any previous entry.
func (s *Store) Put(name string, fp *pipeline.FittedPipeline) error {
	if err := checkName("Put", name); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := fp.Save(&buf); err != nil {
		return err
	}
	if err := s.d.Write(name, buf.Bytes()); err != nil {
		return errors.NewPersistenceError("put", s.dir, errors.Wrapf(err, "write %s", name))
	}
	return nil
}

// Get loads the pipeline stored under name.
func (s *Store) Get(name string, decode model.ModelDecoder) (*pipeline.FittedPipeline, error) {
	if err := checkName("Get", name); err != nil {
		return nil, err
	}
	if !s.d.Has(name) {
		return nil, errors.NewPersistenceError("get", s.dir, errors.Newf("model %q not found", name))
	}
	data, err := s.d.Read(name)
	if err != nil {
		return nil, errors.NewPersistenceError("get", s.dir, errors.Wrapf(err, "read %s", name))
	}
	return pipeline.Load(bytes.NewReader(data), decode)
}

// Has reports whether name is stored.
func (s *Store) Has(name string) bool {
	return ValidName(name) && s.d.Has(name)
}

// Delete removes name. Deleting a missing name is an error.
func (s *Store) Delete(name string) error {
	if err := checkName("Delete", name); err != nil {
		return err
	}
	if err := s.d.Erase(name); err != nil {
		return errors.NewPersistenceError("delete", s.dir, errors.Wrapf(err, "erase %s", name))
	}
	return nil
}

// Names returns the stored names, sorted.
func (s *Store) Names() []string {
	var out []string
	for k := range s.d.Keys(nil) {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
