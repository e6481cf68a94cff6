package cache

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Dir stores each artifact as <root>/<name>.csv.
type Dir struct {
	root string
}

// NewDir returns a Dir rooted at root, creating the directory if needed.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating cache directory '%s'", root)
	}
	return &Dir{root: root}, nil
}

// Path returns the file an artifact is stored in.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.root, name+".csv")
}

// Has implements Blobs.
func (d *Dir) Has(name string) (bool, error) {
	_, err := os.Stat(d.Path(name))
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

// Get implements Blobs.
func (d *Dir) Get(name string) ([]byte, error) {
	data, err := ioutil.ReadFile(d.Path(name))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

// Put implements Blobs. The data is written to a temporary file in the same
// directory and renamed into place so a reader never sees a partial artifact.
func (d *Dir) Put(name string, data []byte) error {
	return writeFileAtomic(d.Path(name), data, 0644)
}

// Remove deletes an artifact. Removing a missing artifact is not an error.
func (d *Dir) Remove(name string) error {
	err := os.Remove(d.Path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := ioutil.TempFile(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return errors.Wrap(err, "writing temp file")
	}
	if err := tmp.Chmod(perm); err != nil {
		return errors.Wrap(err, "setting permissions")
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrap(err, "syncing temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	return errors.Wrap(os.Rename(tmpName, path), "renaming into place")
}
