package readfiles

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileStaged writes path through a temporary file in the same directory
// that is synced and then renamed over path. On failure path is untouched and
// the temporary file is removed.
func WriteFileStaged(path string, write func(w io.Writer) error) error {
	tmp, err := stageFile(path, write)
	if err != nil {
		return err
	}
	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("install %s: %w", path, err)
	}
	return nil
}

// ReplaceWithArchive writes a new version of path while moving the existing
// file to archivePath. The new content is fully staged before either file is
// moved, and if installing it fails the original is moved back.
func ReplaceWithArchive(path, archivePath string, write func(w io.Writer) error) (err error) {
	var (
		tmp string
	)
	if tmp, err = stageFile(path, write); err != nil {
		return
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()
	if err = os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	if err = os.Rename(path, archivePath); err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		err = fmt.Errorf("install %s: %w", path, err)
		if rerr := os.Rename(archivePath, path); rerr != nil {
			err = errors.Join(err, fmt.Errorf("restore %s: %w", path, rerr))
		}
		return
	}
	return nil
}

func stageFile(path string, write func(w io.Writer) error) (name string, err error) {
	var (
		tmp *os.File
	)
	if tmp, err = os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*"); err != nil {
		return "", fmt.Errorf("stage %s: %w", path, err)
	}
	name = tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(name)
			name = ""
		}
	}()
	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return
	}
	if err = bw.Flush(); err != nil {
		return
	}
	if err = tmp.Chmod(0o644); err != nil {
		return
	}
	if err = tmp.Sync(); err != nil {
		return
	}
	err = tmp.Close()
	return
}
