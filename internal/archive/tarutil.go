package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// writeTarFile adds a file from disk to the tar archive.
func writeTarFile(tw *tar.Writer, archivePath, diskPath string) (int64, error) {
	fi, err := os.Stat(diskPath)
	if err != nil {
		return 0, err
	}

	hdr := &tar.Header{
		Name:    archivePath,
		Mode:    int64(fi.Mode().Perm()),
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return 0, err
	}

	f, err := os.Open(diskPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return io.Copy(tw, f)
}

// writeTarDir adds a directory entry followed by every file below root.
// Returns the number of files written.
func writeTarDir(tw *tar.Writer, prefix, root string) (int, error) {
	if err := tw.WriteHeader(&tar.Header{
		Name:     prefix + "/",
		Typeflag: tar.TypeDir,
		Mode:     0755,
		ModTime:  time.Now(),
	}); err != nil {
		return 0, err
	}

	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		archivePath := prefix + "/" + filepath.ToSlash(rel)

		if _, err := writeTarFile(tw, archivePath, path); err != nil {
			return fmt.Errorf("write %s: %w", archivePath, err)
		}
		count++
		return nil
	})
	return count, err
}

// countingWriter tracks the number of bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
