package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
)

// ExtractResult is returned by Extract.
type ExtractResult struct {
	Dir   string `json:"dir"`
	Files int    `json:"files"`
	Bytes int64  `json:"bytes"`
}

// ExtractFile extracts the archive at path into dest. See Extract.
func ExtractFile(path, dest string) (*ExtractResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()
	return Extract(f, dest)
}

// Extract unpacks a gzip'd tar stream into dest, which must be missing or
// empty. Every entry path is checked to resolve inside dest before anything
// is written for it; link entries are refused. On any error dest is
// returned to its prior state.
func Extract(r io.Reader, dest string) (result *ExtractResult, err error) {
	root, err := filepath.Abs(dest)
	if err != nil {
		return nil, fmt.Errorf("resolve extraction dir: %w", err)
	}

	created, err := prepareDest(root)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, resetDest(root, created))
			result = nil
		}
	}()

	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	result = &ExtractResult{Dir: root}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, tar.ErrInsecurePath) && hdr != nil {
			return nil, &PathTraversalError{Name: hdr.Name, Reason: "insecure path"}
		}
		if err != nil {
			return nil, fmt.Errorf("read tar entry: %w", err)
		}

		target, err := resolveEntry(root, hdr.Name)
		if err != nil {
			return nil, err
		}

		switch {
		case hdr.Typeflag == tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return nil, fmt.Errorf("create dir %s: %w", hdr.Name, err)
			}
		case hdr.Typeflag == tar.TypeSymlink || hdr.Typeflag == tar.TypeLink:
			return nil, &PathTraversalError{Name: hdr.Name, Reason: "link entries are not allowed"}
		case hdr.Typeflag == tar.TypeXGlobalHeader:
			continue
		case hdr.FileInfo().Mode().IsRegular():
			n, err := extractFile(tr, hdr, target)
			if err != nil {
				return nil, fmt.Errorf("extract %s: %w", hdr.Name, err)
			}
			result.Files++
			result.Bytes += n
		default:
			return nil, fmt.Errorf("unsupported entry type %q for %s", hdr.Typeflag, hdr.Name)
		}
	}

	return result, nil
}

// resolveEntry maps an entry name to a path strictly inside root.
func resolveEntry(root, name string) (string, error) {
	if name == "" {
		return "", &PathTraversalError{Name: name, Reason: "empty entry name"}
	}
	local := filepath.FromSlash(name)
	if filepath.IsAbs(local) || filepath.VolumeName(local) != "" || strings.HasPrefix(name, "/") {
		return "", &PathTraversalError{Name: name, Reason: "absolute path"}
	}

	target := filepath.Join(root, local)
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &PathTraversalError{Name: name, Reason: "resolves outside the extraction directory"}
	}
	return target, nil
}

// extractFile writes a tar entry to disk, creating parent directories as needed.
func extractFile(tr *tar.Reader, hdr *tar.Header, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("create parent dir: %w", err)
	}

	mode := os.FileMode(hdr.Mode).Perm()
	if mode == 0 {
		mode = 0644
	}

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, tr)
	if err != nil {
		f.Close()
		return n, err
	}
	return n, f.Close()
}

// prepareDest ensures root exists and is empty. It reports whether it
// created the directory.
func prepareDest(root string) (bool, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(root, 0755); err != nil {
			return false, fmt.Errorf("create extraction dir: %w", err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read extraction dir: %w", err)
	}
	if len(entries) > 0 {
		return false, fmt.Errorf("extraction dir %s is not empty", root)
	}
	return false, nil
}

// resetDest removes everything extracted into root.
func resetDest(root string, created bool) error {
	if created {
		return os.RemoveAll(root)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	var errs error
	for _, e := range entries {
		errs = multierr.Append(errs, os.RemoveAll(filepath.Join(root, e.Name())))
	}
	return errs
}
