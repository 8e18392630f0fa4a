package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"embedview/internal/archive"
	"embedview/internal/config"
	"embedview/internal/source"
)

// writeArchive runs write against a local file and places the result at
// location. Remote locations are staged in tempDir and uploaded.
func writeArchive(ctx context.Context, location, tempDir string, storage config.StorageConfig, write func(path string) (archive.Summary, error)) (sum archive.Summary, err error) {
	loc, err := source.ParseLocation(location)
	if err != nil {
		return archive.Summary{}, err
	}
	if !loc.IsRemote() {
		if dir := filepath.Dir(loc.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return archive.Summary{}, fmt.Errorf("create output dir: %w", err)
			}
		}
		return write(loc.Path)
	}

	f, err := os.CreateTemp(tempDir, "embedview-upload-*.tar.gz")
	if err != nil {
		return archive.Summary{}, fmt.Errorf("create upload staging file: %w", err)
	}
	staged := f.Name()
	if err := f.Close(); err != nil {
		return archive.Summary{}, multierr.Append(err, os.Remove(staged))
	}
	defer func() {
		err = multierr.Append(err, removeIfExists(staged))
	}()

	if sum, err = write(staged); err != nil {
		return archive.Summary{}, err
	}
	if err := source.Publish(ctx, staged, location, storage); err != nil {
		return archive.Summary{}, err
	}
	sum.Path = loc.String()
	return sum, nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func printSummary(e *env, sum archive.Summary) {
	e.log.Info("archive written", nil, map[string]interface{}{
		"path":      sum.Path,
		"groups":    sum.Groups,
		"points":    sum.Points,
		"resources": sum.Resources,
		"size":      archive.FormatBytes(sum.Size),
		"duration":  sum.Duration.String(),
	})
}
