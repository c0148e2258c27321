package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"
)

// Archive compresses a non-empty latest.log in dir into
// <yyyy-mm-dd>-<n>.log.xz and truncates it. It returns the archive path, or ""
// when there was nothing to archive.
func Archive(dir string) (string, error) {
	return archiveAt(dir, time.Now())
}

func archiveAt(dir string, now time.Time) (string, error) {
	latest := filepath.Join(dir, LatestLog)
	src, err := os.Open(latest)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("open %s: %w", LatestLog, err)
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return "", err
	}
	if info.Size() == 0 {
		return "", nil
	}

	target, err := nextArchiveName(dir, now)
	if err != nil {
		return "", err
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	w, err := xz.NewWriter(dst)
	if err != nil {
		dst.Close()
		return "", fmt.Errorf("xz writer: %w", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		dst.Close()
		return "", fmt.Errorf("compress %s: %w", LatestLog, err)
	}
	if err := w.Close(); err != nil {
		dst.Close()
		return "", fmt.Errorf("compress %s: %w", LatestLog, err)
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	if err := os.Truncate(latest, 0); err != nil {
		return "", fmt.Errorf("truncate %s: %w", LatestLog, err)
	}
	return target, nil
}

func nextArchiveName(dir string, now time.Time) (string, error) {
	day := now.Format("2006-01-02")
	for n := 1; n < 10000; n++ {
		name := filepath.Join(dir, fmt.Sprintf("%s-%d.log.xz", day, n))
		if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
			return name, nil
		}
	}
	return "", fmt.Errorf("too many log archives for %s", day)
}
