// Package helpers collects the small filesystem and process utilities
// shared by the archive codec, the isolated index and the boot-artifact
// builder.
//
// Adapted from the teacher's helpers/helpers.go (FileExists, EnsureDir,
// AtomicWriteFile, ExitCode) and from clickdeb/deb.go's own tar
// handling, generalised into exported helpers (clickdeb called
// helpers.TarIterate and helpers.UnpackTar, which this package now
// actually provides).
package helpers

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

// FileExists returns true if the given path can be stat()ed. It may
// return false on permission errors as well as on genuine absence.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDirectory returns true if path can be stat()ed and is a directory.
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsSymlink reports whether the given file mode bits describe a
// symbolic link.
func IsSymlink(mode os.FileMode) bool {
	return mode&os.ModeSymlink == os.ModeSymlink
}

// EnsureDir creates dir (and any parents) with the given permissions
// if it does not already exist.
func EnsureDir(dir string, perm os.FileMode) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, perm)
	}
	return nil
}

// AtomicWriteFile writes data to filename by first writing to a
// sibling temporary file and renaming it into place.
func AtomicWriteFile(filename string, data []byte, perm os.FileMode) error {
	tmp := filename + ".new"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, filename)
}

// TarIterate walks every member of the tar stream r, invoking fn for
// each header. It is the common core behind archive's control-file
// lookup and UnpackTar.
func TarIterate(r io.Reader, fn func(tr *tar.Reader, hdr *tar.Header) error) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(tr, hdr); err != nil {
			return err
		}
	}
}

// VerifyContentFn validates a path found inside a tar stream before it
// is extracted; returning an error aborts the unpack.
type VerifyContentFn func(path string) (string, error)

// UnpackTar extracts the tar stream r into targetDir, invoking verify
// (if non-nil) on each member path before creating it.
func UnpackTar(r io.Reader, targetDir string, verify VerifyContentFn) error {
	return TarIterate(r, func(tr *tar.Reader, hdr *tar.Header) error {
		name := hdr.Name
		if verify != nil {
			var err error
			name, err = verify(name)
			if err != nil {
				return err
			}
		}
		path := filepath.Join(targetDir, name)
		info := hdr.FileInfo()

		switch {
		case info.IsDir():
			return os.MkdirAll(path, info.Mode())
		case IsSymlink(info.Mode()):
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			return os.Symlink(hdr.Linkname, path)
		default:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, info.Mode())
			if err != nil {
				return err
			}
			defer out.Close()
			_, err = io.Copy(out, tr)
			return err
		}
	})
}

// ExitCode extracts the exit status from the error returned by a
// failed exec.Cmd.Run/Wait, or returns the original error if it is not
// an *exec.ExitError.
func ExitCode(runErr error) (int, error) {
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return ws.ExitStatus(), nil
		}
	}
	return 0, runErr
}

// RunCommand runs name with args, returning an error that embeds both
// stderr output and (via ExitCode) the process exit status on failure.
func RunCommand(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return errors.Join(errors.New(strings.TrimSpace(stderr.String())), err)
		}
		return err
	}
	return nil
}
