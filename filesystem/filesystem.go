package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Error constants for better error handling
var (
	ErrFileNotFound      = fmt.Errorf("filesystem: file not found")
	ErrDirectoryNotFound = fmt.Errorf("filesystem: directory not found")
	ErrNotDirectory      = fmt.Errorf("filesystem: not a directory")
	ErrInvalidPath       = fmt.Errorf("filesystem: invalid path")
)

type EntryType uint8

const (
	TypeOther EntryType = iota
	TypeFile
	TypeDirectory
	TypeSymlink
)

func (t EntryType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "directory"
	case TypeSymlink:
		return "symlink"
	default:
		return "other"
	}
}

type Entry struct {
	Name   string
	Type   EntryType
	Size   int64
	Hidden bool
}

type File interface {
	io.ReadSeekCloser
}

// Filesystem is the read side of a document root.
type Filesystem interface {
	// Stat follows symbolic links.
	Stat(path string) (Entry, error)
	Open(path string) (File, error)

	// ListDirectory does not follow symbolic links, so entries keep TypeSymlink.
	// Entries are sorted by name.
	ListDirectory(path string) ([]Entry, error)

	IsDirectory(path string) (bool, error)
}

type localFileSystem struct {
	logger *slog.Logger
}

func NewLocalFileSystem(logger *slog.Logger) Filesystem {
	if logger == nil {
		logger = slog.Default()
	}
	return &localFileSystem{logger: logger}
}

func (filesystem *localFileSystem) Stat(path string) (Entry, error) {
	if path == "" || strings.ContainsRune(path, 0) {
		return Entry{}, ErrInvalidPath
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, ErrFileNotFound
		}
		return Entry{}, err
	}

	return newEntry(info.Name(), info.Mode(), info.Size()), nil
}

func (filesystem *localFileSystem) Open(path string) (File, error) {
	entry, err := filesystem.Stat(path)
	if err != nil {
		return nil, err
	}
	if entry.Type == TypeDirectory {
		return nil, ErrInvalidPath
	}

	return os.Open(path)
}

func (filesystem *localFileSystem) ListDirectory(path string) ([]Entry, error) {
	isDirectory, err := filesystem.IsDirectory(path)
	if err != nil {
		return nil, err
	}
	if !isDirectory {
		return nil, ErrNotDirectory
	}

	dir, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := dir.Close(); closeErr != nil {
			filesystem.logger.Error("closing directory error", "path", path, "error", closeErr)
		}
	}()

	dirEntries, err := dir.ReadDir(-1)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		var size int64
		if dirEntry.Type().IsRegular() {
			if info, err := dirEntry.Info(); err == nil {
				size = info.Size()
			}
		}
		entries = append(entries, newEntry(dirEntry.Name(), dirEntry.Type(), size))
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Name, b.Name)
	})

	return entries, nil
}

func (filesystem *localFileSystem) IsDirectory(path string) (bool, error) {
	entry, err := filesystem.Stat(path)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return false, ErrDirectoryNotFound
		}
		return false, err
	}

	return entry.Type == TypeDirectory, nil
}

func newEntry(name string, mode fs.FileMode, size int64) Entry {
	entry := Entry{
		Name:   name,
		Size:   size,
		Hidden: strings.HasPrefix(name, "."),
	}

	switch {
	case mode&fs.ModeSymlink != 0:
		entry.Type = TypeSymlink
	case mode.IsDir():
		entry.Type = TypeDirectory
	case mode.IsRegular():
		entry.Type = TypeFile
	default:
		entry.Type = TypeOther
	}

	return entry
}

// Convenience functions for common operations

// Within joins an already cleaned, slash separated path onto root and reports
// whether the result stays inside root.
func Within(root, path string) (string, bool) {
	root = filepath.Clean(root)
	full := filepath.Join(root, filepath.FromSlash(path))

	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}

	return full, true
}

// GetFileExtension returns the text after the last dot of the final path
// element, or the whole element when it has no dot.
func GetFileExtension(path string) string {
	name := GetFileName(path)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// GetFileName returns the filename without path
func GetFileName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
