package store

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/pkg/errors"

	"github.com/mempirate/electionjobs/job"
)

var ErrExists = errors.New("snapshot already exists")

// Mirror keeps the raw HTML of every issue page that was downloaded. A stored
// snapshot is never rewritten.
type Mirror interface {
	// List returns all mirrored issues, oldest first.
	List() ([]job.Issue, error)

	Contains(issue job.Issue) (bool, error)

	// Store saves a snapshot. It returns ErrExists if the issue is already mirrored.
	Store(issue job.Issue, content io.Reader) error

	// Get returns a reader for the snapshot. The caller is responsible for closing the reader!
	Get(issue job.Issue) (io.ReadCloser, error)
}

// FileStore mirrors issues as <dataDir>/<year>/<MM-DD>.html.
type FileStore struct {
	dataDir string
}

func NewFileStore(dataDir string) *FileStore {
	return &FileStore{
		dataDir: dataDir,
	}
}

func (fs *FileStore) path(issue job.Issue) string {
	return filepath.Join(fs.dataDir, strconv.Itoa(issue.Year), issue.Date+".html")
}

func (fs *FileStore) List() ([]job.Issue, error) {
	years, err := os.ReadDir(fs.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	issues := make([]job.Issue, 0)
	for _, yearDir := range years {
		if !yearDir.IsDir() {
			continue
		}

		year, err := strconv.Atoi(yearDir.Name())
		if err != nil {
			continue
		}

		entries, err := os.ReadDir(filepath.Join(fs.dataDir, yearDir.Name()))
		if err != nil {
			return nil, err
		}

		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".html") {
				continue
			}
			issues = append(issues, job.Issue{Year: year, Date: strings.TrimSuffix(name, ".html")})
		}
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Year != issues[j].Year {
			return issues[i].Year < issues[j].Year
		}
		return issues[i].Date < issues[j].Date
	})

	return issues, nil
}

func (fs *FileStore) Contains(issue job.Issue) (bool, error) {
	_, err := os.Stat(fs.path(issue))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (fs *FileStore) Store(issue job.Issue, content io.Reader) error {
	exists, err := fs.Contains(issue)
	if err != nil {
		return err
	}
	if exists {
		return errors.Wrap(ErrExists, issue.ID())
	}

	filePath := fs.path(issue)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return errors.Wrap(err, "failed to create mirror directory")
	}

	// Written through a temp file so an interrupted download never leaves a
	// truncated snapshot that later runs would treat as mirrored.
	file, err := renameio.NewPendingFile(filePath, renameio.WithPermissions(0o644))
	if err != nil {
		return err
	}
	defer file.Cleanup()

	if _, err := io.Copy(file, content); err != nil {
		return err
	}

	return file.CloseAtomicallyReplace()
}

func (fs *FileStore) Get(issue job.Issue) (io.ReadCloser, error) {
	return os.Open(fs.path(issue))
}
