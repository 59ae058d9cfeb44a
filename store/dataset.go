package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mempirate/electionjobs/failure"
	"github.com/mempirate/electionjobs/job"
	"github.com/mempirate/electionjobs/log"
	"github.com/mempirate/electionjobs/util"
)

// Dataset is the persisted, append-only table of postings. It is read and
// written whole.
type Dataset interface {
	ReadAll(ctx context.Context) ([]job.Posting, error)
	WriteAll(ctx context.Context, postings []job.Posting) error
}

// CSVDataset stores the dataset as a CSV file with a header row.
type CSVDataset struct {
	log  zerolog.Logger
	path string
}

func NewCSVDataset(path string) *CSVDataset {
	return &CSVDataset{
		log:  log.NewLogger("dataset"),
		path: path,
	}
}

// ReadAll returns every row. A missing file is an empty dataset.
func (d *CSVDataset) ReadAll(ctx context.Context) ([]job.Posting, error) {
	f, err := os.Open(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			d.log.Warn().Str("path", d.path).Msg("Dataset file not found, starting empty")
			return nil, nil
		}
		return nil, failure.Persistence("failed to open dataset", err)
	}
	defer f.Close()

	postings, err := decode(f)
	if err != nil {
		return nil, failure.Persistence("failed to read dataset "+d.path, err)
	}

	return postings, nil
}

// WriteAll replaces the file atomically: readers see either the old or the
// new dataset, never a partial one.
func (d *CSVDataset) WriteAll(ctx context.Context, postings []job.Posting) error {
	var buf bytes.Buffer
	if err := encode(&buf, postings); err != nil {
		return failure.Persistence("failed to encode dataset", err)
	}

	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return failure.Persistence("failed to create dataset directory", err)
	}

	if err := renameio.WriteFile(d.path, buf.Bytes(), 0o644); err != nil {
		return failure.Persistence("failed to write dataset "+d.path, err)
	}

	d.log.Info().Str("path", d.path).Int("rows", len(postings)).Str("size", util.FormatBytes(int64(buf.Len()))).Msg("Dataset written")

	return nil
}

func decode(r io.Reader) ([]job.Posting, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}

	var postings []job.Posting
	seen := make(map[string]struct{})

	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		p, err := job.FromRow(header, row)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		if _, dup := seen[p.Key]; dup {
			return nil, errors.Errorf("line %d: duplicate key %s", line, p.Key)
		}
		seen[p.Key] = struct{}{}

		postings = append(postings, p)
	}

	return postings, nil
}

func encode(w io.Writer, postings []job.Posting) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(job.Columns); err != nil {
		return err
	}

	for i := range postings {
		if err := writer.Write(postings[i].Row()); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
