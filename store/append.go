package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mempirate/electionjobs/failure"
	"github.com/mempirate/electionjobs/job"
)

// Append writes prior followed by fresh and verifies the result by reading it
// back. Fresh postings whose key is already present are rejected rather than
// silently replacing a persisted row.
func Append(ctx context.Context, d Dataset, prior, fresh []job.Posting) ([]job.Posting, error) {
	keys := make(map[string]struct{}, len(prior)+len(fresh))
	for i := range prior {
		keys[prior[i].Key] = struct{}{}
	}

	merged := make([]job.Posting, 0, len(prior)+len(fresh))
	merged = append(merged, prior...)

	for i := range fresh {
		if _, dup := keys[fresh[i].Key]; dup {
			return nil, failure.Persistence("refusing to append duplicate key "+fresh[i].Key, nil)
		}
		keys[fresh[i].Key] = struct{}{}
		merged = append(merged, fresh[i])
	}

	if err := d.WriteAll(ctx, merged); err != nil {
		return nil, err
	}

	if err := verify(ctx, d, merged); err != nil {
		return nil, failure.Persistence("dataset write could not be verified", err)
	}

	return merged, nil
}

func verify(ctx context.Context, d Dataset, expected []job.Posting) error {
	written, err := d.ReadAll(ctx)
	if err != nil {
		return err
	}

	if len(written) != len(expected) {
		return errors.Errorf("wrote %d rows, read back %d", len(expected), len(written))
	}

	for i := range expected {
		if written[i].Key != expected[i].Key {
			return errors.Errorf("row %d: wrote key %s, read back %s", i, expected[i].Key, written[i].Key)
		}
	}

	return nil
}
