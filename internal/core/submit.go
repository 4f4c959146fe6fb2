package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/casegrid/internal/grid"
)

// UpdateFunc persists the given fields of one record.
type UpdateFunc func(ctx context.Context, id string, fields map[string]any) error

// SequentialSubmit returns a submit function that updates one record at a
// time, in the order the records first appear in the changeset. When an
// update fails after others succeeded, the error is a
// *grid.PartialCommitError listing the changes that were persisted.
func SequentialSubmit(update UpdateFunc) grid.SubmitFunc {
	return func(ctx context.Context, changes []grid.Change) error {
		var order []string
		byID := make(map[string][]grid.Change)
		for _, c := range changes {
			if _, seen := byID[c.ID]; !seen {
				order = append(order, c.ID)
			}
			byID[c.ID] = append(byID[c.ID], c)
		}

		var applied []grid.Change
		fail := func(err error) error {
			if len(applied) == 0 {
				return err
			}
			return &grid.PartialCommitError{Applied: applied, Err: err}
		}

		for _, id := range order {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			group := byID[id]
			fields := make(map[string]any, len(group))
			for _, c := range group {
				fields[c.Column] = c.Value
			}
			if err := update(ctx, id, fields); err != nil {
				return fail(fmt.Errorf("update %s: %w", id, err))
			}
			applied = append(applied, group...)
		}
		return nil
	}
}
