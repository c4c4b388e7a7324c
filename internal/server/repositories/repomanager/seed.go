package repomanager

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/userledger/internal/server/models"
	"github.com/dmitrijs2005/userledger/internal/server/repositories/users"
)

const day = 24 * time.Hour

// Seed inserts a few sample users when the table is empty and reports
// whether it did. It writes straight to the repository, so it must run
// before the read-model is built.
func Seed(ctx context.Context, repo users.Repository, now time.Time) (bool, error) {
	n, err := repo.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	now = now.UTC()
	samples := []models.User{
		{FirstName: "John", Surname: "Doe", EmailAddress: "john.doe@example.com", Username: "johndoe",
			Created: now.Add(-30 * day), LastModified: now.Add(-5 * day)},
		{FirstName: "Jane", Surname: "Smith", EmailAddress: "jane.smith@example.com", Username: "janesmith",
			Created: now.Add(-25 * day), LastModified: now.Add(-10 * day)},
		{FirstName: "Bob", Surname: "Johnson", EmailAddress: "bob.johnson@example.com", Username: "bobjohnson",
			Deleted: true, Created: now.Add(-20 * day), LastModified: now.Add(-2 * day)},
	}

	for i := range samples {
		if _, err := repo.Create(ctx, &samples[i]); err != nil {
			return false, fmt.Errorf("seed user %s: %w", samples[i].Username, err)
		}
	}

	return true, nil
}
