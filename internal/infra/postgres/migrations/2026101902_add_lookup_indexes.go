package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS participations_leaderboard_idx ON participations (contest_id, submitted, result DESC, submitted_at);
CREATE INDEX IF NOT EXISTS questions_category_idx ON questions (category_id);
CREATE INDEX IF NOT EXISTS contests_status_start_idx ON contests (status, start_time)`)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
DROP INDEX IF EXISTS participations_leaderboard_idx;
DROP INDEX IF EXISTS questions_category_idx;
DROP INDEX IF EXISTS contests_status_start_idx`)
			return err
		},
	)
}
