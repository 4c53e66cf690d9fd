package db

import "context"

const listSettings = `-- name: ListSettings :many
SELECT key, value, updated_at FROM site_settings ORDER BY key`

func (q *Queries) ListSettings(ctx context.Context) ([]SiteSetting, error) {
	rows, err := q.db.Query(ctx, listSettings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SiteSetting
	for rows.Next() {
		var i SiteSetting
		if err := rows.Scan(&i.Key, &i.Value, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertSetting = `-- name: UpsertSetting :exec
INSERT INTO site_settings (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

type UpsertSettingParams struct {
	Key   string
	Value []byte
}

func (q *Queries) UpsertSetting(ctx context.Context, arg UpsertSettingParams) error {
	_, err := q.db.Exec(ctx, upsertSetting, arg.Key, arg.Value)
	return err
}
