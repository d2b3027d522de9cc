package repo

import (
	"context"

	"murmur/internal/modkit/repokit"
)

// Schema creates the activity tables when they are missing
// the users table is owned elsewhere in production, it is created here for local and test setups
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	login         TEXT NOT NULL DEFAULT '',
	nicename      TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	display_name  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS activity (
	id                 BIGSERIAL PRIMARY KEY,
	user_id            BIGINT NOT NULL DEFAULT 0,
	component          VARCHAR(75) NOT NULL,
	type               VARCHAR(75) NOT NULL,
	action             TEXT NOT NULL DEFAULT '',
	content            TEXT NOT NULL DEFAULT '',
	primary_link       VARCHAR(255) NOT NULL DEFAULT '',
	item_id            BIGINT NOT NULL DEFAULT 0,
	secondary_item_id  BIGINT NOT NULL DEFAULT 0,
	date_recorded      TIMESTAMPTZ NOT NULL DEFAULT now(),
	hide_sitewide      BOOLEAN NOT NULL DEFAULT false,
	is_spam            BOOLEAN NOT NULL DEFAULT false,
	mptt_left          BIGINT NOT NULL DEFAULT 0,
	mptt_right         BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS activity_date_idx ON activity (date_recorded DESC, id DESC);
CREATE INDEX IF NOT EXISTS activity_user_idx ON activity (user_id);
CREATE INDEX IF NOT EXISTS activity_item_idx ON activity (item_id);
CREATE INDEX IF NOT EXISTS activity_secondary_idx ON activity (secondary_item_id);
CREATE INDEX IF NOT EXISTS activity_component_type_idx ON activity (component, type);
CREATE INDEX IF NOT EXISTS activity_tree_idx ON activity (item_id, mptt_left) WHERE type = 'activity_comment';

CREATE TABLE IF NOT EXISTS activity_meta (
	id           BIGSERIAL PRIMARY KEY,
	activity_id  BIGINT NOT NULL,
	meta_key     VARCHAR(255) NOT NULL,
	meta_value   TEXT NOT NULL DEFAULT '',
	UNIQUE (activity_id, meta_key)
);
`

// EnsureSchema applies Schema
func EnsureSchema(ctx context.Context, q repokit.Queryer) error {
	_, err := q.Exec(ctx, Schema)
	return err
}
