// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package items

import (
	"context"
	"fmt"

	"github.com/AleutianAI/AleutianKernel/services/kernel/store"
)

// schemaStatements creates the kernel tables. Statements are idempotent so
// bootstrap can run them on every start; the trunk only gains a commit when
// something actually changed.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS attribute_types (
		name       VARCHAR(128) NOT NULL,
		value_kind VARCHAR(32)  NOT NULL DEFAULT 'string',
		PRIMARY KEY (name)
	)`,
	`CREATE TABLE IF NOT EXISTS linkage_types (
		name VARCHAR(128) NOT NULL,
		PRIMARY KEY (name)
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id         CHAR(36)     NOT NULL,
		kind       VARCHAR(128) NOT NULL,
		body       TEXT,
		created_at DATETIME(6)  NOT NULL,
		updated_at DATETIME(6)  NOT NULL,
		PRIMARY KEY (id),
		KEY idx_items_kind (kind)
	)`,
	`CREATE TABLE IF NOT EXISTS attributes (
		item_id VARCHAR(36)  NOT NULL,
		type    VARCHAR(128) NOT NULL,
		value   TEXT         NOT NULL,
		PRIMARY KEY (item_id, type)
	)`,
	`CREATE TABLE IF NOT EXISTS linkages (
		from_id VARCHAR(36)  NOT NULL,
		to_id   VARCHAR(36)  NOT NULL,
		type    VARCHAR(128) NOT NULL,
		PRIMARY KEY (from_id, to_id, type),
		KEY idx_linkages_to (to_id)
	)`,
}

// EnsureSchema creates any missing kernel tables.
//
// Run it on a dedicated session checked out on the trunk, then commit, so
// the schema lands as a versioned trunk commit like any other write.
func EnsureSchema(ctx context.Context, q store.Querier) error {
	for _, stmt := range schemaStatements {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring kernel schema: %w", err)
		}
	}
	return nil
}
