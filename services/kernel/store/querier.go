// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"database/sql"
)

// Querier is the parameterized-SQL surface shared by the pool and a
// dedicated session. Data-access code written against it runs unchanged on
// the trunk (reads) and inside a mutation branch (writes).
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, scan func(*sql.Row) error, query string, args ...any) error
}

var (
	_ Querier = (*Store)(nil)
	_ Querier = (*Session)(nil)
)
