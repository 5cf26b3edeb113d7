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
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/AleutianAI/AleutianKernel/services/kernel/store"
)

// ItemRevision is one historical state of an item, tagged with the commit
// that produced it.
type ItemRevision struct {
	Version    string    `json:"version"`
	Committer  string    `json:"committer"`
	CommitDate time.Time `json:"commit_date"`
	Item       Item      `json:"item"`
}

// CommitInfo is one entry of the trunk commit log.
type CommitInfo struct {
	Hash      string    `json:"hash"`
	Committer string    `json:"committer"`
	Message   string    `json:"message"`
	Date      time.Time `json:"date"`
}

// Version refs name commits or branches. AS OF cannot take a bind
// parameter, so the ref is validated before interpolation.
var validVersionRe = regexp.MustCompile(`^[a-zA-Z0-9._/-]+$`)

// ErrBadVersion indicates a version ref that cannot be interpolated safely.
var ErrBadVersion = errors.New("invalid version ref")

func validateVersion(version string) error {
	if version == "" || len(version) > 128 || !validVersionRe.MatchString(version) {
		return fmt.Errorf("%w: %q", ErrBadVersion, version)
	}
	return nil
}

// GetItemAsOf reads an item as it existed at a past version (commit hash or
// branch ref).
func (r *Repo) GetItemAsOf(ctx context.Context, q store.Querier, id, version string) (*Item, error) {
	if err := validateVersion(version); err != nil {
		return nil, err
	}
	var it Item
	query := fmt.Sprintf(
		`SELECT id, kind, body, created_at, updated_at FROM items AS OF '%s' WHERE id = ?`, version)
	err := q.QueryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&it.ID, &it.Kind, &it.Body, &it.CreatedAt, &it.UpdatedAt)
	}, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: item %s at %s", ErrNotFound, id, version)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching item %s at %s: %w", id, version, err)
	}
	return &it, nil
}

// ItemHistory returns the revisions of one item, newest first.
func (r *Repo) ItemHistory(ctx context.Context, q store.Querier, id string, limit int) ([]ItemRevision, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := q.QueryContext(ctx,
		`SELECT commit_hash, committer, commit_date, id, kind, COALESCE(body, ''), created_at, updated_at
		 FROM dolt_history_items
		 WHERE id = ?
		 ORDER BY commit_date DESC
		 LIMIT ?`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching history of %s: %w", id, err)
	}
	defer rows.Close()

	var out []ItemRevision
	for rows.Next() {
		var rev ItemRevision
		if err := rows.Scan(
			&rev.Version, &rev.Committer, &rev.CommitDate,
			&rev.Item.ID, &rev.Item.Kind, &rev.Item.Body,
			&rev.Item.CreatedAt, &rev.Item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		out = append(out, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: item %s has no history", ErrNotFound, id)
	}
	return out, nil
}

// Log returns the trunk commit log, newest first.
func (r *Repo) Log(ctx context.Context, q store.Querier, limit int) ([]CommitInfo, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := q.QueryContext(ctx,
		`SELECT commit_hash, committer, message, date FROM dolt_log LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching commit log: %w", err)
	}
	defer rows.Close()

	var out []CommitInfo
	for rows.Next() {
		var c CommitInfo
		if err := rows.Scan(&c.Hash, &c.Committer, &c.Message, &c.Date); err != nil {
			return nil, fmt.Errorf("scanning log row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
