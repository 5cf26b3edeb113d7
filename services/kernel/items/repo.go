// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package items is the data kernel's CRUD layer: generic items carrying
// typed attributes and typed linkages. Every operation runs against a
// store.Querier, so the same code serves trunk reads and branch-isolated
// writes inside a mutation.
package items

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianKernel/services/kernel/store"
)

// Item is a generic kernel entity. Body is free-form (typically JSON);
// structure beyond kind lives in attributes and linkages.
type Item struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Attribute is a typed key/value on an item. One value per type per item.
type Attribute struct {
	ItemID string `json:"item_id"`
	Type   string `json:"type"`
	Value  string `json:"value"`
}

// Linkage is a typed directed edge between two items.
type Linkage struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
	Type   string `json:"type"`
}

// AttributeType declares a legal attribute name and the kind of value it
// carries (string, number, bool, json).
type AttributeType struct {
	Name      string `json:"name"`
	ValueKind string `json:"value_kind"`
}

// Repo exposes the kernel's data operations.
type Repo struct {
	logger *slog.Logger
}

// NewRepo returns the data-access layer.
func NewRepo() *Repo {
	return &Repo{
		logger: slog.Default().With("component", "items.Repo"),
	}
}

// =============================================================================
// Items
// =============================================================================

// CreateItem inserts a new item. A blank id gets a generated UUID; a caller
// supplying its own id collides with ErrDuplicate if it exists.
func (r *Repo) CreateItem(ctx context.Context, q store.Querier, kind, body, id string) (*Item, error) {
	if kind == "" {
		return nil, fmt.Errorf("%w: kind must not be empty", ErrUnknownType)
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := q.ExecContext(ctx,
		`INSERT INTO items (id, kind, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, kind, body, now, now)
	if err != nil {
		if store.IsDuplicateKey(err) {
			return nil, fmt.Errorf("%w: item %s", ErrDuplicate, id)
		}
		return nil, fmt.Errorf("creating item: %w", err)
	}
	return &Item{ID: id, Kind: kind, Body: body, CreatedAt: now, UpdatedAt: now}, nil
}

// GetItem fetches one item by id.
func (r *Repo) GetItem(ctx context.Context, q store.Querier, id string) (*Item, error) {
	var it Item
	err := q.QueryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&it.ID, &it.Kind, &it.Body, &it.CreatedAt, &it.UpdatedAt)
	}, `SELECT id, kind, body, created_at, updated_at FROM items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching item %s: %w", id, err)
	}
	return &it, nil
}

// UpdateItem replaces an item's kind and/or body. Empty kind keeps the
// current one; body always overwrites (clearing is a legal update).
func (r *Repo) UpdateItem(ctx context.Context, q store.Querier, id, kind, body string) (*Item, error) {
	cur, err := r.GetItem(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if kind == "" {
		kind = cur.Kind
	}
	now := time.Now().UTC()
	if _, err := q.ExecContext(ctx,
		`UPDATE items SET kind = ?, body = ?, updated_at = ? WHERE id = ?`,
		kind, body, now, id); err != nil {
		return nil, fmt.Errorf("updating item %s: %w", id, err)
	}
	cur.Kind = kind
	cur.Body = body
	cur.UpdatedAt = now
	return cur, nil
}

// DeleteItem removes an item together with its attributes and linkages.
func (r *Repo) DeleteItem(ctx context.Context, q store.Querier, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting item %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM attributes WHERE item_id = ?`, id); err != nil {
		return fmt.Errorf("deleting attributes of %s: %w", id, err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM linkages WHERE from_id = ? OR to_id = ?`, id, id); err != nil {
		return fmt.Errorf("deleting linkages of %s: %w", id, err)
	}
	return nil
}

// ListItems pages through items, optionally filtered by kind.
func (r *Repo) ListItems(ctx context.Context, q store.Querier, kind string, limit, offset int) ([]Item, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, kind, body, created_at, updated_at FROM items ORDER BY created_at, id LIMIT ? OFFSET ?`
	args := []any{limit, offset}
	if kind != "" {
		query = `SELECT id, kind, body, created_at, updated_at FROM items WHERE kind = ? ORDER BY created_at, id LIMIT ? OFFSET ?`
		args = []any{kind, limit, offset}
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Kind, &it.Body, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning item row: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// =============================================================================
// Attributes
// =============================================================================

// SetAttribute upserts one typed value on an item. The attribute type must
// be registered and the item must exist.
func (r *Repo) SetAttribute(ctx context.Context, q store.Querier, itemID, attrType, value string) error {
	if err := r.requireAttributeType(ctx, q, attrType); err != nil {
		return err
	}
	if _, err := r.GetItem(ctx, q, itemID); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO attributes (item_id, type, value) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE value = VALUES(value)`,
		itemID, attrType, value)
	if err != nil {
		return fmt.Errorf("setting attribute %s on %s: %w", attrType, itemID, err)
	}
	return nil
}

// UnsetAttribute removes one typed value from an item.
func (r *Repo) UnsetAttribute(ctx context.Context, q store.Querier, itemID, attrType string) error {
	res, err := q.ExecContext(ctx,
		`DELETE FROM attributes WHERE item_id = ? AND type = ?`, itemID, attrType)
	if err != nil {
		return fmt.Errorf("unsetting attribute %s on %s: %w", attrType, itemID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: attribute %s on item %s", ErrNotFound, attrType, itemID)
	}
	return nil
}

// ListAttributes returns all attributes on an item.
func (r *Repo) ListAttributes(ctx context.Context, q store.Querier, itemID string) ([]Attribute, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT item_id, type, value FROM attributes WHERE item_id = ? ORDER BY type`, itemID)
	if err != nil {
		return nil, fmt.Errorf("listing attributes of %s: %w", itemID, err)
	}
	defer rows.Close()

	var out []Attribute
	for rows.Next() {
		var a Attribute
		if err := rows.Scan(&a.ItemID, &a.Type, &a.Value); err != nil {
			return nil, fmt.Errorf("scanning attribute row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// Linkages
// =============================================================================

// Link creates a typed edge between two existing items.
func (r *Repo) Link(ctx context.Context, q store.Querier, fromID, toID, linkType string) error {
	if err := r.requireLinkageType(ctx, q, linkType); err != nil {
		return err
	}
	if _, err := r.GetItem(ctx, q, fromID); err != nil {
		return err
	}
	if _, err := r.GetItem(ctx, q, toID); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO linkages (from_id, to_id, type) VALUES (?, ?, ?)`,
		fromID, toID, linkType)
	if err != nil {
		if store.IsDuplicateKey(err) {
			return fmt.Errorf("%w: linkage %s -[%s]-> %s", ErrDuplicate, fromID, linkType, toID)
		}
		return fmt.Errorf("linking %s to %s: %w", fromID, toID, err)
	}
	return nil
}

// Unlink removes a typed edge.
func (r *Repo) Unlink(ctx context.Context, q store.Querier, fromID, toID, linkType string) error {
	res, err := q.ExecContext(ctx,
		`DELETE FROM linkages WHERE from_id = ? AND to_id = ? AND type = ?`,
		fromID, toID, linkType)
	if err != nil {
		return fmt.Errorf("unlinking %s from %s: %w", fromID, toID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: linkage %s -[%s]-> %s", ErrNotFound, fromID, linkType, toID)
	}
	return nil
}

// Neighbors returns the linkages touching an item in either direction,
// optionally filtered by type.
func (r *Repo) Neighbors(ctx context.Context, q store.Querier, itemID, linkType string) ([]Linkage, error) {
	query := `SELECT from_id, to_id, type FROM linkages WHERE (from_id = ? OR to_id = ?) ORDER BY type, from_id, to_id`
	args := []any{itemID, itemID}
	if linkType != "" {
		query = `SELECT from_id, to_id, type FROM linkages WHERE (from_id = ? OR to_id = ?) AND type = ? ORDER BY type, from_id, to_id`
		args = []any{itemID, itemID, linkType}
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing linkages of %s: %w", itemID, err)
	}
	defer rows.Close()

	var out []Linkage
	for rows.Next() {
		var l Linkage
		if err := rows.Scan(&l.FromID, &l.ToID, &l.Type); err != nil {
			return nil, fmt.Errorf("scanning linkage row: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// =============================================================================
// Type registry
// =============================================================================

var validValueKinds = map[string]bool{
	"string": true,
	"number": true,
	"bool":   true,
	"json":   true,
}

// RegisterAttributeType declares a new attribute type. ValueKind defaults
// to string.
func (r *Repo) RegisterAttributeType(ctx context.Context, q store.Querier, name, valueKind string) error {
	if name == "" {
		return fmt.Errorf("%w: attribute type name must not be empty", ErrUnknownType)
	}
	if valueKind == "" {
		valueKind = "string"
	}
	if !validValueKinds[valueKind] {
		return fmt.Errorf("%w: value kind %q", ErrUnknownType, valueKind)
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO attribute_types (name, value_kind) VALUES (?, ?)`, name, valueKind)
	if err != nil {
		if store.IsDuplicateKey(err) {
			return fmt.Errorf("%w: attribute type %s", ErrDuplicate, name)
		}
		return fmt.Errorf("registering attribute type %s: %w", name, err)
	}
	return nil
}

// RegisterLinkageType declares a new linkage type.
func (r *Repo) RegisterLinkageType(ctx context.Context, q store.Querier, name string) error {
	if name == "" {
		return fmt.Errorf("%w: linkage type name must not be empty", ErrUnknownType)
	}
	_, err := q.ExecContext(ctx, `INSERT INTO linkage_types (name) VALUES (?)`, name)
	if err != nil {
		if store.IsDuplicateKey(err) {
			return fmt.Errorf("%w: linkage type %s", ErrDuplicate, name)
		}
		return fmt.Errorf("registering linkage type %s: %w", name, err)
	}
	return nil
}

// DeleteAttributeType removes a type that no attribute references.
func (r *Repo) DeleteAttributeType(ctx context.Context, q store.Querier, name string) error {
	var refs int
	err := q.QueryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&refs)
	}, `SELECT COUNT(*) FROM attributes WHERE type = ?`, name)
	if err != nil {
		return fmt.Errorf("checking references to attribute type %s: %w", name, err)
	}
	if refs > 0 {
		return fmt.Errorf("%w: attribute type %s has %d values", ErrInUse, name, refs)
	}
	res, err := q.ExecContext(ctx, `DELETE FROM attribute_types WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting attribute type %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: attribute type %s", ErrNotFound, name)
	}
	return nil
}

// ListAttributeTypes returns every registered attribute type.
func (r *Repo) ListAttributeTypes(ctx context.Context, q store.Querier) ([]AttributeType, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name, value_kind FROM attribute_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing attribute types: %w", err)
	}
	defer rows.Close()

	var out []AttributeType
	for rows.Next() {
		var at AttributeType
		if err := rows.Scan(&at.Name, &at.ValueKind); err != nil {
			return nil, fmt.Errorf("scanning attribute type row: %w", err)
		}
		out = append(out, at)
	}
	return out, rows.Err()
}

// ListLinkageTypes returns every registered linkage type.
func (r *Repo) ListLinkageTypes(ctx context.Context, q store.Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM linkage_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing linkage types: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning linkage type row: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *Repo) requireAttributeType(ctx context.Context, q store.Querier, name string) error {
	var found string
	err := q.QueryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&found)
	}, `SELECT name FROM attribute_types WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: attribute type %s", ErrUnknownType, name)
	}
	if err != nil {
		return fmt.Errorf("resolving attribute type %s: %w", name, err)
	}
	return nil
}

func (r *Repo) requireLinkageType(ctx context.Context, q store.Querier, name string) error {
	var found string
	err := q.QueryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&found)
	}, `SELECT name FROM linkage_types WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: linkage type %s", ErrUnknownType, name)
	}
	if err != nil {
		return fmt.Errorf("resolving linkage type %s: %w", name, err)
	}
	return nil
}
