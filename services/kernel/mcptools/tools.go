// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mcptools exposes the kernel over the Model Context Protocol.
// Write tools run through the mutation orchestrator exactly like the REST
// path; conflicts and lock timeouts come back as tool errors carrying
// retry guidance for the calling agent.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/AleutianAI/AleutianKernel/services/kernel/items"
	"github.com/AleutianAI/AleutianKernel/services/kernel/mutation"
	"github.com/AleutianAI/AleutianKernel/services/kernel/store"
)

// Mutator is the write path. Satisfied by *mutation.Orchestrator.
type Mutator interface {
	Run(ctx context.Context, message, baseVersion string, fn mutation.UnitOfWork) (*mutation.Result, error)
}

// Tools bundles the kernel dependencies the MCP handlers need.
type Tools struct {
	mut  Mutator
	repo *items.Repo
	q    store.Querier
}

// NewTools returns the kernel's MCP tool set.
func NewTools(mut Mutator, repo *items.Repo, q store.Querier) *Tools {
	return &Tools{mut: mut, repo: repo, q: q}
}

// toolError renders a kernel error as a tool result the agent can act on.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, mutation.ErrConflict):
		return mcp.NewToolResultError(
			"conflict: a concurrent write changed the same data. Refetch the item and retry the operation with fresh state.")
	case errors.Is(err, store.ErrLockTimeout), errors.Is(err, store.ErrSessionUnavailable):
		return mcp.NewToolResultError(
			"busy: the store is serializing writes. Retry the same operation shortly.")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// =============================================================================
// Item tools
// =============================================================================

func (t *Tools) CreateItemDefinition() mcp.Tool {
	return mcp.NewTool("kernel_create_item",
		mcp.WithDescription("Create a new item in the data kernel. Returns the item and the new trunk version."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Item kind, e.g. note, task, document")),
		mcp.WithString("body", mcp.Description("Free-form body, typically JSON")),
		mcp.WithString("base_version", mcp.Description("Optional version to fork the write from")),
	)
}

func (t *Tools) CreateItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body := req.GetString("body", "")
	base := req.GetString("base_version", "")

	res, err := t.mut.Run(ctx, fmt.Sprintf("create item kind=%s", kind), base,
		func(ctx context.Context, sess mutation.Session) (any, error) {
			return t.repo.CreateItem(ctx, sess, kind, body, "")
		})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{
		"item":        res.Value,
		"new_version": res.NewVersion,
	})
}

func (t *Tools) GetItemDefinition() mcp.Tool {
	return mcp.NewTool("kernel_get_item",
		mcp.WithDescription("Fetch an item with its attributes and linkages. Pass as_of to read a past version."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithString("as_of", mcp.Description("Optional version ref for a historical read")),
	)
}

func (t *Tools) GetItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if asOf := req.GetString("as_of", ""); asOf != "" {
		it, err := t.repo.GetItemAsOf(ctx, t.q, id, asOf)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(map[string]any{"item": it, "as_of": asOf})
	}

	it, err := t.repo.GetItem(ctx, t.q, id)
	if err != nil {
		return toolError(err), nil
	}
	attrs, err := t.repo.ListAttributes(ctx, t.q, id)
	if err != nil {
		return toolError(err), nil
	}
	links, err := t.repo.Neighbors(ctx, t.q, id, "")
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{
		"item":       it,
		"attributes": attrs,
		"linkages":   links,
	})
}

func (t *Tools) UpdateItemDefinition() mcp.Tool {
	return mcp.NewTool("kernel_update_item",
		mcp.WithDescription("Update an item's kind and/or body. Returns the updated item and the new trunk version."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithString("kind", mcp.Description("New kind; empty keeps the current one")),
		mcp.WithString("body", mcp.Description("New body; replaces the current one")),
		mcp.WithString("base_version", mcp.Description("Optional version to fork the write from")),
	)
}

func (t *Tools) UpdateItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind := req.GetString("kind", "")
	body := req.GetString("body", "")
	base := req.GetString("base_version", "")

	res, err := t.mut.Run(ctx, fmt.Sprintf("update item %s", id), base,
		func(ctx context.Context, sess mutation.Session) (any, error) {
			return t.repo.UpdateItem(ctx, sess, id, kind, body)
		})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{
		"item":        res.Value,
		"new_version": res.NewVersion,
	})
}

// =============================================================================
// Attribute and linkage tools
// =============================================================================

func (t *Tools) SetAttributeDefinition() mcp.Tool {
	return mcp.NewTool("kernel_set_attribute",
		mcp.WithDescription("Set a typed attribute value on an item. The attribute type must be registered."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Registered attribute type")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Attribute value")),
		mcp.WithString("base_version", mcp.Description("Optional version to fork the write from")),
	)
}

func (t *Tools) SetAttribute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	attrType, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := req.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := t.mut.Run(ctx, fmt.Sprintf("set attribute %s on %s", attrType, id),
		req.GetString("base_version", ""),
		func(ctx context.Context, sess mutation.Session) (any, error) {
			return nil, t.repo.SetAttribute(ctx, sess, id, attrType, value)
		})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"status": "set", "new_version": res.NewVersion})
}

func (t *Tools) LinkItemsDefinition() mcp.Tool {
	return mcp.NewTool("kernel_link_items",
		mcp.WithDescription("Create a typed directed linkage between two items. The linkage type must be registered."),
		mcp.WithString("from_id", mcp.Required(), mcp.Description("Source item id")),
		mcp.WithString("to_id", mcp.Required(), mcp.Description("Target item id")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Registered linkage type")),
		mcp.WithString("base_version", mcp.Description("Optional version to fork the write from")),
	)
}

func (t *Tools) LinkItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fromID, err := req.RequireString("from_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	toID, err := req.RequireString("to_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	linkType, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := t.mut.Run(ctx, fmt.Sprintf("link %s -[%s]-> %s", fromID, linkType, toID),
		req.GetString("base_version", ""),
		func(ctx context.Context, sess mutation.Session) (any, error) {
			return nil, t.repo.Link(ctx, sess, fromID, toID, linkType)
		})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"status": "linked", "new_version": res.NewVersion})
}

// =============================================================================
// History tools
// =============================================================================

func (t *Tools) ItemHistoryDefinition() mcp.Tool {
	return mcp.NewTool("kernel_item_history",
		mcp.WithDescription("List the historical revisions of an item, newest first."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithNumber("limit", mcp.Description("Maximum revisions to return (default 50)")),
	)
}

func (t *Tools) ItemHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", 50)

	revs, err := t.repo.ItemHistory(ctx, t.q, id, limit)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"item_id": id, "revisions": revs})
}

func (t *Tools) LogDefinition() mcp.Tool {
	return mcp.NewTool("kernel_log",
		mcp.WithDescription("List the trunk commit log, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum commits to return (default 50)")),
	)
}

func (t *Tools) Log(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log, err := t.repo.Log(ctx, t.q, req.GetInt("limit", 50))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"commits": log})
}
