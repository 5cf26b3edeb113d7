// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mcptools

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/AleutianAI/AleutianKernel/services/kernel/items"
	"github.com/AleutianAI/AleutianKernel/services/kernel/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewServer composes the MCP server: it registers every kernel tool against
// the shared orchestrator and repo. No business logic lives here.
func NewServer(mut Mutator, repo *items.Repo, q store.Querier) *server.MCPServer {
	s := server.NewMCPServer(
		"aleutian-kernel",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions),
	)

	t := NewTools(mut, repo, q)

	s.AddTool(t.CreateItemDefinition(), t.CreateItem)
	s.AddTool(t.GetItemDefinition(), t.GetItem)
	s.AddTool(t.UpdateItemDefinition(), t.UpdateItem)
	s.AddTool(t.SetAttributeDefinition(), t.SetAttribute)
	s.AddTool(t.LinkItemsDefinition(), t.LinkItems)
	s.AddTool(t.ItemHistoryDefinition(), t.ItemHistory)
	s.AddTool(t.LogDefinition(), t.Log)

	return s
}

const serverInstructions = `The kernel stores versioned items with typed attributes and linkages.
Every write is isolated on its own branch and merged atomically; on a
"conflict" error, refetch the affected items and retry the operation with
fresh state. On a "busy" error, retry the same call after a short delay.`
