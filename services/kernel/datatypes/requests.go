// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the REST request and response shapes for the
// kernel API.
package datatypes

import "github.com/AleutianAI/AleutianKernel/services/kernel/items"

// CreateItemRequest creates a new item. BaseVersion optionally pins the
// mutation's fork point; empty means "current trunk head".
type CreateItemRequest struct {
	Kind        string `json:"kind" binding:"required,min=1,max=128"`
	Body        string `json:"body" binding:"omitempty,max=65535"`
	ID          string `json:"id" binding:"omitempty,uuid"`
	BaseVersion string `json:"base_version" binding:"omitempty,versionref"`
}

// UpdateItemRequest updates an item's kind and/or body.
type UpdateItemRequest struct {
	Kind        string `json:"kind" binding:"omitempty,max=128"`
	Body        string `json:"body" binding:"omitempty,max=65535"`
	BaseVersion string `json:"base_version" binding:"omitempty,versionref"`
}

// SetAttributeRequest sets one typed value on an item.
type SetAttributeRequest struct {
	Value       string `json:"value" binding:"required,max=65535"`
	BaseVersion string `json:"base_version" binding:"omitempty,versionref"`
}

// LinkageRequest creates or removes a typed edge.
type LinkageRequest struct {
	FromID      string `json:"from_id" binding:"required,uuid"`
	ToID        string `json:"to_id" binding:"required,uuid"`
	Type        string `json:"type" binding:"required,min=1,max=128"`
	BaseVersion string `json:"base_version" binding:"omitempty,versionref"`
}

// RegisterAttributeTypeRequest declares an attribute type.
type RegisterAttributeTypeRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=128"`
	ValueKind   string `json:"value_kind" binding:"omitempty,oneof=string number bool json"`
	BaseVersion string `json:"base_version" binding:"omitempty,versionref"`
}

// RegisterLinkageTypeRequest declares a linkage type.
type RegisterLinkageTypeRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=128"`
	BaseVersion string `json:"base_version" binding:"omitempty,versionref"`
}

// DeleteTypeQuery carries the optional base version on bodyless deletes.
type DeleteTypeQuery struct {
	BaseVersion string `form:"base_version" binding:"omitempty,versionref"`
}

// ItemResponse wraps an item on the clean write path, stamped with the
// trunk version produced by the merge.
type ItemResponse struct {
	Item       *items.Item `json:"item"`
	NewVersion string      `json:"new_version,omitempty"`
}

// MutationResponse reports a write that returns no entity body.
type MutationResponse struct {
	Status     string `json:"status"`
	NewVersion string `json:"new_version,omitempty"`
}

// ItemDetail is the read-path item view with attributes and linkages.
type ItemDetail struct {
	Item       *items.Item       `json:"item"`
	Attributes []items.Attribute `json:"attributes,omitempty"`
	Linkages   []items.Linkage   `json:"linkages,omitempty"`
}

// TypesResponse lists the registered type vocabularies.
type TypesResponse struct {
	AttributeTypes []items.AttributeType `json:"attribute_types"`
	LinkageTypes   []string              `json:"linkage_types"`
}
