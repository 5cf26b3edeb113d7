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

import "errors"

var (
	// ErrNotFound indicates the requested item, attribute, or linkage does
	// not exist on the queried branch or version.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates a uniqueness violation (item id, type name, or
	// linkage tuple already present).
	ErrDuplicate = errors.New("already exists")

	// ErrUnknownType indicates an attribute or linkage references a type
	// that was never registered.
	ErrUnknownType = errors.New("unknown type")

	// ErrInUse indicates a type cannot be removed while rows still
	// reference it.
	ErrInUse = errors.New("type is in use")
)
