// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// versionRefRe matches commit hashes and branch refs. Version refs end up
// interpolated into AS OF clauses, so the character set stays narrow.
var versionRefRe = regexp.MustCompile(`^[a-zA-Z0-9._/-]{1,128}$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		// base_version and as_of fields use `versionref`.
		_ = v.RegisterValidation("versionref", func(fl validator.FieldLevel) bool {
			return versionRefRe.MatchString(fl.Field().String())
		})
	}
}
