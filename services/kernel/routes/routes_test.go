// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianKernel/services/kernel/items"
)

func TestSetupRoutesRegistersAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, nil, items.NewRepo(), nil)

	want := map[string]bool{
		http.MethodGet + " /health":                           false,
		http.MethodGet + " /metrics":                          false,
		http.MethodPost + " /v1/items":                        false,
		http.MethodGet + " /v1/items":                         false,
		http.MethodGet + " /v1/items/:id":                     false,
		http.MethodPut + " /v1/items/:id":                     false,
		http.MethodDelete + " /v1/items/:id":                  false,
		http.MethodGet + " /v1/items/:id/history":             false,
		http.MethodPut + " /v1/items/:id/attributes/:type":    false,
		http.MethodDelete + " /v1/items/:id/attributes/:type": false,
		http.MethodPost + " /v1/linkages":                     false,
		http.MethodDelete + " /v1/linkages":                   false,
		http.MethodGet + " /v1/types":                         false,
		http.MethodPost + " /v1/types/attributes":             false,
		http.MethodDelete + " /v1/types/attributes/:name":     false,
		http.MethodPost + " /v1/types/linkages":               false,
		http.MethodGet + " /v1/versions":                      false,
		http.MethodGet + " /v1/versions/head":                 false,
	}

	for _, route := range router.Routes() {
		key := route.Method + " " + route.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for key, found := range want {
		if !found {
			t.Errorf("route %s not registered", key)
		}
	}
}
