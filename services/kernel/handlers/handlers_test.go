// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianKernel/services/kernel/items"
	"github.com/AleutianAI/AleutianKernel/services/kernel/mutation"
	"github.com/AleutianAI/AleutianKernel/services/kernel/store"
)

// fakeMutator satisfies Mutator without a store: it returns a canned result
// or error and never runs the unit of work.
type fakeMutator struct {
	result *mutation.Result
	err    error
}

func (f *fakeMutator) Run(ctx context.Context, message, baseVersion string, fn mutation.UnitOfWork) (*mutation.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func performJSON(t *testing.T, h gin.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Handle(method, "/items/:id/attributes/:type", h)
	router.Handle(method, "/items/:id", h)
	router.Handle(method, "/op", h)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateItemCleanPath(t *testing.T) {
	now := time.Now().UTC()
	mut := &fakeMutator{result: &mutation.Result{
		Value:      &items.Item{ID: "id-1", Kind: "note", CreatedAt: now, UpdatedAt: now},
		NewVersion: "commit-0042",
	}}

	rec := performJSON(t, CreateItem(mut, items.NewRepo()),
		http.MethodPost, "/op", `{"kind": "note", "body": "{}"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Item       items.Item `json:"item"`
		NewVersion string     `json:"new_version"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.NewVersion != "commit-0042" {
		t.Errorf("new_version = %q, want commit-0042", resp.NewVersion)
	}
	if resp.Item.Kind != "note" {
		t.Errorf("item kind = %q, want note", resp.Item.Kind)
	}
}

func TestCreateItemRejectsMissingKind(t *testing.T) {
	mut := &fakeMutator{err: fmt.Errorf("must not be called")}
	rec := performJSON(t, CreateItem(mut, items.NewRepo()),
		http.MethodPost, "/op", `{"body": "{}"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantRetry  bool
	}{
		{"conflict", fmt.Errorf("%w (base abc)", mutation.ErrConflict), http.StatusConflict, false},
		{"lock timeout", fmt.Errorf("merge: %w", store.ErrLockTimeout), http.StatusServiceUnavailable, true},
		{"pool exhausted", store.ErrSessionUnavailable, http.StatusServiceUnavailable, true},
		{"not found", fmt.Errorf("%w: item x", items.ErrNotFound), http.StatusNotFound, false},
		{"duplicate", fmt.Errorf("%w: item x", items.ErrDuplicate), http.StatusConflict, false},
		{"unknown type", fmt.Errorf("%w: color", items.ErrUnknownType), http.StatusBadRequest, false},
		{"infrastructure", fmt.Errorf("server went away"), http.StatusInternalServerError, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mut := &fakeMutator{err: tc.err}
			rec := performJSON(t, UpdateItem(mut, items.NewRepo()),
				http.MethodPut, "/items/some-id", `{"body": "{}"}`)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.wantStatus, rec.Body.String())
			}
			if tc.wantRetry && rec.Header().Get("Retry-After") == "" {
				t.Error("missing Retry-After header on a retryable failure")
			}
		})
	}
}

func TestSetAttributeValidation(t *testing.T) {
	mut := &fakeMutator{result: &mutation.Result{NewVersion: "commit-0002"}}

	t.Run("missing value", func(t *testing.T) {
		rec := performJSON(t, SetAttribute(mut, items.NewRepo()),
			http.MethodPut, "/items/id-1/attributes/color", `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("clean set reports new version", func(t *testing.T) {
		rec := performJSON(t, SetAttribute(mut, items.NewRepo()),
			http.MethodPut, "/items/id-1/attributes/color", `{"value": "blue"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "commit-0002") {
			t.Errorf("response missing new_version: %s", rec.Body.String())
		}
	})
}

func TestLinkItemsValidation(t *testing.T) {
	mut := &fakeMutator{result: &mutation.Result{NewVersion: "commit-0003"}}

	t.Run("rejects non-uuid endpoints", func(t *testing.T) {
		rec := performJSON(t, LinkItems(mut, items.NewRepo()),
			http.MethodPost, "/op", `{"from_id": "nope", "to_id": "also-nope", "type": "parent"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("clean link", func(t *testing.T) {
		body := `{"from_id": "550e8400-e29b-41d4-a716-446655440000",
		          "to_id": "550e8400-e29b-41d4-a716-446655440001",
		          "type": "parent"}`
		rec := performJSON(t, LinkItems(mut, items.NewRepo()),
			http.MethodPost, "/op", body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", HealthCheck)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
