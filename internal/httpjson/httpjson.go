// Package httpjson writes the API's JSON envelopes and decodes the parsed
// request body into typed values.
package httpjson

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/log"
	"github.com/keithlinneman/tours-api/internal/reqctx"
)

// Envelope is the success shape every API router returns.
type Envelope struct {
	Status  string `json:"status"`
	Results *int   `json:"results,omitempty"`
	Token   string `json:"token,omitempty"`
	Data    any    `json:"data"`
}

// Write encodes v with the given status. Encoding failures are logged; the
// status line has already been sent by then.
func Write(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(ctx).Warn(ctx, "failed to encode JSON response", "error", err)
	}
}

// Success writes {"status":"success","data":{key: v}}.
func Success(ctx context.Context, w http.ResponseWriter, status int, key string, v any) {
	Write(ctx, w, status, Envelope{Status: "success", Data: map[string]any{key: v}})
}

// List writes a success envelope with a results count.
func List[T any](ctx context.Context, w http.ResponseWriter, key string, items []T) {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	Write(ctx, w, http.StatusOK, Envelope{Status: "success", Results: &n, Data: map[string]any{key: items}})
}

// NoContent writes 204 with no body.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// DecodeBody copies the body parsed by the pipeline into dst. Type
// mismatches are client errors.
func DecodeBody(ctx context.Context, dst any) error {
	body := reqctx.Body(ctx)
	if body == nil {
		body = map[string]any{}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return apperr.Wrap(err, "re-encode request body")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return apperr.FromCause(err, "Invalid "+te.Field+": wrong type", http.StatusBadRequest)
		}
		return apperr.FromCause(err, "Invalid request body", http.StatusBadRequest)
	}
	return nil
}

// MergeBody overlays the request body on dst through its JSON form, so only the
// fields the client sent change.
func MergeBody(ctx context.Context, dst any) error {
	cur, err := json.Marshal(dst)
	if err != nil {
		return apperr.Wrap(err, "encode current document")
	}
	doc := map[string]any{}
	if err := json.Unmarshal(cur, &doc); err != nil {
		return apperr.Wrap(err, "decode current document")
	}
	patch := map[string]any{}
	if err := DecodeBody(ctx, &patch); err != nil {
		return err
	}
	for k, v := range patch {
		doc[k] = v
	}
	next, err := json.Marshal(doc)
	if err != nil {
		return apperr.Wrap(err, "encode patched document")
	}
	if err := json.Unmarshal(next, dst); err != nil {
		return apperr.FromCause(err, "Invalid request body", http.StatusBadRequest)
	}
	return nil
}
