package social

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ProviderError is a failed call to a provider endpoint, with whatever the
// provider said about it.
type ProviderError struct {
	Provider    string
	Operation   string
	Status      int
	Code        string
	Description string
	Err         error
	Raw         map[string]any
}

func (e *ProviderError) Error() string {
	scope := strings.TrimSpace(e.Provider + " " + e.Operation)
	if scope == "" {
		scope = "provider call"
	}

	detail := e.Description
	if detail == "" {
		detail = e.Code
	}
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	if e.Status != 0 {
		detail = strings.TrimSpace(fmt.Sprintf("%d %s", e.Status, detail))
	}
	if detail == "" {
		return scope + " failed"
	}
	return scope + " failed: " + detail
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Unavailable reports a provider side failure: transport errors, throttling
// and 5xx responses. Anything else means the user's grant was rejected.
func (e *ProviderError) Unavailable() bool {
	return (e.Status == 0 && e.Err != nil) ||
		e.Status == http.StatusTooManyRequests ||
		e.Status >= http.StatusInternalServerError
}

// Metadata is attached to the go-errors value returned to callers
func (e *ProviderError) Metadata() map[string]any {
	meta := map[string]any{"provider": e.Provider, "operation": e.Operation}
	if e.Status != 0 {
		meta["status"] = e.Status
	}
	if e.Code != "" {
		meta["code"] = e.Code
	}
	if e.Description != "" {
		meta["description"] = e.Description
	}
	if len(e.Raw) > 0 {
		meta["raw"] = e.Raw
	}
	return meta
}

func (f *CodeFlow) providerError(operation string, status int, code, description string, err error, raw map[string]any) *ProviderError {
	return &ProviderError{
		Provider:    f.config.Provider,
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
		Raw:         raw,
	}
}

// wrapProviderError turns err into a clone of base. Provider outages are
// reported as 502 so they do not read as a rejected login.
func wrapProviderError(base *goerrors.Error, provider, operation string, err error) error {
	meta := map[string]any{"provider": provider, "operation": operation}

	clone := base.Clone()
	var perr *ProviderError
	switch {
	case errors.As(err, &perr):
		for k, v := range perr.Metadata() {
			meta[k] = v
		}
		if perr.Unavailable() {
			clone = clone.WithCode(http.StatusBadGateway)
		}
	case err != nil:
		meta["error"] = err.Error()
	}

	clone.Source = err
	return clone.WithMetadata(meta)
}

// OAuth2 token endpoint errors (RFC 6749 5.2)
type plainErrorResponse struct {
	Error string `json:"error"`
	Desc  string `json:"error_description"`
}

// google and facebook both nest API errors under "error"
type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Type    string `json:"type"`
	} `json:"error"`
}

// twitter v2 problem details
type problemResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

// parseProviderError extracts code, description and the raw fields from an
// error body in any of the shapes above, falling back to the body text.
func parseProviderError(body []byte) (string, string, map[string]any) {
	var plain plainErrorResponse
	if json.Unmarshal(body, &plain) == nil && (plain.Error != "" || plain.Desc != "") {
		return plain.Error, plain.Desc, map[string]any{
			"error":             plain.Error,
			"error_description": plain.Desc,
		}
	}

	var api apiErrorResponse
	if json.Unmarshal(body, &api) == nil && (api.Error.Message != "" || api.Error.Status != "") {
		code := api.Error.Status
		if code == "" {
			code = api.Error.Type
		}
		if code == "" && api.Error.Code != 0 {
			code = strconv.Itoa(api.Error.Code)
		}
		return code, api.Error.Message, map[string]any{
			"status":  api.Error.Status,
			"message": api.Error.Message,
			"code":    api.Error.Code,
		}
	}

	var problem problemResponse
	if json.Unmarshal(body, &problem) == nil && (problem.Title != "" || problem.Detail != "") {
		return problem.Title, problem.Detail, map[string]any{
			"title":  problem.Title,
			"detail": problem.Detail,
			"type":   problem.Type,
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = "provider request failed"
	}
	return "", msg, nil
}
