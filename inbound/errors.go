package inbound

import (
	"encoding/json"
	"net/http"

	"github.com/goliatone/go-deployer/core"
	goerrors "github.com/goliatone/go-errors"
)

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Category string         `json:"category"`
	TextCode string         `json:"text_code"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func inboundError(message string, category goerrors.Category, code int, textCode string) error {
	return goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
}

func inboundBadInput(message string) error {
	return inboundError(message, goerrors.CategoryBadInput, http.StatusBadRequest, core.ErrorBadInput)
}

// StatusCode maps a deployer error to its HTTP status.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	mapped := core.MapError(err)
	if mapped == nil || mapped.Code == 0 {
		return http.StatusInternalServerError
	}
	return mapped.Code
}

func errorPayloadFor(err error) errorPayload {
	mapped := core.MapError(err)
	if mapped == nil {
		return errorPayload{Category: string(goerrors.CategoryInternal), TextCode: core.ErrorInternal}
	}
	return errorPayload{
		Category: string(mapped.Category),
		TextCode: mapped.TextCode,
		Message:  mapped.Message,
		Metadata: mapped.Metadata,
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusCode(err), errorBody{Error: errorPayloadFor(err)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
