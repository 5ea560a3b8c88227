package rest

import (
	"encoding/json"
	"net/http"
)

// APIResponse is the envelope of every JSON body served by the API.
type APIResponse struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Meta    any    `json:"meta,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

type listMeta struct {
	Total int `json:"total"`
}

func respond(w http.ResponseWriter, status int, body APIResponse) {
	buf, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(buf, '\n'))
}

func respondList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	respond(w, http.StatusOK, APIResponse{Data: items, Meta: listMeta{Total: len(items)}})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, APIResponse{Message: message})
}

func respondInvalid(w http.ResponseWriter, fields map[string]string) {
	respond(w, http.StatusUnprocessableEntity, APIResponse{
		Message: "The given configuration was invalid.",
		Errors:  fields,
	})
}
