package httpjson

import (
	"encoding/json"
	"io"
	"net/http"
)

// ErrorBody est la forme unique des réponses d'erreur de l'API.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func WriteCodedError(w http.ResponseWriter, status int, code, msg string) {
	Write(w, status, ErrorBody{Error: msg, Code: code})
}

// Decode lit un corps JSON en refusant les champs inconnus.
func Decode(r *http.Request, v any) error {
	return DecodeFrom(r.Body, v)
}

// DecodeFrom applique les mêmes règles à une autre source, par exemple un
// champ de formulaire multipart.
func DecodeFrom(rd io.Reader, v any) error {
	dec := json.NewDecoder(rd)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
