package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/GrafeoDB/grafeo-server/pkg/kindtag"
)

// errorBody is the wire shape every failure takes:
// { "error": <kind>, "detail": <human message> }.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError translates err into a kind-tagged JSON error body using
// the HTTP status assigned to that kind. Non-kindtag errors are
// treated as internal.
func writeError(w http.ResponseWriter, err error) {
	var ke *kindtag.Error
	if e, ok := err.(*kindtag.Error); ok {
		ke = e
	} else {
		ke = kindtag.New(kindtag.Internal, err.Error())
	}
	writeJSON(w, ke.Kind.HTTPStatus(), errorBody{Error: string(ke.Kind), Detail: ke.Detail})
}

// decodeStrict rejects unknown fields; used on admin endpoints where
// an unrecognized field is more likely a caller mistake than a
// forward-compatible addition.
func decodeStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// decodeLenient accepts unknown fields; used on query endpoints for
// forward compatibility.
func decodeLenient(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
