package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxBodySize bounds every JSON request body.
const MaxBodySize = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// DecodeJSON decodes r's body into dst, refusing unknown fields and bodies
// over MaxBodySize. Errors are phrased for API clients.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errEmptyBody
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return describeDecodeError(err)
	}
	return nil
}

func describeDecodeError(err error) error {
	var (
		syntax   *json.SyntaxError
		badType  *json.UnmarshalTypeError
		tooLarge *http.MaxBytesError
		badTime  *time.ParseError
	)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.New("malformed JSON: unexpected end of body")
	}
	if errors.Is(err, io.EOF) {
		return errEmptyBody
	}
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("request body exceeds maximum size of %d bytes", MaxBodySize)
	}
	if errors.As(err, &syntax) {
		return fmt.Errorf("malformed JSON at position %d", syntax.Offset)
	}
	if errors.As(err, &badType) {
		return fmt.Errorf("invalid value for field %q: expected %s", badType.Field, badType.Type)
	}
	if errors.As(err, &badTime) {
		return fmt.Errorf("invalid timestamp %q: expected RFC 3339", badTime.Value)
	}
	// encoding/json has no typed error for unknown fields
	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return fmt.Errorf("unknown field %s", field)
	}
	return errors.New("invalid JSON in request body")
}

// Bind runs DecodeJSON then Validate. When either fails the reply (400 or 422)
// has already been written and Bind returns false.
func Bind(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := DecodeJSON(r, dst)
	if err != nil {
		RespondErrorWithCode(w, http.StatusBadRequest, "invalid_body", err.Error())
		return false
	}
	fields := Validate(dst)
	if fields == nil {
		return true
	}
	RespondValidationError(w, fields)
	return false
}
