package util

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// DefaultIPFSGateway is the gateway holdings adapters resolve ipfs:// URIs
// against. The presentation layer cascades through fallbacks on load failure.
const DefaultIPFSGateway = "https://ipfs.io/ipfs/"

// ErrHTTP wraps an unexpected status code from an upstream.
type ErrHTTP struct {
	URL    string
	Status int
	Err    error
}

func (e ErrHTTP) Unwrap() error { return e.Err }
func (e ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP error %d from %s: %s", e.Status, e.URL, e.Err)
}

// BodyAsError reads the response body and returns it as an error.
func BodyAsError(resp *http.Response) error {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return fmt.Errorf("%s", strings.TrimSpace(string(b)))
}

// GetErrFromResp builds an ErrHTTP from a non-OK response.
func GetErrFromResp(resp *http.Response) error {
	return ErrHTTP{URL: resp.Request.URL.String(), Status: resp.StatusCode, Err: BodyAsError(resp)}
}

// UnmarshallBody decodes a JSON body into v.
func UnmarshallBody(v any, body io.Reader) error {
	return json.NewDecoder(body).Decode(v)
}

// IPFSToGateway rewrites ipfs:// URIs to an HTTP gateway URL. Other URLs pass
// through untouched.
func IPFSToGateway(uri string) string {
	if strings.HasPrefix(uri, "ipfs://") {
		return DefaultIPFSGateway + strings.TrimPrefix(strings.TrimPrefix(uri, "ipfs://"), "ipfs/")
	}
	return uri
}

// Filter returns the elements of s for which keep evaluates true. If spare is
// true the result slice is allocated lazily.
func Filter[T any](s []T, keep func(T) bool, spare bool) []T {
	var out []T
	if !spare {
		out = make([]T, 0, len(s))
	}
	for _, v := range s {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Map applies fn to every element of s.
func Map[T, U any](s []T, fn func(T) U) []U {
	out := make([]U, len(s))
	for i, v := range s {
		out[i] = fn(v)
	}
	return out
}

// Contains reports whether s contains v.
func Contains[T comparable](s []T, v T) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}

// FindFirst returns the first element of s matching pred.
func FindFirst[T any](s []T, pred func(T) bool) (T, bool) {
	for _, v := range s {
		if pred(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// ToPointer returns a pointer to v.
func ToPointer[T any](v T) *T { return &v }

// FromPointer dereferences p, returning the zero value when p is nil.
func FromPointer[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// FirstNonEmpty returns the first non-empty string among vals.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// HealthCheckHandler responds 200 to liveness probes.
func HealthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	}
}

// ErrorResponse is the wire shape errors are returned in.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrResponse aborts the request with err rendered as an ErrorResponse.
func ErrResponse(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error()})
}
