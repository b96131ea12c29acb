package model

import "strings"

// HeaderField is a single header line as it appeared on the wire
type HeaderField struct {
	Name  string
	Value string
}

// Headers is an ordered list of header fields. Duplicates and the case of
// names are kept; lookups ignore case.
type Headers []HeaderField

// Get returns the first value for name, or ""
func (h Headers) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Values returns every value for name in order
func (h Headers) Values(name string) []string {
	var values []string
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			values = append(values, f.Value)
		}
	}
	return values
}

// Has reports whether name is present
func (h Headers) Has(name string) bool {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// Add appends a field
func (h *Headers) Add(name, value string) {
	*h = append(*h, HeaderField{Name: name, Value: value})
}

// Set replaces the first field named name in place and drops the others.
// The field is appended when absent.
func (h *Headers) Set(name, value string) {
	out := (*h)[:0]
	replaced := false
	for _, f := range *h {
		if strings.EqualFold(f.Name, name) {
			if replaced {
				continue
			}
			f.Value = value
			replaced = true
		}
		out = append(out, f)
	}
	if !replaced {
		out = append(out, HeaderField{Name: name, Value: value})
	}
	*h = out
}

// Del removes every field named name
func (h *Headers) Del(name string) {
	out := (*h)[:0]
	for _, f := range *h {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	*h = out
}

// Clone returns an independent copy
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	return append(Headers(nil), h...)
}

// RawRequest is a client request captured byte-for-byte
type RawRequest struct {
	// Method is the request method token
	Method string
	// Target is the absolute URI or origin-form path
	Target string
	// Version is the protocol version, e.g. HTTP/1.1
	Version string
	// Headers are the request headers in wire order
	Headers Headers
	// Body is the request body, possibly empty
	Body []byte
}

// IsAbsolute reports whether Target carries its own scheme and host
func (r *RawRequest) IsAbsolute() bool {
	t := strings.ToLower(r.Target)
	return strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://")
}

// RawResponse is a fully buffered response
type RawResponse struct {
	// StatusCode is the status code (100-599)
	StatusCode int
	// Reason is the free text reason phrase
	Reason string
	// Headers are the response headers in order
	Headers Headers
	// Body is the whole response body
	Body []byte
}
