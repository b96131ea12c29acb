// Package codec converts HTTP messages to and from their exact wire bytes.
package codec

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/haxorport/relay-tunnel/internal/domain/model"
)

const (
	crlf          = "\r\n"
	headTerm      = "\r\n\r\n"
	defaultProto  = "HTTP/1.1"
	contentLength = "Content-Length"
	transferEnc   = "Transfer-Encoding"
)

// SerializeRequest renders req as raw HTTP bytes. Headers are emitted in order
// and the body verbatim; nothing is validated.
func SerializeRequest(req *model.RawRequest) []byte {
	var b bytes.Buffer
	version := req.Version
	if version == "" {
		version = defaultProto
	}
	b.WriteString(req.Method)
	b.WriteByte(' ')
	b.WriteString(req.Target)
	b.WriteByte(' ')
	b.WriteString(version)
	b.WriteString(crlf)
	writeHeaders(&b, req.Headers)
	b.WriteString(crlf)
	b.Write(req.Body)
	return b.Bytes()
}

// ParseRequest parses raw request bytes. Only an empty or unparseable start
// line is an error; header lines without a colon are skipped.
func ParseRequest(data []byte) (*model.RawRequest, error) {
	startLine, headers, body := splitMessage(data)

	fields := strings.Fields(startLine)
	if len(fields) < 2 {
		return nil, model.NewError(model.ErrParse, "invalid request line", nil)
	}
	version := defaultProto
	if len(fields) >= 3 {
		version = fields[2]
	}

	return &model.RawRequest{
		Method:  fields[0],
		Target:  fields[1],
		Version: version,
		Headers: headers,
		Body:    body,
	}, nil
}

// SerializeResponse renders a response as raw HTTP/1.1 bytes. Content-Length
// is rewritten to len(body) and Transfer-Encoding is dropped.
func SerializeResponse(status int, reason string, headers model.Headers, body []byte) []byte {
	if reason == "" {
		reason = http.StatusText(status)
	}

	h := headers.Clone()
	h.Del(transferEnc)
	h.Set(contentLength, strconv.Itoa(len(body)))

	var b bytes.Buffer
	b.WriteString(defaultProto)
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(status))
	if reason != "" {
		b.WriteByte(' ')
		b.WriteString(reason)
	}
	b.WriteString(crlf)
	writeHeaders(&b, h)
	b.WriteString(crlf)
	b.Write(body)
	return b.Bytes()
}

// SerializeRawResponse is SerializeResponse for a RawResponse
func SerializeRawResponse(resp *model.RawResponse) []byte {
	return SerializeResponse(resp.StatusCode, resp.Reason, resp.Headers, resp.Body)
}

// ParseResponse parses raw response bytes
func ParseResponse(data []byte) (*model.RawResponse, error) {
	startLine, headers, body := splitMessage(data)

	startLine = strings.TrimSpace(startLine)
	if startLine == "" {
		return nil, model.NewError(model.ErrParse, "empty status line", nil)
	}
	parts := strings.SplitN(startLine, " ", 3)
	if len(parts) < 2 {
		return nil, model.NewError(model.ErrParse, "invalid status line", nil)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil || code < 100 || code > 599 {
		return nil, model.NewError(model.ErrParse, "invalid status code "+strconv.Quote(parts[1]), nil)
	}
	reason := ""
	if len(parts) == 3 {
		reason = strings.TrimSpace(parts[2])
	}

	return &model.RawResponse{
		StatusCode: code,
		Reason:     reason,
		Headers:    headers,
		Body:       body,
	}, nil
}

// splitMessage separates the start line, the header fields and the body.
// Without a blank line the whole input is treated as head.
func splitMessage(data []byte) (string, model.Headers, []byte) {
	head := data
	var body []byte
	if i := bytes.Index(data, []byte(headTerm)); i >= 0 {
		head = data[:i]
		body = append([]byte(nil), data[i+len(headTerm):]...)
	}
	if body == nil {
		body = []byte{}
	}

	lines := strings.Split(string(head), crlf)
	startLine := lines[0]

	var headers model.Headers
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		headers = append(headers, model.HeaderField{Name: name, Value: strings.TrimSpace(value)})
	}
	return startLine, headers, body
}

func writeHeaders(b *bytes.Buffer, headers model.Headers) {
	for _, f := range headers {
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value)
		b.WriteString(crlf)
	}
}
