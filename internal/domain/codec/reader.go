package codec

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http/httputil"
	"strconv"
	"strings"

	"github.com/haxorport/relay-tunnel/internal/domain/model"
)

// MaxHeadBytes bounds the request line plus headers read off a client stream
const MaxHeadBytes = 64 << 10

// ReadRequest frames exactly one request off r. The head is read up to the
// blank line; the body is read by Content-Length, or de-chunked when the
// request is chunked, in which case the framing headers are rewritten to a
// Content-Length. io.EOF is returned untouched when r ends before any byte.
func ReadRequest(r *bufio.Reader, maxBody int64) (*model.RawRequest, error) {
	var head bytes.Buffer
	consumed := 0
	for {
		raw, err := readHeadLine(r, MaxHeadBytes-consumed)
		if errors.Is(err, errHeadTooLarge) {
			return nil, model.NewError(model.ErrParse, "request head too large", nil)
		}
		consumed += len(raw)
		if err != nil {
			if errors.Is(err, io.EOF) && head.Len() == 0 && len(raw) == 0 {
				return nil, io.EOF
			}
			return nil, model.NewError(model.ErrParse, "reading request head", err)
		}
		line := strings.TrimRight(string(raw), "\r\n")
		if line == "" {
			// tolerate stray blank lines before the request line
			if head.Len() == 0 {
				continue
			}
			break
		}
		head.WriteString(line)
		head.WriteString(crlf)
	}
	head.WriteString(crlf)

	req, err := ParseRequest(head.Bytes())
	if err != nil {
		return nil, err
	}

	body, err := readBody(r, req.Headers, maxBody)
	if err != nil {
		return nil, err
	}
	if isChunked(req.Headers) {
		req.Headers.Del(transferEnc)
		req.Headers.Set(contentLength, strconv.Itoa(len(body)))
	}
	req.Body = body
	return req, nil
}

var errHeadTooLarge = errors.New("request head too large")

// readHeadLine reads one line including its terminator. It stops with
// errHeadTooLarge as soon as the line outgrows budget, so a line without a
// newline never buffers more than budget plus one bufio buffer.
func readHeadLine(r *bufio.Reader, budget int) ([]byte, error) {
	var line []byte
	for {
		frag, err := r.ReadSlice('\n')
		if len(line)+len(frag) > budget {
			return nil, errHeadTooLarge
		}
		line = append(line, frag...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, err
	}
}

func readBody(r *bufio.Reader, headers model.Headers, maxBody int64) ([]byte, error) {
	if isChunked(headers) {
		data, err := io.ReadAll(io.LimitReader(httputil.NewChunkedReader(r), maxBody+1))
		if err != nil {
			return nil, model.NewError(model.ErrParse, "reading chunked body", err)
		}
		if int64(len(data)) > maxBody {
			return nil, model.NewError(model.ErrParse, fmt.Sprintf("body exceeds %d bytes", maxBody), nil)
		}
		// trailers up to the final blank line
		for {
			line, err := r.ReadString('\n')
			if err != nil || strings.TrimRight(line, "\r\n") == "" {
				break
			}
		}
		return data, nil
	}

	cl := headers.Get(contentLength)
	if cl == "" {
		return []byte{}, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
	if err != nil || n < 0 {
		return nil, model.NewError(model.ErrParse, "invalid Content-Length "+strconv.Quote(cl), nil)
	}
	if n > maxBody {
		return nil, model.NewError(model.ErrParse, fmt.Sprintf("body exceeds %d bytes", maxBody), nil)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, model.NewError(model.ErrParse, "reading body", err)
	}
	return body, nil
}

func isChunked(headers model.Headers) bool {
	for _, v := range headers.Values(transferEnc) {
		if strings.Contains(strings.ToLower(v), "chunked") {
			return true
		}
	}
	return false
}
