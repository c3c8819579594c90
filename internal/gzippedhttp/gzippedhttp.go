// Package gzippedhttp provides middlewares that transparently compress
// responses and decompress request bodies using gzip.
package gzippedhttp

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// CompressedReader wraps an io.ReadCloser and decompresses its input using gzip.
type CompressedReader struct {
	r  io.ReadCloser
	zr *gzip.Reader
}

// NewCompressedReader returns a new CompressedReader that reads gzip-compressed data
// from the provided io.ReadCloser.
func NewCompressedReader(requestBody io.ReadCloser) (*CompressedReader, error) {
	zippedRequestBody, err := gzip.NewReader(requestBody)
	if err != nil {
		return nil, err
	}

	return &CompressedReader{
		r:  requestBody,
		zr: zippedRequestBody,
	}, nil
}

func (c *CompressedReader) Read(p []byte) (n int, err error) {
	return c.zr.Read(p)
}

// Close closes both the gzip reader and the underlying io.ReadCloser.
func (c *CompressedReader) Close() error {
	if err := c.r.Close(); err != nil {
		return err
	}
	return c.zr.Close()
}

// CompressedHTTPResponseWriter wraps http.ResponseWriter and compresses
// the response body once the status code says there is a body to compress.
type CompressedHTTPResponseWriter struct {
	w           http.ResponseWriter
	zw          *gzip.Writer
	headSent    bool
	compressing bool
	headRequest bool
}

// NewCompressedHTTPResponseWriter returns a writer that gzips the body written to w.
func NewCompressedHTTPResponseWriter(w http.ResponseWriter, headRequest bool) *CompressedHTTPResponseWriter {
	return &CompressedHTTPResponseWriter{
		w:           w,
		headRequest: headRequest,
	}
}

func bodyAllowed(statusCode int) bool {
	return statusCode >= 200 && statusCode != http.StatusNoContent && statusCode != http.StatusNotModified
}

// WriteHeader decides whether the body will be compressed and sends the status line.
func (c *CompressedHTTPResponseWriter) WriteHeader(statusCode int) {
	if c.headSent {
		return
	}
	c.headSent = true

	c.w.Header().Add("Vary", "Accept-Encoding")
	if bodyAllowed(statusCode) && !c.headRequest && c.w.Header().Get("Content-Encoding") == "" {
		c.compressing = true
		c.w.Header().Set("Content-Encoding", "gzip")
		c.w.Header().Del("Content-Length")

		c.zw = gzipWriterPool.Get().(*gzip.Writer)
		c.zw.Reset(c.w)
	}

	c.w.WriteHeader(statusCode)
}

// Write writes the body, compressing it when WriteHeader decided so.
func (c *CompressedHTTPResponseWriter) Write(p []byte) (int, error) {
	if !c.headSent {
		c.WriteHeader(http.StatusOK)
	}
	if !c.compressing {
		return c.w.Write(p)
	}

	return c.zw.Write(p)
}

func (c *CompressedHTTPResponseWriter) Header() http.Header {
	return c.w.Header()
}

// Close flushes the gzip stream and returns the gzip writer to the pool.
func (c *CompressedHTTPResponseWriter) Close() error {
	if !c.compressing {
		return nil
	}

	err := c.zw.Close()
	gzipWriterPool.Put(c.zw)
	c.zw = nil
	c.compressing = false

	return err
}

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return w
	},
}

// GzipResponse is the middleware that compresses the response when
// the request's "Accept-Encoding" header allows gzip.
func GzipResponse(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if !strings.Contains(request.Header.Get("Accept-Encoding"), "gzip") {
			h.ServeHTTP(response, request)
			return
		}

		responseWithCompression := NewCompressedHTTPResponseWriter(response, request.Method == http.MethodHead)
		defer responseWithCompression.Close()

		h.ServeHTTP(responseWithCompression, request)
	}

	return http.HandlerFunc(middleware)
}

// UngzipRequest returns a middleware that replaces a gzip-encoded request
// body with a decompressing reader. A body that is not valid gzip is passed
// to onError and the request goes no further.
func UngzipRequest(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		middleware := func(response http.ResponseWriter, request *http.Request) {
			if strings.Contains(request.Header.Get("Content-Encoding"), "gzip") {
				requestBodyWithCompression, err := NewCompressedReader(request.Body)
				if err != nil {
					onError(response, request, err)
					return
				}
				request.Body = requestBodyWithCompression
				request.Header.Del("Content-Encoding")
				request.ContentLength = -1
				defer requestBodyWithCompression.Close()
			}

			h.ServeHTTP(response, request)
		}

		return http.HandlerFunc(middleware)
	}
}
