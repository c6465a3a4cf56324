// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package provider

import (
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
)

// NewHTTPClient builds the client shared by all adapters: HTTP/2 where the
// provider supports it, a small keep-alive pool, and brotli alongside gzip
// on the accept list. Compression is negotiated manually because the stdlib
// transport only handles gzip on its own.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxConnsPerHost:     5,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 2 * time.Second,
		DisableCompression:  true,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		log.Warnf("http2 unavailable, staying on http/1.1: %v", err)
	}
	// Total request time comes from the caller's context; the client
	// itself must not impose a second deadline.
	return &http.Client{Transport: transport}
}

const acceptEncoding = "gzip, br"

// decodeBody wraps the response body in the decoder its Content-Encoding
// asks for. The caller still closes the original body.
func decodeBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

// readBody drains and decodes a response body.
func readBody(resp *http.Response) ([]byte, error) {
	reader, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(reader)
}

func closeBody(resp *http.Response, who string) {
	if err := resp.Body.Close(); err != nil {
		log.Errorf("%s: close response body error: %v", who, err)
	}
}
