// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package endpoint

import (
	"bytes"
	_ "embed"
	"encoding/hex"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/sensor-server/lib/httpwire"
)

//go:embed landing.md
var landingMarkdown []byte

//go:embed favicon.ico
var faviconICO []byte

// resource is a response body fixed at start-up.
type resource struct {
	mime httpwire.MimeType
	body []byte

	// etag is a strong validator derived from the body's BLAKE3
	// digest, quoted as sent in the ETag header.
	etag string
}

func newResource(mime httpwire.MimeType, body []byte) *resource {
	digest := blake3.Sum256(body)
	return &resource{
		mime: mime,
		body: body,
		etag: `"` + hex.EncodeToString(digest[:16]) + `"`,
	}
}

// matches reports whether an If-None-Match value names this
// resource's current ETag.
func (r *resource) matches(ifNoneMatch string) bool {
	for _, candidate := range httpwire.SplitList(ifNoneMatch) {
		if candidate == "*" || candidate == r.etag || candidate == "W/"+r.etag {
			return true
		}
	}
	return false
}

const landingHead = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8">
    <title>%s</title>
  </head>
  <body>
`

const landingTail = `  </body>
</html>
`

// renderLanding converts the embedded Markdown description into the
// HTML landing page.
func renderLanding(title string) ([]byte, error) {
	markdown := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buffer bytes.Buffer
	fmt.Fprintf(&buffer, landingHead, html.EscapeString(title))
	if err := markdown.Convert(landingMarkdown, &buffer); err != nil {
		return nil, fmt.Errorf("endpoint: rendering landing page: %w", err)
	}
	buffer.WriteString(landingTail)
	return buffer.Bytes(), nil
}
