// Package detector decides when to promote fetches to headless renderers.
package detector

import (
	"bytes"
	"strings"

	"github.com/yamelab/medref/internal/fetch"
)

// Heuristic implements a handful of rule-based promotions tuned to the crawl
// sources: MediaWiki articles arrive fully rendered, the hospital health
// pages mount client-side apps into an empty shell.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a new detector.
func NewHeuristic(threshold int) *Heuristic {
	if threshold == 0 {
		threshold = 2048
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

// renderedMarkers identify bodies whose content already arrived in the probe
// response. mw-parser-output and mw-content-text wrap every rendered
// MediaWiki article; data-server-rendered marks Vue SSR output.
var renderedMarkers = [][]byte{
	[]byte("mw-parser-output"),
	[]byte("mw-content-text"),
	[]byte("data-server-rendered"),
}

// shellMarkers identify client-rendered shells that need a browser before the
// content exists. The hospital pages mount Nuxt/Vue apps; the rest cover the
// common React mount points.
var shellMarkers = [][]byte{
	[]byte("__NUXT__"),
	[]byte("id=\"app\""),
	[]byte("id=\"root\""),
	[]byte("data-reactroot"),
	[]byte("__next"),
}

// ShouldPromote decides whether a headless fetch is required.
func (h *Heuristic) ShouldPromote(resp fetch.Response) bool {
	if resp.StatusCode != 200 {
		return false
	}
	body := resp.Body
	if len(body) == 0 {
		return true
	}
	for _, marker := range renderedMarkers {
		if bytes.Contains(body, marker) {
			return false
		}
	}
	for _, marker := range shellMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return len(body) < h.BodyLengthThreshold && scriptDensityHigh(body)
}

func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	scriptCoverage := 0
	searchPos := 0

	for {
		relativeStart := strings.Index(lower[searchPos:], openTag)
		if relativeStart == -1 {
			break
		}
		start := searchPos + relativeStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			// Treat the rest of the document as part of the malformed script.
			scriptCoverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relativeEnd := strings.Index(lower[contentStart:], closeTag)
		var nextSearch int
		if relativeEnd == -1 {
			// Script tag never closes; count the rest.
			nextSearch = total
		} else {
			nextSearch = contentStart + relativeEnd + len(closeTag)
		}

		scriptCoverage += nextSearch - start
		searchPos = nextSearch
	}

	if scriptCoverage == 0 {
		return false
	}
	return scriptCoverage*100/total >= 25
}
