package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yamelab/medref/internal/fetch"
)

func TestShouldPromoteEmptyBody(t *testing.T) {
	h := NewHeuristic(0)
	require.True(t, h.ShouldPromote(fetch.Response{StatusCode: 200}))
}

func TestShouldPromoteSPAMarker(t *testing.T) {
	h := NewHeuristic(0)
	body := []byte(`<html><body><div id="root"></div></body></html>`)
	require.True(t, h.ShouldPromote(fetch.Response{StatusCode: 200, Body: body}))
}

func TestShouldPromoteNuxtShell(t *testing.T) {
	h := NewHeuristic(0)
	body := []byte(`<html><body><div id="app"></div><script>window.__NUXT__={}</script></body></html>`)
	require.True(t, h.ShouldPromote(fetch.Response{StatusCode: 200, Body: body}))
}

func TestShouldNotPromoteRenderedWikiArticle(t *testing.T) {
	h := NewHeuristic(0)
	body := []byte(`<html><body><div id="mw-content-text"><div class="mw-parser-output"><p>고혈압</p></div></div>` +
		`<script>mw.loader.load([]);</script></body></html>`)
	require.False(t, h.ShouldPromote(fetch.Response{StatusCode: 200, Body: body}))
}

func TestShouldNotPromoteStaticPage(t *testing.T) {
	h := NewHeuristic(0)
	body := []byte("<html><body>" + strings.Repeat("<p>content</p>", 500) + "</body></html>")
	require.False(t, h.ShouldPromote(fetch.Response{StatusCode: 200, Body: body}))
}

func TestShouldNotPromoteNon200(t *testing.T) {
	h := NewHeuristic(0)
	require.False(t, h.ShouldPromote(fetch.Response{StatusCode: 404}))
}

func TestShouldPromoteScriptHeavyShortPage(t *testing.T) {
	h := NewHeuristic(2048)
	body := []byte(`<html><body><script>window.bootstrap({a:1,b:2,c:3});</script><p>x</p></body></html>`)
	require.True(t, h.ShouldPromote(fetch.Response{StatusCode: 200, Body: body}))
}
