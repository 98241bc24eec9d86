// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/evidence-engine/internal/httputil"
)

const articlePage = `<html><head><title>T</title><style>.x{}</style><script>var a = 1;</script></head>
<body>
<nav><a href="/">Home</a> <a href="/blog">Blog</a></nav>
<article>
  <h1>Flutter   performance</h1>
  <p>Flutter compiles to <b>native</b> ARM code.</p>
  <ul><li>Impeller renderer</li><li>Skia fallback</li></ul>
  <script>tracking()</script>
</article>
<footer>Copyright</footer>
</body></html>`

func TestExtractTextKeepsArticle(t *testing.T) {
	text, err := ExtractText([]byte(articlePage), 0)
	require.NoError(t, err)
	assert.Equal(t, "Flutter performance\nFlutter compiles to native ARM code.\nImpeller renderer\nSkia fallback", text)
	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "Home")
	assert.NotContains(t, text, "Copyright")
}

func TestExtractTextFallsBackToBody(t *testing.T) {
	text, err := ExtractText([]byte(`<html><body><div>plain   body text</div><nav>menu</nav></body></html>`), 0)
	require.NoError(t, err)
	assert.Equal(t, "plain body text", text)
}

func TestExtractTextTruncatesRunes(t *testing.T) {
	text, err := ExtractText([]byte(`<html><body><p>héllo wörld</p></body></html>`), 5)
	require.NoError(t, err)
	assert.Equal(t, "héllo", text)
}

func TestPageFetcherFetch(t *testing.T) {
	ts := serve(t, http.StatusOK, "text/html", articlePage, nil)
	f := NewPageFetcher(httputil.NewClient(httputil.WithHTTPClient(ts.Client()), httputil.WithMaxRetries(0)), 30)

	text, err := f.Fetch(context.Background(), ts.URL+"/post")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "Flutter performance"))
	assert.Len(t, []rune(text), 30)
}

func TestPageFetcherRejectsBadURLs(t *testing.T) {
	f := NewPageFetcher(nil, 0)
	for _, u := range []string{"", "ftp://example.com/file", "not a url", "/relative"} {
		_, err := f.Fetch(context.Background(), u)
		assert.ErrorIs(t, err, ErrInvalidURL, u)
		assert.Equal(t, KindInvalid, KindOf(err), u)
	}
}

func TestPageFetcherBlockedAndStatus(t *testing.T) {
	blocked := serve(t, http.StatusOK, "text/html", `<html><body>Access Denied</body></html>`, nil)
	f := NewPageFetcher(httputil.NewClient(httputil.WithHTTPClient(blocked.Client()), httputil.WithMaxRetries(0)), 0)
	_, err := f.Fetch(context.Background(), blocked.URL)
	assert.ErrorIs(t, err, ErrBlocked)

	missing := serve(t, http.StatusNotFound, "text/html", "nope", nil)
	_, err = f.Fetch(context.Background(), missing.URL)
	require.Error(t, err)
	assert.True(t, httputil.IsStatus(err, http.StatusNotFound))
}
