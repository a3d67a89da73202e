package livefetch_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/lifeline/internal/livefetch"
)

var longParagraph = strings.Repeat("Move to higher ground and avoid walking through moving water. ", 4)

func newSearchServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/html/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "" {
			http.Error(w, "missing query", http.StatusBadRequest)
			return
		}
		redirect := "//duckduckgo.com/l/?uddg=" + url.QueryEscape(server.URL+"/guide/") + "&rut=abc"
		fmt.Fprintf(w, `<html><body>
			<div class="result result--ad"><a class="result__a" href="%[1]s/ad">Sponsored</a></div>
			<div class="result">
				<a class="result__a" href="%[2]s">Flood <b>safety</b> guide</a>
				<a class="result__snippet">Short &lt;script&gt;alert(1)&lt;/script&gt; tip</a>
			</div>
			<div class="result">
				<a class="result__a" href="%[1]s/private/page">Private page</a>
				<a class="result__snippet">Kept snippet</a>
			</div>
			<div class="result">
				<a class="result__a" href="%[1]s/long">Long snippet</a>
				<a class="result__snippet">%[3]s</a>
			</div>
			<div class="result">
				<a class="result__a" href="%[1]s/long#dup">Duplicate</a>
			</div>
		</body></html>`, server.URL, redirect, longParagraph)
	})
	mux.HandleFunc("/guide", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head><title>Guide</title>
			<meta name="description" content="Official flood guidance."></head>
			<body><nav>Menu</nav><article><p>%s</p></article></body></html>`, longParagraph)
	})
	mux.HandleFunc("/private/page", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("robots.txt disallowed path was fetched")
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newClient(server *httptest.Server, enrich bool) *livefetch.Client {
	return livefetch.New(livefetch.Config{
		SearchURL:  server.URL + "/html/",
		UserAgent:  "LifeLineTest/1.0",
		MaxResults: 10,
		Timeout:    2 * time.Second,
		Enrich:     enrich,
	}, nil)
}

func TestFetchParsesAndSanitizes(t *testing.T) {
	server := newSearchServer(t)
	client := newClient(server, false)

	results, err := client.Fetch(context.Background(), "flood safety")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, server.URL+"/guide", results[0].URL)
	assert.Equal(t, "Flood safety guide", results[0].Title)
	assert.NotContains(t, results[0].Content, "<script>")
	assert.Contains(t, results[0].Content, "Short")

	assert.Equal(t, server.URL+"/private/page", results[1].URL)
	assert.Equal(t, server.URL+"/long", results[2].URL)
}

func TestFetchEnrichesShortSnippets(t *testing.T) {
	server := newSearchServer(t)
	client := newClient(server, true)

	results, err := client.Fetch(context.Background(), "flood safety")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, strings.HasPrefix(results[0].Content, "Official flood guidance."))
	assert.Contains(t, results[0].Content, "higher ground")
	assert.NotContains(t, results[0].Content, "Menu")

	assert.Equal(t, "Kept snippet", results[1].Content)
}

func TestFetchEmptyQuery(t *testing.T) {
	server := newSearchServer(t)
	client := newClient(server, false)

	results, err := client.Fetch(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFetchNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := livefetch.New(livefetch.Config{SearchURL: server.URL + "/html/"}, nil)
	_, err := client.Fetch(context.Background(), "flood")
	assert.Error(t, err)
}

func TestFetchHonorsContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := livefetch.New(livefetch.Config{SearchURL: server.URL + "/html/"}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Fetch(ctx, "flood")
	assert.Error(t, err)
}

func TestParsePageFallsBackToParagraphs(t *testing.T) {
	doc := `<html><head><title> Shelter list </title></head><body>
		<script>var x = 1;</script>
		<p>short</p>
		<p>` + longParagraph + `</p>
	</body></html>`

	page, err := livefetch.ParsePage(strings.NewReader(doc), "https://example.org/shelters")
	require.NoError(t, err)

	assert.Equal(t, "Shelter list", page.Title)
	assert.True(t, page.HasSufficientContent())
	assert.NotContains(t, page.Content, "var x")
	assert.NotContains(t, page.Content, "short")
}

func TestNormalizeURLString(t *testing.T) {
	tests := map[string]string{
		"https://example.org/":          "https://example.org",
		"https://example.org/a/":        "https://example.org/a",
		"https://example.org/a#section": "https://example.org/a",
		"https://example.org/a?id=1":    "https://example.org/a?id=1",
		"https://Example.ORG/a/":        "https://example.org/a",
	}
	for in, want := range tests {
		assert.Equal(t, want, livefetch.NormalizeURLString(in), in)
	}
}

func TestPolitenessReservesSlotsPerHost(t *testing.T) {
	p := livefetch.NewPoliteness(time.Second)

	assert.Zero(t, p.Reserve("a.org"))
	second := p.Reserve("a.org")
	assert.InDelta(t, time.Second, second, float64(50*time.Millisecond))
	third := p.Reserve("a.org")
	assert.InDelta(t, 2*time.Second, third, float64(50*time.Millisecond))

	assert.Zero(t, p.Reserve("b.org"))
}

func TestPolitenessWaitCancelled(t *testing.T) {
	p := livefetch.NewPoliteness(time.Hour)
	p.Reserve("a.org")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx, "a.org"), context.Canceled)
}
