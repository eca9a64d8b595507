package wiki_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horrible-little-slime/oaf/wiki"
)

func TestSearchFollowsExactMatchRedirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "mr. accessory", r.URL.Query().Get("search"))
		w.Header().Set("Location", "/index.php/Mr._Accessory")
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	client := wiki.NewClient().WithBaseURL(server.URL)
	result, err := client.Search(context.Background(), "mr. accessory")
	require.NoError(t, err)

	assert.Equal(t, "Mr. Accessory", result.Title)
	assert.Equal(t, server.URL+"/index.php/Mr._Accessory", result.URL)
}

func TestSearchTakesFirstResultPageHit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body>
		<ul class="mw-search-results">
			<li class="mw-search-result">
				<a href="/index.php/Toy_Accordion" title="Toy Accordion">Toy Accordion</a>
			</li>
			<li class="mw-search-result">
				<a href="/index.php/Stolen_Accordion" title="Stolen Accordion">Stolen Accordion</a>
			</li>
		</ul>
		</body></html>`)
	}))
	defer server.Close()

	client := wiki.NewClient().WithBaseURL(server.URL)
	result, err := client.Search(context.Background(), "accordion")
	require.NoError(t, err)

	assert.Equal(t, "Toy Accordion", result.Title)
	assert.Equal(t, server.URL+"/index.php/Toy_Accordion", result.URL)
}

func TestSearchNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><p class="mw-search-nonefound">There were no results.</p></body></html>`)
	}))
	defer server.Close()

	client := wiki.NewClient().WithBaseURL(server.URL)
	_, err := client.Search(context.Background(), "xyzzy plugh")
	assert.True(t, errors.Is(err, wiki.ErrNoResults))
}

func TestSearchTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := wiki.NewClient().WithBaseURL(server.URL)
	_, err := client.Search(context.Background(), "anything")
	assert.Error(t, err)
}
