package uitdatabank

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cultuurnet/offerbench/pkg/offer"
	"github.com/cultuurnet/offerbench/pkg/source"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{BaseURL: server.URL, APIKey: "secret-key"})
	require.NoError(t, err)
	return server, client
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}},
		{name: "custom base without slash", cfg: Config{BaseURL: "https://search-test.uitdatabank.be"}},
		{name: "relative base", cfg: Config{BaseURL: "/api/"}, wantErr: true},
		{name: "garbage base", cfg: Config{BaseURL: "://nope"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestListingURL(t *testing.T) {
	client, err := New(Config{
		APIKey: "k",
		Params: map[string]string{"disableDefaultFilters": "true"},
	})
	require.NoError(t, err)

	u, err := url.Parse(client.ListingURL(offer.Place, 4000, 2000))
	require.NoError(t, err)

	assert.Equal(t, "io.uitdatabank.be", u.Host)
	assert.Equal(t, "/places/", u.Path)
	assert.Equal(t, "k", u.Query().Get("apiKey"))
	assert.Equal(t, "2000", u.Query().Get("limit"))
	assert.Equal(t, "4000", u.Query().Get("start"))
	assert.Equal(t, "true", u.Query().Get("disableDefaultFilters"))
}

func TestFetchPage(t *testing.T) {
	var gotQuery url.Values
	var gotPath string

	server, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{
			"@context": "http://www.w3.org/ns/hydra/context.jsonld",
			"@type": "PagedCollection",
			"itemsPerPage": 2000,
			"totalItems": 3,
			"member": [
				{"@id": "https://io.uitdatabank.be/event/e-1", "@type": "Event"},
				{"@type": "Event"},
				{"@id": "https://io.uitdatabank.be/event/e-2", "@type": "Event"}
			]
		}`)
	})
	_ = server

	refs, err := client.FetchPage(context.Background(), offer.Event, 2000, 2000)
	require.NoError(t, err)

	assert.Equal(t, "/events/", gotPath)
	assert.Equal(t, "2000", gotQuery.Get("start"))
	assert.Equal(t, "2000", gotQuery.Get("limit"))
	assert.Equal(t, "secret-key", gotQuery.Get("apiKey"))
	assert.Equal(t, []string{
		"https://io.uitdatabank.be/event/e-1",
		"https://io.uitdatabank.be/event/e-2",
	}, refs)
}

func TestFetchPage_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{}`, wantMsg: "unexpected status 500"},
		{name: "invalid json", status: http.StatusOK, body: `<html>`, wantMsg: "not valid JSON"},
		{name: "no member list", status: http.StatusOK, body: `{"totalItems": 0}`, wantMsg: "no member list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			refs, err := client.FetchPage(context.Background(), offer.Place, 0, 2000)
			require.ErrorIs(t, err, source.ErrFetchFailed)
			assert.Nil(t, refs)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.NotContains(t, err.Error(), "secret-key")
		})
	}
}

func TestFetchOne(t *testing.T) {
	var gotKey string

	server, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("apiKey")
		fmt.Fprintf(w, `{"@id": "http://%s%s", "name": {"nl": "Opera"}, "priceInfo": [{"price": 12.5}], "big": 12345678901234567890}`, r.Host, r.URL.Path)
	})

	doc, err := client.FetchOne(context.Background(), server.URL+"/event/e-1")
	require.NoError(t, err)

	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, server.URL+"/event/e-1", doc["@id"])
	assert.Equal(t, "12345678901234567890", fmt.Sprint(doc["big"]))

	o, err := offer.FromDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, "e-1", o.ID)
	assert.Equal(t, "Opera", o.Name["nl"])
}

func TestFetchOne_ForeignHostGetsNoKey(t *testing.T) {
	var gotKey string
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("apiKey")
		fmt.Fprint(w, `{"@id": "https://elsewhere.example/place/p-1"}`)
	}))
	defer foreign.Close()

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := client.FetchOne(context.Background(), foreign.URL+"/place/p-1")
	require.NoError(t, err)
	assert.Empty(t, gotKey)
}

func TestFetchOne_Failures(t *testing.T) {
	server, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/event/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/event/broken":
			fmt.Fprint(w, `{"@id":`)
		case "/event/null":
			fmt.Fprint(w, `null`)
		}
	})

	for _, ref := range []string{"/event/missing", "/event/broken", "/event/null"} {
		t.Run(ref, func(t *testing.T) {
			_, err := client.FetchOne(context.Background(), server.URL+ref)
			assert.ErrorIs(t, err, source.ErrFetchFailed)
		})
	}
}

func TestFetchOne_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.FetchOne(context.Background(), server.URL+"/event/slow")
	assert.ErrorIs(t, err, source.ErrFetchFailed)
}
