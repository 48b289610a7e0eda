package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search/movie", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.URL.Query().Get("query"); got != "The Matrix" {
			t.Errorf("unexpected query %q", got)
		}
		if got := r.URL.Query().Get("language"); got != "en-US" {
			t.Errorf("unexpected language %q", got)
		}
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":603,"title":"The Matrix","release_date":"1999-03-30"}],"total_results":1}`))
	})
	mux.HandleFunc("/movie/603/videos", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":603,"results":[
			{"key":"abc","site":"Vimeo","type":"Trailer"},
			{"key":"def","site":"YouTube","type":"Teaser"},
			{"key":"m8e-FF8MsqU","site":"YouTube","type":"Trailer","name":"Official Trailer"}
		]}`))
	})
	mux.HandleFunc("/configuration", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"images":{}}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestSearchAndTrailer(t *testing.T) {
	server := newTestServer(t)
	client, err := New("key", server.URL+"/", "en-US", WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := client.SearchMovie(context.Background(), "  The Matrix ")
	if err != nil {
		t.Fatalf("SearchMovie: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != 603 {
		t.Fatalf("unexpected results %+v", resp.Results)
	}

	videos, err := client.MovieVideos(context.Background(), 603)
	if err != nil {
		t.Fatalf("MovieVideos: %v", err)
	}
	trailer, ok := FirstTrailer(videos)
	if !ok {
		t.Fatal("expected a trailer")
	}
	if got := trailer.YouTubeURL(); got != "https://www.youtube.com/watch?v=m8e-FF8MsqU" {
		t.Fatalf("unexpected url %s", got)
	}
}

func TestSearchReportsHTTPStatus(t *testing.T) {
	server := newTestServer(t)
	client, err := New("wrong", server.URL, "en-US")
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.SearchMovie(context.Background(), "The Matrix")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(" ", "https://api.themoviedb.org/3", ""); err == nil {
		t.Fatal("expected error for empty key")
	}
	client, _ := New("k", "https://api.themoviedb.org/3", "")
	if _, err := client.SearchMovie(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty query")
	}
	if _, err := client.MovieVideos(context.Background(), 0); err == nil {
		t.Fatal("expected error for invalid id")
	}
}

func TestFirstTrailerNone(t *testing.T) {
	if _, ok := FirstTrailer([]Video{{Key: "x", Site: "YouTube", Type: "Clip"}}); ok {
		t.Fatal("clips are not trailers")
	}
}

func TestPing(t *testing.T) {
	server := newTestServer(t)
	good, _ := New("key", server.URL, "")
	if err := good.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	bad, _ := New("nope", server.URL, "")
	if err := bad.Ping(context.Background()); err == nil {
		t.Fatal("expected ping failure for bad key")
	}
}
