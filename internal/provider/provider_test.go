package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/fleveque/promo-composer/internal/llm"
	"github.com/fleveque/promo-composer/internal/storage"
)

const tourPage = `<html><body>
<img class="logo" src="/static/logo.svg">
<img alt="hero" src="https://cdn.cloudfront.net/tours/1.jpg?w=1200&amp;q=80">
<img src="https://headout-media.s3.amazonaws.com/2.jpg" loading="lazy">
<img src="https://cdn.cloudfront.net/tours/1.jpg?w=1200&amp;q=80">
<img src="https://tracker.example.com/pixel.gif">
<img data-x="1" src="https://cdn.cloudfront.net/tours/3.jpg">
</body></html>`

func newTourServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tour/18695":
			fmt.Fprint(w, tourPage)
		case "/tour/500":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestTourPageProvider_FiltersAndDedupes(t *testing.T) {
	server := newTourServer(t)
	p := NewTourPageProvider(server.URL+"/tour/%s", []string{"cloudfront.net", "headout-media"}, 20, zap.NewNop())

	res, err := p.Search(context.Background(), "18695")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	want := []string{
		"https://cdn.cloudfront.net/tours/1.jpg?w=1200&q=80",
		"https://headout-media.s3.amazonaws.com/2.jpg",
		"https://cdn.cloudfront.net/tours/3.jpg",
	}
	if strings.Join(res.URLs, "\n") != strings.Join(want, "\n") {
		t.Errorf("URLs =\n%v\nwant\n%v", res.URLs, want)
	}
	if res.Source != "scrape" {
		t.Errorf("Source = %q, want scrape", res.Source)
	}
}

func TestTourPageProvider_MaxResults(t *testing.T) {
	server := newTourServer(t)
	p := NewTourPageProvider(server.URL+"/tour/%s", []string{"cloudfront.net", "headout-media"}, 2, zap.NewNop())

	res, err := p.Search(context.Background(), "18695")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.URLs) != 2 {
		t.Errorf("got %d URLs, want 2", len(res.URLs))
	}
}

func TestTourPageProvider_Errors(t *testing.T) {
	server := newTourServer(t)
	p := NewTourPageProvider(server.URL+"/tour/%s", []string{"cloudfront.net"}, 20, zap.NewNop())

	tests := []struct {
		name    string
		query   string
		wantErr error
	}{
		{"not found", "404", ErrNotFound},
		{"non numeric", "eiffel tower", ErrUnsupportedQuery},
		{"empty", "", ErrUnsupportedQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Search(context.Background(), tt.query)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	_, err := p.Search(context.Background(), "500")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("server error should be a plain failure, got %v", err)
	}
}

// fakeClient is a hand-written test double for llm.Client.
type fakeClient struct {
	name  string
	urls  []string
	err   error
	calls int
}

func (f *fakeClient) ProviderName() string { return f.name }
func (f *fakeClient) ModelName() string     { return f.name + "-model" }
func (f *fakeClient) FindImageURLs(_ context.Context, query string) (*llm.ImageSearchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ImageSearchResult{URLs: f.urls}, nil
}

func newLLMRepo(t *testing.T) storage.LLMCallRepository {
	t.Helper()
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return storage.NewLLMCallRepository(db)
}

func TestLLMProvider_FallsBackInOrder(t *testing.T) {
	repo := newLLMRepo(t)
	primary := &fakeClient{name: "anthropic", err: errors.New("overloaded")}
	fallback := &fakeClient{name: "openai", urls: []string{
		"https://img.example/a.jpg",
		"/relative.jpg",
		"data:image/png;base64,AAAA",
		"https://img.example/a.jpg",
		"https://img.example/b.jpg",
	}}

	p := NewLLMProvider([]llm.Client{primary, fallback}, 6000, 10, repo, zap.NewNop())
	res, err := p.Search(context.Background(), "Colosseum")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if primary.calls != 1 || fallback.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.calls, fallback.calls)
	}
	want := []string{"https://img.example/a.jpg", "https://img.example/b.jpg"}
	if strings.Join(res.URLs, ",") != strings.Join(want, ",") {
		t.Errorf("URLs = %v, want %v", res.URLs, want)
	}
	if res.Source != "llm:openai" {
		t.Errorf("Source = %q", res.Source)
	}

	n, err := repo.CountByQuery(context.Background(), "Colosseum")
	if err != nil {
		t.Fatalf("CountByQuery: %v", err)
	}
	if n != 2 {
		t.Errorf("recorded %d LLM calls, want 2", n)
	}
}

func TestLLMProvider_AllFail(t *testing.T) {
	p := NewLLMProvider([]llm.Client{
		&fakeClient{name: "anthropic", err: errors.New("down")},
		&fakeClient{name: "openai", urls: []string{"not a url"}},
	}, 6000, 10, newLLMRepo(t), zap.NewNop())

	if _, err := p.Search(context.Background(), "x"); err == nil {
		t.Fatal("expected error when every provider fails")
	}
}

func TestLLMProvider_NoClients(t *testing.T) {
	p := NewLLMProvider(nil, 10, 10, newLLMRepo(t), zap.NewNop())
	if _, err := p.Search(context.Background(), "x"); err == nil {
		t.Fatal("expected error with no clients")
	}
}

func TestDedupe(t *testing.T) {
	got := dedupe([]string{"a", " a ", "", "b", "c", "b"}, 0)
	if strings.Join(got, ",") != "a,b,c" {
		t.Errorf("dedupe = %v", got)
	}
	if got := dedupe([]string{"a", "b", "c"}, 2); len(got) != 2 {
		t.Errorf("dedupe with max = %v", got)
	}
}
