package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leapstack-labs/sysmlsql/internal/stream"
	"github.com/leapstack-labs/sysmlsql/internal/testutil"
	"github.com/leapstack-labs/sysmlsql/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const elementsPath = "/api/projects/p1/commits/c1/elements"

// pagedServer serves pages[i] for ?page=i and links every page to the next
// one while linkNext returns true.
func pagedServer(t *testing.T, pages []string, linkNext func(page int) bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(elementsPath, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		page := 0
		if p := r.URL.Query().Get("page"); p != "" {
			page, _ = strconv.Atoi(p)
		}
		if linkNext(page) {
			w.Header().Set("Link", fmt.Sprintf(`<%s?page=%d>; rel="next"`, elementsPath, page+1))
		}
		w.Header().Set("Content-Type", "application/json")
		if page < len(pages) {
			_, _ = w.Write([]byte(pages[page]))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(ClientOptions{BaseURL: srv.URL + "/api", Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	return c
}

func elementIDs(elements []core.Element) []string {
	ids := make([]string, len(elements))
	for i, e := range elements {
		ids[i] = e.ID
	}
	return ids
}

var threePages = []string{
	`[{"@id":"a"},{"@id":"b"}]`,
	`[{"@id":"c"}]`,
	`[{"@id":"d"},{"@id":"e"}]`,
}

func TestFetchAll_StopsAtEmptyPage(t *testing.T) {
	// every page links to a next one, the fourth one is empty
	srv, hits := pagedServer(t, threePages, func(int) bool { return true })
	c := newTestClient(t, srv)

	res, err := c.FetchAll(context.Background(), "projects/p1/commits/c1/elements", PipelineOptions{
		ChannelCapacity: 1,
		PollInterval:    time.Millisecond,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, elementIDs(res.Elements))
	assert.Equal(t, 3, res.Pages)
	assert.GreaterOrEqual(t, res.Requests, 4)
	// the paginator can run ahead by little more than the channel capacity
	assert.LessOrEqual(t, int(hits.Load()), 7)
}

func TestFetchAll_StopsWithoutNextLink(t *testing.T) {
	srv, hits := pagedServer(t, threePages, func(page int) bool { return page < 2 })
	c := newTestClient(t, srv)

	res, err := c.FetchAll(context.Background(), "projects/p1/commits/c1/elements", PipelineOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, elementIDs(res.Elements))
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, 3, res.Requests)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchAll_SinglePage(t *testing.T) {
	srv, _ := pagedServer(t, threePages[:1], func(int) bool { return false })
	res, err := newTestClient(t, srv).FetchAll(context.Background(), ElementsPath("p1", "c1", 0), PipelineOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, elementIDs(res.Elements))
	assert.Equal(t, 1, res.Pages)
}

func TestFetchAll_Errors(t *testing.T) {
	t.Run("status error", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc(elementsPath, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("page") == "1" {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Link", `<`+elementsPath+`?page=1>; rel="next"`)
			_, _ = w.Write([]byte(`[{"@id":"a"}]`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		_, err := newTestClient(t, srv).FetchAll(context.Background(), ElementsPath("p1", "c1", 0), PipelineOptions{})
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusInternalServerError, se.Code)
		assert.Contains(t, se.URL, "page=1")
	})

	t.Run("malformed page", func(t *testing.T) {
		srv, _ := pagedServer(t, []string{`[{"@id":"a"}]`, `[{"@id":"b"},]`}, func(int) bool { return true })
		_, err := newTestClient(t, srv).FetchAll(context.Background(), ElementsPath("p1", "c1", 0), PipelineOptions{})
		require.ErrorIs(t, err, stream.ErrMalformedDocument)
		assert.Contains(t, err.Error(), "page 2")
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv, _ := pagedServer(t, threePages, func(int) bool { return true })
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestClient(t, srv).FetchAll(ctx, ElementsPath("p1", "c1", 0), PipelineOptions{})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestNextLink(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://host/api/x?page=1", nil)
	tests := []struct {
		name    string
		header  []string
		want    string
		wantErr bool
	}{
		{name: "no header"},
		{name: "no next", header: []string{`<http://host/api/x?page=0>; rel="prev"`}},
		{
			name:   "absolute",
			header: []string{`<http://other/api/x?page=2>; rel="next", <http://host/api/x?page=0>; rel="prev"`},
			want:   "http://other/api/x?page=2",
		},
		{name: "relative", header: []string{`</api/x?page=2>; rel="next"`}, want: "http://host/api/x?page=2"},
		{name: "split headers", header: []string{`</a>; rel="prev"`, `</b>; rel="next"`}, want: "http://host/b"},
		{name: "unparsable", header: []string{`<http://host/%zz>; rel="next"`}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}, Request: req}
			for _, h := range tt.header {
				resp.Header.Add("Link", h)
			}
			got, err := nextLink(resp)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedLink)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		opts    ClientOptions
		wantErr error
	}{
		{name: "valid", opts: ClientOptions{BaseURL: "https://host/api"}},
		{name: "host only", opts: ClientOptions{BaseURL: "https://host"}},
		{name: "trailing slash", opts: ClientOptions{BaseURL: "https://host/api/"}, wantErr: ErrInvalidBaseURL},
		{name: "relative", opts: ClientOptions{BaseURL: "/api"}, wantErr: ErrInvalidBaseURL},
		{name: "password only", opts: ClientOptions{BaseURL: "https://host", Password: "pw"}, wantErr: ErrPasswordWithoutUsername},
		{name: "insecure", opts: ClientOptions{BaseURL: "https://host", AllowInvalidCerts: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.opts)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestClient_URL(t *testing.T) {
	c, err := NewClient(ClientOptions{BaseURL: "https://host/api"})
	require.NoError(t, err)

	assert.Equal(t, "https://host/api/projects", c.URL("projects").String())
	assert.Equal(t, "https://host/other", c.URL("/other").String())
	assert.Equal(t, "https://host/api/projects/p/commits/c/elements?page[size]=100",
		c.URL(ElementsPath("p", "c", 100)).String())
}

func TestClient_BasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := NewClient(ClientOptions{BaseURL: srv.URL, Username: "alice", Password: "secret"})
	require.NoError(t, err)
	_, err = c.Projects(context.Background())
	require.NoError(t, err)

	anon, err := NewClient(ClientOptions{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = anon.Projects(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
}

func apiServer(t *testing.T) *httptest.Server {
	t.Helper()
	routes := map[string]string{
		"/api/projects": `[
			{"@id":"p1","name":"Drone Model","created":"2024-01-01","defaultBranch":{"@id":"b1"}},
			{"@id":"p2","name":"Drone Parts","created":"2024-01-02","defaultBranch":{"@id":"b3"}},
			{"@id":"p3","name":"Vehicle","created":"2024-01-03","defaultBranch":{"@id":"b4"}}
		]`,
		"/api/projects/p1": `{"@id":"p1","name":"Drone Model","defaultBranch":{"@id":"b1"}}`,
		"/api/projects/p1/branches": `[
			{"@id":"b1","name":"main","head":{"@id":"c-main"}},
			{"@id":"b2","name":"feature/x","head":{"@id":"c-x"}},
			{"@id":"b5","name":"feature/y","head":{"@id":"c-y"}}
		]`,
		"/api/projects/p1/branches/b1": `{"@id":"b1","name":"main","head":{"@id":"c-main"}}`,
		"/api/projects/p1/branches/b2": `{"@id":"b2","name":"feature/x","head":{"@id":"c-x"}}`,
		"/api/projects/p3/branches/b4": `{"@id":"b4","name":"main","head":{"@id":"c-vehicle"}}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolve(t *testing.T) {
	c := newTestClient(t, apiServer(t))

	tests := []struct {
		name        string
		project     ProjectSelector
		commit      CommitSelector
		wantProject string
		wantCommit  string
		wantErr     error
	}{
		{name: "ids", project: ProjectSelector{ID: "p9"}, commit: CommitSelector{CommitID: "c9"}, wantProject: "p9", wantCommit: "c9"},
		{name: "branch id", project: ProjectSelector{ID: "p1"}, commit: CommitSelector{BranchID: "b2"}, wantProject: "p1", wantCommit: "c-x"},
		{name: "branch name", project: ProjectSelector{ID: "p1"}, commit: CommitSelector{BranchName: "ma"}, wantProject: "p1", wantCommit: "c-main"},
		{name: "default branch by project id", project: ProjectSelector{ID: "p1"}, wantProject: "p1", wantCommit: "c-main"},
		{name: "default branch by project name", project: ProjectSelector{Name: "Veh"}, wantProject: "p3", wantCommit: "c-vehicle"},
		{name: "project name prefix", project: ProjectSelector{Name: "Drone M"}, commit: CommitSelector{CommitID: "c"}, wantProject: "p1", wantCommit: "c"},
		{name: "ambiguous project", project: ProjectSelector{Name: "Drone"}, wantErr: ErrAmbiguousSelection},
		{name: "unknown project", project: ProjectSelector{Name: "Boat"}, wantErr: ErrNoMatch},
		{name: "ambiguous branch", project: ProjectSelector{ID: "p1"}, commit: CommitSelector{BranchName: "feature/"}, wantErr: ErrAmbiguousSelection},
		{name: "unknown branch", project: ProjectSelector{ID: "p1"}, commit: CommitSelector{BranchName: "dev"}, wantErr: ErrNoMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, commit, err := c.Resolve(context.Background(), tt.project, tt.commit)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantProject, p)
			assert.Equal(t, tt.wantCommit, commit)
		})
	}
}

func TestResolve_InvalidSelectors(t *testing.T) {
	c := newTestClient(t, apiServer(t))

	_, _, err := c.Resolve(context.Background(), ProjectSelector{}, CommitSelector{})
	require.Error(t, err)

	_, _, err = c.Resolve(context.Background(), ProjectSelector{ID: "a", Name: "b"}, CommitSelector{})
	require.Error(t, err)

	_, _, err = c.Resolve(context.Background(), ProjectSelector{ID: "a"}, CommitSelector{CommitID: "c", BranchName: "b"})
	require.Error(t, err)

	_, _, err = c.Resolve(context.Background(), ProjectSelector{ID: "p1"}, CommitSelector{BranchID: "missing"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func decode(t *testing.T, doc string) []core.Element {
	t.Helper()
	elements, err := stream.DecodeAll(strings.NewReader(doc))
	require.NoError(t, err)
	return elements
}

func TestMerge(t *testing.T) {
	base := decode(t, `[{"@id":"a","n":1},{"@id":"b"}]`)

	merged, err := Merge(base, decode(t, `[{"n":1,"@id":"a"},{"@id":"c"},{"@id":"c"}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, elementIDs(merged))

	_, err = Merge(base, decode(t, `[{"@id":"a","n":2}]`))
	var conflict *core.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "a", conflict.ID)
}

func TestDumpRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.json")

	// no dump yet
	merged, err := MergeWithDump(path, decode(t, `[{"@id":"a"},{"@id":"a"}]`))
	require.NoError(t, err)
	require.NoError(t, WriteDump(path, merged, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `[{"@id":"a"}]`, string(data))

	merged, err = MergeWithDump(path, decode(t, `[{"@id":"b","owner":{"@id":"a"}}]`))
	require.NoError(t, err)
	require.NoError(t, WriteDump(path, merged, true))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"@id\": \"a\"\n  },\n  {\n    \"@id\": \"b\",\n    \"owner\": {\n      \"@id\": \"a\"\n    }\n  }\n]\n", string(data))

	_, err = MergeWithDump(path, decode(t, `[{"@id":"b"}]`))
	var conflict *core.ConflictError
	require.ErrorAs(t, err, &conflict)

	_, err = MergeWithDump(t.TempDir(), nil)
	require.Error(t, err)
}
