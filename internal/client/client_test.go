package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkpost/internal/models"
)

func TestResponseErrorMapping(t *testing.T) {
	tests := []struct {
		status    int
		want      error
		retryable bool
	}{
		{http.StatusUnauthorized, ErrUnauthenticated, false},
		{http.StatusForbidden, ErrForbidden, false},
		{http.StatusNotFound, ErrNotFound, false},
		{http.StatusInternalServerError, ErrServer, true},
		{http.StatusBadGateway, ErrServer, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := responseError(tt.status, []byte(`{"message":"nope"}`))
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.retryable, Retryable(err))

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, "nope", apiErr.Message)
		})
	}
}

func TestResponseErrorValidation(t *testing.T) {
	err := responseError(http.StatusUnprocessableEntity,
		[]byte(`{"message":"The title field is required.","errors":{"title":["The title field is required."]}}`))

	verr, ok := IsValidation(err)
	require.True(t, ok)
	assert.True(t, verr.Has("title"))
	assert.False(t, verr.Has("slug"))
	assert.Equal(t, "The title field is required.", verr.Error())
	assert.False(t, Retryable(err))
}

func TestResponseErrorOtherStatus(t *testing.T) {
	err := responseError(http.StatusConflict, []byte(`not json`))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Nil(t, apiErr.Err)
	assert.Contains(t, err.Error(), "409")
	for _, class := range []error{ErrUnauthenticated, ErrForbidden, ErrNotFound, ErrServer, ErrNetwork} {
		assert.False(t, errors.Is(err, class))
	}
}

func TestLoginErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want LoginReason
	}{
		{"401", responseError(http.StatusUnauthorized, nil), ReasonInvalidCredentials},
		{"otp", &ValidationError{Fields: map[string][]string{"otp": {"required"}}}, ReasonOTPRequired},
		{"fields", &ValidationError{Fields: map[string][]string{"email": {"required"}}}, ReasonValidation},
		{"network", errors.Join(ErrNetwork, io.EOF), ReasonNetwork},
		{"server", responseError(http.StatusServiceUnavailable, nil), ReasonServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, loginError(tt.err).Reason)
		})
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	_, ok := s.Load()
	assert.False(t, ok)

	require.NoError(t, s.Save("one"))
	require.NoError(t, s.Save("two"))
	got, ok := s.Load()
	assert.True(t, ok)
	assert.Equal(t, "two", got)

	require.NoError(t, s.Clear())
	_, ok = s.Load()
	assert.False(t, ok)
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profile")
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, TokenKey), s.Path())

	_, ok := s.Load()
	assert.False(t, ok)
	require.NoError(t, s.Clear(), "clearing an absent credential is not an error")

	require.NoError(t, s.Save("credential-1"))
	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// A second store over the same profile sees the credential.
	other, err := NewFileStore(dir)
	require.NoError(t, err)
	got, ok := other.Load()
	assert.True(t, ok)
	assert.Equal(t, "credential-1", got)

	require.NoError(t, s.Clear())
	_, ok = other.Load()
	assert.False(t, ok)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no temporary files may be left behind")
}

func TestFileStoreUnreadableIsAbsent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	// A directory where the credential file should be cannot be read.
	require.NoError(t, os.Mkdir(s.Path(), 0o700))

	_, ok := s.Load()
	assert.False(t, ok)
}

func TestClampPage(t *testing.T) {
	meta := models.PageMeta{CurrentPage: 1, PerPage: 9, Total: 20, LastPage: 3}
	tests := []struct {
		page int
		want int
	}{
		{-1, 1},
		{0, 1},
		{2, 2},
		{3, 3},
		{4, 3},
		{99, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampPage(tt.page, meta), "page %d", tt.page)
	}
	assert.Equal(t, 1, ClampPage(5, models.PageMeta{}))
}

func TestLive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	assert.True(t, Live(ctx))
	cancel()
	assert.False(t, Live(ctx))
}

func TestClientSendsCredentialAndQuery(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		writeTestJSON(w, http.StatusOK, models.Paginated[models.Post]{
			Data: []models.Post{{Title: "Hello"}},
			Meta: models.PageMeta{CurrentPage: 2, PerPage: 5, Total: 6, LastPage: 2},
		})
	}))
	defer srv.Close()

	tokens := NewMemoryStore()
	require.NoError(t, tokens.Save("abc"))
	c := New(srv.URL+"/", tokens)

	page, err := c.ListPosts(context.Background(), PostQuery{Page: 2, PerPage: 5, Category: "news", Tag: "golang", Search: "go"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", gotAuth)
	assert.Equal(t, "category=news&page=2&per_page=5&search=go&tag=golang", gotQuery)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Hello", page.Data[0].Title)
	assert.Equal(t, 2, page.Meta.LastPage)
}

func TestClientCommentThread(t *testing.T) {
	postID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/posts/"+postID.String()+"/comments", r.URL.Path)
		root := models.Comment{ID: uuid.New(), PostID: postID, Content: "root"}
		root.Replies = []models.Comment{{ID: uuid.New(), PostID: postID, ParentID: &root.ID, Content: "reply"}}
		other := models.Comment{ID: uuid.New(), PostID: postID, Content: "other"}
		writeTestJSON(w, http.StatusOK, map[string]any{"data": []models.Comment{root, other}})
	}))
	defer srv.Close()

	thread, err := New(srv.URL, NewMemoryStore()).ListComments(context.Background(), postID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	require.Len(t, thread[0].Replies, 1)
	assert.Equal(t, "reply", thread[0].Replies[0].Content)
	assert.Empty(t, thread[1].Replies)
}

func TestClientUploadMedia(t *testing.T) {
	owner := models.PostOwner(uuid.New())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "post", r.FormValue("owner_type"))
		assert.Equal(t, owner.ID.String(), r.FormValue("owner_id"))
		assert.Equal(t, "gallery", r.FormValue("collection"))
		assert.Empty(t, r.FormValue("alt_text"))

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "notes.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.4", string(data))

		writeTestJSON(w, http.StatusCreated, map[string]any{"data": models.Media{ID: uuid.New(), Name: hdr.Filename, Owner: owner}})
	}))
	defer srv.Close()

	m, err := New(srv.URL, NewMemoryStore()).UploadMedia(context.Background(), Upload{
		Owner:      owner,
		Collection: "gallery",
		FileName:   "notes.pdf",
		Body:       strings.NewReader("%PDF-1.4"),
	})
	require.NoError(t, err)
	assert.Equal(t, "notes.pdf", m.Name)
	assert.Equal(t, owner, m.Owner)
}

func TestClientCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(srv.URL, NewMemoryStore()).Profile(ctx)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUpdateCommentBody(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		json.NewDecoder(r.Body).Decode(&body)
		writeTestJSON(w, http.StatusOK, map[string]any{"data": models.Comment{Status: models.CommentApproved}})
	}))
	defer srv.Close()

	approved := models.CommentApproved
	c, err := New(srv.URL, NewMemoryStore()).UpdateComment(context.Background(), uuid.New(), CommentUpdate{Status: &approved})
	require.NoError(t, err)
	assert.Equal(t, models.CommentApproved, c.Status)
	assert.Equal(t, map[string]any{"status": "approved"}, body)
}
