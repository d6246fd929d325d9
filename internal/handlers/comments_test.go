package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"inkpost/internal/models"
)

func TestCommentFlow(t *testing.T) {
	env := newTestEnv(t)
	cat := env.newCategory(t)
	author := env.newUser(t, models.RoleUser)
	moderator := env.newUser(t, models.RoleModerator)
	p := env.newPost(t, author, cat, models.PostStatusPublished)
	postID := p.ID.String()

	post := func(r *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		env.Comments.Create(rec, withChiURLParam(r, "post", postID))
		return rec
	}
	list := func(r *http.Request) []models.Comment {
		t.Helper()
		rec := httptest.NewRecorder()
		env.Comments.List(rec, withChiURLParam(r, "post", postID))
		if rec.Code != http.StatusOK {
			t.Fatalf("list status = %d: %s", rec.Code, rec.Body.String())
		}
		var thread []models.Comment
		decodeData(t, rec, &thread)
		return thread
	}

	// Guests must identify themselves.
	rec := post(jsonRequest(t, http.MethodPost, "/", commentInput{Content: "hi"}))
	if errs := fieldErrorsOf(t, rec); len(errs["author_name"]) == 0 || len(errs["author_email"]) == 0 {
		t.Errorf("errors = %v", errs)
	}

	req := jsonRequest(t, http.MethodPost, "/", commentInput{Content: "First!", AuthorName: "Guest", AuthorEmail: "Guest@Example.com"})
	req.Header.Set("User-Agent", "handler-test")
	req.RemoteAddr = "203.0.113.9:4444"
	rec = post(req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("guest comment status = %d: %s", rec.Code, rec.Body.String())
	}
	var root models.Comment
	decodeData(t, rec, &root)
	if root.Status != models.CommentPending || root.UserID != nil {
		t.Errorf("guest comment = %+v", root)
	}
	if root.Metadata["ip"] != "203.0.113.9" || root.Metadata["user_agent"] != "handler-test" {
		t.Errorf("metadata = %v", root.Metadata)
	}

	parent := root.ID.String()
	rec = post(env.as(t, jsonRequest(t, http.MethodPost, "/", commentInput{Content: "Reply", ParentID: &parent}), author))
	if rec.Code != http.StatusCreated {
		t.Fatalf("reply status = %d: %s", rec.Code, rec.Body.String())
	}
	var reply models.Comment
	decodeData(t, rec, &reply)
	if reply.AuthorName == nil || *reply.AuthorName != author.Name {
		t.Errorf("member comment must snapshot the author name, got %v", reply.AuthorName)
	}

	if got := list(httptest.NewRequest(http.MethodGet, "/", nil)); len(got) != 0 {
		t.Errorf("public sees %d pending comments", len(got))
	}
	staff := list(env.as(t, httptest.NewRequest(http.MethodGet, "/", nil), moderator))
	if len(staff) != 1 || len(staff[0].Replies) != 1 || staff[0].Replies[0].ID != reply.ID {
		t.Fatalf("staff thread = %+v", staff)
	}
	rejected := list(env.as(t, httptest.NewRequest(http.MethodGet, "/?status=rejected", nil), moderator))
	if len(rejected) != 0 {
		t.Errorf("rejected filter returned %d", len(rejected))
	}

	// Approve both; the public then sees the nested thread.
	for _, id := range []string{root.ID.String(), reply.ID.String()} {
		rec = httptest.NewRecorder()
		env.Comments.Update(rec, withChiURLParam(env.as(t, jsonRequest(t, http.MethodPut, "/", commentUpdateInput{Status: ptr("approved")}), moderator), "comment", id))
		if rec.Code != http.StatusOK {
			t.Fatalf("approve status = %d: %s", rec.Code, rec.Body.String())
		}
	}
	public := list(httptest.NewRequest(http.MethodGet, "/", nil))
	if len(public) != 1 || len(public[0].Replies) != 1 {
		t.Errorf("public thread = %+v", public)
	}

	rec = httptest.NewRecorder()
	env.Comments.Like(rec, withChiURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "comment", reply.ID.String()))
	var liked counterResponse
	decodeData(t, rec, &liked)
	if liked.Likes != 1 {
		t.Errorf("likes = %d", liked.Likes)
	}

	// Deleting the root takes the reply with it.
	rec = httptest.NewRecorder()
	env.Comments.Delete(rec, withChiURLParam(env.as(t, httptest.NewRequest(http.MethodDelete, "/", nil), moderator), "comment", root.ID.String()))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if got := list(env.as(t, httptest.NewRequest(http.MethodGet, "/", nil), moderator)); len(got) != 0 {
		t.Errorf("thread after delete = %+v", got)
	}
}

func TestCommentParentMustShareThePost(t *testing.T) {
	env := newTestEnv(t)
	cat := env.newCategory(t)
	author := env.newUser(t, models.RoleUser)
	first := env.newPost(t, author, cat, models.PostStatusPublished)
	second := env.newPost(t, author, cat, models.PostStatusPublished)

	rec := httptest.NewRecorder()
	env.Comments.Create(rec, withChiURLParam(env.as(t, jsonRequest(t, http.MethodPost, "/", commentInput{Content: "on first"}), author), "post", first.ID.String()))
	var onFirst models.Comment
	decodeData(t, rec, &onFirst)

	parent := onFirst.ID.String()
	rec = httptest.NewRecorder()
	env.Comments.Create(rec, withChiURLParam(env.as(t, jsonRequest(t, http.MethodPost, "/", commentInput{Content: "cross", ParentID: &parent}), author), "post", second.ID.String()))
	if errs := fieldErrorsOf(t, rec); len(errs["parent_id"]) == 0 {
		t.Errorf("errors = %v", errs)
	}
}

func TestCommentOnDraftIsHidden(t *testing.T) {
	env := newTestEnv(t)
	cat := env.newCategory(t)
	author := env.newUser(t, models.RoleUser)
	draft := env.newPost(t, author, cat, models.PostStatusDraft)

	rec := httptest.NewRecorder()
	env.Comments.Create(rec, withChiURLParam(jsonRequest(t, http.MethodPost, "/", commentInput{
		Content: "x", AuthorName: "G", AuthorEmail: "g@example.com",
	}), "post", draft.ID.String()))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
