// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"unicode/utf8"

	"inkpost/internal/models"
	"inkpost/internal/slug"
)

// Validation limits for request fields.
const (
	maxTitleLen       = 255
	maxBodyLen        = 100_000
	maxExcerptLen     = 1_000
	maxMetaTitleLen   = 255
	maxMetaDescLen    = 500
	maxMetaKeywords   = 20
	maxMetaKeywordLen = 100
	maxNameLen        = 255
	maxEmailLen       = 255
	minPasswordLen    = 8
	maxPasswordLen    = 72 // bcrypt ignores anything longer
	maxCommentLen     = 5_000
	maxCategoryLen    = 100
	maxDescriptionLen = 1_000
	maxAltTextLen     = 500
	maxTags           = 10
	maxTagLen         = 50
)

// fieldErrors collects validation messages keyed by request field.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

func (f fieldErrors) any() bool {
	return len(f) > 0
}

// summary is the top-level message: the first error of the
// alphabetically first field, plus a count of the rest.
func (f fieldErrors) summary() string {
	if len(f) == 0 {
		return "The given data was invalid."
	}
	fields := make([]string, 0, len(f))
	total := 0
	for k, msgs := range f {
		fields = append(fields, k)
		total += len(msgs)
	}
	sort.Strings(fields)
	first := f[fields[0]][0]
	if total == 1 {
		return first
	}
	return fmt.Sprintf("%s (and %d more errors)", first, total-1)
}

func required(f fieldErrors, field, label, value string) bool {
	if strings.TrimSpace(value) == "" {
		f.add(field, label+" is required.")
		return false
	}
	return true
}

func maxLen(f fieldErrors, field, label, value string, limit int) {
	if utf8.RuneCountInString(value) > limit {
		f.add(field, fmt.Sprintf("%s is too long (max %d characters).", label, limit))
	}
}

func validEmail(f fieldErrors, field, value string) {
	if !required(f, field, "Email", value) {
		return
	}
	maxLen(f, field, "Email", value, maxEmailLen)
	if _, err := mail.ParseAddress(strings.TrimSpace(value)); err != nil {
		f.add(field, "Email must be a valid email address.")
	}
}

// registerInput is the body of POST /api/auth/register.
type registerInput struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (in registerInput) validate() fieldErrors {
	f := fieldErrors{}
	if required(f, "name", "Name", in.Name) {
		maxLen(f, "name", "Name", in.Name, maxNameLen)
	}
	validEmail(f, "email", in.Email)
	validPassword(f, "password", in.Password)
	if in.Password != in.PasswordConfirmation {
		f.add("password", "Password confirmation does not match.")
	}
	return f
}

func validPassword(f fieldErrors, field, value string) {
	if !required(f, field, "Password", value) {
		return
	}
	if len(value) < minPasswordLen {
		f.add(field, fmt.Sprintf("Password must be at least %d characters.", minPasswordLen))
	}
	if len(value) > maxPasswordLen {
		f.add(field, fmt.Sprintf("Password may not be longer than %d bytes.", maxPasswordLen))
	}
}

// profileInput is the body of PUT /api/auth/profile. Password is optional
// and, when present, requires the current one.
type profileInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	CurrentPassword string `json:"current_password"`
	Password        string `json:"password"`
}

func (in profileInput) validate() fieldErrors {
	f := fieldErrors{}
	if required(f, "name", "Name", in.Name) {
		maxLen(f, "name", "Name", in.Name, maxNameLen)
	}
	validEmail(f, "email", in.Email)
	if in.Password != "" {
		validPassword(f, "password", in.Password)
		required(f, "current_password", "Current password", in.CurrentPassword)
	}
	return f
}

// postInput is the body of POST and PUT /api/posts. Pointer fields are
// optional on update.
type postInput struct {
	Title           string   `json:"title"`
	Slug            string   `json:"slug"`
	Excerpt         string   `json:"excerpt"`
	Content         string   `json:"content"`
	Status          string   `json:"status"`
	CategoryID      string   `json:"category_id"`
	FeaturedImageID *string  `json:"featured_image_id"`
	Featured        bool     `json:"featured"`
	MetaTitle       *string  `json:"meta_title"`
	MetaDescription *string  `json:"meta_description"`
	MetaKeywords    []string `json:"meta_keywords"`
	Tags            []string `json:"tags"`
}

func (in postInput) validate() fieldErrors {
	f := fieldErrors{}
	if required(f, "title", "Title", in.Title) {
		maxLen(f, "title", "Title", in.Title, maxTitleLen)
	}
	if in.Slug != "" && !slug.Valid(in.Slug) {
		f.add("slug", fmt.Sprintf("Slug may only contain lowercase letters, digits and dashes (max %d characters).", slug.MaxLength))
	}
	required(f, "content", "Content", in.Content)
	maxLen(f, "content", "Content", in.Content, maxBodyLen)
	maxLen(f, "excerpt", "Excerpt", in.Excerpt, maxExcerptLen)
	if in.Status != "" && !models.PostStatus(in.Status).Valid() {
		f.add("status", "Status must be draft, published or archived.")
	}
	required(f, "category_id", "Category", in.CategoryID)
	if in.MetaTitle != nil {
		maxLen(f, "meta_title", "Meta title", *in.MetaTitle, maxMetaTitleLen)
	}
	if in.MetaDescription != nil {
		maxLen(f, "meta_description", "Meta description", *in.MetaDescription, maxMetaDescLen)
	}
	if len(in.MetaKeywords) > maxMetaKeywords {
		f.add("meta_keywords", fmt.Sprintf("At most %d meta keywords are allowed.", maxMetaKeywords))
	}
	for _, kw := range in.MetaKeywords {
		if utf8.RuneCountInString(kw) > maxMetaKeywordLen {
			f.add("meta_keywords", fmt.Sprintf("Meta keywords may not be longer than %d characters.", maxMetaKeywordLen))
			break
		}
	}
	validTags(f, in.Tags)
	return f
}

// validTags checks a post's tag names. Each must survive slugging, since
// tags are identified by slug.
func validTags(f fieldErrors, tags []string) {
	if len(tags) > maxTags {
		f.add("tags", fmt.Sprintf("At most %d tags are allowed.", maxTags))
		return
	}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		switch {
		case utf8.RuneCountInString(tag) > maxTagLen:
			f.add("tags", fmt.Sprintf("Tags may not be longer than %d characters.", maxTagLen))
			return
		case slug.Generate(tag) == "":
			f.add("tags", "Tags must contain at least one letter or digit.")
			return
		}
	}
}

// commentInput is the body of POST /api/posts/{post}/comments.
type commentInput struct {
	Content     string  `json:"content"`
	ParentID    *string `json:"parent_id"`
	AuthorName  string  `json:"author_name"`
	AuthorEmail string  `json:"author_email"`
}

// validate checks the body. Guests must identify themselves.
func (in commentInput) validate(guest bool) fieldErrors {
	f := fieldErrors{}
	if required(f, "content", "Content", in.Content) {
		maxLen(f, "content", "Content", in.Content, maxCommentLen)
	}
	if guest {
		if required(f, "author_name", "Name", in.AuthorName) {
			maxLen(f, "author_name", "Name", in.AuthorName, maxNameLen)
		}
		validEmail(f, "author_email", in.AuthorEmail)
	}
	return f
}

// commentUpdateInput is the body of PUT /api/comments/{comment}.
type commentUpdateInput struct {
	Status  *string `json:"status"`
	Content *string `json:"content"`
}

func (in commentUpdateInput) validate() fieldErrors {
	f := fieldErrors{}
	if in.Status == nil && in.Content == nil {
		f.add("status", "Provide a status or content to update.")
	}
	if in.Status != nil && !models.CommentStatus(*in.Status).Valid() {
		f.add("status", "Status must be pending, approved or rejected.")
	}
	if in.Content != nil {
		if required(f, "content", "Content", *in.Content) {
			maxLen(f, "content", "Content", *in.Content, maxCommentLen)
		}
	}
	return f
}

// categoryInput is the body of POST and PUT /api/categories.
type categoryInput struct {
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description string  `json:"description"`
	ParentID    *string `json:"parent_id"`
	SortOrder   *int    `json:"sort_order"`
}

func (in categoryInput) validate() fieldErrors {
	f := fieldErrors{}
	if required(f, "name", "Name", in.Name) {
		maxLen(f, "name", "Name", in.Name, maxCategoryLen)
	}
	if in.Slug != "" && !slug.Valid(in.Slug) {
		f.add("slug", "Slug may only contain lowercase letters, digits and dashes.")
	}
	maxLen(f, "description", "Description", in.Description, maxDescriptionLen)
	if in.SortOrder != nil && *in.SortOrder < 0 {
		f.add("sort_order", "Sort order must not be negative.")
	}
	return f
}
