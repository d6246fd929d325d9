// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"inkpost/internal/imaging"
	"inkpost/internal/metrics"
	"inkpost/internal/middleware"
	"inkpost/internal/models"
	"inkpost/internal/storage"
	"inkpost/internal/store"
)

// multipartOverhead is the room left for form fields around the file.
const multipartOverhead = 1 << 20

// allowedMediaTypes defines MIME types accepted for upload.
var allowedMediaTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"image/svg+xml":   true,
	"application/pdf": true,
}

// thumbableTypes are image types that get a thumbnail.
// GIF is excluded to preserve animation; SVG is vector.
var thumbableTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// maxFileNameLen bounds the original file name kept on a media row.
const maxFileNameLen = 255

// Media groups the media handlers.
type Media struct {
	media     *store.MediaStore
	posts     *store.PostStore
	disks     *storage.Disks
	metrics   *metrics.Metrics
	maxUpload int64
}

// NewMedia creates a new Media handler group. maxUpload caps the size of
// an uploaded file in bytes.
func NewMedia(media *store.MediaStore, posts *store.PostStore, disks *storage.Disks, m *metrics.Metrics, maxUpload int64) *Media {
	return &Media{media: media, posts: posts, disks: disks, metrics: m, maxUpload: maxUpload}
}

// ownerAccess is what a principal may do with the media of an owner.
type ownerAccess int

const (
	// accessNone: the owner is missing or hidden from the principal.
	accessNone ownerAccess = iota
	accessRead
	accessWrite
)

// access resolves owner to its post and decides what user may do with the
// owner's media. Post media follow the post: readable when the post is,
// writable by its author and staff. Comment media additionally need the
// comment to be approved for reading, and are writable by the comment's
// author and staff.
func (h *Media) access(r *http.Request, user *models.User, owner models.Owner) (ownerAccess, error) {
	ref, err := h.media.ResolveOwner(r.Context(), owner)
	if err != nil || ref == nil {
		return accessNone, err
	}
	post, err := h.posts.FindByID(r.Context(), ref.PostID)
	if err != nil || post == nil {
		return accessNone, err
	}
	if !canView(user, post) {
		return accessNone, nil
	}

	switch owner.Kind {
	case models.OwnerPost:
		if canEdit(user, post) {
			return accessWrite, nil
		}
		return accessRead, nil
	case models.OwnerComment:
		staff := user != nil && user.IsStaff()
		author := user != nil && ref.CommentAuthor != nil && *ref.CommentAuthor == user.ID
		if staff || author {
			return accessWrite, nil
		}
		if ref.CommentStatus == models.CommentApproved {
			return accessRead, nil
		}
	}
	return accessNone, nil
}

// clipFileName shortens name to limit characters, keeping its extension.
func clipFileName(name string, limit int) string {
	if utf8.RuneCountInString(name) <= limit {
		return name
	}
	ext := path.Ext(name)
	if utf8.RuneCountInString(ext) >= limit {
		ext = ""
	}
	runes := []rune(strings.TrimSuffix(name, ext))
	return string(runes[:limit-utf8.RuneCountInString(ext)]) + ext
}

// withURL fills in the public URL of each item.
func (h *Media) withURL(items []models.Media) []models.Media {
	for i := range items {
		items[i].URL = h.disks.URL(&items[i])
	}
	return items
}

// sniffType detects the content type from the first bytes of the file.
// DetectContentType reports SVG as XML or text, so the file name decides.
func sniffType(data []byte, filename string) string {
	contentType := http.DetectContentType(data)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if strings.HasSuffix(strings.ToLower(filename), ".svg") &&
		(strings.Contains(contentType, "xml") || strings.Contains(contentType, "text/plain")) {
		contentType = "image/svg+xml"
	}
	return contentType
}

// extensionFromType returns a file extension for a MIME type.
func extensionFromType(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	case "application/pdf":
		return ".pdf"
	default:
		return ""
	}
}

// Upload stores a file and attaches it to a post or comment.
func (h *Media) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large.")
			return
		}
		writeError(w, http.StatusBadRequest, "Expected a multipart form upload.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	errs := fieldErrors{}
	owner, err := models.ParseOwner(r.FormValue("owner_type"), r.FormValue("owner_id"))
	if err != nil {
		if errors.Is(err, models.ErrUnknownOwnerKind) {
			errs.add("owner_type", "Owner type must be post or comment.")
		} else {
			errs.add("owner_id", "The owner ID is invalid.")
		}
	}
	altText := strings.TrimSpace(r.FormValue("alt_text"))
	maxLen(errs, "alt_text", "Alt text", altText, maxAltTextLen)
	collection := strings.TrimSpace(r.FormValue("collection"))
	maxLen(errs, "collection", "Collection", collection, maxCategoryLen)

	file, header, err := r.FormFile("file")
	if err != nil {
		errs.add("file", "A file is required.")
	} else {
		defer file.Close()
	}
	if errs.any() {
		writeValidation(w, errs)
		return
	}

	user := middleware.UserFromCtx(r.Context())
	access, err := h.access(r, user, owner)
	if err != nil {
		serverError(w, "owner lookup failed", err, "owner", owner.String())
		return
	}
	switch access {
	case accessNone:
		writeValidation(w, fieldErrors{"owner_id": {"The selected owner does not exist."}})
		return
	case accessRead:
		forbidden(w)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		serverError(w, "read upload failed", err)
		return
	}
	if int64(len(data)) > h.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "File is too large.")
		return
	}

	contentType := sniffType(data, header.Filename)
	if !allowedMediaTypes[contentType] {
		writeValidation(w, fieldErrors{"file": {fmt.Sprintf("File type %q is not allowed.", contentType)}})
		return
	}

	meta := models.Metadata{}
	if altText != "" {
		meta["alt_text"] = altText
	}
	if thumbableTypes[contentType] || contentType == "image/gif" {
		info, err := imaging.Inspect(data)
		if err != nil {
			writeValidation(w, fieldErrors{"file": {"The image could not be read."}})
			return
		}
		meta["width"] = info.Width
		meta["height"] = info.Height
	}

	disk := h.disks.Default()
	backend, err := h.disks.For(disk)
	if err != nil {
		serverError(w, "storage backend missing", err, "disk", disk)
		return
	}

	now := time.Now()
	name := clipFileName(path.Base(header.Filename), maxFileNameLen)
	key, fileName := storage.NewKey(owner, strings.TrimSuffix(name, path.Ext(name))+extensionFromType(contentType), now)
	if err := backend.Put(r.Context(), key, contentType, bytes.NewReader(data), int64(len(data))); err != nil {
		serverError(w, "store upload failed", err, "key", key)
		return
	}
	stored := []string{key}

	if thumbableTypes[contentType] {
		thumb, err := imaging.MakeThumbnail(data, imaging.ThumbnailWidth)
		if err != nil {
			slog.Warn("thumbnail generation failed", "key", key, "error", err)
		} else {
			thumbKey := strings.TrimSuffix(key, path.Ext(key)) + "_thumb.jpg"
			if err := backend.Put(r.Context(), thumbKey, thumb.ContentType, bytes.NewReader(thumb.Data), int64(len(thumb.Data))); err != nil {
				slog.Warn("thumbnail upload failed", "key", thumbKey, "error", err)
			} else {
				meta[models.MetaThumbnail] = thumbKey
				stored = append(stored, thumbKey)
			}
		}
	}

	m, err := h.media.Create(r.Context(), &models.Media{
		Name:       name,
		FileName:   fileName,
		MimeType:   contentType,
		Path:       key,
		Disk:       disk,
		Size:       int64(len(data)),
		Metadata:   meta,
		Owner:      owner,
		Collection: collection,
	})
	if err != nil {
		for _, k := range stored {
			if delErr := backend.Delete(r.Context(), k); delErr != nil {
				slog.Warn("orphan blob cleanup failed", "key", k, "error", delErr)
			}
		}
		serverError(w, "create media record failed", err, "owner", owner.String())
		return
	}

	h.metrics.RecordUpload(r.Context(), string(disk), m.Size)
	slog.Info("media uploaded", "media_id", m.ID, "owner", owner.String(),
		"type", contentType, "size", m.Size, "user_id", user.ID)
	m.URL = h.disks.URL(m)
	writeData(w, http.StatusCreated, m)
}

// List returns the media attached to an owner the caller can see, or, for
// staff, a page of every media item when no owner is given.
func (h *Media) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user := middleware.UserFromCtx(r.Context())
	if q.Get("owner_type") == "" && q.Get("owner_id") == "" {
		if user == nil || !user.IsStaff() {
			forbidden(w)
			return
		}
		page := models.ParsePageQuery(q.Get("page"), q.Get("per_page"), models.DefaultPerPage)
		items, total, err := h.media.List(r.Context(), page)
		if err != nil {
			serverError(w, "list media failed", err)
			return
		}
		writeJSON(w, http.StatusOK, models.Paginated[models.Media]{
			Data: h.withURL(items),
			Meta: models.NewPageMeta(page, total),
		})
		return
	}

	owner, err := models.ParseOwner(q.Get("owner_type"), q.Get("owner_id"))
	if err != nil {
		if errors.Is(err, models.ErrUnknownOwnerKind) {
			writeValidation(w, fieldErrors{"owner_type": {"Owner type must be post or comment."}})
		} else {
			writeValidation(w, fieldErrors{"owner_id": {"The owner ID is invalid."}})
		}
		return
	}
	access, err := h.access(r, user, owner)
	if err != nil {
		serverError(w, "owner lookup failed", err, "owner", owner.String())
		return
	}
	if access == accessNone {
		notFound(w, "Owner")
		return
	}
	items, err := h.media.ListByOwner(r.Context(), owner, q.Get("collection"))
	if err != nil {
		serverError(w, "list media failed", err, "owner", owner.String())
		return
	}
	writeData(w, http.StatusOK, h.withURL(items))
}

// Download streams the blob behind a media item from whichever disk holds
// it, subject to the same visibility as its owner.
func (h *Media) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "media", "Media")
	if !ok {
		return
	}
	m, err := h.media.FindByID(r.Context(), id)
	if err != nil {
		serverError(w, "find media failed", err, "media_id", id)
		return
	}
	if m == nil {
		notFound(w, "Media")
		return
	}
	access, err := h.access(r, middleware.UserFromCtx(r.Context()), m.Owner)
	if err != nil {
		serverError(w, "owner lookup failed", err, "media_id", id)
		return
	}
	if access == accessNone {
		notFound(w, "Media")
		return
	}

	rc, err := h.disks.Open(r.Context(), m)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Warn("media blob missing", "media_id", id, "key", m.Path)
		notFound(w, "Media")
		return
	}
	if err != nil {
		serverError(w, "open media failed", err, "media_id", id)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", m.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(m.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": m.Name}))
	w.Header().Set("Cache-Control", "private, max-age=300")
	// SVG can carry script; never let it run on the API origin.
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("media download interrupted", "media_id", id, "error", err)
	}
}

// Delete removes a media record and its blobs.
func (h *Media) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "media", "Media")
	if !ok {
		return
	}
	m, err := h.media.Delete(r.Context(), id)
	if err != nil {
		serverError(w, "delete media failed", err, "media_id", id)
		return
	}
	if m == nil {
		notFound(w, "Media")
		return
	}
	if err := h.disks.Remove(r.Context(), []models.Media{*m}); err != nil {
		slog.Warn("failed to delete media blobs", "media_id", id, "error", err)
	}

	slog.Info("media deleted", "media_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Media deleted."})
}
