package handler

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/cohort-api/internal/models"
	"github.com/noah-isme/cohort-api/internal/service"
	appErrors "github.com/noah-isme/cohort-api/pkg/errors"
	"github.com/noah-isme/cohort-api/pkg/export"
	"github.com/noah-isme/cohort-api/pkg/response"
	"github.com/noah-isme/cohort-api/pkg/storage"
)

type rosterService interface {
	ExportRoster(ctx context.Context, caller *models.JWTClaims, programID, format string) (*service.RosterExport, error)
}

type exportStore interface {
	Put(name string, body []byte) error
	Read(name string) ([]byte, error)
}

type linkSigner interface {
	Sign(name string) (string, time.Time, error)
	Verify(token string) (string, error)
}

// RosterLink is returned when a roster is delivered as a signed download link.
type RosterLink struct {
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RosterHandler serves program rosters as downloadable files.
type RosterHandler struct {
	rosters      rosterService
	store        exportStore
	signer       linkSigner
	downloadPath string
}

// NewRosterHandler constructs RosterHandler. Link delivery is disabled when store or signer is nil.
func NewRosterHandler(rosters rosterService, store exportStore, signer linkSigner, downloadPath string) *RosterHandler {
	return &RosterHandler{rosters: rosters, store: store, signer: signer, downloadPath: downloadPath}
}

// Export godoc
// @Summary Export a program roster
// @Tags Programs
// @Produce text/csv
// @Produce application/pdf
// @Produce json
// @Security BearerAuth
// @Param id path string true "Program ID"
// @Param format query string false "csv (default) or pdf"
// @Param delivery query string false "file (default) or link"
// @Success 200 {file} file
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /programs/{id}/roster [get]
func (h *RosterHandler) Export(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	delivery := c.DefaultQuery("delivery", "file")
	if delivery != "file" && delivery != "link" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "delivery must be file or link"))
		return
	}
	if delivery == "link" && (h.store == nil || h.signer == nil) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "download links are disabled"))
		return
	}

	file, err := h.rosters.ExportRoster(c.Request.Context(), claims, c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if delivery == "file" {
		response.Binary(c, file.ContentType, file.Filename, file.Body)
		return
	}

	name := path.Join(uuid.NewString(), file.Filename)
	if err := h.store.Put(name, file.Body); err != nil {
		response.Error(c, appErrors.Internal(err, "failed to store roster"))
		return
	}
	token, expiresAt, err := h.signer.Sign(name)
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to sign download link"))
		return
	}
	response.Created(c, RosterLink{
		URL:       h.downloadPath + "/" + token,
		Filename:  file.Filename,
		ExpiresAt: expiresAt,
	})
}

// Download godoc
// @Summary Download a stored roster
// @Tags Programs
// @Produce text/csv
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /roster-downloads/{token} [get]
func (h *RosterHandler) Download(c *gin.Context) {
	if h.store == nil || h.signer == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	name, err := h.signer.Verify(c.Param("token"))
	switch {
	case errors.Is(err, storage.ErrLinkExpired):
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "download link expired"))
		return
	case err != nil:
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid download link"))
		return
	}
	body, err := h.store.Read(name)
	if errors.Is(err, storage.ErrNotStored) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export no longer available"))
		return
	}
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read roster"))
		return
	}
	response.Binary(c, contentTypeFor(name), path.Base(name), body)
}

func contentTypeFor(name string) string {
	format, err := export.ParseFormat(strings.TrimPrefix(path.Ext(name), "."))
	if err != nil {
		return "application/octet-stream"
	}
	return format.ContentType()
}
