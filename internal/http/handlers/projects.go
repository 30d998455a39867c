package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/jobsheet/internal/actorctx"
	"github.com/geocoder89/jobsheet/internal/domain/project"
	"github.com/geocoder89/jobsheet/internal/observability"
	"github.com/geocoder89/jobsheet/internal/utils"
	"github.com/gin-gonic/gin"
)

type ProjectsStore interface {
	List(ctx context.Context) ([]project.Project, error)
	Create(ctx context.Context, req project.CreateRequest) (project.Project, error)
	UpdateField(ctx context.Context, id, actorID string, patch project.Patch) (project.Project, error)
}

type ProjectsHandler struct {
	store ProjectsStore
	log   *slog.Logger
	prom  *observability.Prom
	now   func() time.Time
}

// NewProjectsHandler accepts a nil prom; metrics are then skipped.
func NewProjectsHandler(store ProjectsStore, log *slog.Logger, prom *observability.Prom) *ProjectsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ProjectsHandler{
		store: store,
		log:   log,
		prom:  prom,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (h *ProjectsHandler) List(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	items, err := h.store.List(cctx)
	if err != nil {
		h.log.ErrorContext(cctx, "list projects failed", "err", err)
		RespondInternal(ctx, "Could not list projects")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *ProjectsHandler) Columns(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"items": project.Columns})
}

func (h *ProjectsHandler) Create(ctx *gin.Context) {
	actorID, ok := actorctx.UserIDFrom(ctx.Request.Context())
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req project.CreateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// the creator is always the caller
	req.CreatedBy = actorID

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	p, err := h.store.Create(cctx, req)
	h.prom.ObserveRowInsert(err)
	if err != nil {
		h.log.ErrorContext(cctx, "create project failed", "err", err)
		RespondInternal(ctx, "Could not create project")
		return
	}

	ctx.JSON(http.StatusCreated, p)
}

// Patch updates a single column of a row the caller created.
func (h *ProjectsHandler) Patch(ctx *gin.Context) {
	actorID, ok := actorctx.UserIDFrom(ctx.Request.Context())
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondNotFound(ctx, "Project not found")
		return
	}

	body, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		RespondBadRequest(ctx, "Invalid request body", gin.H{"reason": err.Error()})
		return
	}

	patch, err := project.ParsePatch(body)
	if err != nil {
		h.prom.ObserveCellEdit("unknown", "invalid")
		RespondBadRequest(ctx, err.Error(), nil)
		return
	}
	patch.UpdatedAt = h.now()

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	p, err := h.store.UpdateField(cctx, id, actorID, patch)
	if err != nil {
		switch {
		case errors.Is(err, project.ErrNotFound):
			h.prom.ObserveCellEdit(patch.Column, "not_found")
			RespondNotFound(ctx, "Project not found")
		case errors.Is(err, project.ErrForbidden):
			h.prom.ObserveCellEdit(patch.Column, "forbidden")
			h.log.WarnContext(cctx, "edit refused, not the creator", "project_id", id, "column", patch.Column)
			RespondForbidden(ctx, "Only the creator of a row can change it")
		case errors.Is(err, project.ErrUnknownColumn), errors.Is(err, project.ErrInvalidValue):
			h.prom.ObserveCellEdit(patch.Column, "invalid")
			RespondBadRequest(ctx, err.Error(), nil)
		default:
			h.prom.ObserveCellEdit(patch.Column, "error")
			h.log.ErrorContext(cctx, "update project failed", "err", err, "project_id", id)
			RespondInternal(ctx, "Could not update project")
		}
		return
	}

	h.prom.ObserveCellEdit(patch.Column, "ok")

	ctx.JSON(http.StatusOK, p)
}
