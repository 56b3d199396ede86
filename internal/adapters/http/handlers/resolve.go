package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/bibresolve/internal/adapters/http/dto"
	"github.com/jsamuelsen/bibresolve/internal/app"
	"github.com/jsamuelsen/bibresolve/internal/domain"
)

// DefaultMaxHTMLBytes bounds the document accepted by POST /authors.
const DefaultMaxHTMLBytes = 2 << 20

// Resolver is the part of app.Engine the handlers use.
type Resolver interface {
	ResolveByISBN(ctx context.Context, container string, pure bool, dateFormat string) (*domain.Record, error)
	ResolveByOCLC(ctx context.Context, oclc, dateFormat string) (*domain.Record, *domain.UserMessage, error)
	ResolveByDOI(ctx context.Context, doi, dateFormat string) (*domain.Record, error)
	ResolveByURL(ctx context.Context, url, dateFormat string) (*domain.Record, error)
	Resolve(ctx context.Context, raw, dateFormat string) (*domain.Record, *domain.UserMessage, error)
	ResolveBatch(ctx context.Context, inputs []string, dateFormat string) []app.BatchItem
	ExtractAuthors(html string) []domain.Name
}

// ResolveHandler serves the resolution endpoints.
type ResolveHandler struct {
	resolver     Resolver
	maxBatch     int
	maxHTMLBytes int64
}

// ResolveHandlerConfig configures a ResolveHandler. Zero values take the
// defaults: dto.MaxBatchIdentifiers and DefaultMaxHTMLBytes.
type ResolveHandlerConfig struct {
	MaxBatchSize int
	MaxHTMLBytes int64
}

// NewResolveHandler creates the handler.
// Panics if r is nil.
func NewResolveHandler(r Resolver, cfg ResolveHandlerConfig) *ResolveHandler {
	if r == nil {
		panic("handlers: resolver is required")
	}

	h := &ResolveHandler{
		resolver:     r,
		maxBatch:     cfg.MaxBatchSize,
		maxHTMLBytes: cfg.MaxHTMLBytes,
	}

	if h.maxBatch <= 0 || h.maxBatch > dto.MaxBatchIdentifiers {
		h.maxBatch = dto.MaxBatchIdentifiers
	}

	if h.maxHTMLBytes <= 0 {
		h.maxHTMLBytes = DefaultMaxHTMLBytes
	}

	return h
}

// RegisterRoutes mounts the endpoints on rg.
func (h *ResolveHandler) RegisterRoutes(rg *gin.RouterGroup) {
	resolve := rg.Group("/resolve")
	resolve.GET("", h.Resolve)
	resolve.GET("/isbn", h.ResolveISBN)
	resolve.GET("/oclc/:oclc", h.ResolveOCLC)
	resolve.GET("/doi", h.ResolveDOI)
	resolve.GET("/url", h.ResolveURL)
	resolve.POST("/batch", h.ResolveBatch)

	rg.POST("/authors", h.ExtractAuthors)
}

// ResolveISBN handles GET /resolve/isbn?q=&pure=&date_format=.
// q is searched for an ISBN unless pure is set.
func (h *ResolveHandler) ResolveISBN(c *gin.Context) {
	var q dto.ResolveQuery
	if !bindQuery(c, &q) {
		return
	}

	rec, err := h.resolver.ResolveByISBN(c.Request.Context(), q.Q, q.Pure, q.DateFormat)
	respond(c, rec, nil, err)
}

// ResolveOCLC handles GET /resolve/oclc/:oclc. A number the catalog rejects
// yields 422 with the three-line notice.
func (h *ResolveHandler) ResolveOCLC(c *gin.Context) {
	var q dto.FormatQuery
	if !bindQuery(c, &q) {
		return
	}

	rec, msg, err := h.resolver.ResolveByOCLC(c.Request.Context(), c.Param("oclc"), q.DateFormat)
	respond(c, rec, msg, err)
}

// ResolveDOI handles GET /resolve/doi?q=.
func (h *ResolveHandler) ResolveDOI(c *gin.Context) {
	var q dto.ResolveQuery
	if !bindQuery(c, &q) {
		return
	}

	rec, err := h.resolver.ResolveByDOI(c.Request.Context(), q.Q, q.DateFormat)
	respond(c, rec, nil, err)
}

// ResolveURL handles GET /resolve/url?q=.
func (h *ResolveHandler) ResolveURL(c *gin.Context) {
	var q dto.ResolveQuery
	if !bindQuery(c, &q) {
		return
	}

	rec, err := h.resolver.ResolveByURL(c.Request.Context(), q.Q, q.DateFormat)
	respond(c, rec, nil, err)
}

// Resolve handles GET /resolve?q= for any identifier kind.
func (h *ResolveHandler) Resolve(c *gin.Context) {
	var q dto.ResolveQuery
	if !bindQuery(c, &q) {
		return
	}

	rec, msg, err := h.resolver.Resolve(c.Request.Context(), q.Q, q.DateFormat)
	respond(c, rec, msg, err)
}

// ResolveBatch handles POST /resolve/batch. Per-item failures are reported
// in the items; the response is 200 whenever the request itself is valid.
func (h *ResolveHandler) ResolveBatch(c *gin.Context) {
	var req dto.BatchRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		bindFailed(c, err)
		return
	}

	if len(req.Identifiers) > h.maxBatch {
		dto.RespondWithValidationErrors(c, map[string]string{
			"identifiers": "must be at most " + strconv.Itoa(h.maxBatch) + " items",
		})

		return
	}

	results := h.resolver.ResolveBatch(c.Request.Context(), req.Identifiers, req.DateFormat)

	resp := dto.BatchResponse{Items: make([]dto.BatchItem, len(results))}
	for i, r := range results {
		resp.Items[i] = dto.NewBatchItem(r.Input, r.Record, r.Message, r.Err)
		if resp.Items[i].Error != nil {
			resp.Failed++
		}
	}

	c.JSON(http.StatusOK, resp)
}

// ExtractAuthors handles POST /authors. The body is the HTML document.
func (h *ResolveHandler) ExtractAuthors(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxHTMLBytes+1))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			dto.AbortWithCode(c, dto.ErrorCodeBadRequest, "request body too large")
			return
		}

		dto.AbortWithCode(c, dto.ErrorCodeBadRequest, "could not read request body")

		return
	}

	if int64(len(body)) > h.maxHTMLBytes {
		dto.AbortWithCode(c, dto.ErrorCodeBadRequest, "document too large")
		return
	}

	c.JSON(http.StatusOK, dto.AuthorsResponse{Authors: h.resolver.ExtractAuthors(string(body))})
}

func bindQuery(c *gin.Context, v any) bool {
	if err := dto.BindQueryAndValidate(c, v); err != nil {
		bindFailed(c, err)
		return false
	}

	return true
}

func bindFailed(c *gin.Context, err error) {
	if dto.IsValidationError(err) {
		dto.RespondWithValidationErrors(c, dto.ValidationErrors(err))
		return
	}

	dto.AbortWithCode(c, dto.ErrorCodeBadRequest, "malformed request")
}

func respond(c *gin.Context, rec *domain.Record, msg *domain.UserMessage, err error) {
	switch {
	case err != nil:
		dto.HandleError(c, err)
	case msg != nil:
		resp := dto.NewMessageResponse(msg).WithTraceID(dto.GetTraceID(c))
		c.JSON(http.StatusUnprocessableEntity, resp)
	default:
		c.JSON(http.StatusOK, rec)
	}
}
