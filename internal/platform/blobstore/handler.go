package blobstore

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// PublicPrefix is the route prefix public objects are served under.
const PublicPrefix = "/storage/v1/object/public/"

// URLs builds and parses public object URLs for a deployment.
type URLs struct {
	BaseURL string
}

// Public returns the URL an object is served at.
func (u URLs) Public(bucket, path string) string {
	return strings.TrimRight(u.BaseURL, "/") + PublicPrefix + bucket + "/" + path
}

// Parse extracts bucket and path from a URL produced by Public. ok is false
// for any other value, including data URIs and foreign URLs.
func (u URLs) Parse(url string) (bucket, path string, ok bool) {
	prefix := strings.TrimRight(u.BaseURL, "/") + PublicPrefix
	if !strings.HasPrefix(url, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(url, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// listResponse is the JSON envelope returned by the list endpoint.
type listResponse struct {
	Items []*Object `json:"items"`
	Total int       `json:"total"`
}

// Handler serves stored objects over HTTP.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterPublicRoutes mounts unauthenticated object downloads.
func (h *Handler) RegisterPublicRoutes(e *echo.Echo) {
	e.GET(PublicPrefix+":bucket/*", h.handleDownload)
}

// RegisterAdminRoutes mounts listing and deletion on an authenticated group.
func (h *Handler) RegisterAdminRoutes(g *echo.Group) {
	g.GET("/storage/:bucket", h.handleList)
	g.DELETE("/storage/:bucket/*", h.handleDelete)
}

func (h *Handler) handleDownload(c echo.Context) error {
	bucket, path := c.Param("bucket"), c.Param("*")
	if err := ValidateKey(bucket, path); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	rc, meta, err := h.store.Get(c.Request().Context(), bucket, path)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	defer rc.Close()

	c.Response().Header().Set("Cache-Control", "public, max-age=3600")
	c.Response().Header().Set("ETag", `"`+meta.Hash+`"`)
	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return c.Stream(http.StatusOK, contentType, rc)
}

func (h *Handler) handleList(c echo.Context) error {
	items, total, err := h.store.List(c.Request().Context(), c.Param("bucket"), c.QueryParam("prefix"),
		intParam(c, "limit", 100), intParam(c, "offset", 0))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if items == nil {
		items = []*Object{}
	}
	return c.JSON(http.StatusOK, listResponse{Items: items, Total: total})
}

func (h *Handler) handleDelete(c echo.Context) error {
	bucket, path := c.Param("bucket"), c.Param("*")
	if err := ValidateKey(bucket, path); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := h.store.Remove(c.Request().Context(), bucket, path); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

func intParam(c echo.Context, name string, defaultVal int) int {
	v := c.QueryParam(name)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
