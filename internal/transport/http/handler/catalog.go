package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docsearch/internal/app"
	"docsearch/internal/repository"
	"docsearch/internal/transport/http/response"
	"docsearch/internal/warehouse"
)

type CatalogHandler struct {
	catalogService *app.CatalogService
	maxUploadBytes int64
}

type UploadForm struct {
	UploadedBy       string `form:"uploaded_by"`
	ShortDescription string `form:"short_description"`
	SourceURL        string `form:"source_url"`
}

func NewCatalogHandler(catalogService *app.CatalogService, maxUploadBytes int64) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *CatalogHandler) List(c *gin.Context) {
	filter := repository.UploadFilter{
		FileName:   c.Query("name"),
		UploadedBy: c.Query("uploader"),
		SourceURL:  c.Query("url"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	files, err := h.catalogService.List(c.Request.Context(), filter)
	if err != nil {
		writeWarehouseError(c, err, "list files failed")
		return
	}
	response.OK(c, gin.H{"files": files, "count": len(files)})
}

// formOverheadBytes is the room left for form fields and multipart framing
// on top of the file size limit.
const formOverheadBytes = 1 << 20

func (h *CatalogHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		limit := h.maxUploadBytes + formOverheadBytes
		if c.Request.ContentLength > limit {
			writeTooLarge(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	var form UploadForm
	if err := c.ShouldBind(&form); err != nil {
		if isTooLarge(err) {
			writeTooLarge(c)
			return
		}
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid upload form")
		return
	}

	var compress *bool
	if raw, ok := c.GetPostForm("compress"); ok && raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid compress flag")
			return
		}
		compress = &parsed
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			writeTooLarge(c)
			return
		}
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, app.ErrFileRequired.Error())
		return
	}
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		writeTooLarge(c)
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read uploaded file failed")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read uploaded file failed")
		return
	}

	result, err := h.catalogService.RecordUpload(c.Request.Context(), app.UploadInput{
		FileName:         fileHeader.Filename,
		ShortDescription: form.ShortDescription,
		SourceURL:        form.SourceURL,
		UploadedBy:       form.UploadedBy,
		Data:             data,
		Compress:         compress,
	})
	if err != nil {
		var partial *app.PartialUploadError
		switch {
		case errors.Is(err, app.ErrFileRequired), errors.Is(err, app.ErrUploaderRequired), errors.Is(err, app.ErrSourceURLRequired):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.As(err, &partial):
			response.ErrorWithData(c, http.StatusInternalServerError, response.CodeUploadPartial,
				"file stored but not catalogued, manual cleanup required",
				gin.H{"object_path": partial.ObjectPath})
		case errors.Is(err, app.ErrStageWrite):
			response.Error(c, http.StatusBadGateway, response.CodeInternalServer, "upload to stage failed")
		default:
			writeWarehouseError(c, err, "upload failed")
		}
		return
	}

	response.OK(c, result)
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func writeTooLarge(c *gin.Context) {
	response.Error(c, http.StatusRequestEntityTooLarge, response.CodeBadRequest, "file is too large")
}

// writeWarehouseError maps connection failures to 503 and everything else to 500.
func writeWarehouseError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, warehouse.ErrNoConfiguration), errors.Is(err, warehouse.ErrConnection):
		response.Error(c, http.StatusServiceUnavailable, response.CodeWarehouseDown, "warehouse unavailable")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
