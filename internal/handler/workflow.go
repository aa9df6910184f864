package handler

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"markr/internal/apperr"
	"markr/internal/attendance"
	"markr/internal/auth"
	"markr/internal/export"
	"markr/internal/roster"
)

// Workflows serves the operator workflow routes.
type Workflows struct {
	svc          *attendance.Service
	maxFileBytes int64
}

// NewWorkflows builds the handler. maxFileBytes caps how much of each
// uploaded file is read.
func NewWorkflows(svc *attendance.Service, maxFileBytes int64) *Workflows {
	if maxFileBytes <= 0 {
		maxFileBytes = 16 << 20
	}
	return &Workflows{svc: svc, maxFileBytes: maxFileBytes}
}

// Register mounts the routes on an authenticated group.
func (h *Workflows) Register(rg *gin.RouterGroup) {
	rg.POST("/workflows", h.create)
	rg.GET("/workflows/:id", h.get)
	rg.DELETE("/workflows/:id", h.discard)
	rg.PUT("/workflows/:id/class", h.selectClass)

	rg.POST("/workflows/:id/photos", h.upload)
	rg.POST("/workflows/:id/photos/retry", h.retry)
	rg.DELETE("/workflows/:id/photos/:photoId", h.removePhoto)

	rg.GET("/workflows/:id/students", h.students)
	rg.POST("/workflows/:id/students/bulk", h.bulk)
	rg.PUT("/workflows/:id/students/:studentId", h.setStatus)
	rg.POST("/workflows/:id/students/:studentId/toggle", h.toggle)

	rg.POST("/workflows/:id/faces/:faceId/assign", h.assign)
	rg.POST("/workflows/:id/faces/:faceId/unassign", h.unassign)

	rg.POST("/workflows/:id/confirm", h.confirm)
	rg.POST("/workflows/:id/reset", h.reset)
	rg.GET("/workflows/:id/export.csv", h.exportCSV)
	rg.GET("/workflows/:id/export.pdf", h.exportPDF)

	rg.GET("/history", h.history)
}

func operator(c *gin.Context) auth.Claims {
	claims, _ := auth.ClaimsFrom(c)
	return claims
}

func (h *Workflows) create(c *gin.Context) {
	var req attendance.CreateRequest
	if !bindJSON(c, &req, true) {
		return
	}
	v, err := h.svc.Create(c.Request.Context(), operator(c).Subject, req)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (h *Workflows) get(c *gin.Context) {
	v, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Workflows) discard(c *gin.Context) {
	if err := h.svc.Discard(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Workflows) selectClass(c *gin.Context) {
	var req attendance.SelectClassRequest
	if !bindJSON(c, &req, false) {
		return
	}
	v, err := h.svc.SelectClass(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, v)
}

type photoPayload struct {
	Photos []struct {
		Name string `json:"name"`
		Data string `json:"data"`
	} `json:"photos"`
}

// readUploads accepts multipart "photos" files or a JSON body of base64 images.
func (h *Workflows) readUploads(c *gin.Context) ([]attendance.Upload, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			return nil, apperr.Validation("invalid multipart form")
		}
		files := form.File["photos"]
		uploads := make([]attendance.Upload, 0, len(files))
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				return nil, apperr.Validation(fmt.Sprintf("cannot read %s", fh.Filename))
			}
			data, err := io.ReadAll(io.LimitReader(f, h.maxFileBytes+1))
			_ = f.Close()
			if err != nil {
				return nil, apperr.Validation(fmt.Sprintf("cannot read %s", fh.Filename))
			}
			uploads = append(uploads, attendance.Upload{Name: fh.Filename, Data: data})
		}
		return uploads, nil
	}

	var body photoPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, apperr.Validation("invalid request body: " + err.Error())
	}
	uploads := make([]attendance.Upload, 0, len(body.Photos))
	for _, p := range body.Photos {
		uploads = append(uploads, attendance.Upload{Name: p.Name, Encoded: p.Data})
	}
	return uploads, nil
}

func (h *Workflows) upload(c *gin.Context) {
	uploads, err := h.readUploads(c)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	if len(uploads) == 0 {
		writeError(c, apperr.Validation("no photos provided"), nil)
		return
	}
	res, err := h.svc.Upload(c.Request.Context(), c.Param("id"), uploads)
	if err != nil {
		writeError(c, err, gin.H{"result": res})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Workflows) retry(c *gin.Context) {
	res, err := h.svc.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, gin.H{"result": res})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Workflows) removePhoto(c *gin.Context) {
	v, err := h.svc.RemovePhoto(c.Request.Context(), c.Param("id"), c.Param("photoId"))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Workflows) students(c *gin.Context) {
	var f roster.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		writeError(c, apperr.Validation(err.Error()), nil)
		return
	}
	list, err := h.svc.Students(c.Request.Context(), c.Param("id"), f)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Workflows) setStatus(c *gin.Context) {
	var req attendance.StatusRequest
	if !bindJSON(c, &req, false) {
		return
	}
	out, err := h.svc.SetStudentStatus(c.Request.Context(), c.Param("id"), c.Param("studentId"), req)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Workflows) toggle(c *gin.Context) {
	out, err := h.svc.ToggleStudent(c.Request.Context(), c.Param("id"), c.Param("studentId"))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Workflows) bulk(c *gin.Context) {
	var req attendance.BulkRequest
	if !bindJSON(c, &req, false) {
		return
	}
	out, err := h.svc.BulkSetStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Workflows) assign(c *gin.Context) {
	var req attendance.AssignRequest
	if !bindJSON(c, &req, false) {
		return
	}
	out, err := h.svc.AssignFace(c.Request.Context(), c.Param("id"), c.Param("faceId"), req)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Workflows) unassign(c *gin.Context) {
	out, err := h.svc.UnassignFace(c.Request.Context(), c.Param("id"), c.Param("faceId"))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Workflows) confirm(c *gin.Context) {
	var req attendance.ConfirmRequest
	if !bindJSON(c, &req, true) {
		return
	}
	out, err := h.svc.Confirm(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Workflows) reset(c *gin.Context) {
	v, err := h.svc.Reset(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Workflows) exportCSV(c *gin.Context) {
	h.export(c, "csv", "text/csv; charset=utf-8", export.CSV)
}

func (h *Workflows) exportPDF(c *gin.Context) {
	h.export(c, "pdf", "application/pdf", export.PDF)
}

func (h *Workflows) export(c *gin.Context, ext, contentType string, render func(export.Sheet) ([]byte, error)) {
	sheet, err := h.svc.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	data, err := render(sheet)
	if err != nil {
		writeError(c, apperr.Wrap(err, apperr.ErrInternal.Code, apperr.ErrInternal.Status, "export failed"), nil)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, sheet.FileName(ext)))
	c.Data(http.StatusOK, contentType, data)
}

// history lists confirmed sessions. Teachers only see their own.
func (h *Workflows) history(c *gin.Context) {
	var f attendance.HistoryFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		writeError(c, apperr.Validation(err.Error()), nil)
		return
	}
	if claims := operator(c); claims.Role != auth.RoleAdmin {
		f.Operator = claims.Subject
	}
	records, err := h.svc.History(c.Request.Context(), f)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": records})
}
