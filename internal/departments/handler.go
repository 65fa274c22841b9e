package departments

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/myfevent/backend/internal/middleware"
	"github.com/myfevent/backend/pkg/apperror"
	"github.com/myfevent/backend/pkg/response"
)

// AddMemberRequest is the body for POST /:departmentId/members.
type AddMemberRequest struct {
	MemberID string `json:"memberId"`
}

// AssignHoDRequest is the body for PATCH /:departmentId/assign-hod.
type AssignHoDRequest struct {
	UserID string `json:"userId"`
}

// ChangeHoDRequest is the body for PATCH /:departmentId/change-hod.
type ChangeHoDRequest struct {
	NewHoDID string `json:"newHoDId"`
}

// Handler handles department HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a department handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the routes on a group rooted at /events/:eventId/departments.
// The group must run middleware.JWT and middleware.ResolveEventRole first.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:departmentId", h.Detail)
	rg.PATCH("/:departmentId", h.Edit)
	rg.DELETE("/:departmentId", h.Delete)
	rg.GET("/:departmentId/members", h.Members)
	rg.POST("/:departmentId/members", h.AddMember)
	rg.DELETE("/:departmentId/members/:memberId", h.RemoveMember)
	rg.PATCH("/:departmentId/assign-hod", h.AssignHoD)
	rg.PATCH("/:departmentId/change-hod", h.ChangeHoD)
}

// pathID parses a path parameter. A malformed id becomes uuid.Nil, which no
// row has, so lookups report the resource as missing.
func pathID(c *gin.Context, name string) uuid.UUID {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// bind decodes an optional JSON body. A missing or malformed body leaves req
// zero-valued and the service reports the missing fields.
func bind(c *gin.Context, req interface{}) {
	if err := c.ShouldBindJSON(req); err != nil && c.Request.ContentLength != 0 {
		_ = c.Error(err)
	}
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	if apperror.KindOf(err) == apperror.KindInternal {
		_ = c.Error(err)
		h.logger.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
	}
	response.Error(c, err, fallback)
}

// List handles GET /events/:eventId/departments?page=&limit=&search=.
func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	q := NormalizeListQuery(page, limit, c.Query("search"))
	items, p, err := h.svc.List(c.Request.Context(), middleware.EventMember(c), pathID(c, "eventId"), q)
	if err != nil {
		h.fail(c, err, msgListFailed)
		return
	}
	response.Page(c, items, p)
}

// Detail handles GET /events/:eventId/departments/:departmentId.
func (h *Handler) Detail(c *gin.Context) {
	d, err := h.svc.Detail(c.Request.Context(), middleware.EventMember(c), pathID(c, "eventId"), pathID(c, "departmentId"))
	if err != nil {
		h.fail(c, err, msgDetailFailed)
		return
	}
	response.OK(c, d)
}

// Members handles GET /events/:eventId/departments/:departmentId/members.
func (h *Handler) Members(c *gin.Context) {
	list, err := h.svc.Members(c.Request.Context(), middleware.EventMember(c), pathID(c, "eventId"), pathID(c, "departmentId"))
	if err != nil {
		h.fail(c, err, msgMembersFailed)
		return
	}
	response.OK(c, list)
}

// Create handles POST /events/:eventId/departments (HoOC only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateInput
	bind(c, &req)
	d, err := h.svc.Create(c.Request.Context(), middleware.EventMember(c), pathID(c, "eventId"), req)
	if err != nil {
		h.fail(c, err, msgCreateFailed)
		return
	}
	response.CreatedMessage(c, msgCreated, d)
}

// Edit handles PATCH /events/:eventId/departments/:departmentId (HoOC only).
func (h *Handler) Edit(c *gin.Context) {
	var patch Patch
	bind(c, &patch)
	d, err := h.svc.Edit(c.Request.Context(), middleware.EventMember(c), pathID(c, "eventId"), pathID(c, "departmentId"), patch)
	if err != nil {
		h.fail(c, err, msgEditFailed)
		return
	}
	response.OKMessage(c, msgEdited, d)
}

// Delete handles DELETE /events/:eventId/departments/:departmentId (HoOC only).
func (h *Handler) Delete(c *gin.Context) {
	err := h.svc.Delete(c.Request.Context(), middleware.EventMember(c), pathID(c, "eventId"), pathID(c, "departmentId"))
	if err != nil {
		h.fail(c, err, msgDeleteFailed)
		return
	}
	response.OKMessage(c, msgDeleted, nil)
}

// AddMember handles POST /events/:eventId/departments/:departmentId/members.
func (h *Handler) AddMember(c *gin.Context) {
	var req AddMemberRequest
	bind(c, &req)
	m, err := h.svc.AddMember(c.Request.Context(), middleware.EventMember(c), pathID(c, "eventId"), pathID(c, "departmentId"), req.MemberID)
	if err != nil {
		h.fail(c, err, msgAddFailed)
		return
	}
	response.OK(c, m)
}

// RemoveMember handles DELETE /events/:eventId/departments/:departmentId/members/:memberId.
func (h *Handler) RemoveMember(c *gin.Context) {
	err := h.svc.RemoveMember(c.Request.Context(), middleware.EventMember(c), pathID(c, "eventId"), pathID(c, "departmentId"), c.Param("memberId"))
	if err != nil {
		h.fail(c, err, msgRemoveFailed)
		return
	}
	response.OKMessage(c, msgMemberRemoved, nil)
}

// AssignHoD handles PATCH /events/:eventId/departments/:departmentId/assign-hod.
func (h *Handler) AssignHoD(c *gin.Context) {
	var req AssignHoDRequest
	bind(c, &req)
	d, err := h.svc.AssignHoD(c.Request.Context(), middleware.EventMember(c), pathID(c, "eventId"), pathID(c, "departmentId"), req.UserID)
	if err != nil {
		h.fail(c, err, msgAssignFailed)
		return
	}
	response.OKMessage(c, msgHoDAssigned, d)
}

// ChangeHoD handles PATCH /events/:eventId/departments/:departmentId/change-hod.
func (h *Handler) ChangeHoD(c *gin.Context) {
	var req ChangeHoDRequest
	bind(c, &req)
	d, err := h.svc.ChangeHoD(c.Request.Context(), middleware.EventMember(c), pathID(c, "eventId"), pathID(c, "departmentId"), req.NewHoDID)
	if err != nil {
		h.fail(c, err, msgChangeFailedPrefix+"unexpected error")
		return
	}
	response.OKMessage(c, msgHoDChanged, d)
}
