package departments

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/myfevent/backend/internal/auth"
	"github.com/myfevent/backend/internal/auth/authtest"
	"github.com/myfevent/backend/internal/middleware"
	"github.com/myfevent/backend/internal/models"
	"github.com/myfevent/backend/pkg/response"
)

type apiBody struct {
	Success    bool                 `json:"success"`
	Message    string               `json:"message"`
	Data       json.RawMessage      `json:"data"`
	Pagination *response.Pagination `json:"pagination"`
}

const testSecret = "test-secret"

type apiHarness struct {
	*fixture
	router *gin.Engine
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newFixture()
	h := &apiHarness{fixture: f, router: gin.New()}
	group := h.router.Group("/events/:eventId/departments",
		middleware.JWT(auth.NewVerifier(testSecret, "", 0)),
		middleware.ResolveEventRole(memberStore{f.w}, zap.NewNop()),
	)
	NewHandler(f.svc, zap.NewNop()).Register(group)
	return h
}

func (h *apiHarness) token(t *testing.T, m *models.EventMember) string {
	t.Helper()
	return authtest.Token(t, testSecret, m.UserID, time.Hour)
}

func (h *apiHarness) do(t *testing.T, method, path, token string, body interface{}) (int, apiBody) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var out apiBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func (h *apiHarness) deptPath(id uuid.UUID) string {
	return "/events/" + h.eventID.String() + "/departments/" + id.String()
}

func TestHandler_AddMemberByHoOC(t *testing.T) {
	h := newAPIHarness(t)

	code, body := h.do(t, http.MethodPost, h.deptPath(h.media.ID)+"/members", h.token(t, h.hooc),
		gin.H{"memberId": h.member2.ID.String()})
	require.Equal(t, http.StatusOK, code)
	assert.True(t, body.Success)

	var m models.EventMember
	require.NoError(t, json.Unmarshal(body.Data, &m))
	assert.Equal(t, h.member2.ID, m.ID)
	assert.Equal(t, models.RoleMember, m.Role)
	require.Len(t, h.w.notified, 1)
	assert.Equal(t, h.member2.ID, h.w.notified[0].MemberID)
}

func TestHandler_AddMemberByOtherHoD(t *testing.T) {
	h := newAPIHarness(t)

	code, body := h.do(t, http.MethodPost, h.deptPath(h.media.ID)+"/members", h.token(t, h.hod2),
		gin.H{"memberId": h.member2.ID.String()})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Insufficient permissions", body.Message)
	assert.Zero(t, h.w.writes)
}

func TestHandler_AddHoOCToDepartment(t *testing.T) {
	h := newAPIHarness(t)

	code, body := h.do(t, http.MethodPost, h.deptPath(h.media.ID)+"/members", h.token(t, h.hooc),
		gin.H{"memberId": h.hooc.ID.String()})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Cannot move HooC into a department", body.Message)
}

func TestHandler_AddMemberMissingBody(t *testing.T) {
	h := newAPIHarness(t)

	code, body := h.do(t, http.MethodPost, h.deptPath(h.media.ID)+"/members", h.token(t, h.hooc), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "memberId is required", body.Message)
}

func TestHandler_AssignUnknownUser(t *testing.T) {
	h := newAPIHarness(t)

	code, body := h.do(t, http.MethodPatch, h.deptPath(h.media.ID)+"/assign-hod", h.token(t, h.hooc),
		gin.H{"userId": uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "User not found", body.Message)
}

func TestHandler_ChangeHoDToNonMember(t *testing.T) {
	h := newAPIHarness(t)

	code, body := h.do(t, http.MethodPatch, h.deptPath(h.media.ID)+"/change-hod", h.token(t, h.hooc),
		gin.H{"newHoDId": h.outsider.ID.String()})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "New HoD must be a member of this department", body.Message)
}

func TestHandler_ChangeHoD(t *testing.T) {
	h := newAPIHarness(t)
	alice := h.w.member(h.member1.ID).UserID

	code, body := h.do(t, http.MethodPatch, h.deptPath(h.media.ID)+"/change-hod", h.token(t, h.hooc),
		gin.H{"newHoDId": alice.String()})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Department head changed successfully", body.Message)
}

func TestHandler_ListDepartments(t *testing.T) {
	h := newAPIHarness(t)

	code, body := h.do(t, http.MethodGet, "/events/"+h.eventID.String()+"/departments?page=1&limit=20&search=", h.token(t, h.member1), nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, body.Pagination)
	assert.Equal(t, response.Pagination{Page: 1, Limit: 20, Total: 2, TotalPages: 1}, *body.Pagination)

	var items []models.DepartmentView
	require.NoError(t, json.Unmarshal(body.Data, &items))
	require.Len(t, items, 2)
	assert.Equal(t, "Logistics", items[0].Name)
	assert.Equal(t, 1, items[0].MemberCount)
	assert.Equal(t, 2, items[1].MemberCount)
}

func TestHandler_ListClampsQuery(t *testing.T) {
	h := newAPIHarness(t)

	code, body := h.do(t, http.MethodGet, "/events/"+h.eventID.String()+"/departments?page=-2&limit=1000", h.token(t, h.member1), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, body.Pagination.Page)
	assert.Equal(t, 100, body.Pagination.Limit)
}

func TestHandler_MalformedDepartmentID(t *testing.T) {
	h := newAPIHarness(t)

	code, body := h.do(t, http.MethodGet, "/events/"+h.eventID.String()+"/departments/not-an-id", h.token(t, h.hooc), nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Department not found", body.Message)
}

func TestHandler_RequiresToken(t *testing.T) {
	h := newAPIHarness(t)

	code, body := h.do(t, http.MethodGet, "/events/"+h.eventID.String()+"/departments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, body.Success)
}

func TestHandler_CreateEditDelete(t *testing.T) {
	h := newAPIHarness(t)
	tok := h.token(t, h.hooc)

	code, body := h.do(t, http.MethodPost, "/events/"+h.eventID.String()+"/departments", tok, gin.H{"name": "Finance"})
	require.Equal(t, http.StatusCreated, code)
	var d models.Department
	require.NoError(t, json.Unmarshal(body.Data, &d))
	assert.Equal(t, "Finance", d.Name)

	code, body = h.do(t, http.MethodPatch, h.deptPath(d.ID), tok, gin.H{"name": "Media"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Tên department đã tồn tại", body.Message)

	code, body = h.do(t, http.MethodPatch, h.deptPath(d.ID), tok, gin.H{"description": "budget"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Sửa department thành công", body.Message)

	code, body = h.do(t, http.MethodDelete, h.deptPath(d.ID), tok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Xoá department thành công", body.Message)
}

func TestHandler_DeleteByHoD(t *testing.T) {
	h := newAPIHarness(t)

	code, body := h.do(t, http.MethodDelete, h.deptPath(h.media.ID), h.token(t, h.hod), nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Chỉ HooC mới được xoá Department", body.Message)
}

func TestHandler_RemoveMember(t *testing.T) {
	h := newAPIHarness(t)
	tok := h.token(t, h.hooc)

	code, body := h.do(t, http.MethodDelete, h.deptPath(h.media.ID)+"/members/"+h.hod.ID.String(), tok, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Unassign HoD before removing from department", body.Message)

	code, body = h.do(t, http.MethodDelete, h.deptPath(h.media.ID)+"/members/"+h.member1.ID.String(), tok, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Member removed from department", body.Message)
}

func TestHandler_InternalErrorHidesCause(t *testing.T) {
	h := newAPIHarness(t)
	h.w.fail["depts.List"] = errStore

	code, body := h.do(t, http.MethodGet, "/events/"+h.eventID.String()+"/departments", h.token(t, h.hooc), nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Failed to load departments", body.Message)
}

func TestHandler_RoleLookupFailureIsInternal(t *testing.T) {
	h := newAPIHarness(t)
	h.w.fail["members.EventMembership"] = errStore

	code, body := h.do(t, http.MethodPost, h.deptPath(h.media.ID)+"/members", h.token(t, h.hooc),
		gin.H{"memberId": h.member2.ID.String()})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, middleware.MsgRoleLookupFailed, body.Message)
	assert.Zero(t, h.w.writes)
	assert.Empty(t, h.w.notified)
}

func TestHandler_ReadsRequireParticipant(t *testing.T) {
	h := newAPIHarness(t)
	tok := authtest.Token(t, testSecret, h.outsider.ID, time.Hour)

	for _, path := range []string{
		"/events/" + h.eventID.String() + "/departments",
		h.deptPath(h.media.ID),
		h.deptPath(h.media.ID) + "/members",
	} {
		code, body := h.do(t, http.MethodGet, path, tok, nil)
		assert.Equal(t, http.StatusForbidden, code, path)
		assert.Equal(t, "You are not a participant of this event", body.Message, path)
		assert.Nil(t, body.Data, path)
	}
}
