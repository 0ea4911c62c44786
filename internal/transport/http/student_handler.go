package httptransport

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"school/backend/internal/service"
)

type studentRequest struct {
	Name      string  `json:"name"`
	Age       int     `json:"age"`
	FacultyID *uint64 `json:"facultyId"`
}

type facultyRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// createStudent godoc
// @Summary 创建学生
// @Tags Students
// @Accept json
// @Produce json
// @Param request body studentRequest true "学生信息"
// @Success 201 {object} domain.Student
// @Failure 400 {object} Response
// @Router /v1/students [post]
func (h *Handler) createStudent(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	student, err := h.students.Create(c.Request.Context(), service.StudentInput(req))
	if err != nil {
		h.respondError(c, err)
		return
	}
	Created(c, student)
}

// listStudents godoc
// @Summary 查询学生列表
// @Description 同时提供 minAge 与 maxAge 时按年龄区间过滤
// @Tags Students
// @Produce json
// @Param minAge query int false "最小年龄"
// @Param maxAge query int false "最大年龄"
// @Success 200 {array} domain.Student
// @Failure 400 {object} Response
// @Router /v1/students [get]
func (h *Handler) listStudents(c *gin.Context) {
	minRaw, maxRaw := c.Query("minAge"), c.Query("maxAge")
	if minRaw == "" && maxRaw == "" {
		students, err := h.students.List(c.Request.Context())
		if err != nil {
			h.respondError(c, err)
			return
		}
		Success(c, students)
		return
	}

	minAge, err := strconv.Atoi(minRaw)
	if err != nil {
		BadRequest(c, MsgInvalidAge)
		return
	}
	maxAge, err := strconv.Atoi(maxRaw)
	if err != nil {
		BadRequest(c, MsgInvalidAge)
		return
	}

	students, err := h.students.ListByAge(c.Request.Context(), minAge, maxAge)
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, students)
}

// getStudent godoc
// @Summary 查询学生
// @Tags Students
// @Produce json
// @Param id path int true "学生ID"
// @Success 200 {object} domain.Student
// @Failure 404 {object} Response
// @Router /v1/students/{id} [get]
func (h *Handler) getStudent(c *gin.Context) {
	id, ok := parseUintParam(c, "id", MsgInvalidStudentID)
	if !ok {
		return
	}

	student, err := h.students.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, student)
}

// updateStudent godoc
// @Summary 更新学生
// @Tags Students
// @Accept json
// @Produce json
// @Param id path int true "学生ID"
// @Param request body studentRequest true "学生信息"
// @Success 200 {object} domain.Student
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /v1/students/{id} [put]
func (h *Handler) updateStudent(c *gin.Context) {
	id, ok := parseUintParam(c, "id", MsgInvalidStudentID)
	if !ok {
		return
	}

	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	student, err := h.students.Update(c.Request.Context(), id, service.StudentInput(req))
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, student)
}

// deleteStudent godoc
// @Summary 删除学生
// @Description 同时删除头像记录、磁盘文件与缓存
// @Tags Students
// @Param id path int true "学生ID"
// @Success 204
// @Failure 404 {object} Response
// @Router /v1/students/{id} [delete]
func (h *Handler) deleteStudent(c *gin.Context) {
	id, ok := parseUintParam(c, "id", MsgInvalidStudentID)
	if !ok {
		return
	}

	if err := h.students.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	NoContent(c)
}

// getStudentFaculty godoc
// @Summary 查询学生所属学院
// @Tags Students
// @Produce json
// @Param id path int true "学生ID"
// @Success 200 {object} domain.Faculty
// @Failure 404 {object} Response
// @Router /v1/students/{id}/faculty [get]
func (h *Handler) getStudentFaculty(c *gin.Context) {
	id, ok := parseUintParam(c, "id", MsgInvalidStudentID)
	if !ok {
		return
	}

	faculty, err := h.students.Faculty(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, faculty)
}

// createFaculty godoc
// @Summary 创建学院
// @Tags Faculties
// @Accept json
// @Produce json
// @Param request body facultyRequest true "学院信息"
// @Success 201 {object} domain.Faculty
// @Failure 400 {object} Response
// @Router /v1/faculties [post]
func (h *Handler) createFaculty(c *gin.Context) {
	var req facultyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	faculty, err := h.faculties.Create(c.Request.Context(), service.FacultyInput(req))
	if err != nil {
		h.respondError(c, err)
		return
	}
	Created(c, faculty)
}

// listFaculties godoc
// @Summary 查询学院列表
// @Tags Faculties
// @Produce json
// @Param q query string false "名称关键字"
// @Success 200 {array} domain.Faculty
// @Router /v1/faculties [get]
func (h *Handler) listFaculties(c *gin.Context) {
	faculties, err := h.faculties.List(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, faculties)
}

// getFaculty godoc
// @Summary 查询学院
// @Tags Faculties
// @Produce json
// @Param id path int true "学院ID"
// @Success 200 {object} domain.Faculty
// @Failure 404 {object} Response
// @Router /v1/faculties/{id} [get]
func (h *Handler) getFaculty(c *gin.Context) {
	id, ok := parseUintParam(c, "id", MsgInvalidFacultyID)
	if !ok {
		return
	}

	faculty, err := h.faculties.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, faculty)
}

// listFacultyStudents godoc
// @Summary 查询学院下的学生
// @Tags Faculties
// @Produce json
// @Param id path int true "学院ID"
// @Success 200 {array} domain.Student
// @Failure 404 {object} Response
// @Router /v1/faculties/{id}/students [get]
func (h *Handler) listFacultyStudents(c *gin.Context) {
	id, ok := parseUintParam(c, "id", MsgInvalidFacultyID)
	if !ok {
		return
	}

	students, err := h.faculties.Students(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, students)
}
