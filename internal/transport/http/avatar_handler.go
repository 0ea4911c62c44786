package httptransport

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"school/backend/internal/domain"
	"school/backend/internal/middleware"
	"school/backend/internal/service"
)

// avatarResponse 头像元信息响应
type avatarResponse = domain.AvatarMeta

// avatarPageResponse 头像分页响应
type avatarPageResponse = domain.AvatarPage

// taskAcceptedResponse 异步上传受理响应
type taskAcceptedResponse struct {
	TaskID string             `json:"taskId"`
	Status service.TaskStatus `json:"status"`
}

// taskStatusResponse 异步任务状态响应
type taskStatusResponse struct {
	TaskID    string             `json:"taskId"`
	StudentID uint64             `json:"studentId"`
	Status    service.TaskStatus `json:"status"`
	Avatar    *avatarResponse    `json:"avatar,omitempty"`
	Error     *Response          `json:"error,omitempty"` // 失败时与同步上传相同的 code 与 msg
	CreatedAt time.Time          `json:"createdAt"`
}

// TaskPayload 将任务快照转换为对外格式（HTTP 查询与 WebSocket 推送共用）
func TaskPayload(snap service.TaskSnapshot) interface{} {
	resp := taskStatusResponse{
		TaskID:    snap.ID,
		StudentID: snap.StudentID,
		Status:    snap.Status,
		CreatedAt: snap.CreatedAt,
	}
	switch snap.Status {
	case service.TaskSucceeded:
		if snap.Avatar != nil {
			meta := snap.Avatar.Meta()
			resp.Avatar = &meta
		}
	case service.TaskFailed:
		body := ErrorBody(snap.Err)
		resp.Error = &body
	}
	return resp
}

// uploadAvatar godoc
// @Summary 上传学生头像
// @Description 同步上传头像，文件同时写入磁盘与数据库。最大 300KB，仅支持 JPG/PNG/GIF
// @Tags Avatars
// @Accept multipart/form-data
// @Produce json
// @Param studentId path int true "学生ID"
// @Param file formData file true "头像文件"
// @Success 200 {object} avatarResponse
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /v1/avatars/{studentId} [post]
func (h *Handler) uploadAvatar(c *gin.Context) {
	input, ok := h.readUpload(c)
	if !ok {
		return
	}

	avatar, err := h.avatars.Upload(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	Success(c, avatar.Meta())
}

// uploadAvatarAsync godoc
// @Summary 异步上传学生头像
// @Description 提交后台上传任务并立即返回任务ID；wait=true 时等待任务完成，响应与同步上传一致
// @Tags Avatars
// @Accept multipart/form-data
// @Produce json
// @Param studentId path int true "学生ID"
// @Param file formData file true "头像文件"
// @Param wait query bool false "是否等待完成"
// @Success 202 {object} taskAcceptedResponse
// @Success 200 {object} avatarResponse
// @Failure 400 {object} Response
// @Failure 503 {object} Response
// @Router /v1/avatars/async/{studentId} [post]
func (h *Handler) uploadAvatarAsync(c *gin.Context) {
	input, ok := h.readUpload(c)
	if !ok {
		return
	}

	task, err := h.avatars.UploadAsync(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
		avatar, err := task.Future().Wait(c.Request.Context())
		if err != nil {
			if ctxErr := c.Request.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				// 客户端已断开，任务继续在后台执行
				return
			}
			h.respondError(c, err)
			return
		}
		Success(c, avatar.Meta())
		return
	}

	c.Header("Location", "/v1/avatars/tasks/"+task.ID)
	Accepted(c, taskAcceptedResponse{TaskID: task.ID, Status: service.TaskPending})
}

// getUploadTask godoc
// @Summary 查询异步上传任务
// @Tags Avatars
// @Produce json
// @Param taskId path string true "任务ID"
// @Success 200 {object} taskStatusResponse
// @Failure 404 {object} Response
// @Router /v1/avatars/tasks/{taskId} [get]
func (h *Handler) getUploadTask(c *gin.Context) {
	task, err := h.avatars.GetTask(c.Param("taskId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, TaskPayload(task.Snapshot()))
}

// getAvatarFromDB godoc
// @Summary 从数据库读取头像
// @Tags Avatars
// @Produce image/jpeg,image/png,image/gif
// @Param studentId path int true "学生ID"
// @Success 200 {file} binary
// @Failure 404 {object} Response
// @Router /v1/avatars/db/{studentId} [get]
func (h *Handler) getAvatarFromDB(c *gin.Context) {
	studentID, ok := parseUintParam(c, "studentId", MsgInvalidStudentID)
	if !ok {
		return
	}

	avatar, err := h.avatars.GetByStudentID(c.Request.Context(), studentID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	Binary(c, avatar.MediaType, avatar.Data)
}

// getAvatarFile godoc
// @Summary 从磁盘读取头像
// @Description 文件缺失时返回 500
// @Tags Avatars
// @Produce image/jpeg,image/png,image/gif
// @Param studentId path int true "学生ID"
// @Success 200 {file} binary
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /v1/avatars/file/{studentId} [get]
func (h *Handler) getAvatarFile(c *gin.Context) {
	studentID, ok := parseUintParam(c, "studentId", MsgInvalidStudentID)
	if !ok {
		return
	}

	data, mediaType, err := h.avatars.ReadFile(c.Request.Context(), studentID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	Binary(c, mediaType, data)
}

// listAvatars godoc
// @Summary 分页查询头像
// @Description 按ID升序返回头像元信息，不含图片数据；size 最大 100
// @Tags Avatars
// @Produce json
// @Param page query int false "页码（从0开始）" default(0)
// @Param size query int false "每页数量" default(10)
// @Success 200 {object} avatarPageResponse
// @Failure 400 {object} Response
// @Router /v1/avatars [get]
func (h *Handler) listAvatars(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil {
		BadRequest(c, MsgInvalidPage)
		return
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(service.DefaultPageSize)))
	if err != nil {
		BadRequest(c, MsgInvalidPage)
		return
	}

	result, err := h.avatars.ListPage(c.Request.Context(), page, size)
	if err != nil {
		h.respondError(c, err)
		return
	}
	Success(c, result)
}

// readUpload 解析路径参数与 multipart 文件，失败时已写出响应
func (h *Handler) readUpload(c *gin.Context) (service.UploadAvatarInput, bool) {
	var input service.UploadAvatarInput

	studentID, ok := parseUintParam(c, "studentId", MsgInvalidStudentID)
	if !ok {
		return input, false
	}

	header, err := c.FormFile("file")
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			rejectOversizedUpload(c)
			return input, false
		}
		BadRequest(c, MsgFileRequired)
		return input, false
	}

	file, err := header.Open()
	if err != nil {
		BadRequest(c, MsgFileUnreadable)
		return input, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		BadRequest(c, MsgFileUnreadable)
		return input, false
	}

	return service.UploadAvatarInput{
		StudentID:   studentID,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        data,
	}, true
}

// rejectOversizedUpload 上传请求体超限，按文件过大的校验失败处理
func rejectOversizedUpload(c *gin.Context) {
	BadRequest(c, errorMessages[domain.ErrPayloadTooLarge])
}

// parseUintParam 解析正整数路径参数，失败时写出 400
func parseUintParam(c *gin.Context, name, msg string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, msg)
		return 0, false
	}
	return id, true
}
