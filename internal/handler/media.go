package handler

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// UploadMedia 上传媒体文件：图片压缩后入库，其他媒体原样上传
func (h *Handler) UploadMedia(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	folder := c.PostForm("folder")
	if folder == "" {
		folder = "media"
	}

	url, err := h.upload.UploadMedia(c.Request.Context(), file, folder, user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// ListRingtones 内置铃声目录
func (h *Handler) ListRingtones(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ringtones": h.ringtones.Catalog()})
}

// GetRingtonePreference 获取铃声偏好
func (h *Handler) GetRingtonePreference(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"preference": h.ringtones.Preference(c.Request.Context(), user.ID)})
}

type ringtonePreferenceRequest struct {
	RingtoneID string `json:"ringtone_id" binding:"required"`
}

// SetRingtonePreference 设置内置铃声偏好
func (h *Handler) SetRingtonePreference(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req ringtonePreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.ringtones.SetPreference(c.Request.Context(), user.ID, req.RingtoneID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ringtone_id": req.RingtoneID})
}

// UploadCustomRingtone 上传自定义铃声并设为偏好
func (h *Handler) UploadCustomRingtone(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	src, err := file.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		h.fail(c, err)
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext == "" {
		ext = ".mp3"
	}
	if err := h.ringtones.SetCustomRingtone(c.Request.Context(), user.ID, data, ext); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preference": h.ringtones.Preference(c.Request.Context(), user.ID)})
}

type previewRequest struct {
	Asset string `json:"asset" binding:"required"`
}

// PreviewRingtone 试听铃声
func (h *Handler) PreviewRingtone(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.ringtones.Preview(req.Asset); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"previewing": req.Asset})
}

// StopRingtonePreview 停止试听
func (h *Handler) StopRingtonePreview(c *gin.Context) {
	h.ringtones.StopPreview()
	c.Status(http.StatusNoContent)
}

// AnswerCall 接听来电
func (h *Handler) AnswerCall(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}
	tag := c.Param("tag")
	if err := h.calls.Answer(c.Request.Context(), tag); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answered": tag})
}

// DeclineCall 拒接来电
func (h *Handler) DeclineCall(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}
	tag := c.Param("tag")
	h.calls.Decline(tag)
	c.JSON(http.StatusOK, gin.H{"declined": tag})
}
