package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"familytree_go/internal/model"
)

type relativeRequest struct {
	Name             string             `json:"name" binding:"required"`
	RelationType     model.RelationType `json:"relation_type" binding:"required"`
	ParentRelativeID *uint              `json:"parent_relative_id"`
	Gender           model.Gender       `json:"gender"`
	AvatarURL        string             `json:"avatar_url"`
}

// ListRelatives 列出当前用户的亲属记录
func (h *Handler) ListRelatives(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	relatives, err := h.relatives.ListByUser(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"relatives": relatives})
}

// CreateRelative 创建亲属记录
func (h *Handler) CreateRelative(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req relativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !model.ValidRelationType(req.RelationType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid relation type"})
		return
	}

	relative := &model.Relative{
		UserID:           user.ID,
		Name:             req.Name,
		RelationType:     req.RelationType,
		ParentRelativeID: req.ParentRelativeID,
		Gender:           req.Gender,
		AvatarURL:        req.AvatarURL,
	}
	if err := h.relatives.Create(c.Request.Context(), relative); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"relative": relative})
}

// UpdateRelative 更新亲属记录
func (h *Handler) UpdateRelative(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req relativeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !model.ValidRelationType(req.RelationType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid relation type"})
		return
	}

	relatives, err := h.relatives.ListByUser(c.Request.Context(), user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	var relative *model.Relative
	for i := range relatives {
		if relatives[i].ID == id {
			relative = &relatives[i]
			break
		}
	}
	if relative == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "relative not found"})
		return
	}

	relative.Name = req.Name
	relative.RelationType = req.RelationType
	relative.ParentRelativeID = req.ParentRelativeID
	relative.Gender = req.Gender
	relative.AvatarURL = req.AvatarURL
	if err := h.relatives.Update(c.Request.Context(), relative); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"relative": relative})
}

// DeleteRelative 删除亲属记录
func (h *Handler) DeleteRelative(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.relatives.Delete(c.Request.Context(), user.ID, id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
