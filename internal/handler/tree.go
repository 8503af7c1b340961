package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"familytree_go/internal/graph"
	"familytree_go/internal/model"
)

type memberDraft struct {
	Name      string       `json:"name" binding:"required"`
	Gender    model.Gender `json:"gender" binding:"required,oneof=male female"`
	BirthYear *int         `json:"birth_year"`
	DeathYear *int         `json:"death_year"`
	PhotoURL  string       `json:"photo_url"`
}

func (d *memberDraft) toMember() *model.Member {
	return &model.Member{
		Name:      d.Name,
		Gender:    d.Gender,
		BirthYear: d.BirthYear,
		DeathYear: d.DeathYear,
		PhotoURL:  d.PhotoURL,
	}
}

// GetTree 返回当前用户的完整家族图谱
func (h *Handler) GetTree(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	store, _, err := h.storeFor(c, user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": store.Members()})
}

// CreateMember 创建图谱起始成员
func (h *Handler) CreateMember(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var draft memberDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, _, err := h.storeFor(c, user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	member, err := store.AddRoot(c.Request.Context(), draft.toMember())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"member": member})
}

// AddParent 为指定成员添加父/母
func (h *Handler) AddParent(c *gin.Context) {
	h.addRelated(c, func(store *graph.Store, anchorID uint, draft *model.Member) (*model.Member, error) {
		return store.AddParent(c.Request.Context(), anchorID, draft)
	})
}

// AddSpouse 为指定成员添加配偶
func (h *Handler) AddSpouse(c *gin.Context) {
	h.addRelated(c, func(store *graph.Store, anchorID uint, draft *model.Member) (*model.Member, error) {
		return store.AddSpouse(c.Request.Context(), anchorID, draft)
	})
}

// AddChild 为指定成员添加子女
func (h *Handler) AddChild(c *gin.Context) {
	h.addRelated(c, func(store *graph.Store, anchorID uint, draft *model.Member) (*model.Member, error) {
		return store.AddChild(c.Request.Context(), anchorID, draft)
	})
}

func (h *Handler) addRelated(c *gin.Context, add func(*graph.Store, uint, *model.Member) (*model.Member, error)) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	anchorID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var draft memberDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, _, err := h.storeFor(c, user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	member, err := add(store, anchorID, draft.toMember())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"member": member})
}

type moveRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// MoveMember 按位移拖动成员，锁定的配偶同步平移
func (h *Handler) MoveMember(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, _, err := h.storeFor(c, user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	moved, err := store.MoveBy(c.Request.Context(), id, req.DX, req.DY, h.locks)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"moved": moved})
}

// DeleteMember 删除成员
func (h *Handler) DeleteMember(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	store, _, err := h.storeFor(c, user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := store.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// GetCoupleEdge 计算夫妻连线，节点缺失时返回204（不渲染）
func (h *Handler) GetCoupleEdge(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	src, err1 := strconv.ParseUint(c.Query("src"), 10, 32)
	dst, err2 := strconv.ParseUint(c.Query("dst"), 10, 32)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "src and dst member ids are required"})
		return
	}

	store, _, err := h.storeFor(c, user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	edge, ok := store.CoupleEdgeBetween(uint(src), uint(dst))
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, edge)
}

type lockRequest struct {
	A      uint  `json:"a" binding:"required"`
	B      uint  `json:"b" binding:"required"`
	Locked *bool `json:"locked"`
}

// GetLockState 查询配偶对锁定状态
func (h *Handler) GetLockState(c *gin.Context) {
	a, err1 := strconv.ParseUint(c.Query("a"), 10, 32)
	b, err2 := strconv.ParseUint(c.Query("b"), 10, 32)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a and b member ids are required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"locked": h.locks.IsPairLocked(uint(a), uint(b))})
}

// ToggleLock 翻转配偶对锁定状态
func (h *Handler) ToggleLock(c *gin.Context) {
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.locks.ToggleLock(req.A, req.B)
	c.JSON(http.StatusOK, gin.H{"locked": h.locks.IsPairLocked(req.A, req.B)})
}

// SetLock 显式设置配偶对锁定状态
func (h *Handler) SetLock(c *gin.Context) {
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Locked == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a, b and locked are required"})
		return
	}
	h.locks.SetLock(req.A, req.B, *req.Locked)
	c.JSON(http.StatusOK, gin.H{"locked": h.locks.IsPairLocked(req.A, req.B)})
}

// EnterMerge 进入合并模式
func (h *Handler) EnterMerge(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	_, session, err := h.storeFor(c, user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	session.Enter()
	c.JSON(http.StatusOK, gin.H{"mode": "active"})
}

// CancelMerge 取消合并模式
func (h *Handler) CancelMerge(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	_, session, err := h.storeFor(c, user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	session.Cancel()
	c.JSON(http.StatusOK, gin.H{"mode": "inactive"})
}

type selectRequest struct {
	ID uint `json:"id" binding:"required"`
}

// ToggleSelect 切换成员选中状态
func (h *Handler) ToggleSelect(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, session, err := h.storeFor(c, user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := session.ToggleSelect(req.ID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"selection": session.Selection()})
}

// SetPrimary 指定主节点
func (h *Handler) SetPrimary(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, session, err := h.storeFor(c, user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := session.SetPrimary(req.ID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"selection": session.Selection()})
}

// GetSuggestions 获取合并建议
func (h *Handler) GetSuggestions(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	_, session, err := h.storeFor(c, user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": session.Suggestions()})
}

// ConfirmMerge 确认合并
func (h *Handler) ConfirmMerge(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	_, session, err := h.storeFor(c, user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := session.Confirm(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": "inactive"})
}

type applySuggestionRequest struct {
	SourceID uint `json:"source_id" binding:"required"`
	TargetID uint `json:"target_id" binding:"required"`
}

// ApplySuggestion 应用一条合并建议
func (h *Handler) ApplySuggestion(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	var req applySuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, session, err := h.storeFor(c, user.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	suggestion := graph.MergeSuggestion{SourceID: req.SourceID, TargetID: req.TargetID}
	if err := session.ApplySuggestion(c.Request.Context(), suggestion); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": "inactive"})
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member id"})
		return 0, false
	}
	return uint(id), true
}
