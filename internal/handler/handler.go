package handler

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"familytree_go/internal/graph"
	"familytree_go/internal/middleware"
	"familytree_go/internal/model"
	"familytree_go/internal/repository"
	"familytree_go/internal/service"
)

// Handler HTTP处理器集合
//
// 图谱存储和合并会话按拥有者惰性加载并常驻内存，
// 核心包不依赖gin类型，这里只做参数适配。
type Handler struct {
	db        *repository.DB
	members   *repository.MemberRepository
	relatives *repository.RelativeRepository
	locks     *graph.SpouseLock
	upload    *service.UploadService
	ringtones *service.RingtoneService
	calls     *service.CallFlow
	logger    *service.Logger
	jwtSecret string

	mu       sync.Mutex
	stores   map[uint]*graph.Store
	sessions map[uint]*graph.MergeSession
}

// Config 处理器依赖
type Config struct {
	DB        *repository.DB
	Members   *repository.MemberRepository
	Relatives *repository.RelativeRepository
	Locks     *graph.SpouseLock
	Upload    *service.UploadService
	Ringtones *service.RingtoneService
	Calls     *service.CallFlow
	Logger    *service.Logger
	JWTSecret string
}

// New 创建处理器实例
func New(cfg *Config) *Handler {
	return &Handler{
		db:        cfg.DB,
		members:   cfg.Members,
		relatives: cfg.Relatives,
		locks:     cfg.Locks,
		upload:    cfg.Upload,
		ringtones: cfg.Ringtones,
		calls:     cfg.Calls,
		logger:    cfg.Logger,
		jwtSecret: cfg.JWTSecret,
		stores:    make(map[uint]*graph.Store),
		sessions:  make(map[uint]*graph.MergeSession),
	}
}

// Register 注册全部路由
func (h *Handler) Register(r *gin.Engine) {
	r.POST("/auth/register", h.RegisterUser)
	r.POST("/auth/login", h.Login)

	api := r.Group("/api", middleware.AuthMiddleware(h.jwtSecret))
	{
		api.GET("/tree", h.GetTree)
		api.POST("/tree/members", h.CreateMember)
		api.POST("/tree/members/:id/parent", h.AddParent)
		api.POST("/tree/members/:id/spouse", h.AddSpouse)
		api.POST("/tree/members/:id/child", h.AddChild)
		api.POST("/tree/members/:id/move", h.MoveMember)
		api.DELETE("/tree/members/:id", h.DeleteMember)
		api.GET("/tree/couple-edge", h.GetCoupleEdge)

		api.GET("/tree/locks", h.GetLockState)
		api.POST("/tree/locks/toggle", h.ToggleLock)
		api.POST("/tree/locks", h.SetLock)

		api.POST("/merge/enter", h.EnterMerge)
		api.POST("/merge/cancel", h.CancelMerge)
		api.POST("/merge/select", h.ToggleSelect)
		api.POST("/merge/primary", h.SetPrimary)
		api.GET("/merge/suggestions", h.GetSuggestions)
		api.POST("/merge/confirm", h.ConfirmMerge)
		api.POST("/merge/apply", h.ApplySuggestion)

		api.GET("/relatives", h.ListRelatives)
		api.POST("/relatives", h.CreateRelative)
		api.PUT("/relatives/:id", h.UpdateRelative)
		api.DELETE("/relatives/:id", h.DeleteRelative)

		api.POST("/upload", h.UploadMedia)

		api.GET("/ringtones", h.ListRingtones)
		api.GET("/ringtones/preference", h.GetRingtonePreference)
		api.PUT("/ringtones/preference", h.SetRingtonePreference)
		api.POST("/ringtones/custom", h.UploadCustomRingtone)
		api.POST("/ringtones/preview", h.PreviewRingtone)
		api.POST("/ringtones/preview/stop", h.StopRingtonePreview)

		api.POST("/calls/:tag/answer", h.AnswerCall)
		api.POST("/calls/:tag/decline", h.DeclineCall)
	}
}

// storeFor 按拥有者取图谱存储和合并会话，首次访问时加载
func (h *Handler) storeFor(c *gin.Context, ownerID uint) (*graph.Store, *graph.MergeSession, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	store, ok := h.stores[ownerID]
	if !ok {
		store = graph.NewStore(ownerID, h.members, h.logger)
		if err := store.Load(c.Request.Context()); err != nil {
			return nil, nil, err
		}
		h.stores[ownerID] = store
		h.sessions[ownerID] = graph.NewMergeSession(store, h.logger)
	}
	return store, h.sessions[ownerID], nil
}

// currentUser 取已认证用户，失败时直接写响应
func (h *Handler) currentUser(c *gin.Context) (*model.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
	return user, ok
}

// fail 按错误码映射HTTP状态写错误响应
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch service.CodeOf(err) {
	case service.ErrNotFound:
		status = http.StatusNotFound
	case service.ErrInvalidInput, service.ErrInvalidSelection:
		status = http.StatusBadRequest
	case service.ErrPermissionDenied:
		status = http.StatusForbidden
	case service.ErrTransferFailed:
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
