package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/safedocs-api/internal/middleware"
	"github.com/noah-isme/safedocs-api/internal/models"
	"github.com/noah-isme/safedocs-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/safedocs-api/pkg/middleware/cors"
	"github.com/noah-isme/safedocs-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/safedocs-api/pkg/middleware/requestid"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableSwagger  bool
	AuthRateLimit  *ratelimit.Limiter
}

// Handlers groups every HTTP handler mounted by NewRouter.
type Handlers struct {
	Auth          *AuthHandler
	Documents     *DocumentHandler
	Friends       *FriendHandler
	Notifications *NotificationHandler
	Audit         *AuditHandler
	Admin         *AdminHandler
	Metrics       *MetricsHandler
}

// RouterDeps are the collaborators the router needs besides handlers.
type RouterDeps struct {
	Config   RouterConfig
	Logger   *zap.Logger
	Tokens   middleware.TokenValidator
	Presence middleware.PresenceToucher
	Observer middleware.RequestObserver
	Handlers Handlers
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	prefix := deps.Config.APIPrefix
	if prefix == "" {
		prefix = "/api"
	}
	h := deps.Handlers

	r := gin.New()
	r.Use(logger.Recovery(log))
	r.Use(reqidmiddleware.Middleware())
	r.Use(middleware.WithResponseMeta())
	r.Use(logger.GinMiddleware(log))
	r.Use(middleware.Metrics(deps.Observer))
	r.Use(corsmiddleware.New(deps.Config.AllowedOrigins))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if deps.Config.EnableSwagger {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(prefix)
	authn := []gin.HandlerFunc{middleware.JWT(deps.Tokens), middleware.Presence(deps.Presence)}

	auth := api.Group("/auth")
	if deps.Config.AuthRateLimit != nil {
		auth.Use(deps.Config.AuthRateLimit.Middleware())
	}
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	// logout clears presence itself, so it skips the presence touch
	auth.POST("/logout", middleware.JWT(deps.Tokens), h.Auth.Logout)
	authed := auth.Group("", authn...)
	authed.GET("/me", h.Auth.Me)
	authed.PUT("/profile", h.Auth.UpdateProfile)
	authed.POST("/change-password", h.Auth.ChangePassword)

	documents := api.Group("/documents")
	documents.GET("/:id/file", h.Documents.File)
	documents.GET("/shared/:token", h.Documents.Shared)
	documents.GET("/shared/:token/download", h.Documents.SharedDownload)
	docs := documents.Group("", authn...)
	{
		read := middleware.RequirePermission(models.PermDocumentsRead)
		upload := middleware.RequirePermission(models.PermDocumentsUpload)
		share := middleware.RequirePermission(models.PermDocumentsShare)

		docs.GET("", read, h.Documents.List)
		docs.POST("", upload, h.Documents.Upload)
		docs.GET("/mine", read, h.Documents.Mine)
		docs.GET("/shared-with-me", read, h.Documents.SharedWithMe)
		docs.GET("/:id", read, h.Documents.Get)
		docs.PUT("/:id", upload, h.Documents.Update)
		docs.DELETE("/:id", upload, h.Documents.Delete)
		docs.GET("/:id/download", read, h.Documents.Download)
		docs.GET("/:id/download-url", read, h.Documents.DownloadURL)
		docs.POST("/:id/share-link", share, h.Documents.ShareLink)
		docs.POST("/:id/share", share, h.Documents.Share)
	}

	friends := api.Group("/friends", authn...)
	friends.Use(middleware.RequirePermission(models.PermFriendsManage))
	friends.GET("", h.Friends.List)
	friends.GET("/online", h.Friends.Online)
	friends.GET("/search", h.Friends.Search)
	friends.GET("/suggestions", h.Friends.Suggestions)
	friends.GET("/status/:userId", h.Friends.Status)
	friends.POST("/request", h.Friends.SendRequest)
	friends.POST("/requests/accept", h.Friends.Accept)
	friends.POST("/requests/reject", h.Friends.Reject)
	friends.GET("/requests/pending", h.Friends.Pending)
	friends.GET("/requests/sent", h.Friends.Sent)
	friends.DELETE("/remove", h.Friends.Remove)

	notifications := api.Group("/notifications", authn...)
	notifications.GET("", h.Notifications.List)
	notifications.GET("/unread-count", h.Notifications.UnreadCount)
	notifications.PATCH("/read-all", h.Notifications.MarkAllRead)
	notifications.PATCH("/:id/read", h.Notifications.MarkRead)

	audit := api.Group("/audit", authn...)
	audit.Use(middleware.RequirePermission(models.PermAuditRead, models.PermAuditReadOwn))
	audit.GET("", h.Audit.List)
	audit.GET("/stats", h.Audit.Stats)
	audit.GET("/export", h.Audit.Export)

	admin := api.Group("/admin", authn...)
	admin.GET("/users", middleware.RequirePermission(models.PermUsersRead), h.Admin.ListUsers)
	admin.GET("/users/:id", middleware.RequirePermission(models.PermUsersRead), h.Admin.GetUser)
	admin.PATCH("/users/:id/role", middleware.RequirePermission(models.PermRolesAssign), h.Admin.UpdateRole)
	admin.PATCH("/users/:id/status", middleware.RequirePermission(models.PermUsersManage), h.Admin.UpdateStatus)
	admin.DELETE("/users/:id", middleware.RequirePermission(models.PermUsersDelete), h.Admin.DeleteUser)
	admin.GET("/documents", middleware.RequirePermission(models.PermDocumentsModerate), h.Admin.ListDocuments)
	admin.DELETE("/documents/:id", middleware.RequirePermission(models.PermDocumentsModerate), h.Admin.DeleteDocument)
	admin.PATCH("/documents/:id/official", middleware.RequirePermission(models.PermDocumentsModerate), h.Admin.SetOfficial)
	admin.GET("/stats", middleware.RequirePermission(models.PermUsersRead), h.Admin.Stats)

	return r
}
