package router

import (
	"time"

	"securetalk/config"
	"securetalk/internal/crypto"
	"securetalk/internal/handler"
	"securetalk/internal/middleware"
	"securetalk/internal/repository"
	"securetalk/internal/service"
	"securetalk/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps carries everything Setup wires together.
type Deps struct {
	Cfg    *config.Config
	DB     *gorm.DB
	Cipher *crypto.Cipher
	Hub    *ws.Hub
	Log    *zap.Logger
}

// Services groups the wired service layer so jobs can share it.
type Services struct {
	Auth     *service.AuthService
	Messages *service.MessageService
	Blocks   *service.BlockService
	Audit    *service.AuditService
	Tokens   *service.TokenService
}

func Setup(d Deps) (*gin.Engine, *Services) {
	cfg := d.Cfg
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	userRepo := repository.NewUserRepository(d.DB)
	messageRepo := repository.NewMessageRepository(d.DB)
	blockRepo := repository.NewBlockRepository(d.DB)
	auditRepo := repository.NewAuditLogRepository(d.DB)
	tokenRepo := repository.NewRefreshTokenRepository(d.DB)
	sessionRepo := repository.NewSessionRepository(d.DB)

	// Services
	auditSvc := service.NewAuditService(auditRepo, d.Log)
	blockSvc := service.NewBlockService(blockRepo, userRepo, auditSvc, d.Log)
	messageSvc := service.NewMessageService(messageRepo, userRepo, blockSvc, auditSvc, d.Cipher, d.Hub,
		cfg.Message.MaxLength, cfg.Message.EditWindow, d.Log)
	tokenSvc := service.NewTokenService(tokenRepo, sessionRepo, userRepo, auditSvc, &cfg.JWT, cfg.Token, d.Log)
	authSvc := service.NewAuthService(userRepo, tokenSvc, auditSvc, &cfg.JWT, cfg.Auth, d.Log)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	messageHandler := handler.NewMessageHandler(messageSvc)
	blockHandler := handler.NewBlockHandler(blockSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)
	sessionHandler := handler.NewSessionHandler(tokenSvc)

	authMw := middleware.AuthRequired(&cfg.JWT, tokenSvc)
	adminMw := middleware.AdminRequired()

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMw, authHandler.Logout)
			authGroup.POST("/logout-all", authMw, authHandler.LogoutEverywhere)
			authGroup.PATCH("/change-password", authMw, authHandler.ChangePassword)
		}

		messages := api.Group("/messages")
		messages.Use(authMw)
		{
			messages.POST("", messageHandler.Send)
			messages.GET("/unread-count", messageHandler.UnreadCount)
			messages.GET("/stats", messageHandler.Stats)
			messages.GET("/:id", messageHandler.Get)
			messages.PATCH("/:id", messageHandler.Edit)
			messages.PATCH("/:id/read", messageHandler.MarkRead)
			messages.DELETE("/:id", messageHandler.Delete)
		}

		conversations := api.Group("/conversations")
		conversations.Use(authMw)
		{
			conversations.GET("", messageHandler.ListConversations)
			conversations.GET("/:user_id", messageHandler.Conversation)
			conversations.PATCH("/:user_id/read", messageHandler.MarkConversationRead)
		}

		blocks := api.Group("/blocks")
		blocks.Use(authMw)
		{
			blocks.POST("", blockHandler.Block)
			blocks.GET("", blockHandler.List)
			blocks.GET("/status/:user_id", blockHandler.Status)
			blocks.DELETE("/:user_id", blockHandler.Unblock)
		}

		sessions := api.Group("/sessions")
		sessions.Use(authMw)
		{
			sessions.GET("", sessionHandler.List)
			sessions.DELETE("/others", sessionHandler.TerminateOthers)
			sessions.DELETE("/:session_id", sessionHandler.Terminate)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, adminMw)
		{
			admin.GET("/blocks/pending-review", blockHandler.PendingReview)
			admin.PATCH("/blocks/:id/review", blockHandler.Review)

			admin.GET("/audit", auditHandler.ListBetween)
			admin.GET("/audit/flagged", auditHandler.ListFlagged)
			admin.GET("/audit/search", auditHandler.Search)
			admin.GET("/audit/ip", auditHandler.ListByIP)
			admin.GET("/audit/user/:user_id", auditHandler.ListByUser)
			admin.GET("/audit/action/:action", auditHandler.ListByAction)
			admin.GET("/audit/entity/:type/:id", auditHandler.ListByEntity)
			admin.PATCH("/audit/:id/review", auditHandler.Review)
		}

		api.GET("/ws", ws.Upgrade(&cfg.JWT, d.Hub))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r, &Services{
		Auth:     authSvc,
		Messages: messageSvc,
		Blocks:   blockSvc,
		Audit:    auditSvc,
		Tokens:   tokenSvc,
	}
}
