package server

import (
	"log"
	"strings"
	"time"

	"github.com/tdnguyen/bangtin/internal/config"
	"github.com/tdnguyen/bangtin/internal/middleware"
	"github.com/tdnguyen/bangtin/pkg/storage"

	fileHttp "github.com/tdnguyen/bangtin/internal/modules/file/delivery/http"
	fileRepo "github.com/tdnguyen/bangtin/internal/modules/file/repository"
	fileService "github.com/tdnguyen/bangtin/internal/modules/file/service"

	itemHttp "github.com/tdnguyen/bangtin/internal/modules/item/delivery/http"
	itemRepo "github.com/tdnguyen/bangtin/internal/modules/item/repository"
	itemService "github.com/tdnguyen/bangtin/internal/modules/item/service"

	userHttp "github.com/tdnguyen/bangtin/internal/modules/user/delivery/http"
	userRepo "github.com/tdnguyen/bangtin/internal/modules/user/repository"
	userService "github.com/tdnguyen/bangtin/internal/modules/user/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Server struct {
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	fileStorage, err := storage.NewCloudinaryStorage(cfg.UploadFolder)
	if err != nil {
		log.Fatalf("failed to initialize cloudinary storage: %v", err)
	}

	users := userRepo.NewUserRepository(db)
	authSvc := userService.NewAuthService(users, cfg.JWTSecret, cfg.JWTTTL)
	authHandler := userHttp.NewAuthHandler(authSvc)

	files := fileRepo.NewFileRepository(db)
	fileSvc := fileService.NewFileService(files, fileStorage)
	fileHandler := fileHttp.NewFileHandler(fileSvc, cfg.MaxUploadFile, cfg.MaxUploadMB)

	notifications := itemRepo.NewRepository(db, itemRepo.Notifications)
	notificationSvc := itemService.NewItemService(notifications, fileSvc, redisClient)
	notificationHandler := itemHttp.NewItemHandler(notificationSvc, redisClient)

	regulations := itemRepo.NewRepository(db, itemRepo.Regulations)
	regulationSvc := itemService.NewItemService(regulations, fileSvc, redisClient)
	regulationHandler := itemHttp.NewItemHandler(regulationSvc, redisClient)

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	requireAuth := middleware.RequireAuth(cfg.JWTSecret)
	optionalAuth := middleware.OptionalAuth(cfg.JWTSecret)
	requireAdmin := middleware.RequireAdmin(users)

	api := router.Group("/api")

	// Public routes (no auth required)
	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
	}

	// Protected auth routes
	authProtected := api.Group("/auth")
	authProtected.Use(requireAuth)
	{
		authProtected.GET("/me", authHandler.Me)
		authProtected.PUT("/profile", authHandler.UpdateProfile)
		authProtected.POST("/change-password", authHandler.ChangePassword)
		authProtected.GET("/users", requireAdmin, authHandler.ListUsers)
	}

	registerItemRoutes(api, "/notifications", notificationHandler, requireAuth, optionalAuth, requireAdmin)
	registerItemRoutes(api, "/regulations", regulationHandler, requireAuth, optionalAuth, requireAdmin)
	api.GET("/regulations/important", optionalAuth, regulationHandler.FindImportant)

	// File routes
	api.GET("/files/:relatedType/:relatedId", fileHandler.ListByParent)
	filesProtected := api.Group("/files")
	filesProtected.Use(requireAuth, requireAdmin)
	{
		filesProtected.POST("/upload", fileHandler.Upload)
		filesProtected.DELETE("/:id", fileHandler.Delete)
	}

	return &Server{
		engine:      router,
		db:          db,
		redisClient: redisClient,
	}
}

func registerItemRoutes(api *gin.RouterGroup, prefix string, handler *itemHttp.ItemHandler, requireAuth, optionalAuth, requireAdmin gin.HandlerFunc) {
	group := api.Group(prefix)

	group.GET("", optionalAuth, handler.List)
	group.GET("/:id", optionalAuth, handler.GetByID)

	protected := group.Group("")
	protected.Use(requireAuth)
	{
		protected.PUT("/:id/read-status", handler.UpdateReadStatus)
		protected.PUT("/mark-all-read", handler.MarkAllAsRead)
		protected.GET("/unread-count", handler.UnreadCount)
		protected.GET("/ws", handler.HandleWebSocket)

		admin := protected.Group("")
		admin.Use(requireAdmin)
		{
			admin.POST("", handler.Create)
			admin.PUT("/:id", handler.Update)
			admin.DELETE("/:id", handler.Delete)
		}
	}
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
