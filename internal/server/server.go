package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/taskway/internal/auth"
	authdomain "github.com/smallbiznis/taskway/internal/auth/domain"
	"github.com/smallbiznis/taskway/internal/category"
	categorydomain "github.com/smallbiznis/taskway/internal/category/domain"
	"github.com/smallbiznis/taskway/internal/config"
	"github.com/smallbiznis/taskway/internal/invitation"
	invitationdomain "github.com/smallbiznis/taskway/internal/invitation/domain"
	"github.com/smallbiznis/taskway/internal/notification"
	"github.com/smallbiznis/taskway/internal/onboarding"
	"github.com/smallbiznis/taskway/internal/ordering"
	"github.com/smallbiznis/taskway/internal/task"
	taskdomain "github.com/smallbiznis/taskway/internal/task/domain"
	"github.com/smallbiznis/taskway/internal/workspace"
	workspacedomain "github.com/smallbiznis/taskway/internal/workspace/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	notification.Module,
	onboarding.Module,
	ordering.Module,
	auth.Module,
	workspace.Module,
	category.Module,
	task.Module,
	invitation.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(MetricsMiddleware())
	r.Use(ErrorHandlingMiddleware(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, log *zap.Logger) *gin.Engine {
	return NewEngine(cfg, log)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	authSvc       authdomain.Service
	workspaceSvc  workspacedomain.Service
	categorySvc   categorydomain.Service
	taskSvc       taskdomain.Service
	invitationSvc invitationdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	AuthSvc       authdomain.Service
	WorkspaceSvc  workspacedomain.Service
	CategorySvc   categorydomain.Service
	TaskSvc       taskdomain.Service
	InvitationSvc invitationdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		log:           p.Log,
		genID:         p.GenID,
		authSvc:       p.AuthSvc,
		workspaceSvc:  p.WorkspaceSvc,
		categorySvc:   p.CategorySvc,
		taskSvc:       p.TaskSvc,
		invitationSvc: p.InvitationSvc,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerDevRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/signup", s.Signup)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	api.GET("/workspaces", s.ListWorkspaces)
	api.POST("/workspaces", s.CreateWorkspace)

	ws := api.Group("/workspaces/:id", s.WorkspaceContext())
	ws.GET("", s.GetWorkspace)
	ws.PATCH("", s.UpdateWorkspace)
	ws.DELETE("", s.DeleteWorkspace)

	ws.GET("/members", s.ListMembers)
	ws.PATCH("/members/:userId", s.UpdateMemberRole)
	ws.DELETE("/members/:userId", s.RemoveMember)

	ws.GET("/invitations", s.ListInvitations)
	ws.POST("/invitations", s.CreateInvitation)
	ws.DELETE("/invitations/:invitationId", s.CancelInvitation)
	api.POST("/invitations/accept", s.AcceptInvitation)

	ws.GET("/categories", s.ListCategories)
	ws.POST("/categories", s.CreateCategory)
	ws.PATCH("/categories/:categoryId", s.UpdateCategory)
	ws.DELETE("/categories/:categoryId", s.DeleteCategory)
	ws.POST("/categories/:categoryId/move", s.MoveCategory)
	ws.POST("/categories/reorder", s.ReorderCategories)

	ws.GET("/tasks", s.ListTasks)
	ws.POST("/tasks", s.CreateTask)
	ws.GET("/tasks/:taskId", s.GetTask)
	ws.PATCH("/tasks/:taskId", s.UpdateTask)
	ws.DELETE("/tasks/:taskId", s.DeleteTask)
	ws.POST("/tasks/:taskId/move", s.MoveTask)
	ws.POST("/tasks/reorder", s.ReorderTasks)
	ws.PUT("/tasks/:taskId/assignees", s.SetTaskAssignees)
}

// registerDevRoutes adds endpoints that only exist outside production,
// used by integration suites to reset state between runs.
func (s *Server) registerDevRoutes() {
	if s.cfg.IsProduction() {
		return
	}
	s.engine.POST("/__dev__/reset", s.ResetState)
}
