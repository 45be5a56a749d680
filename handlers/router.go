package handlers

import (
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/messdesk/mess_backend/config"
	"github.com/messdesk/mess_backend/middlewares"
	"github.com/messdesk/mess_backend/models"
	"github.com/messdesk/mess_backend/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var bindingOnce sync.Once

// registerBindingValidations teaches gin's validator the custom tags used by
// request structs.
func registerBindingValidations() {
	bindingOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			if err := utils.RegisterValidations(v); err != nil {
				panic(err)
			}
		}
	})
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		// production requires an explicit allowlist
		cfg.AllowOrigins = splitAndTrim(allowedOrigins)
		if len(cfg.AllowOrigins) == 0 {
			cfg.AllowOrigins = []string{"https://localhost"}
		}
	} else {
		cfg.AllowOriginFunc = func(origin string) bool { return true }
	}
	cfg.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	cfg.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", middlewares.CorrelationHeader)
	cfg.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.CorrelationHeader)
	cfg.AllowCredentials = true
	return cfg
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// SetupRouter builds the gin engine with every route and middleware.
func SetupRouter(logger *logrus.Logger) *gin.Engine {
	registerBindingValidations()

	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(middlewares.MetricsMiddleware())
	r.Use(middlewares.ReadinessGate())
	r.Use(cors.New(corsConfig()))
	if config.RateLimitEnabled() {
		r.Use(middlewares.RateLimiterFromEnv().Middleware())
	}
	r.Use(middlewares.ErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middlewares.AuthMiddleware())

	auth := api.Group("/auth")
	auth.POST("/register", registerHandler())
	auth.POST("/login", loginHandler())
	auth.POST("/logout", logoutHandler())

	protected := api.Group("")
	protected.Use(middlewares.RequireAuth())
	protected.GET("/menus", effectiveMenusHandler())
	protected.GET("/mess-groups", listMessGroupsHandler())

	me := protected.Group("/me")
	me.GET("", meHandler())
	me.PUT("", updateProfileHandler())
	me.PUT("/password", changePasswordHandler())
	me.GET("/dashboard", studentDashboardHandler())
	me.GET("/bills", myBillsHandler())
	me.GET("/bills/:year/:month", myMonthlyBillHandler())
	me.POST("/bills/:id/dispute", disputeBillHandler())
	me.GET("/daily-bill", myDailyBillHandler())
	me.GET("/groups", myMessGroupsHandler())
	me.PUT("/groups", selectMessGroupsHandler())

	admin := protected.Group("/admin")
	admin.Use(middlewares.RequireRole(models.UserRoleAdmin))
	admin.GET("/dashboard", adminDashboardHandler())

	admin.GET("/users", listUsersHandler())
	admin.POST("/users", createUserHandler())
	admin.POST("/users/:id/toggle", toggleUserHandler())
	admin.DELETE("/users/:id", deleteUserHandler())

	admin.POST("/mess-groups", createMessGroupHandler())
	admin.PUT("/mess-groups/:id", updateMessGroupHandler())

	admin.GET("/menus", listMenusHandler())
	admin.POST("/menus", createMenuHandler())
	admin.PUT("/menus/:id", updateMenuHandler())
	admin.DELETE("/menus/:id", deactivateMenuHandler())

	admin.GET("/attendance", attendanceSheetHandler())
	admin.POST("/attendance", markAttendanceHandler())
	admin.GET("/attendance/report", attendanceReportHandler())

	admin.POST("/bills/generate", generateBillsHandler())
	admin.GET("/bills", listBillsHandler())
	admin.GET("/bills/export", exportBillsHandler())
	admin.GET("/bills/pending-approval", pendingApprovalHandler())
	admin.GET("/bills/:id", getBillHandler())
	admin.POST("/bills/:id/approve", approveBillHandler())
	admin.POST("/bills/:id/dispute", disputeBillHandler())
	admin.POST("/bills/:id/payments", recordPaymentHandler())
	admin.GET("/payments/pending", payableBillsHandler())

	admin.GET("/events", listBillEventsHandler())
	admin.POST("/events/:id/replay", replayBillEventHandler())

	r.NoRoute(customNotFoundHandler)
	return r
}
