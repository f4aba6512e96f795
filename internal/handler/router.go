package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	"github.com/ulaundry/laundry-api/internal/middleware"
)

// Router bundles everything the API routes need.
type Router struct {
	Auth        *AuthHandler
	Users       *UserHandler
	Items       *LaundryItemHandler
	Orders      *OrderHandler
	WS          *WSHandler
	AuthMW      *middleware.AuthMiddleware
	RateLimiter *middleware.RateLimiter
}

// Register mounts every route under /api/v1 on r.
func (rt *Router) Register(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	requireAuth := rt.AuthMW.RequireAuth()
	strict := rt.RateLimiter.LimitByIdentity(middleware.StrictAuthRateLimitConfig())

	users := api.Group("/users")
	users.Use(rt.RateLimiter.LimitByIP(middleware.DefaultAuthRateLimitConfig()))
	{
		users.POST("/register", rt.Auth.Register)
		users.POST("/login", strict, rt.Auth.Login)
		users.POST("/verify-code", strict, rt.Auth.VerifyCode)
		users.POST("/request-new-code", strict, rt.Auth.RequestNewCode)
		users.POST("/refresh-token", rt.Auth.RefreshToken)
		users.PATCH("/reset", strict, rt.Auth.ForgotPassword)
		users.PATCH("/reset/:resetToken", rt.Auth.ResetPassword)

		users.POST("/logout", requireAuth, rt.Auth.Logout)
		users.GET("/me", requireAuth, rt.Auth.Me)
		users.POST("/me", requireAuth, rt.Auth.Me)
		users.PATCH("/change-password", requireAuth, rt.Auth.ChangePassword)
		users.PATCH("/update", requireAuth, rt.Auth.UpdateDetails)
		users.PATCH("/update-avatar", requireAuth, rt.Auth.UpdateAvatar)

		admin := users.Group("/admin", requireAuth, middleware.RequireCapability(entity.CapUsersManage))
		admin.GET("/all", rt.Users.ListUsers)
		admin.DELETE("/:userId", middleware.ExtractUintParam("userId", "user_param_id"), rt.Users.DeleteUser)
	}

	items := api.Group("/items", requireAuth)
	{
		manage := middleware.RequireCapability(entity.CapCatalogManage)
		itemID := middleware.ExtractUintParam("itemId", "item_id")

		items.GET("", rt.Items.ListActive)
		items.GET("/admin/all", manage, rt.Items.ListAll)
		items.GET("/:itemId", itemID, rt.Items.Get)
		items.POST("", manage, rt.Items.Create)
		items.PATCH("/:itemId", manage, itemID, rt.Items.Update)
		items.PATCH("/:itemId/image", manage, itemID, rt.Items.UpdateImage)
		items.DELETE("/:itemId", manage, itemID, rt.Items.Delete)
	}

	orders := api.Group("/orders", requireAuth)
	{
		viewAll := middleware.RequireCapability(entity.CapOrdersViewAll)
		orderID := middleware.ExtractUintParam("orderId", "order_id")

		orders.POST("/add", middleware.RequireCapability(entity.CapOrdersCreate), rt.Orders.Create)
		orders.POST("/verify-signature", rt.Orders.VerifySignature)
		orders.GET("/view/:userId", middleware.ExtractUintParam("userId", "user_param_id"), rt.Orders.ListForUser)
		orders.GET("/getall", viewAll, rt.Orders.ListAll)
		orders.GET("/get/:status", viewAll, rt.Orders.ListByStatus)
		orders.GET("/export", viewAll, rt.Orders.Export)
		orders.DELETE("/cancel/:orderId", orderID, rt.Orders.Cancel)
		orders.PATCH("/update/:orderId/:status", middleware.RequireCapability(entity.CapOrdersManage), orderID, rt.Orders.UpdateStatus)
		if rt.WS != nil {
			orders.GET("/ws", rt.WS.HandleConnection)
		}
		orders.GET("/:orderId", orderID, rt.Orders.Get)
	}
}
