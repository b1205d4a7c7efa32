package user

import (
	"github.com/fcg/usuarios/core"
	"github.com/fcg/usuarios/server"
	"github.com/gin-gonic/gin"
)

// Register user endpoints.
func RegisterRoutes(engine *gin.Engine, svc *UserService) {
	g := engine.Group("/users")

	g.POST("", server.NewMappedTRouteHandler(func(c *gin.Context, rail core.Rail, req CreateUserReq) (any, error) {
		return svc.Create(rail, req)
	}))

	g.GET("", server.NewMappedTRouteHandler(func(c *gin.Context, rail core.Rail, req ListUsersReq) (any, error) {
		return svc.List(rail, req)
	}))

	g.GET("/:id", server.NewTRouteHandler(func(c *gin.Context, rail core.Rail) (any, error) {
		return svc.Get(rail, c.Param("id"))
	}))

	g.GET("/email/:email", server.NewTRouteHandler(func(c *gin.Context, rail core.Rail) (any, error) {
		return svc.GetByEmail(rail, c.Param("email"))
	}))

	g.GET("/email-exists/:email", server.NewTRouteHandler(func(c *gin.Context, rail core.Rail) (any, error) {
		return svc.EmailExists(rail, c.Param("email"))
	}))

	g.PUT("/:id", server.NewMappedTRouteHandler(func(c *gin.Context, rail core.Rail, req UpdateUserReq) (any, error) {
		return svc.Update(rail, c.Param("id"), req)
	}))

	g.DELETE("/:id", server.NewTRouteHandler(func(c *gin.Context, rail core.Rail) (any, error) {
		return nil, svc.Delete(rail, c.Param("id"))
	}))
}
