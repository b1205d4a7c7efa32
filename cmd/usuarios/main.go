package main

import (
	"os"

	"github.com/fcg/usuarios/core"
	"github.com/fcg/usuarios/middleware/mysql"
	"github.com/fcg/usuarios/middleware/rabbit"
	"github.com/fcg/usuarios/middleware/sqlite"
	"github.com/fcg/usuarios/server"
	"github.com/fcg/usuarios/user"
	"github.com/fcg/usuarios/version"
	"github.com/gin-gonic/gin"
	_ "go.uber.org/automaxprocs"
	"gorm.io/gorm"
)

func init() {
	core.RegisterBootstrapCallback(core.ComponentBootstrap{
		Name:      "Bootstrap User Service",
		Bootstrap: bootstrapUserService,
		Order:     core.BootstrapOrderL2 + 1, // before the web server
	})
	core.RegisterBootstrapCallback(core.ComponentBootstrap{
		Name:      "Subscribe Integration Events",
		Bootstrap: func(rail core.Rail) error { return user.SubscribeEventHandlers(rail, rabbit.GetBus()) },
		Order:     core.BootstrapOrderL4,
	})
}

func main() {
	core.BootstrapServer(os.Args)
}

func bootstrapUserService(rail core.Rail) error {
	rail.Infof("usuarios version: %v", version.Version)
	if !core.GetPropBool(rabbit.PropRabbitMqEnabled) {
		return core.NewErrf("user service requires the event bus, please set '%v' to true", rabbit.PropRabbitMqEnabled)
	}

	var db *gorm.DB
	if mysql.IsMySQLInitialized() {
		db = mysql.GetMySQL()
	} else {
		db = sqlite.GetDB()
	}
	if err := user.Migrate(rail, db); err != nil {
		return err
	}

	svc := user.NewUserService(db, rabbit.GetBus())
	server.AddRoutes(func(engine *gin.Engine) { user.RegisterRoutes(engine, svc) })
	return nil
}
