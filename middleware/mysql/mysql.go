package mysql

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fcg/usuarios/core"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var (
	// Global handle to the database
	mysqlp = &mysqlHolder{conn: nil}

	// default connection parameters string
	defaultConnParams = []string{
		"charset=utf8mb4",
		"parseTime=True",
		"loc=UTC",
		"readTimeout=30s",
		"writeTimeout=30s",
		"timeout=3s",
	}

	minimumConnParam = "parseTime=True&loc=UTC"
)

type mysqlHolder struct {
	conn *gorm.DB
	sync.RWMutex
}

func init() {
	core.SetDefProp(PropMySQLEnabled, false)
	core.SetDefProp(PropMySQLUser, "root")
	core.SetDefProp(PropMySQLPassword, "")
	core.SetDefProp(PropMySQLSchema, "usuarios")
	core.SetDefProp(PropMySQLHost, "localhost")
	core.SetDefProp(PropMySQLPort, 3306)
	core.SetDefProp(PropMySQLConnParam, defaultConnParams)
	core.SetDefProp(PropMySQLMaxOpenConns, 10)
	core.SetDefProp(PropMySQLMaxIdleConns, 10)

	// Connection max lifetime, hikari recommends 1800000, so we do the same thing
	core.SetDefProp(PropMySQLConnLifetime, 30)

	core.RegisterBootstrapCallback(core.ComponentBootstrap{
		Name:      "Bootstrap MySQL",
		Bootstrap: MySQLBootstrap,
		Condition: MySQLBootstrapCondition,
		Order:     core.BootstrapOrderL1,
	})
}

/*
Check if mysql is enabled

This func looks for following prop:

	"mysql.enabled"
*/
func IsMySqlEnabled() bool {
	return core.GetPropBool(PropMySQLEnabled)
}

type MySQLConnParam struct {
	User            string
	Password        string
	Schema          string
	Host            string
	Port            int
	ConnParam       string
	MaxConnLifetime time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
}

/*
Init connection to mysql

If mysql client has been initialized, current func call will be ignored.

This func looks for following props:

	"mysql.user"
	"mysql.password"
	"mysql.database"
	"mysql.host"
	"mysql.port"
	"mysql.connection.parameters"
*/
func InitMySQLFromProp(rail core.Rail) error {
	p := MySQLConnParam{
		User:            core.GetPropStr(PropMySQLUser),
		Password:        core.GetPropStr(PropMySQLPassword),
		Schema:          core.GetPropStr(PropMySQLSchema),
		Host:            core.GetPropStr(PropMySQLHost),
		Port:            core.GetPropInt(PropMySQLPort),
		ConnParam:       strings.Join(core.GetPropStrSlice(PropMySQLConnParam), "&"),
		MaxOpenConns:    core.GetPropInt(PropMySQLMaxOpenConns),
		MaxIdleConns:    core.GetPropInt(PropMySQLMaxIdleConns),
		MaxConnLifetime: core.GetPropDur(PropMySQLConnLifetime, time.Minute),
	}
	return InitMySQL(rail, p)
}

// Build DSN of the go-sql-driver.
func (p MySQLConnParam) Dsn() string {
	cp := strings.TrimSpace(p.ConnParam)
	if cp == "" {
		cp = minimumConnParam
	}
	if !strings.HasPrefix(cp, "?") {
		cp = "?" + cp
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s%s", p.User, p.Password, p.Host, p.Port, p.Schema, cp)
}

// Create new MySQL connection
func NewMySQLConn(rail core.Rail, p MySQLConnParam) (*gorm.DB, error) {
	rail.Infof("Connecting to database '%s:%d/%s' with params: '%s'", p.Host, p.Port, p.Schema, p.ConnParam)

	conn, err := gorm.Open(mysql.Open(p.Dsn()), &gorm.Config{PrepareStmt: true})
	if err != nil {
		rail.Infof("Failed to connect to MySQL, err: %v", err)
		return nil, err
	}

	sqlDb, err := conn.DB()
	if err != nil {
		rail.Infof("Failed to obtain MySQL conn from gorm, %v", err)
		return nil, err
	}

	if p.MaxConnLifetime > 0 {
		sqlDb.SetConnMaxLifetime(p.MaxConnLifetime)
	}
	if p.MaxOpenConns > 0 {
		sqlDb.SetMaxOpenConns(p.MaxOpenConns)
	}
	if p.MaxIdleConns > 0 {
		sqlDb.SetMaxIdleConns(p.MaxIdleConns)
	}

	// make sure the handle is actually connected
	if err := sqlDb.Ping(); err != nil {
		rail.Infof("Ping DB Error, %v, connection may not be established", err)
		return nil, err
	}

	rail.Infof("MySQL connection established")
	return conn, nil
}

/*
Init Handle to the database

If mysql client has been initialized, current func call will be ignored.
*/
func InitMySQL(rail core.Rail, p MySQLConnParam) error {
	mysqlp.Lock()
	defer mysqlp.Unlock()

	if mysqlp.conn != nil {
		return nil
	}

	conn, err := NewMySQLConn(rail, p)
	if err != nil {
		return fmt.Errorf("failed to create mysql connection, %v@%v:%v/%v, %w", p.User, p.Host, p.Port, p.Schema, err)
	}
	mysqlp.conn = conn
	return nil
}

// Get MySQL Connection.
func GetMySQL() *gorm.DB {
	mysqlp.RLock()
	defer mysqlp.RUnlock()

	if mysqlp.conn == nil {
		panic("MySQL Connection hasn't been initialized yet")
	}

	if core.IsDebugLevel() {
		return mysqlp.conn.Debug()
	}

	return mysqlp.conn
}

// Check whether mysql client is initialized
func IsMySQLInitialized() bool {
	mysqlp.RLock()
	defer mysqlp.RUnlock()
	return mysqlp.conn != nil
}

func MySQLBootstrap(rail core.Rail) error {
	if e := InitMySQLFromProp(rail); e != nil {
		return fmt.Errorf("failed to establish connection to MySQL, %w", e)
	}

	core.AddHealthIndicator(core.HealthIndicator{
		Name: "MySQL Component",
		CheckHealth: func(rail core.Rail) bool {
			db, err := GetMySQL().DB()
			if err != nil {
				rail.Errorf("Failed to get MySQL DB, %v", err)
				return false
			}
			if err = db.Ping(); err != nil {
				rail.Errorf("Failed to ping MySQL, %v", err)
				return false
			}
			return true
		},
	})
	core.AddShutdownHook(func() {
		if db, err := GetMySQL().DB(); err == nil {
			_ = db.Close()
		}
	})
	return nil
}

func MySQLBootstrapCondition(rail core.Rail) (bool, error) {
	return IsMySqlEnabled(), nil
}
