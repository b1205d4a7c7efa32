package mysql

import "testing"

func TestDsn(t *testing.T) {
	p := MySQLConnParam{User: "root", Password: "pwd", Schema: "usuarios", Host: "localhost", Port: 3306}
	if d := p.Dsn(); d != "root:pwd@tcp(localhost:3306)/usuarios?parseTime=True&loc=UTC" {
		t.Fatalf("unexpected dsn %v", d)
	}
	p.ConnParam = "charset=utf8mb4&parseTime=True"
	if d := p.Dsn(); d != "root:pwd@tcp(localhost:3306)/usuarios?charset=utf8mb4&parseTime=True" {
		t.Fatalf("unexpected dsn %v", d)
	}
}

func TestNotInitialized(t *testing.T) {
	if IsMySQLInitialized() {
		t.Fatal("should not be initialized")
	}
	defer func() {
		if recover() == nil {
			t.Fatal("GetMySQL should panic before init")
		}
	}()
	GetMySQL()
}
