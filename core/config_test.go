package core

import (
	"testing"
	"time"
)

func TestLoadConfigFromStr(t *testing.T) {
	c := newAppConfig()
	c.SetDefProp("rabbitmq.port", 5672)
	err := c.LoadConfigFromStr(`
rabbitmq:
  host: "broker"
  publisher:
    retry-delay-ms: 250
`)
	if err != nil {
		t.Fatal(err)
	}
	if v := c.GetPropStr("rabbitmq.host"); v != "broker" {
		t.Fatalf("expected 'broker', got %v", v)
	}
	if v := c.GetPropInt("rabbitmq.port"); v != 5672 {
		t.Fatalf("expected default 5672, got %v", v)
	}
	if v := c.GetPropDur("rabbitmq.publisher.retry-delay-ms", time.Millisecond); v != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", v)
	}
}

func TestArgKeyVal(t *testing.T) {
	m := ArgKeyVal([]string{"app.name=test", "ignored", "tag=a", "tag=b"})
	if v := m["app.name"]; len(v) != 1 || v[0] != "test" {
		t.Fatalf("unexpected %v", m)
	}
	if v := m["tag"]; len(v) != 2 {
		t.Fatalf("unexpected %v", m)
	}
	if _, ok := m["ignored"]; ok {
		t.Fatalf("unexpected %v", m)
	}
	if p := GuessConfigFilePath([]string{"configFile=/etc/usuarios.yml"}); p != "/etc/usuarios.yml" {
		t.Fatalf("unexpected %v", p)
	}
}

func TestPaging(t *testing.T) {
	p := Paging{Page: 3, Limit: 1000}
	if p.GetLimit() != MaxPageLimit {
		t.Fatalf("unexpected limit %v", p.GetLimit())
	}
	if p.GetOffset() != 2*MaxPageLimit {
		t.Fatalf("unexpected offset %v", p.GetOffset())
	}
	r := Paging{}.ToRespPage(7)
	if r.Page != 1 || r.Limit != DefPageLimit || r.Total != 7 {
		t.Fatalf("unexpected %+v", r)
	}
}

func TestBootstrapComponentsOrder(t *testing.T) {
	a := newApp()
	var order []string
	add := func(name string, o int, enabled bool) {
		a.RegisterBootstrapCallback(ComponentBootstrap{
			Name:      name,
			Order:     o,
			Condition: func(rail Rail) (bool, error) { return enabled, nil },
			Bootstrap: func(rail Rail) error { order = append(order, name); return nil },
		})
	}
	add("web", BootstrapOrderL3, true)
	add("db", BootstrapOrderL1, true)
	add("disabled", BootstrapOrderL1, false)
	add("bus", BootstrapOrderL2, true)
	a.PostServerBootstrap(func(rail Rail) error { order = append(order, "post"); return nil })

	if err := a.BootstrapComponents(EmptyRail()); err != nil {
		t.Fatal(err)
	}
	expected := []string{"db", "bus", "web", "post"}
	if len(order) != len(expected) {
		t.Fatalf("unexpected order %v", order)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Fatalf("unexpected order %v", order)
		}
	}
}
