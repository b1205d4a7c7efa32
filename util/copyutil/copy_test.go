package copyutil

import (
	"testing"
	"time"
)

type dummyOne struct {
	Name string
	Age  int
	Time time.Time
}

type dummyTwo struct {
	Age  int
	Time time.Time
}

func TestCopy(t *testing.T) {
	d := dummyOne{
		Name: "123",
		Age:  1,
		Time: time.Now(),
	}
	v := CopyNew[dummyTwo](&d)
	if v.Age != 1 || !v.Time.Equal(d.Time) {
		t.Fatalf("unexpected copy: %#v", v)
	}
}

func TestCopySlice(t *testing.T) {
	v := CopySlice[dummyTwo]([]dummyOne{{Age: 1}, {Age: 2}})
	if len(v) != 2 || v[1].Age != 2 {
		t.Fatalf("unexpected copy: %#v", v)
	}
}
