package core

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLogLevel(t *testing.T) {
	if l, ok := ParseLogLevel("DEBUG"); !ok || l != logrus.DebugLevel {
		t.Fatalf("unexpected level: %v, %v", l, ok)
	}
	if _, ok := ParseLogLevel("chatty"); ok {
		t.Fatal("should not parse")
	}
}

func TestShortFnName(t *testing.T) {
	cases := map[string]string{
		"shortFunc":               "shortFunc",
		"pck.shortFunc":           "pck.shortFunc",
		"vvvv/pck.shortFunc":      "pck.shortFunc",
		"gggg/vvvv/pck.shortFunc": "pck.shortFunc",
	}
	for in, expected := range cases {
		if v := shortFnName(in); v != expected {
			t.Fatalf("%v: expected %v, got %v", in, expected, v)
		}
	}
}
