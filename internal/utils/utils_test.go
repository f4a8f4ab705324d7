package utils

import (
	"reflect"
	"testing"
)

func TestUniqueStrings(t *testing.T) {
	got := UniqueStrings([]string{"b", "a", "b", "c", "a"})
	want := []string{"b", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UniqueStrings = %v, want %v", got, want)
	}
	if !ContainsString(got, "c") || ContainsString(got, "d") {
		t.Error("ContainsString mismatch")
	}
}

func TestNormalizeRepoName(t *testing.T) {
	tests := map[string]string{
		"onnwee/portfolio":                        "onnwee/portfolio",
		"  onnwee/portfolio  ":                    "onnwee/portfolio",
		"https://github.com/onnwee/portfolio.git": "onnwee/portfolio",
		"HTTPS://GitHub.com/onnwee/portfolio/":    "onnwee/portfolio",
		"github.com/onnwee/portfolio":             "onnwee/portfolio",
		"portfolio":                               "",
		"/portfolio":                              "",
		"onnwee/":                                 "",
		"onnwee/portfolio/tree/main":              "",
		"":                                        "",
	}
	for in, want := range tests {
		if got := NormalizeRepoName(in); got != want {
			t.Errorf("NormalizeRepoName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeRepoNames(t *testing.T) {
	got := NormalizeRepoNames([]string{"onnwee/a", "bad", "Onnwee/A", "https://github.com/onnwee/b"})
	want := []string{"onnwee/a", "onnwee/b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeRepoNames = %v, want %v", got, want)
	}
}
