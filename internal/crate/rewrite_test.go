package crate

import "testing"

func TestNewPattern(t *testing.T) {
	p := NewPattern("with-tests", "wt")
	if p.From != " with_tests::" {
		t.Errorf("From = %q, want %q", p.From, " with_tests::")
	}
	if p.To != " wt::" {
		t.Errorf("To = %q, want %q", p.To, " wt::")
	}
}

func TestPatternRewrite(t *testing.T) {
	p := NewPattern("toml", "newname")

	tests := []struct {
		name  string
		src   string
		want  string
		count int
	}{
		{"function path", "let v = toml::some_func(a);", "let v = newname::some_func(a);", 1},
		{"leading space only", " toml::some_func(a)", " newname::some_func(a)", 1},
		{"suffix identifier", "use foo_toml::bar;", "use foo_toml::bar;", 0},
		{"inner segment", "use foo::toml::bar;", "use foo::toml::bar;", 0},
		{"start of line", "toml::run();", "toml::run();", 0},
		{"after tab", "\ttoml::run();", "\ttoml::run();", 0},
		{"bare use", "use toml;", "use toml;", 0},
		{"extern crate", "extern crate toml;", "extern crate toml;", 0},
		{"every occurrence", "use toml::a;\nuse toml::b;\n", "use newname::a;\nuse newname::b;\n", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n := p.Rewrite([]byte(tt.src))
			if string(got) != tt.want {
				t.Errorf("Rewrite(%q) = %q, want %q", tt.src, got, tt.want)
			}
			if n != tt.count {
				t.Errorf("Rewrite(%q) count = %d, want %d", tt.src, n, tt.count)
			}
		})
	}
}

func TestPatternRewriteSinglePass(t *testing.T) {
	// " a::" inside the replacement must not be matched again.
	p := NewPattern("a", "b a")
	got, n := p.Rewrite([]byte("x a::y"))
	if string(got) != "x b a::y" || n != 1 {
		t.Errorf("Rewrite = (%q, %d), want (%q, 1)", got, n, "x b a::y")
	}
}

func TestPatternRewriteNoMatchKeepsSlice(t *testing.T) {
	p := NewPattern("foo", "bar")
	src := []byte("fn main() {}\n")
	got, _ := p.Rewrite(src)
	if &got[0] != &src[0] {
		t.Error("Rewrite should return the input slice when nothing matches")
	}
}

func TestEligible(t *testing.T) {
	tests := []struct {
		rel  string
		want bool
	}{
		{"tests/it.rs", true},
		{"examples/demo.rs", true},
		{"benches/b.rs", true},
		{"build.rs", true},
		{"src.rs", true},
		{"src/lib.rs", false},
		{"src/bin/main.rs", false},
		{"tests/data.txt", false},
		{"README.md", false},
		{"Cargo.toml", false},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			if got := Eligible(tt.rel); got != tt.want {
				t.Errorf("Eligible(%q) = %v, want %v", tt.rel, got, tt.want)
			}
		})
	}
}

func TestIsManifest(t *testing.T) {
	tests := []struct {
		rel  string
		want bool
	}{
		{"Cargo.toml", true},
		{"tests/fixture/Cargo.toml", true},
		{"Cargo.toml.orig", false},
		{"Cargo.lock", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsManifest(tt.rel); got != tt.want {
			t.Errorf("IsManifest(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}
