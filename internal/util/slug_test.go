package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Intro to Go", "intro-to-go"},
		{"  Spaces  Everywhere  ", "spaces-everywhere"},
		{"C++ & Rust: A Comparison!", "c-rust-a-comparison"},
		{"Go 1.22 Release Notes", "go-1-22-release-notes"},
		{"Go 进阶", "go"},
		{"高级课程", "untitled"},
		{"", "untitled"},
		{"---", "untitled"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.title), "title %q", tt.title)
	}
}
