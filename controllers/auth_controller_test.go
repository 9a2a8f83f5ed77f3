package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hope Works", "hope-works"},
		{"  St. Jude's Fund  ", "st-jude-s-fund"},
		{"UPPER case", "upper-case"},
		{"already-slugged", "already-slugged"},
		{"trailing!!", "trailing"},
		{"many   spaces", "many-spaces"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slugify(tt.in), tt.in)
	}
}

func TestUniqueIDs(t *testing.T) {
	assert.Equal(t, []uint{3, 1, 2}, uniqueIDs([]uint{3, 1, 3, 2, 1}))
	assert.Empty(t, uniqueIDs(nil))
}
