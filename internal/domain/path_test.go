package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dataroomdrive/internal/domain"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"простое имя", "reports", "reports"},
		{"пробелы и регистр", "Quarterly Reports", "quarterly-reports"},
		{"обрезка краев", "  Q3 / 2024  ", "q3-2024"},
		{"кириллица сохраняется", "Отчеты 2024", "отчеты-2024"},
		{"серия разделителей", "a---b___c", "a-b-c"},
		{"только спецсимволы", "!!!", "folder"},
		{"пустая строка", "", "folder"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, domain.Slugify(tt.input))
		})
	}
}

func TestChildPath(t *testing.T) {
	assert.Equal(t, "/reports", domain.ChildPath("", "Reports"))
	assert.Equal(t, "/reports", domain.ChildPath("/", "Reports"))
	assert.Equal(t, "/reports/q3-2024", domain.ChildPath("/reports", "Q3 2024"))
}

func TestIsDescendantPath(t *testing.T) {
	assert.True(t, domain.IsDescendantPath("/a", "/a/b"))
	assert.True(t, domain.IsDescendantPath("/a", "/a/b/c"))

	// Совпадение префикса без границы сегмента — не потомок
	assert.False(t, domain.IsDescendantPath("/a", "/ab"))
	assert.False(t, domain.IsDescendantPath("/a", "/ab/c"))

	// Сам корень — не собственный потомок
	assert.False(t, domain.IsDescendantPath("/a", "/a"))
}

func TestParentPath(t *testing.T) {
	assert.Equal(t, "/a/b", domain.ParentPath("/a/b/c"))
	assert.Equal(t, "/a", domain.ParentPath("/a/b"))
	assert.Equal(t, "", domain.ParentPath("/a"))
	assert.Equal(t, "", domain.ParentPath(""))
}
