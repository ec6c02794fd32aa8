package domain

import (
	"strings"
	"unicode"
)

// Slugify приводит имя папки к slug-виду для материализованного пути.
// Логика слагификации намеренно собрана в одном месте: и создание папок,
// и сопоставление поддеревьев должны использовать ровно ее.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true // подавляем дефис в начале

	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		slug = "folder"
	}
	return slug
}

// ChildPath строит путь дочерней папки от пути родителя
func ChildPath(parentPath, name string) string {
	if parentPath == "" || parentPath == "/" {
		return "/" + Slugify(name)
	}
	return parentPath + "/" + Slugify(name)
}

// IsDescendantPath проверяет, лежит ли path строго внутри root.
// Сравнение учитывает границу сегмента: "/a/b" — потомок "/a",
// а "/ab" — нет.
func IsDescendantPath(root, path string) bool {
	return strings.HasPrefix(path, root+"/")
}

// ParentPath возвращает путь непосредственного родителя ("" для корня)
func ParentPath(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return ""
	}
	return path[:idx]
}
