package scorm

import (
	"regexp"
	"strings"
)

var cyrillicTranslit = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e",
	'ё': "yo", 'ж': "zh", 'з': "z", 'и': "i", 'й': "j", 'к': "k",
	'л': "l", 'м': "m", 'н': "n", 'о': "o", 'п': "p", 'р': "r",
	'с': "s", 'т': "t", 'у': "u", 'ф': "f", 'х': "kh", 'ц': "ts",
	'ч': "ch", 'ш': "sh", 'щ': "shch", 'ъ': "", 'ы': "y",
	'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
}

var multiHyphen = regexp.MustCompile(`-{2,}`)

// Slugify produces a filesystem- and identifier-safe slug. Cyrillic letters
// are transliterated so Russian course titles yield readable filenames.
func Slugify(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case cyrillicTranslit[r] != "":
			b.WriteString(cyrillicTranslit[r])
		case r == 'ъ' || r == 'ь':
			// Translit to nothing.
		case r < 128 && (isAlnum(r) || r == '-' || r == '_'):
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			b.WriteByte('-')
		}
	}

	slug := multiHyphen.ReplaceAllString(b.String(), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "course"
	}
	return slug
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
