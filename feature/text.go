package feature

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rushteam/hybridrec/core"
)

var stopWords = map[string]struct{}{
	"an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {}, "for": {},
	"from": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {}, "or": {}, "the": {},
	"to": {}, "with": {},
}

// Tokenize 把文本切分为小写的字母/数字词，丢弃长度小于 2 的词和停用词。
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// ItemText 拼接物品的文本特征：标题、描述、类目、标签。
func ItemText(it core.CatalogItem) string {
	parts := make([]string, 0, 3+len(it.Tags))
	for _, p := range []string{it.Title, it.Description, it.Category} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	for _, t := range it.Tags {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// ProfileText 把用户的偏好标签拼成文本，用于冷启动的内容画像。
func ProfileText(p *core.UserProfile) string {
	if p == nil {
		return ""
	}
	return strings.Join(p.PreferTags, " ")
}
