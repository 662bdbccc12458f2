package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rushteam/hybridrec/core"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"lower and split", "Phone Reviews, 2026!", []string{"phone", "reviews", "2026"}},
		{"drops short and stop words", "a guide to the beach", []string{"guide", "beach"}},
		{"unicode letters", "Café crème", []string{"café", "crème"}},
		{"empty", "   ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestItemText(t *testing.T) {
	it := core.CatalogItem{Title: " Beach ", Description: "guide", Category: "travel", Tags: []string{"sun", " "}}
	assert.Equal(t, "Beach guide travel sun", ItemText(it))
	assert.Equal(t, "", ProfileText(nil))
	assert.Equal(t, "phone tech", ProfileText(&core.UserProfile{PreferTags: []string{"phone", "tech"}}))
}

func TestEncoders(t *testing.T) {
	assert.Equal(t, map[string]float64{"category=tech": 1}, NewCategoricalEncoder().EncodeWithKey("category", " Tech "))
	assert.Empty(t, NewCategoricalEncoder().EncodeWithKey("category", ""))

	h := NewHashEncoder(4)
	first := h.EncodeWithKey("tag", "phone")
	assert.Len(t, first, 1)
	assert.Equal(t, first, h.EncodeWithKey("tag", "PHONE"))
	assert.Empty(t, NewHashEncoder(0).EncodeWithKey("tag", "phone"))

	assert.Equal(t, 0.0, NewLogNormalizer().NormalizeValue(-2))
}
