package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldAdoptTitle(t *testing.T) {
	product := &CanonicalProduct{Title: "Sony WH-1000XM5 Wireless Headphones"}

	t.Run("longer different title adopted", func(t *testing.T) {
		assert.True(t, product.ShouldAdoptTitle("Sony WH-1000XM5 Wireless Noise Cancelling Headphones Black"))
	})

	t.Run("identical title not adopted", func(t *testing.T) {
		assert.False(t, product.ShouldAdoptTitle(product.Title))
	})

	t.Run("short title not adopted", func(t *testing.T) {
		assert.False(t, product.ShouldAdoptTitle("headphones"))
	})

	t.Run("japanese length counted in runes", func(t *testing.T) {
		// 14 runes clears the bar even though a byte count would also pass;
		// 5 runes must not, despite being 15 bytes
		assert.True(t, product.ShouldAdoptTitle("ソニーワイヤレスヘッドホン黒"))
		assert.False(t, product.ShouldAdoptTitle("ヘッドホン"))
	})
}
