package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheSetGet(t *testing.T) {
	cache := NewCache(time.Minute)
	cache.Set("https://example.com", "<html>rendered</html>")

	html, ok := cache.Get("https://example.com")
	assert.True(t, ok)
	assert.Equal(t, "<html>rendered</html>", html)

	_, ok = cache.Get("https://example.com/other")
	assert.False(t, ok)
}

func TestCacheOverwrite(t *testing.T) {
	cache := NewCache(time.Minute)
	cache.Set("https://example.com", "old")
	cache.Set("https://example.com", "new")

	html, _ := cache.Get("https://example.com")
	assert.Equal(t, "new", html)
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCache(10 * time.Millisecond)
	cache.Set("https://example.com", "<html>rendered</html>")
	time.Sleep(30 * time.Millisecond)

	_, ok := cache.Get("https://example.com")
	assert.False(t, ok)
}
