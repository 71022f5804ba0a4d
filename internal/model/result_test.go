package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentity_Valid(t *testing.T) {
	assert.True(t, NewURLIdentity("https://example.com/a").Valid())
	assert.True(t, NewFileIdentity("/tmp/a.txt").Valid())
	assert.False(t, Identity{}.Valid())
	assert.False(t, Identity{URL: "https://x.com", FilePath: "/tmp/a"}.Valid())
}

func TestIdentity_String(t *testing.T) {
	assert.Equal(t, "https://example.com/a", NewURLIdentity("https://example.com/a").String())
	assert.Equal(t, "/tmp/a.txt", NewFileIdentity("/tmp/a.txt").String())
}

func TestIdentity_Domain(t *testing.T) {
	assert.Equal(t, "example.com", NewURLIdentity("https://Example.COM/path?q=1").Domain())
	assert.Equal(t, "blog.example.com:8080", NewURLIdentity("http://blog.example.com:8080/x").Domain())
	assert.Empty(t, NewFileIdentity("/tmp/a.txt").Domain())
}

func TestResult_ResultsByCategory(t *testing.T) {
	res := Result{PatternResults: []PatternResult{
		{PatternID: "a", Category: CategoryPhrases},
		{PatternID: "b", Category: CategoryEmoji},
		{PatternID: "c", Category: CategoryPhrases},
	}}

	phrases := res.ResultsByCategory(CategoryPhrases)
	assert.Len(t, phrases, 2)
	assert.Equal(t, "a", phrases[0].PatternID)
	assert.Empty(t, res.ResultsByCategory(CategoryStructure))
}
