package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDurationSeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"length seconds", `"lengthSeconds":"612"`, 612},
		{"iso duration", `"duration":"PT1H2M3S"`, 3723},
		{"iso minutes only", `content PT15M here`, 900},
		{"absent", "no duration", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, durationSeconds(tt.text))
		})
	}
}

func TestViewCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(1234567), viewCount("1,234,567 views"))
	assert.Equal(t, int64(8901), viewCount("조회수 8,901회"))
	assert.Zero(t, viewCount("no counter"))
}

func TestPublishedAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want time.Time
		ok   bool
	}{
		{"json upload date", `"uploadDate":"2024-02-03T10:00:00+09:00"`, time.Date(2024, 2, 3, 1, 0, 0, 0, time.UTC), true},
		{"dotted korean", "게시일 2023. 7. 9.", time.Date(2023, 7, 9, 0, 0, 0, 0, time.UTC), true},
		{"english", "Published Mar 5, 2025 by staff", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{"none", "nothing here", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := publishedAt(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
		})
	}
}

func TestWordCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5, wordCount("안녕하세요 hello"))
	assert.Equal(t, 3, wordCount("one two -- 42 three"))
	assert.Zero(t, wordCount(""))
}

func TestFirstParagraph(t *testing.T) {
	t.Parallel()

	text := "# Title\n\n![img](x.png)\n\nShort.\n\nThis is the [first](http://x) real paragraph of the article.\nIt continues here.\n\nSecond paragraph."
	assert.Equal(t, "This is the first real paragraph of the article. It continues here.", firstParagraph(text))
	assert.Empty(t, firstParagraph("# only heading"))
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "가나", truncateRunes("가나다라", 2))
	assert.Equal(t, "abc", truncateRunes("abc", 5))
}
