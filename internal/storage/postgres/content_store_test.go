package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/curation-crawler/internal/crawler"
)

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return fmt.Sprintf("uuid-%d", s.n), nil
}

type recordingClock struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (c *recordingClock) Now() time.Time { return time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC) }

func (c *recordingClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	return nil
}

func (c *recordingClock) slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

func newMockStore(t *testing.T, contentIDs ...string) (*ContentStore, pgxmock.PgxPoolIface) {
	t.Helper()
	store, mock, _ := newClockedMockStore(t, contentIDs...)
	return store, mock
}

func newClockedMockStore(t *testing.T, contentIDs ...string) (*ContentStore, pgxmock.PgxPoolIface, *recordingClock) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	clock := &recordingClock{}
	store, err := NewContentStoreWithPool(mock, &seqIDs{}, WithClock(clock))
	require.NoError(t, err)
	next := 0
	store.contentID = func() (string, error) {
		if next >= len(contentIDs) {
			return "", errors.New("out of ids")
		}
		id := contentIDs[next]
		next++
		return id, nil
	}
	return store, mock, clock
}

var (
	checkIDSQL     = regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM contents WHERE id = $1)`)
	checkSourceSQL = regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM contents WHERE source_url = $1)`)
	insertTagSQL   = regexp.QuoteMeta(`INSERT INTO tags (id, name, slug)`)
	selectTagSQL   = regexp.QuoteMeta(`SELECT id FROM tags WHERE name = $1`)
)

func sampleRecord(now time.Time) crawler.ContentRecord {
	return crawler.ContentRecord{
		Package: crawler.Package{
			Title:       "ChatGPT로 보고서 쓰기",
			Description: "보고서를 빠르게 작성합니다.",
			Author:      "AI 채널",
			SourceURL:   "https://www.youtube.com/watch?v=abcdefghijk",
			PublishedAt: now.Add(-24 * time.Hour),
			Language:    crawler.LanguageKO,
			Difficulty:  crawler.DifficultyBeginner,
			Categories:  []string{"productivity"},
			Tools:       []string{"chatgpt"},
			Tags:        []string{"#보고서", "자동화"},
			EstimatedTime: &crawler.EstimatedTime{
				Type:  crawler.TimeTypeVideo,
				Value: 13,
			},
			ResultPreviews: []crawler.ResultPreview{
				{Order: 0, Type: crawler.PreviewTypeText, Description: "보고서 초안 작성"},
				{Order: 1, Type: crawler.PreviewTypeText, Description: "표 정리"},
			},
		},
		ToolLogos: map[string]string{"chatgpt": "https://storage.googleapis.com/logos/chatgpt.png"},
		CreatedAt: now,
	}
}

func TestSavePackageWritesEverythingInOneTransaction(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t, "content-00000001", "content-00000002")
	now := time.Unix(1760000000, 0).UTC()
	rec := sampleRecord(now)

	mock.ExpectBegin()
	mock.ExpectQuery(checkIDSQL).WithArgs("content-00000001").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(checkIDSQL).WithArgs("content-00000002").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO contents").
		WithArgs("content-00000002", rec.Title, rec.Description, rec.Author, rec.SourceURL,
			rec.PublishedAt, "KO", nil, "BEGINNER", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO categories").WithArgs("productivity", "업무 생산성", "productivity").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO content_categories").WithArgs("content-00000002", "productivity").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("INSERT INTO ai_tools").
		WithArgs("uuid-1", "ChatGPT", "chatgpt", "https://storage.googleapis.com/logos/chatgpt.png").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("tool-chatgpt"))
	mock.ExpectExec("INSERT INTO content_ai_tools").WithArgs("content-00000002", "tool-chatgpt").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(insertTagSQL).WithArgs("uuid-2", "보고서", "보고서").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("uuid-2"))
	mock.ExpectExec("INSERT INTO content_tags").WithArgs("content-00000002", "uuid-2").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(insertTagSQL).WithArgs("uuid-3", "자동화", "자동화").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(selectTagSQL).WithArgs("자동화").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("tag-existing"))
	mock.ExpectExec("INSERT INTO content_tags").WithArgs("content-00000002", "tag-existing").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO estimated_times").WithArgs("content-00000002", "VIDEO", 13).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO result_previews").WithArgs("content-00000002", 0, "TEXT", "보고서 초안 작성").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO result_previews").WithArgs("content-00000002", 1, "TEXT", "표 정리").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	id, err := store.SavePackage(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, "content-00000002", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePackageRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t, "content-00000007")
	rec := sampleRecord(time.Unix(1760000000, 0).UTC())

	mock.ExpectBegin()
	mock.ExpectQuery(checkIDSQL).WithArgs("content-00000007").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO contents").WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO categories").WithArgs("productivity", "업무 생산성", "productivity").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := store.SavePackage(context.Background(), rec)
	require.ErrorContains(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePackageMapsSourceURLConflict(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t, "content-00000003")
	rec := sampleRecord(time.Unix(1760000000, 0).UTC())

	mock.ExpectBegin()
	mock.ExpectQuery(checkIDSQL).WithArgs("content-00000003").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO contents").WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: sourceURLKey})
	mock.ExpectRollback()

	_, err := store.SavePackage(context.Background(), rec)
	require.ErrorIs(t, err, crawler.ErrDuplicateEntity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocateContentIDGivesUp(t *testing.T) {
	t.Parallel()

	ids := []string{"content-1", "content-2", "content-3", "content-4", "content-5"}
	store, mock := newMockStore(t, ids...)
	for _, id := range ids {
		mock.ExpectQuery(checkIDSQL).WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	}

	_, err := store.allocateContentID(context.Background(), mock)
	require.ErrorIs(t, err, crawler.ErrDuplicateEntity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckDuplicateBeforeAndAfterSave(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	url := "https://blog.example/post"
	mock.ExpectQuery(checkSourceSQL).WithArgs(url).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(checkSourceSQL).WithArgs(url).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	before, err := store.CheckDuplicate(context.Background(), url)
	require.NoError(t, err)
	after, err := store.CheckDuplicate(context.Background(), url)
	require.NoError(t, err)

	require.False(t, before)
	require.True(t, after)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertToolIsIdempotent(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO ai_tools").WithArgs("uuid-1", "Cursor", "cursor", nil).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("uuid-1"))
	mock.ExpectQuery("INSERT INTO ai_tools").WithArgs("uuid-2", "Cursor", "cursor", nil).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("uuid-1"))

	first, err := store.UpsertTool(context.Background(), mock, "cursor", "")
	require.NoError(t, err)
	second, err := store.UpsertTool(context.Background(), mock, "cursor", "")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCategoryUsesVocabularyKey(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	for i := 0; i < 2; i++ {
		mock.ExpectExec("INSERT INTO categories").WithArgs("development", "개발·코딩", "development").
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
	}

	for i := 0; i < 2; i++ {
		id, err := store.UpsertCategory(context.Background(), mock, "development")
		require.NoError(t, err)
		require.Equal(t, "development", id)
	}

	_, err := store.UpsertCategory(context.Background(), mock, "gaming")
	require.ErrorIs(t, err, crawler.ErrValidationFailed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertTagConvergesAfterRace(t *testing.T) {
	t.Parallel()

	store, mock, clock := newClockedMockStore(t)
	mock.ExpectQuery(insertTagSQL).WithArgs("uuid-1", "프롬프트", "프롬프트").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(selectTagSQL).WithArgs("프롬프트").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(insertTagSQL).WithArgs("uuid-2", "프롬프트", "프롬프트").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(selectTagSQL).WithArgs("프롬프트").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("tag-winner"))

	id, err := store.UpsertTag(context.Background(), mock, "#프롬프트")
	require.NoError(t, err)
	require.Equal(t, "tag-winner", id)
	require.Equal(t, []time.Duration{tagRetryBackoff}, clock.slept())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertTagExhaustsRetries(t *testing.T) {
	t.Parallel()

	store, mock, clock := newClockedMockStore(t)
	for i := 1; i <= 3; i++ {
		mock.ExpectQuery(insertTagSQL).WithArgs(fmt.Sprintf("uuid-%d", i), "ghost", "ghost").
			WillReturnRows(pgxmock.NewRows([]string{"id"}))
		mock.ExpectQuery(selectTagSQL).WithArgs("ghost").
			WillReturnRows(pgxmock.NewRows([]string{"id"}))
	}

	_, err := store.UpsertTag(context.Background(), mock, "ghost")
	require.ErrorIs(t, err, errTagRace)
	require.Equal(t, []time.Duration{tagRetryBackoff, tagRetryBackoff}, clock.slept())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExistingToolSlugs(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT slug FROM ai_tools").WithArgs([]string{"chatgpt", "suno"}).
		WillReturnRows(pgxmock.NewRows([]string{"slug"}).AddRow("chatgpt"))

	got, err := store.ExistingToolSlugs(context.Background(), []string{"chatgpt", "suno"})
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"chatgpt": true}, got)

	empty, err := store.ExistingToolSlugs(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, empty)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRandomContentIDFormat(t *testing.T) {
	t.Parallel()

	id, err := randomContentID()
	require.NoError(t, err)
	require.Regexp(t, `^content-\d{8}$`, id)
}
