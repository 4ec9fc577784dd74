package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetsaver/internal/tweet"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "saved.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id string) tweet.Record {
	return tweet.Record{
		ID:          id,
		FromUser:    "gopher",
		Text:        "tweet " + id,
		CreatedAt:   "Mon, 02 Jan 2006 15:04:05 +0000",
		InReplyToID: "99",
		ToUser:      "rob",
		Index:       4,
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := sampleRecord("123")
	require.NoError(t, s.Save(ctx, rec))

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.FromUser, got.FromUser)
	assert.Equal(t, rec.Text, got.Text)
	assert.Equal(t, rec.CreatedAt, got.CreatedAt)
	assert.Equal(t, rec.InReplyToID, got.InReplyToID)
	assert.Zero(t, got.Index, "positional index is not persisted")
}

func TestSaveStoresOriginalShape(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Save(ctx, sampleRecord("7")))

	var value string
	require.NoError(t, s.db.QueryRow("SELECT value FROM saved_tweets WHERE key = '7'").Scan(&value))
	assert.Contains(t, value, `"id_str":"7"`)
	assert.Contains(t, value, `"from_user":"gopher"`)
	assert.NotContains(t, value, "Index")
}

func TestSaveTwiceKeepsOneEntry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := sampleRecord("123")
	require.NoError(t, s.Save(ctx, rec))
	rec.Text = "changed"
	require.NoError(t, s.Save(ctx, rec))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, "tweet 123", got.Text)
}

func TestSaveRejectsMissingID(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.Save(context.Background(), tweet.Record{Text: "no id"}), ErrMissingID)
}

func TestExistsAndRemove(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ok, err := s.Exists(ctx, "123")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, sampleRecord("123")))
	ok, err = s.Exists(ctx, "123")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Remove(ctx, "123"))
	ok, err = s.Exists(ctx, "123")
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing an absent key is still a confirmed removal.
	assert.NoError(t, s.Remove(ctx, "123"))
}

func TestGetNotFound(t *testing.T) {
	_, err := newTestStore(t).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadAllOrderAndCorruptEntries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Save(ctx, sampleRecord("3")))
	_, err := s.db.Exec("INSERT INTO saved_tweets (key, value) VALUES (?, ?)", "bad", "{not json")
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleRecord("1")))
	require.NoError(t, s.Save(ctx, sampleRecord("2")))

	report, err := s.LoadAllReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bad"}, report.Skipped)

	ids := make([]string, 0, len(report.Records))
	for _, rec := range report.Records {
		ids = append(ids, rec.ID)
	}
	assert.Equal(t, []string{"3", "1", "2"}, ids)
}

func TestLoadAllEmpty(t *testing.T) {
	records, err := newTestStore(t).LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "saved.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleRecord("42")))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "42", records[0].ID)
}
