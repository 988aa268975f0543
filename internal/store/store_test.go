package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NamrataaKale/Account-Plan-Generator/internal/domain"
	"github.com/NamrataaKale/Account-Plan-Generator/internal/logging"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// stores returns each SessionStore implementation under test.
func stores(t *testing.T) map[string]SessionStore {
	t.Helper()

	db, err := Open(":memory:", silentLog())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]SessionStore{
		"memory": NewMemoryStore(),
		"sqlite": NewSQLiteStore(db),
	}
}

func TestCreateEmpty(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sess := s.CreateEmpty("Tesla")
			assert.NotEmpty(t, sess.ID)
			assert.Equal(t, "Tesla", sess.Name)
			assert.False(t, sess.UserNamed)
			require.NotNil(t, sess.Document)
			assert.Empty(t, sess.Document.Get(domain.SectionTargetEntity))

			unnamed := s.CreateEmpty("")
			assert.Equal(t, domain.DefaultSessionName, unnamed.Name)
		})
	}
}

func TestGetUnknownSession(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, s.Get("nonexistent"))
		})
	}
}

func TestAppendAndReload(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sess := s.CreateEmpty("Nike")

			s.Append(sess.ID, domain.Message{
				ID: "m1", Role: domain.RoleUser, Text: "Research Nike",
				Attachment: &domain.Attachment{Name: "notes.txt", MimeType: "text/plain", Data: []byte("hi")},
				Timestamp:  time.Now(),
			})
			s.Append(sess.ID, domain.Message{
				ID: "m2", Role: domain.RoleAgent, Text: "Done.",
				Sources: []domain.Source{{Title: "Annual report", URI: "https://nike.example/ar"}},
				Chart: &domain.ChartSpec{
					Title:  "Revenue",
					Kind:   domain.ChartBar,
					Points: []domain.ChartPoint{{Label: "Q1", Value: 12.7}},
				},
				Timestamp: time.Now(),
			})

			got := s.Get(sess.ID)
			require.NotNil(t, got)
			require.Len(t, got.Messages, 2)

			assert.Equal(t, "m1", got.Messages[0].ID)
			assert.Equal(t, domain.RoleUser, got.Messages[0].Role)
			require.NotNil(t, got.Messages[0].Attachment)
			assert.Equal(t, []byte("hi"), got.Messages[0].Attachment.Data)

			assert.Equal(t, "m2", got.Messages[1].ID)
			require.Len(t, got.Messages[1].Sources, 1)
			assert.Equal(t, "https://nike.example/ar", got.Messages[1].Sources[0].URI)
			require.NotNil(t, got.Messages[1].Chart)
			assert.Equal(t, domain.ChartBar, got.Messages[1].Chart.Kind)
			assert.InDelta(t, 12.7, got.Messages[1].Chart.Points[0].Value, 0.001)
		})
	}
}

func TestSetSectionAndReload(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sess := s.CreateEmpty("Tesla")

			require.NoError(t, s.SetSection(sess.ID, domain.SectionTargetEntity, "Tesla"))
			require.NoError(t, s.SetSection(sess.ID, domain.SectionSummary, "draft one"))
			require.NoError(t, s.SetSection(sess.ID, domain.SectionSummary, "draft two"))

			got := s.Get(sess.ID)
			require.NotNil(t, got)
			assert.Equal(t, "Tesla", got.Document.Get(domain.SectionTargetEntity))
			assert.Equal(t, "draft two", got.Document.Get(domain.SectionSummary))
		})
	}
}

func TestSetSectionRejectsUnknownKey(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sess := s.CreateEmpty("Tesla")
			assert.Error(t, s.SetSection(sess.ID, domain.SectionKey("budget"), "nope"))
		})
	}
}

func TestSetSectionRejectsUnknownSession(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.SetSection("nonexistent", domain.SectionSummary, "text"))
		})
	}
}

func TestRename(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sess := s.CreateEmpty("")
			s.Rename(sess.ID, "Adidas", true)

			got := s.Get(sess.ID)
			require.NotNil(t, got)
			assert.Equal(t, "Adidas", got.Name)
			assert.True(t, got.UserNamed)
		})
	}
}

func TestListOrdersByActivity(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			older := s.CreateEmpty("Older")
			newer := s.CreateEmpty("Newer")

			// Touch the older session so it becomes most recent.
			time.Sleep(1100 * time.Millisecond)
			s.Append(older.ID, domain.Message{ID: "m1", Role: domain.RoleUser, Text: "hi", Timestamp: time.Now()})

			list := s.List()
			require.Len(t, list, 2)
			assert.Equal(t, older.ID, list[0].ID)
			assert.Equal(t, newer.ID, list[1].ID)
		})
	}
}

func TestListOmitsTranscripts(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sess := s.CreateEmpty("Tesla")
			s.Append(sess.ID, domain.Message{ID: "m1", Role: domain.RoleUser, Text: "hi", Timestamp: time.Now()})

			list := s.List()
			require.Len(t, list, 1)
			assert.Empty(t, list[0].Messages)

			// The full session still carries the transcript.
			require.Len(t, s.Get(sess.ID).Messages, 1)
		})
	}
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sess := s.CreateEmpty("Tesla")
			s.Append(sess.ID, domain.Message{ID: "m1", Role: domain.RoleUser, Text: "hi", Timestamp: time.Now()})

			got := s.Get(sess.ID)
			require.NotNil(t, got)
			got.Messages = append(got.Messages, domain.Message{ID: "rogue", Role: domain.RoleAgent, Text: "x"})
			require.NoError(t, got.Document.Set(domain.SectionSummary, "rogue edit"))
			got.Name = "rogue name"

			reloaded := s.Get(sess.ID)
			require.Len(t, reloaded.Messages, 1)
			assert.Empty(t, reloaded.Document.Get(domain.SectionSummary))
			assert.Equal(t, "Tesla", reloaded.Name)
		})
	}
}

func TestDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			keep := s.CreateEmpty("Keep")
			drop := s.CreateEmpty("Drop")
			s.Append(drop.ID, domain.Message{ID: "m1", Role: domain.RoleUser, Text: "bye", Timestamp: time.Now()})

			s.Delete(drop.ID)

			assert.Nil(t, s.Get(drop.ID))
			assert.NotNil(t, s.Get(keep.ID))
		})
	}
}

func TestUpsertRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			doc := domain.NewDocument()
			require.NoError(t, doc.Set(domain.SectionTargetEntity, "Tesla"))
			require.NoError(t, doc.Set(domain.SectionCompetitors, "Rivian"))

			sess := &domain.Session{
				ID:        "sess-roundtrip",
				Name:      "Tesla",
				UserNamed: true,
				Document:  doc,
				Messages: []domain.Message{
					{ID: "m1", Role: domain.RoleUser, Text: "Research Tesla", Timestamp: time.Now()},
					{ID: "m2", Role: domain.RoleAgent, Text: "Done.", Timestamp: time.Now()},
				},
				CreatedAt:    time.Now(),
				LastActiveAt: time.Now(),
			}

			other := s.CreateEmpty("Other")
			s.Upsert(sess)

			got := s.Get("sess-roundtrip")
			require.NotNil(t, got)
			assert.Equal(t, "Tesla", got.Name)
			assert.True(t, got.UserNamed)
			require.Len(t, got.Messages, 2)
			assert.Equal(t, "Research Tesla", got.Messages[0].Text)
			assert.Equal(t, "Done.", got.Messages[1].Text)
			assert.Equal(t, "Tesla", got.Document.Get(domain.SectionTargetEntity))
			assert.Equal(t, "Rivian", got.Document.Get(domain.SectionCompetitors))

			// Sibling sessions are untouched.
			assert.NotNil(t, s.Get(other.ID))
		})
	}
}
