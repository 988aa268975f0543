package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/NamrataaKale/Account-Plan-Generator/internal/domain"
)

// SQLiteStore implements SessionStore backed by SQLite.
type SQLiteStore struct {
	db *DB
}

// NewSQLiteStore creates a session store using the given database.
func NewSQLiteStore(db *DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) List() []*domain.Session {
	rows, err := s.db.sql.Query(
		`SELECT id, name, user_named, created_at, last_active_at
		 FROM sessions ORDER BY last_active_at DESC`)
	if err != nil {
		s.db.log.Error().Err(err).Msg("failed to list sessions")
		return nil
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			continue
		}
		sess.Document = s.loadDocument(sess.ID)
		out = append(out, sess)
	}
	return out
}

func (s *SQLiteStore) Get(id string) *domain.Session {
	row := s.db.sql.QueryRow(
		`SELECT id, name, user_named, created_at, last_active_at
		 FROM sessions WHERE id = ?`, id)

	sess, err := scanSession(row)
	if err != nil {
		return nil
	}
	sess.Document = s.loadDocument(id)
	sess.Messages = s.loadMessages(id)
	return sess
}

func (s *SQLiteStore) CreateEmpty(name string) *domain.Session {
	if name == "" {
		name = domain.DefaultSessionName
	}

	now := time.Now()
	sess := &domain.Session{
		ID:           uuid.New().String(),
		Name:         name,
		Document:     domain.NewDocument(),
		CreatedAt:    now,
		LastActiveAt: now,
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO sessions (id, name, user_named, created_at, last_active_at)
		 VALUES (?, ?, 0, ?, ?)`,
		sess.ID, sess.Name, now.UTC().Format(time.DateTime), now.UTC().Format(time.DateTime),
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("name", name).Msg("failed to create session")
	}
	return sess
}

func (s *SQLiteStore) Append(sessionID string, msg domain.Message) {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO messages (message_id, session_id, role, text, attachment, sources, chart, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, sessionID, string(msg.Role), msg.Text,
		marshalNullable(msg.Attachment),
		marshalNullable(msg.Sources),
		marshalNullable(msg.Chart),
		ts.UTC().Format(time.DateTime),
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("session", sessionID).Msg("failed to append message")
		return
	}

	s.touch(sessionID)
}

func (s *SQLiteStore) SetSection(sessionID string, key domain.SectionKey, content string) error {
	if _, err := domain.ParseSectionKey(string(key)); err != nil {
		return err
	}

	var exists int
	if err := s.db.sql.QueryRow(
		`SELECT COUNT(*) FROM sessions WHERE id = ?`, sessionID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return errSessionNotFound(sessionID)
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO sections (session_id, section_key, content) VALUES (?, ?, ?)
		 ON CONFLICT (session_id, section_key) DO UPDATE SET content = excluded.content`,
		sessionID, string(key), content,
	)
	if err != nil {
		return err
	}

	s.touch(sessionID)
	return nil
}

func (s *SQLiteStore) Rename(sessionID, name string, userNamed bool) {
	named := 0
	if userNamed {
		named = 1
	}
	_, err := s.db.sql.Exec(
		`UPDATE sessions SET name = ?, user_named = ? WHERE id = ?`,
		name, named, sessionID,
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("session", sessionID).Msg("failed to rename session")
		return
	}
	s.touch(sessionID)
}

// Upsert replaces the whole session in one transaction so a partial write
// never corrupts the stored copy or any sibling session.
func (s *SQLiteStore) Upsert(sess *domain.Session) {
	tx, err := s.db.sql.Begin()
	if err != nil {
		s.db.log.Error().Err(err).Msg("failed to begin upsert")
		return
	}
	defer tx.Rollback()

	named := 0
	if sess.UserNamed {
		named = 1
	}
	if _, err := tx.Exec(
		`INSERT INTO sessions (id, name, user_named, created_at, last_active_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			user_named = excluded.user_named,
			last_active_at = excluded.last_active_at`,
		sess.ID, sess.Name, named,
		sess.CreatedAt.UTC().Format(time.DateTime),
		sess.LastActiveAt.UTC().Format(time.DateTime),
	); err != nil {
		s.db.log.Error().Err(err).Str("session", sess.ID).Msg("failed to upsert session")
		return
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, sess.ID); err != nil {
		s.db.log.Error().Err(err).Str("session", sess.ID).Msg("failed to clear messages")
		return
	}
	if _, err := tx.Exec(`DELETE FROM sections WHERE session_id = ?`, sess.ID); err != nil {
		s.db.log.Error().Err(err).Str("session", sess.ID).Msg("failed to clear sections")
		return
	}

	for _, msg := range sess.Messages {
		ts := msg.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := tx.Exec(
			`INSERT INTO messages (message_id, session_id, role, text, attachment, sources, chart, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, sess.ID, string(msg.Role), msg.Text,
			marshalNullable(msg.Attachment),
			marshalNullable(msg.Sources),
			marshalNullable(msg.Chart),
			ts.UTC().Format(time.DateTime),
		); err != nil {
			s.db.log.Error().Err(err).Str("session", sess.ID).Msg("failed to write message")
			return
		}
	}

	if sess.Document != nil {
		for key, content := range sess.Document.Sections {
			if _, err := tx.Exec(
				`INSERT INTO sections (session_id, section_key, content) VALUES (?, ?, ?)`,
				sess.ID, string(key), content,
			); err != nil {
				s.db.log.Error().Err(err).Str("session", sess.ID).Msg("failed to write section")
				return
			}
		}
	}

	if err := tx.Commit(); err != nil {
		s.db.log.Error().Err(err).Str("session", sess.ID).Msg("failed to commit upsert")
	}
}

func (s *SQLiteStore) Delete(sessionID string) {
	if _, err := s.db.sql.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		s.db.log.Error().Err(err).Str("session", sessionID).Msg("failed to delete session")
	}
}

// touch refreshes a session's last_active_at.
func (s *SQLiteStore) touch(sessionID string) {
	_, _ = s.db.sql.Exec(
		`UPDATE sessions SET last_active_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.DateTime), sessionID,
	)
}

func (s *SQLiteStore) loadDocument(sessionID string) *domain.Document {
	doc := domain.NewDocument()

	rows, err := s.db.sql.Query(
		`SELECT section_key, content FROM sections WHERE session_id = ?`, sessionID)
	if err != nil {
		return doc
	}
	defer rows.Close()

	for rows.Next() {
		var rawKey, content string
		if err := rows.Scan(&rawKey, &content); err != nil {
			continue
		}
		key, err := domain.ParseSectionKey(rawKey)
		if err != nil {
			continue
		}
		_ = doc.Set(key, content)
	}
	return doc
}

func (s *SQLiteStore) loadMessages(sessionID string) []domain.Message {
	rows, err := s.db.sql.Query(
		`SELECT message_id, role, text, attachment, sources, chart, timestamp
		 FROM messages WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var msg domain.Message
		var role, ts string
		var attachment, sources, chart sql.NullString

		if err := rows.Scan(&msg.ID, &role, &msg.Text, &attachment, &sources, &chart, &ts); err != nil {
			continue
		}
		msg.Role = domain.Role(role)
		msg.Timestamp, _ = time.Parse(time.DateTime, ts)

		unmarshalNullable(attachment, &msg.Attachment)
		unmarshalNullable(sources, &msg.Sources)
		unmarshalNullable(chart, &msg.Chart)

		msgs = append(msgs, msg)
	}
	return msgs
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*domain.Session, error) {
	var sess domain.Session
	var named int
	var createdAt, lastActiveAt string

	if err := row.Scan(&sess.ID, &sess.Name, &named, &createdAt, &lastActiveAt); err != nil {
		return nil, err
	}
	sess.UserNamed = named != 0
	sess.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	sess.LastActiveAt, _ = time.Parse(time.DateTime, lastActiveAt)
	return &sess, nil
}

// marshalNullable serializes v to JSON, or NULL when v is nil/empty.
func marshalNullable(v any) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" || string(data) == "[]" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}

func unmarshalNullable[T any](col sql.NullString, dest *T) {
	if col.Valid && col.String != "" {
		_ = json.Unmarshal([]byte(col.String), dest)
	}
}
