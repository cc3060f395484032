package session

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store provides SQLite-backed persistence for conversation history.
type Store struct {
	db *sql.DB
}

// NewStore opens the SQLite database at dbPath and creates tables if they don't exist.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		project TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id)
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		command TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		draft_path TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id)
	);

	CREATE TABLE IF NOT EXISTS answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		prompt_key TEXT NOT NULL,
		kind TEXT NOT NULL,
		action TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (job_id) REFERENCES jobs(id)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateConversation starts a new conversation for project.
func (s *Store) CreateConversation(project, title string) (*Conversation, error) {
	id := uuid.New().String()
	now := time.Now()

	_, err := s.db.Exec(
		`INSERT INTO conversations (id, project, title, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, project, title, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	return &Conversation{
		ID:        id,
		Project:   project,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetConversation retrieves a conversation by ID. It returns nil, nil when
// no conversation has that ID.
func (s *Store) GetConversation(id string) (*Conversation, error) {
	row := s.db.QueryRow(
		`SELECT id, project, title, created_at, updated_at
		 FROM conversations WHERE id = ?`,
		id,
	)

	var c Conversation
	err := row.Scan(&c.ID, &c.Project, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}

	return &c, nil
}

// SetTitle sets the title of a conversation, typically its first user line.
func (s *Store) SetTitle(conversationID, title string) error {
	_, err := s.db.Exec(
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now(), conversationID,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	return nil
}

func (s *Store) touch(conversationID string, now time.Time) error {
	_, err := s.db.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID)
	return err
}

// AddMessage adds a timeline message to the conversation.
func (s *Store) AddMessage(conversationID, role, content string) error {
	now := time.Now()
	_, err := s.db.Exec(
		`INSERT INTO messages (conversation_id, role, content, timestamp)
		 VALUES (?, ?, ?, ?)`,
		conversationID, role, content, now,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if err := s.touch(conversationID, now); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// GetMessages retrieves all messages for a conversation.
func (s *Store) GetMessages(conversationID string) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, conversation_id, role, content, timestamp
		 FROM messages
		 WHERE conversation_id = ?
		 ORDER BY id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return messages, nil
}

// RecordJob inserts a job, or re-attaches an existing job to conversationID
// when it is resumed.
func (s *Store) RecordJob(conversationID, jobID, command, status string) error {
	now := time.Now()

	result, err := s.db.Exec(
		`UPDATE jobs SET conversation_id = ?, status = ?, updated_at = ? WHERE id = ?`,
		conversationID, status, now, jobID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		_, err = s.db.Exec(
			`INSERT INTO jobs (id, conversation_id, command, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			jobID, conversationID, command, status, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
	}

	if err := s.touch(conversationID, now); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// UpdateJobStatus records a job's latest status and draft path.
func (s *Store) UpdateJobStatus(jobID, status, draftPath string) error {
	_, err := s.db.Exec(
		`UPDATE jobs SET status = ?, draft_path = CASE WHEN ? = '' THEN draft_path ELSE ? END, updated_at = ?
		 WHERE id = ?`,
		status, draftPath, draftPath, time.Now(), jobID,
	)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID. It returns nil, nil when no job has that ID.
func (s *Store) GetJob(jobID string) (*Job, error) {
	row := s.db.QueryRow(
		`SELECT id, conversation_id, command, status, draft_path, created_at, updated_at
		 FROM jobs WHERE id = ?`,
		jobID,
	)

	var j Job
	err := row.Scan(&j.ID, &j.ConversationID, &j.Command, &j.Status, &j.DraftPath, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}

// RecentJobs returns the most recently updated jobs.
func (s *Store) RecentJobs(limit int) ([]Job, error) {
	rows, err := s.db.Query(
		`SELECT id, conversation_id, command, status, draft_path, created_at, updated_at
		 FROM jobs
		 ORDER BY updated_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.ConversationID, &j.Command, &j.Status, &j.DraftPath, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return jobs, nil
}

// AddAnswer records a submitted hitl response.
func (s *Store) AddAnswer(jobID, promptKey, kind, action, summary string) error {
	_, err := s.db.Exec(
		`INSERT INTO answers (job_id, prompt_key, kind, action, summary, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		jobID, promptKey, kind, action, summary, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}

	return nil
}

// GetAnswers retrieves all answers submitted for a job.
func (s *Store) GetAnswers(jobID string) ([]Answer, error) {
	rows, err := s.db.Query(
		`SELECT id, job_id, prompt_key, kind, action, summary, timestamp
		 FROM answers
		 WHERE job_id = ?
		 ORDER BY id ASC`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var answers []Answer
	for rows.Next() {
		var ans Answer
		if err := rows.Scan(&ans.ID, &ans.JobID, &ans.PromptKey, &ans.Kind, &ans.Action, &ans.Summary, &ans.Timestamp); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, ans)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return answers, nil
}

// ListConversations returns summaries of the most recent conversations.
func (s *Store) ListConversations(limit int) ([]Summary, error) {
	rows, err := s.db.Query(
		`SELECT c.id, c.title, c.updated_at,
		        (SELECT COUNT(*) FROM jobs j WHERE j.conversation_id = c.id) AS jobs,
		        (SELECT COUNT(*) FROM answers a JOIN jobs j ON a.job_id = j.id WHERE j.conversation_id = c.id) AS answers,
		        COALESCE((SELECT j.id FROM jobs j WHERE j.conversation_id = c.id ORDER BY j.updated_at DESC LIMIT 1), '') AS last_job,
		        COALESCE((SELECT j.status FROM jobs j WHERE j.conversation_id = c.id ORDER BY j.updated_at DESC LIMIT 1), '') AS last_state
		 FROM conversations c
		 ORDER BY c.updated_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.UpdatedAt, &sum.Jobs, &sum.Answers, &sum.LastJob, &sum.LastState); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return summaries, nil
}

// Prune deletes conversations last updated before cutoff, along with their
// messages, jobs and answers. It returns the number of conversations removed.
func (s *Store) Prune(cutoff time.Time) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin prune: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`DELETE FROM answers WHERE job_id IN (
			SELECT j.id FROM jobs j JOIN conversations c ON j.conversation_id = c.id WHERE c.updated_at < ?)`,
		`DELETE FROM jobs WHERE conversation_id IN (SELECT id FROM conversations WHERE updated_at < ?)`,
		`DELETE FROM messages WHERE conversation_id IN (SELECT id FROM conversations WHERE updated_at < ?)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, cutoff); err != nil {
			return 0, fmt.Errorf("prune: %w", err)
		}
	}

	result, err := tx.Exec(`DELETE FROM conversations WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune conversations: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return n, nil
}
