package devserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/flow"
	"github.com/beverlyhillscop90210/comfyui-vfx-flow/internal/model"
)

// ErrNotFound is returned when a referenced entity does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidCredentials is returned when a login does not match
var ErrInvalidCredentials = errors.New("invalid credentials")

// User is a human user of the directory
type User struct {
	ID    int
	Login string
	Name  string
}

// DB wraps the SQLite connection with initialization logic.
type DB struct {
	*sql.DB
}

// Open creates or opens the SQLite database at the given path, creates the
// schema and seeds the demo data on first use.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if err := seed(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed: %w", err)
	}

	return &DB{db}, nil
}

func initSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			login TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'act'
		)`,
		`CREATE TABLE IF NOT EXISTS scripts (
			name TEXT PRIMARY KEY,
			key_hash TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'Active'
		)`,
		`CREATE TABLE IF NOT EXISTS sequences (
			id INTEGER PRIMARY KEY,
			project_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS shots (
			id INTEGER PRIMARY KEY,
			project_id INTEGER NOT NULL,
			sequence_id INTEGER,
			code TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'wtg',
			cut_in INTEGER,
			cut_out INTEGER,
			FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
			FOREIGN KEY (sequence_id) REFERENCES sequences(id) ON DELETE SET NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shots_project ON shots(project_id, sequence_id)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY,
			shot_id INTEGER NOT NULL,
			content TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'wtg',
			FOREIGN KEY (shot_id) REFERENCES shots(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS task_assignees (
			task_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			PRIMARY KEY (task_id, user_id),
			FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			shot_id INTEGER NOT NULL,
			task_id INTEGER,
			user_id INTEGER,
			code TEXT NOT NULL,
			version_number INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			path TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (shot_id) REFERENCES shots(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_versions_shot ON versions(shot_id, version_number)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Demo credentials created by the seed
const (
	DemoLogin      = "artist"
	DemoPassword   = "artist"
	DemoScriptName = "comfyui_vfx_flow"
	DemoAPIKey     = "dev-api-key"
)

// seed inserts the demo directory once. It is a no-op when projects exist.
func seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM projects`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	pw, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	key, err := bcrypt.GenerateFromPassword([]byte(DemoAPIKey), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash api key: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO users (id, login, name, password_hash) VALUES (?, ?, ?, ?)`, []any{7, DemoLogin, "Ana Artist", string(pw)}},
		{`INSERT INTO scripts (name, key_hash) VALUES (?, ?)`, []any{DemoScriptName, string(key)}},
		{`INSERT INTO projects (id, name, status) VALUES (1, 'DEMO', 'Active')`, nil},
		{`INSERT INTO sequences (id, project_id, name) VALUES (10, 1, 'SQ010'), (20, 1, 'SQ020')`, nil},
		{`INSERT INTO shots (id, project_id, sequence_id, code, status, cut_in, cut_out) VALUES
			(100, 1, 10, 'SH010', 'wtg', 1001, 1096),
			(110, 1, 10, 'SH020', 'rdy', 1001, 1048),
			(200, 1, 20, 'SH030', 'wtg', 1001, 1120)`, nil},
		{`INSERT INTO tasks (id, shot_id, content) VALUES
			(1000, 100, 'comp'), (1001, 100, 'roto'), (1002, 100, 'lighting'),
			(1100, 110, 'comp'), (1101, 110, 'roto'),
			(2000, 200, 'comp')`, nil},
		{`INSERT INTO versions (project_id, shot_id, task_id, user_id, code, version_number, status, path, created_at)
			VALUES (1, 100, 1000, 7, 'DEMO_SQ010_SH010_comp_v001', 1, 'rev',
			'/renders/DEMO/SQ010/SH010/render/DEMO_SQ010_SH010_comp_v001.exr', ?)`, []any{time.Now().Unix()}},
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s.query, s.args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AuthenticateUser checks a login and password
func (db *DB) AuthenticateUser(ctx context.Context, login, password string) (*User, error) {
	var u User
	var hash string
	err := db.QueryRowContext(ctx, `
		SELECT id, login, name, password_hash FROM users
		WHERE login = ? AND status = 'act'
	`, login).Scan(&u.ID, &u.Login, &u.Name, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

// AuthenticateScript checks a script name and API key
func (db *DB) AuthenticateScript(ctx context.Context, name, apiKey string) error {
	var hash string
	err := db.QueryRowContext(ctx, `SELECT key_hash FROM scripts WHERE name = ?`, name).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("authenticate script: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(apiKey)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// FirstActiveUser returns the user scripts act on behalf of
func (db *DB) FirstActiveUser(ctx context.Context) (*User, error) {
	var u User
	err := db.QueryRowContext(ctx, `
		SELECT id, login, name FROM users WHERE status = 'act' ORDER BY id LIMIT 1
	`).Scan(&u.ID, &u.Login, &u.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("first active user: %w", err)
	}
	return &u, nil
}

// Projects returns the active projects
func (db *DB) Projects(ctx context.Context) ([]model.Entity, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, status FROM projects WHERE status = ? ORDER BY name
	`, model.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := []model.Entity{}
	for rows.Next() {
		var e model.Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.Status); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Sequences returns the sequences of a project
func (db *DB) Sequences(ctx context.Context, projectID int) ([]model.Entity, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name FROM sequences WHERE project_id = ? ORDER BY name
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}
	defer rows.Close()

	out := []model.Entity{}
	for rows.Next() {
		var e model.Entity
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, fmt.Errorf("scan sequence: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Shots returns the shots of a project, narrowed to a sequence when
// sequenceID is not zero
func (db *DB) Shots(ctx context.Context, projectID, sequenceID int) ([]model.Entity, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT s.id, s.code, s.status, s.cut_in, s.cut_out, q.id, q.name
		FROM shots s
		LEFT JOIN sequences q ON q.id = s.sequence_id
		WHERE s.project_id = ? AND (? = 0 OR s.sequence_id = ?)
		ORDER BY s.code
	`, projectID, sequenceID, sequenceID)
	if err != nil {
		return nil, fmt.Errorf("list shots: %w", err)
	}
	defer rows.Close()

	out := []model.Entity{}
	for rows.Next() {
		var e model.Entity
		var cutIn, cutOut, seqID sql.NullInt64
		var seqName sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &e.Status, &cutIn, &cutOut, &seqID, &seqName); err != nil {
			return nil, fmt.Errorf("scan shot: %w", err)
		}
		if cutIn.Valid {
			v := int(cutIn.Int64)
			e.CutIn = &v
		}
		if cutOut.Valid {
			v := int(cutOut.Int64)
			e.CutOut = &v
		}
		if seqID.Valid {
			e.Sequence = &model.EntityRef{ID: int(seqID.Int64), Name: seqName.String}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Tasks returns the tasks of a shot with their assignees
func (db *DB) Tasks(ctx context.Context, shotID int) ([]model.Entity, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT t.id, t.content, t.status, s.id, s.code
		FROM tasks t
		JOIN shots s ON s.id = t.shot_id
		WHERE t.shot_id = ?
		ORDER BY t.id
	`, shotID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	out := []model.Entity{}
	for rows.Next() {
		var e model.Entity
		var shot model.EntityRef
		if err := rows.Scan(&e.ID, &e.Name, &e.Status, &shot.ID, &shot.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan task: %w", err)
		}
		e.Shot = &shot
		out = append(out, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Assignees are read after the task cursor is closed (MaxOpenConns is 1)
	for i := range out {
		assignees, err := db.assignees(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Assignees = assignees
	}
	return out, nil
}

func (db *DB) assignees(ctx context.Context, taskID int) ([]model.EntityRef, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT u.id, u.name FROM task_assignees a
		JOIN users u ON u.id = a.user_id
		WHERE a.task_id = ? ORDER BY u.id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	defer rows.Close()

	var out []model.EntityRef
	for rows.Next() {
		var r model.EntityRef
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetShotStatus updates a shot's workflow status
func (db *DB) SetShotStatus(ctx context.Context, shotID int, status string) error {
	return db.updateStatus(ctx, "shots", shotID, status)
}

// SetTaskStatus updates a task's workflow status
func (db *DB) SetTaskStatus(ctx context.Context, taskID int, status string) error {
	return db.updateStatus(ctx, "tasks", taskID, status)
}

func (db *DB) updateStatus(ctx context.Context, table string, id int, status string) error {
	res, err := db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET status = ? WHERE id = ?`, table), status, id)
	if err != nil {
		return fmt.Errorf("update %s status: %w", table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignTask makes userID the only assignee of a task
func (db *DB) AssignTask(ctx context.Context, taskID, userID int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, taskID).Scan(&exists); err != nil {
		return fmt.Errorf("assign task: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("assign task: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO task_assignees (task_id, user_id) VALUES (?, ?)`, taskID, userID); err != nil {
		return fmt.Errorf("assign task: %w", err)
	}
	return tx.Commit()
}

// LatestVersion returns the highest-numbered version of a shot, or nil
func (db *DB) LatestVersion(ctx context.Context, shotID int) (*flow.Version, error) {
	var v flow.Version
	err := db.QueryRowContext(ctx, `
		SELECT id, code, version_number, path FROM versions
		WHERE shot_id = ? ORDER BY version_number DESC, id DESC LIMIT 1
	`, shotID).Scan(&v.ID, &v.Code, &v.VersionNumber, &v.Path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest version: %w", err)
	}
	return &v, nil
}

// CreateVersion records a published version and returns its id. The version
// number is one past the shot's current highest.
func (db *DB) CreateVersion(ctx context.Context, req flow.PublishRequest) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var projectID int
	err = tx.QueryRowContext(ctx, `SELECT project_id FROM shots WHERE id = ?`, req.ShotID).Scan(&projectID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && projectID != req.ProjectID) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("create version: %w", err)
	}

	var next int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version_number), 0) + 1 FROM versions WHERE shot_id = ?
	`, req.ShotID).Scan(&next); err != nil {
		return 0, fmt.Errorf("create version: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO versions (project_id, shot_id, task_id, user_id, code, version_number, description, status, path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, req.ProjectID, req.ShotID, nullInt(req.TaskID), nullInt(req.UserID), req.Code, next,
		req.Description, req.Status, req.FilePath, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("create version: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}
