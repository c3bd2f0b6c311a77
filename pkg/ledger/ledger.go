// Package ledger ведёт журнал запусков генерации и задач fine-tuning в SQLite.
//
// Журнал нужен оператору, чтобы после прерванного или долгого обучения
// найти id задачи, файл датасета и итоговую модель.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ilkoid/poncho-tune/pkg/dataset"
	"github.com/ilkoid/poncho-tune/pkg/llm"
)

// ErrNotFound - записи с таким ключом нет.
var ErrNotFound = errors.New("ledger record not found")

const schema = `
CREATE TABLE IF NOT EXISTS generation_runs(
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at     INTEGER NOT NULL,
	finished_at    INTEGER NOT NULL,
	data_model     TEXT NOT NULL,
	dataset_path   TEXT NOT NULL,
	system_message TEXT NOT NULL DEFAULT '',
	requested      INTEGER NOT NULL,
	raw            INTEGER NOT NULL DEFAULT 0,
	parsed         INTEGER NOT NULL DEFAULT 0,
	dropped        INTEGER NOT NULL DEFAULT 0,
	duplicates     INTEGER NOT NULL DEFAULT 0,
	written        INTEGER NOT NULL DEFAULT 0,
	error          TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS jobs(
	job_id           TEXT PRIMARY KEY,
	file_id          TEXT NOT NULL,
	base_model       TEXT NOT NULL,
	dataset_path     TEXT NOT NULL,
	status           TEXT NOT NULL,
	fine_tuned_model TEXT NOT NULL DEFAULT '',
	created_at       INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS job_status_history(
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id    TEXT NOT NULL REFERENCES jobs(job_id),
	status    TEXT NOT NULL,
	at        INTEGER NOT NULL
);
`

// Ledger - журнал поверх *sql.DB.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open открывает (и при необходимости создаёт) базу по пути path.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	// Один писатель: SQLite не любит конкурентные записи
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger schema: %w", err)
	}

	return &Ledger{db: db, now: time.Now}, nil
}

// Close закрывает базу.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// GenerationRun - запись о запуске генерации датасета.
type GenerationRun struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    time.Time
	DataModel     string
	DatasetPath   string
	SystemMessage string
	Requested     int
	Report        dataset.Report
	Error         string // Пусто при успехе
}

// RecordGeneration сохраняет запуск генерации и возвращает его id.
func (l *Ledger) RecordGeneration(ctx context.Context, run GenerationRun) (int64, error) {
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO generation_runs(started_at, finished_at, data_model, dataset_path, system_message,
			requested, raw, parsed, dropped, duplicates, written, error)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.StartedAt.Unix(), run.FinishedAt.Unix(), run.DataModel, run.DatasetPath, run.SystemMessage,
		run.Requested, run.Report.Raw, run.Report.Parsed, run.Report.Dropped, run.Report.Duplicates,
		run.Report.Written, run.Error)
	if err != nil {
		return 0, fmt.Errorf("insert generation run: %w", err)
	}
	return res.LastInsertId()
}

// LatestGeneration возвращает последний запуск генерации.
func (l *Ledger) LatestGeneration(ctx context.Context) (GenerationRun, error) {
	var (
		run               GenerationRun
		started, finished int64
	)
	err := l.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, data_model, dataset_path, system_message,
			requested, raw, parsed, dropped, duplicates, written, error
		FROM generation_runs ORDER BY id DESC LIMIT 1`).Scan(
		&run.ID, &started, &finished, &run.DataModel, &run.DatasetPath, &run.SystemMessage,
		&run.Requested, &run.Report.Raw, &run.Report.Parsed, &run.Report.Dropped,
		&run.Report.Duplicates, &run.Report.Written, &run.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return GenerationRun{}, ErrNotFound
	}
	if err != nil {
		return GenerationRun{}, fmt.Errorf("query generation run: %w", err)
	}

	run.StartedAt = time.Unix(started, 0)
	run.FinishedAt = time.Unix(finished, 0)
	return run, nil
}

// Job - запись о задаче fine-tuning.
type Job struct {
	JobID          string
	FileID         string
	BaseModel      string
	DatasetPath    string
	Status         llm.JobStatus
	FineTunedModel string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RecordJob сохраняет только что созданную задачу.
func (l *Ledger) RecordJob(ctx context.Context, job Job) error {
	now := l.now().Unix()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO jobs(job_id, file_id, base_model, dataset_path, status, fine_tuned_model, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		job.JobID, job.FileID, job.BaseModel, job.DatasetPath, string(job.Status), job.FineTunedModel, now, now); err != nil {
		return fmt.Errorf("insert job %s: %w", job.JobID, err)
	}
	if err := insertHistory(ctx, tx, job.JobID, job.Status, now); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateJobStatus записывает новый статус задачи и, если известна, итоговую модель.
// Повтор того же статуса историю не удлиняет.
func (l *Ledger) UpdateJobStatus(ctx context.Context, jobID string, status llm.JobStatus, fineTunedModel string) error {
	now := l.now().Unix()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM jobs WHERE job_id = ?", jobID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query job %s: %w", jobID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs SET status = ?, fine_tuned_model = CASE WHEN ? != '' THEN ? ELSE fine_tuned_model END, updated_at = ?
		WHERE job_id = ?`,
		string(status), fineTunedModel, fineTunedModel, now, jobID); err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	if current != string(status) {
		if err := insertHistory(ctx, tx, jobID, status, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Job возвращает задачу по id.
func (l *Ledger) Job(ctx context.Context, jobID string) (Job, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT job_id, file_id, base_model, dataset_path, status, fine_tuned_model, created_at, updated_at
		FROM jobs WHERE job_id = ?`, jobID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	return job, err
}

// ListJobs возвращает до limit последних задач, новые первыми.
func (l *Ledger) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT job_id, file_id, base_model, dataset_path, status, fine_tuned_model, created_at, updated_at
		FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// StatusHistory возвращает смены статуса задачи в хронологическом порядке.
func (l *Ledger) StatusHistory(ctx context.Context, jobID string) ([]llm.JobStatus, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT status FROM job_status_history WHERE job_id = ? ORDER BY id", jobID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var history []llm.JobStatus
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		history = append(history, llm.JobStatus(s))
	}
	return history, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (Job, error) {
	var (
		job              Job
		status           string
		created, updated int64
	)
	if err := s.Scan(&job.JobID, &job.FileID, &job.BaseModel, &job.DatasetPath, &status,
		&job.FineTunedModel, &created, &updated); err != nil {
		return Job{}, err
	}
	job.Status = llm.JobStatus(status)
	job.CreatedAt = time.Unix(created, 0)
	job.UpdatedAt = time.Unix(updated, 0)
	return job, nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, jobID string, status llm.JobStatus, at int64) error {
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO job_status_history(job_id, status, at) VALUES(?,?,?)", jobID, string(status), at); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}
