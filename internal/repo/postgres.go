/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GojoViv/ai.service.suvi.main/internal/config"
	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrations embed.FS

type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx2); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}
	return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

// sessionConn is a pooled connection kept checked out while it holds a session lock.
type sessionConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Release()
}

type Repository struct {
	db  *DB
	log zerolog.Logger

	acquire func(ctx context.Context) (sessionConn, error)
	lockMu  sync.Mutex
	held    map[int64]sessionConn
}

func NewRepository(d *DB, log zerolog.Logger) *Repository {
	r := &Repository{db: d, log: log, held: map[int64]sessionConn{}}
	r.acquire = func(ctx context.Context) (sessionConn, error) {
		c, err := d.Pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return r
}

// Migrate applies the embedded schema files in name order. All statements are idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		b, err := migrations.ReadFile("migrations/" + n)
		if err != nil {
			return err
		}
		if _, err := r.db.Pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", n, err)
		}
		r.log.Info().Str("file", n).Msg("migration applied")
	}
	return nil
}

// TryAdvisoryLock takes a session-level lock on a dedicated connection. The connection stays
// checked out until AdvisoryUnlock, which must run on the same session.
func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	if _, busy := r.held[key]; busy {
		return false, nil
	}
	conn, err := r.acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock: acquire conn: %w", err)
	}
	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
		conn.Release()
		return false, err
	}
	if !ok {
		conn.Release()
		return false, nil
	}
	r.held[key] = conn
	return true, nil
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
	r.lockMu.Lock()
	conn, ok := r.held[key]
	delete(r.held, key)
	r.lockMu.Unlock()
	if !ok {
		return errors.New("advisory unlock: lock not held")
	}
	defer conn.Release()
	var unlocked bool
	if err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&unlocked); err != nil {
		return err
	}
	if !unlocked {
		return errors.New("advisory unlock returned false")
	}
	return nil
}

// ---- tasks ----

func scanTask(row pgx.Row) (domain.Task, error) {
	var doc, log []byte
	var created, updated time.Time
	if err := row.Scan(&doc, &log, &created, &updated); err != nil {
		return domain.Task{}, err
	}
	var t domain.Task
	if err := json.Unmarshal(doc, &t); err != nil {
		return domain.Task{}, err
	}
	if err := json.Unmarshal(log, &t.ChangeLog); err != nil {
		return domain.Task{}, err
	}
	t.CreatedAt, t.UpdatedAt = created, updated
	return t, nil
}

// UpsertTask writes the reconciled fields and appends entry to the stored change log in
// the same statement. Description fields written by the maintenance job are kept.
func (r *Repository) UpsertTask(ctx context.Context, t domain.Task, entry domain.ChangeLogEntry) (domain.Task, error) {
	t.ChangeLog = domain.ChangeLog{}
	doc, err := json.Marshal(t)
	if err != nil {
		return domain.Task{}, err
	}
	ent, err := json.Marshal(entry)
	if err != nil {
		return domain.Task{}, err
	}
	const q = `
		INSERT INTO tasks(task_id, project_tag, sprint_id, status_name, doc, change_log)
		VALUES($1, $2, $3, $4, $5::jsonb - 'changeLog', jsonb_build_array($6::jsonb))
		ON CONFLICT(task_id) DO UPDATE SET
			project_tag=EXCLUDED.project_tag,
			sprint_id=EXCLUDED.sprint_id,
			status_name=EXCLUDED.status_name,
			doc = EXCLUDED.doc || jsonb_strip_nulls(jsonb_build_object(
				'taskDescription', tasks.doc->'taskDescription',
				'aiSummary', tasks.doc->'aiSummary',
				'lastDescriptionUpdate', tasks.doc->'lastDescriptionUpdate',
				'descriptionMetadata', tasks.doc->'descriptionMetadata')),
			change_log = CASE
				WHEN EXISTS (SELECT 1 FROM jsonb_array_elements(tasks.change_log) e WHERE e->>'key' = $7)
				THEN (SELECT jsonb_agg(CASE WHEN x.e->>'key' = $7 THEN $6::jsonb ELSE x.e END ORDER BY x.i)
				      FROM jsonb_array_elements(tasks.change_log) WITH ORDINALITY AS x(e, i))
				ELSE tasks.change_log || jsonb_build_array($6::jsonb)
			END,
			updated_at=now()
		RETURNING doc, change_log, created_at, updated_at`
	row := r.db.Pool.QueryRow(ctx, q, t.TaskID, t.ProjectTag, t.SprintRef, t.Status.Name, string(doc), string(ent), entry.Key)
	return scanTask(row)
}

type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, v any) {
	w.args = append(w.args, v)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (r *Repository) FindTasks(ctx context.Context, f TaskFilter) ([]domain.Task, error) {
	w := &where{}
	if f.ProjectTag != "" {
		w.add("project_tag = $%d", f.ProjectTag)
	}
	if f.SprintID != "" {
		w.add("sprint_id = $%d", f.SprintID)
	}
	if len(f.IDs) > 0 {
		w.add("task_id = ANY($%d)", f.IDs)
	}
	if len(f.Statuses) > 0 {
		w.add("status_name = ANY($%d)", f.Statuses)
	}
	if f.StaleDescription {
		w.add("(COALESCE(doc->>'taskDescription','') = '' OR status_name <> $%d)", domain.StatusDone)
	}
	rows, err := r.db.Pool.Query(ctx, `SELECT doc, change_log, created_at, updated_at FROM tasks`+w.String()+` ORDER BY created_at, task_id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// BulkUpdateDescriptions applies every update in one transaction and returns the number of
// rows changed.
func (r *Repository) BulkUpdateDescriptions(ctx context.Context, updates []DescriptionUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	const q = `UPDATE tasks SET doc = doc || $2::jsonb, updated_at=now() WHERE task_id=$1`
	for _, u := range updates {
		patch := map[string]any{
			"taskDescription":       u.Description,
			"lastDescriptionUpdate": u.Meta.UpdatedAt,
			"descriptionMetadata":   u.Meta,
		}
		if u.AISummary != "" {
			patch["aiSummary"] = u.AISummary
		}
		b, err := json.Marshal(patch)
		if err != nil {
			return 0, err
		}
		batch.Queue(q, u.TaskID, string(b))
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	br := tx.SendBatch(ctx, batch)
	n := 0
	for range updates {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, err
		}
		n += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

// ---- sprints ----

func scanSprint(row pgx.Row) (domain.Sprint, error) {
	var doc []byte
	var created, updated time.Time
	if err := row.Scan(&doc, &created, &updated); err != nil {
		return domain.Sprint{}, err
	}
	var s domain.Sprint
	if err := json.Unmarshal(doc, &s); err != nil {
		return domain.Sprint{}, err
	}
	s.CreatedAt, s.UpdatedAt = created, updated
	return s, nil
}

func (r *Repository) UpsertSprint(ctx context.Context, s domain.Sprint) (domain.Sprint, error) {
	doc, err := json.Marshal(s)
	if err != nil {
		return domain.Sprint{}, err
	}
	const q = `
		INSERT INTO sprints(sprint_id, project_tag, status_id, doc) VALUES($1,$2,$3,$4::jsonb)
		ON CONFLICT(sprint_id) DO UPDATE SET
			project_tag=EXCLUDED.project_tag,
			status_id=EXCLUDED.status_id,
			doc=EXCLUDED.doc,
			updated_at=now()
		RETURNING doc, created_at, updated_at`
	return scanSprint(r.db.Pool.QueryRow(ctx, q, s.SprintID, s.ProjectTag, s.Status.ID, string(doc)))
}

// AttachTaskToSprint adds taskID to the sprint's references and bumps totalTasks, once.
func (r *Repository) AttachTaskToSprint(ctx context.Context, sprintID, taskID string) (bool, error) {
	const q = `
		UPDATE sprints SET
			doc = jsonb_set(
				jsonb_set(doc, '{tasks}', COALESCE(doc->'tasks', '[]'::jsonb) || to_jsonb($2::text)),
				'{totalTasks}', to_jsonb(COALESCE((doc->>'totalTasks')::int, 0) + 1)),
			updated_at=now()
		WHERE sprint_id=$1 AND NOT (COALESCE(doc->'tasks', '[]'::jsonb) ? $2::text)`
	tag, err := r.db.Pool.Exec(ctx, q, sprintID, taskID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM sprints WHERE sprint_id=$1)`, sprintID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("sprint %q: %w", sprintID, ErrNotFound)
	}
	return false, nil
}

func (r *Repository) FindSprints(ctx context.Context, f SprintFilter) ([]domain.Sprint, error) {
	w := &where{}
	if f.ProjectTag != "" {
		w.add("project_tag = $%d", f.ProjectTag)
	}
	if len(f.IDs) > 0 {
		w.add("sprint_id = ANY($%d)", f.IDs)
	}
	if f.CurrentOnly {
		w.add("status_id = $%d", domain.SprintStatusCurrent)
	}
	rows, err := r.db.Pool.Query(ctx, `SELECT doc, created_at, updated_at FROM sprints`+w.String()+` ORDER BY created_at, sprint_id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Sprint
	for rows.Next() {
		s, err := scanSprint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ---- epics ----

func scanEpic(row pgx.Row) (domain.Epic, error) {
	var doc []byte
	var created, updated time.Time
	if err := row.Scan(&doc, &created, &updated); err != nil {
		return domain.Epic{}, err
	}
	var e domain.Epic
	if err := json.Unmarshal(doc, &e); err != nil {
		return domain.Epic{}, err
	}
	e.CreatedAt, e.UpdatedAt = created, updated
	return e, nil
}

func (r *Repository) UpsertEpic(ctx context.Context, e domain.Epic) (domain.Epic, error) {
	doc, err := json.Marshal(e)
	if err != nil {
		return domain.Epic{}, err
	}
	const q = `
		INSERT INTO epics(epic_id, project_tag, doc) VALUES($1,$2,$3::jsonb)
		ON CONFLICT(epic_id) DO UPDATE SET
			project_tag=EXCLUDED.project_tag,
			doc=EXCLUDED.doc,
			updated_at=now()
		RETURNING doc, created_at, updated_at`
	return scanEpic(r.db.Pool.QueryRow(ctx, q, e.EpicID, e.ProjectTag, string(doc)))
}

func (r *Repository) FindEpics(ctx context.Context, f EpicFilter) ([]domain.Epic, error) {
	w := &where{}
	if f.ProjectTag != "" {
		w.add("project_tag = $%d", f.ProjectTag)
	}
	if len(f.IDs) > 0 {
		w.add("epic_id = ANY($%d)", f.IDs)
	}
	rows, err := r.db.Pool.Query(ctx, `SELECT doc, created_at, updated_at FROM epics`+w.String()+` ORDER BY created_at, epic_id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Epic
	for rows.Next() {
		e, err := scanEpic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- sprint analyses ----

// AppendDailyMetrics upserts the snapshot for h.SprintID and appends dm. With replaceSameDay
// an entry of the same calendar date is updated in place instead.
func (r *Repository) AppendDailyMetrics(ctx context.Context, h domain.SprintAnalysisHeader, dm domain.DailyMetrics, replaceSameDay bool) error {
	header, err := json.Marshal(h)
	if err != nil {
		return err
	}
	entry, err := json.Marshal(dm)
	if err != nil {
		return err
	}
	const appendQ = `
		INSERT INTO sprint_analyses(sprint_id, project_tag, header, daily_metrics)
		VALUES($1, $2, $3::jsonb, jsonb_build_array($4::jsonb))
		ON CONFLICT(sprint_id) DO UPDATE SET
			project_tag=EXCLUDED.project_tag,
			header=EXCLUDED.header,
			daily_metrics = sprint_analyses.daily_metrics || jsonb_build_array($4::jsonb),
			updated_at=now()`
	if !replaceSameDay {
		_, err := r.db.Pool.Exec(ctx, appendQ, h.SprintID, h.ProjectTag, string(header), string(entry))
		return err
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	var raw []byte
	err = tx.QueryRow(ctx, `SELECT daily_metrics FROM sprint_analyses WHERE sprint_id=$1 FOR UPDATE`, h.SprintID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := tx.Exec(ctx, appendQ, h.SprintID, h.ProjectTag, string(header), string(entry)); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}
	if err != nil {
		return err
	}
	var list []domain.DailyMetrics
	if err := json.Unmarshal(raw, &list); err != nil {
		return err
	}
	replaced := false
	for i := range list {
		if list[i].SameDay(dm, time.Local) {
			list[i] = dm
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, dm)
	}
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE sprint_analyses SET project_tag=$2, header=$3::jsonb, daily_metrics=$4::jsonb, updated_at=now() WHERE sprint_id=$1`,
		h.SprintID, h.ProjectTag, string(header), string(b)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) FindSprintAnalyses(ctx context.Context, sprintIDs []string) ([]domain.SprintAnalysis, error) {
	if len(sprintIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT header, daily_metrics, created_at, updated_at FROM sprint_analyses
		WHERE sprint_id = ANY($1) ORDER BY array_position($1, sprint_id)`, sprintIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.SprintAnalysis
	for rows.Next() {
		var header, list []byte
		var a domain.SprintAnalysis
		if err := rows.Scan(&header, &list, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(header, &a.SprintAnalysisHeader); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(list, &a.DailyMetrics); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---- project documents ----

func (r *Repository) ReplaceProjectDocuments(ctx context.Context, projectTag string, docs []domain.ProjectDocument) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `DELETE FROM project_documents WHERE project_tag=$1`, projectTag); err != nil {
		return err
	}
	if len(docs) > 0 {
		batch := &pgx.Batch{}
		const q = `INSERT INTO project_documents(document_id, project_tag, doc) VALUES($1,$2,$3::jsonb)
			ON CONFLICT(document_id) DO UPDATE SET project_tag=EXCLUDED.project_tag, doc=EXCLUDED.doc, updated_at=now()`
		for _, d := range docs {
			b, err := json.Marshal(d)
			if err != nil {
				return err
			}
			batch.Queue(q, d.DocumentID, projectTag, string(b))
		}
		br := tx.SendBatch(ctx, batch)
		for range docs {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return err
			}
		}
		if err := br.Close(); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repository) ProjectDocuments(ctx context.Context, projectTag string) ([]domain.ProjectDocument, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT doc FROM project_documents WHERE project_tag=$1 ORDER BY document_id`, projectTag)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ProjectDocument
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		var d domain.ProjectDocument
		if err := json.Unmarshal(b, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ---- job runs ----

func (r *Repository) StartJobRun(ctx context.Context, runID, job string) (int64, error) {
	const q = `INSERT INTO job_runs(run_id, job, started_at, success) VALUES($1, $2, now(), false) RETURNING id`
	var id int64
	if err := r.db.Pool.QueryRow(ctx, q, runID, job).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) FinishJobRun(ctx context.Context, id int64, success bool, errStr, summary string) error {
	const q = `UPDATE job_runs SET finished_at=now(), success=$2, error=$3, summary=$4 WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, id, success, errStr, summary)
	return err
}

func (r *Repository) GetLastRun(ctx context.Context) (*LastRun, error) {
	const q = `SELECT run_id, job, started_at, finished_at, coalesce(success,false), coalesce(error,''), coalesce(summary,'')
		FROM job_runs ORDER BY id DESC LIMIT 1`
	lr := &LastRun{}
	err := r.db.Pool.QueryRow(ctx, q).Scan(&lr.RunID, &lr.Job, &lr.StartedAt, &lr.FinishedAt, &lr.Success, &lr.Error, &lr.Summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return lr, nil
}
