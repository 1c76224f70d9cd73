package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/juridia/caseflow/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS cases (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	case_number  TEXT NOT NULL CONSTRAINT cases_case_number_key UNIQUE,
	client_name  TEXT NOT NULL,
	client_cpf   TEXT NOT NULL DEFAULT '',
	benefit_type TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	notes        TEXT NOT NULL DEFAULT '',
	assigned_to  TEXT NOT NULL DEFAULT '',
	created_by   TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cases_tenant ON cases (tenant_id, created_at DESC);

CREATE TABLE IF NOT EXISTS tasks (
	id                 TEXT PRIMARY KEY,
	case_id            TEXT NOT NULL REFERENCES cases (id) ON DELETE CASCADE,
	title              TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL,
	priority           TEXT NOT NULL,
	due_date           TIMESTAMPTZ,
	completed_at       TIMESTAMPTZ,
	assigned_to        TEXT NOT NULL DEFAULT '',
	created_by         TEXT NOT NULL DEFAULT '',
	is_workflow_task   BOOLEAN NOT NULL DEFAULT FALSE,
	source_template_id TEXT NOT NULL DEFAULT '',
	order_index        INTEGER NOT NULL DEFAULT 0,
	required_documents JSONB,
	notes              TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_case ON tasks (case_id, is_workflow_task, order_index);
CREATE INDEX IF NOT EXISTS idx_tasks_template ON tasks (source_template_id);

CREATE TABLE IF NOT EXISTS workflow_templates (
	id           TEXT PRIMARY KEY,
	benefit_type TEXT NOT NULL,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	tasks        JSONB NOT NULL,
	active       BOOLEAN NOT NULL DEFAULT TRUE,
	is_global    BOOLEAN NOT NULL DEFAULT FALSE,
	tenant_id    TEXT,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_templates_benefit ON workflow_templates (benefit_type, active);
`

// PgStore is a PostgreSQL-backed Store using pgx/v5.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a new PostgreSQL store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureSchema creates the tables and indexes if they don't exist.
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// CreateCase inserts a new case. A unique-violation on case_number maps to
// ErrDuplicateCaseNumber so the allocator can retry.
func (s *PgStore) CreateCase(ctx context.Context, c model.Case) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cases (
			id, tenant_id, case_number, client_name, client_cpf,
			benefit_type, status, description, notes,
			assigned_to, created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13
		)`,
		c.ID, c.TenantID, c.CaseNumber, c.ClientName, c.ClientCPF,
		c.BenefitType, c.Status, c.Description, c.Notes,
		c.AssignedTo, c.CreatedBy, c.CreatedAt, c.UpdatedAt,
	)
	if isDuplicateCaseNumber(err) {
		return fmt.Errorf("create case %s: %w", c.CaseNumber, ErrDuplicateCaseNumber)
	}
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

// GetCase retrieves a case by ID, scoped to tenant.
func (s *PgStore) GetCase(ctx context.Context, tenantID, caseID string) (model.Case, error) {
	var c model.Case
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, case_number, client_name, client_cpf,
		       benefit_type, status, description, notes,
		       assigned_to, created_by, created_at, updated_at
		FROM cases
		WHERE id = $1 AND tenant_id = $2`,
		caseID, tenantID,
	).Scan(
		&c.ID, &c.TenantID, &c.CaseNumber, &c.ClientName, &c.ClientCPF,
		&c.BenefitType, &c.Status, &c.Description, &c.Notes,
		&c.AssignedTo, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Case{}, model.NewNotFoundError(fmt.Sprintf("case %q not found", caseID))
	}
	if err != nil {
		return model.Case{}, fmt.Errorf("query case: %w", err)
	}
	return c, nil
}

// UpdateCase persists an updated case. The case number is never written.
func (s *PgStore) UpdateCase(ctx context.Context, c model.Case) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE cases SET
			client_name = $1,
			client_cpf = $2,
			benefit_type = $3,
			status = $4,
			description = $5,
			notes = $6,
			assigned_to = $7,
			updated_at = $8
		WHERE id = $9`,
		c.ClientName, c.ClientCPF, c.BenefitType, c.Status,
		c.Description, c.Notes, c.AssignedTo, time.Now().UTC(),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("case %q not found", c.ID))
	}
	return nil
}

// DeleteCase removes a case; its tasks go with it via cascade.
func (s *PgStore) DeleteCase(ctx context.Context, tenantID, caseID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM cases
		WHERE id = $1 AND tenant_id = $2`,
		caseID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("case %q not found", caseID))
	}
	return nil
}

// ListCases returns a tenant's cases, newest first.
func (s *PgStore) ListCases(ctx context.Context, tenantID string, filters CaseFilters) ([]model.Case, error) {
	query := `SELECT id, tenant_id, case_number, client_name, client_cpf,
	                 benefit_type, status, description, notes,
	                 assigned_to, created_by, created_at, updated_at
	          FROM cases
	          WHERE tenant_id = $1`
	args := []any{tenantID}
	argIdx := 2

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filters.Status)
		argIdx++
	}
	if filters.BenefitType != "" {
		query += fmt.Sprintf(" AND benefit_type = $%d", argIdx)
		args = append(args, filters.BenefitType)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	cases := make([]model.Case, 0)
	for rows.Next() {
		var c model.Case
		if err := rows.Scan(
			&c.ID, &c.TenantID, &c.CaseNumber, &c.ClientName, &c.ClientCPF,
			&c.BenefitType, &c.Status, &c.Description, &c.Notes,
			&c.AssignedTo, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// MaxCaseSequence returns the highest sequence the tenant holds for the year.
func (s *PgStore) MaxCaseSequence(ctx context.Context, tenantID string, year int) (int, error) {
	var max int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(CAST(RIGHT(case_number, 4) AS INTEGER)), 0)
		FROM cases
		WHERE tenant_id = $1 AND case_number LIKE $2`,
		tenantID, fmt.Sprintf("CASE-%d-%%", year),
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("query max case sequence: %w", err)
	}
	return max, nil
}

// CreateTask inserts a single task.
func (s *PgStore) CreateTask(ctx context.Context, t model.Task) error {
	if err := s.insertTask(ctx, s.pool, t); err != nil {
		return err
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *PgStore) insertTask(ctx context.Context, db execer, t model.Task) error {
	docsJSON, err := json.Marshal(t.RequiredDocuments)
	if err != nil {
		return fmt.Errorf("marshal required documents: %w", err)
	}

	_, err = db.Exec(ctx, `
		INSERT INTO tasks (
			id, case_id, title, description, status, priority,
			due_date, completed_at, assigned_to, created_by,
			is_workflow_task, source_template_id, order_index,
			required_documents, notes, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13,
			$14, $15, $16, $17
		)`,
		t.ID, t.CaseID, t.Title, t.Description, t.Status, t.Priority,
		nullableTime(t.DueDate), t.CompletedAt, t.AssignedTo, t.CreatedBy,
		t.IsWorkflowTask, t.SourceTemplateID, t.OrderIndex,
		docsJSON, t.Notes, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID, scoped through its owning case.
func (s *PgStore) GetTask(ctx context.Context, tenantID, taskID string) (model.Task, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT t.id, t.case_id, t.title, t.description, t.status, t.priority,
		       t.due_date, t.completed_at, t.assigned_to, t.created_by,
		       t.is_workflow_task, t.source_template_id, t.order_index,
		       t.required_documents, t.notes, t.created_at, t.updated_at
		FROM tasks t
		JOIN cases c ON c.id = t.case_id
		WHERE t.id = $1 AND c.tenant_id = $2`,
		taskID, tenantID,
	)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Task{}, model.NewNotFoundError(fmt.Sprintf("task %q not found", taskID))
	}
	if err != nil {
		return model.Task{}, fmt.Errorf("query task: %w", err)
	}
	return t, nil
}

// UpdateTask persists an updated task.
func (s *PgStore) UpdateTask(ctx context.Context, t model.Task) error {
	docsJSON, err := json.Marshal(t.RequiredDocuments)
	if err != nil {
		return fmt.Errorf("marshal required documents: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks SET
			title = $1,
			description = $2,
			status = $3,
			priority = $4,
			due_date = $5,
			completed_at = $6,
			assigned_to = $7,
			required_documents = $8,
			notes = $9,
			updated_at = $10
		WHERE id = $11`,
		t.Title, t.Description, t.Status, t.Priority,
		nullableTime(t.DueDate), t.CompletedAt, t.AssignedTo,
		docsJSON, t.Notes, time.Now().UTC(),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("task %q not found", t.ID))
	}
	return nil
}

// ListTasks returns a case's tasks, workflow tasks first in order-index order.
func (s *PgStore) ListTasks(ctx context.Context, tenantID, caseID string, workflowOnly bool) ([]model.Task, error) {
	if _, err := s.GetCase(ctx, tenantID, caseID); err != nil {
		return nil, err
	}

	query := `SELECT id, case_id, title, description, status, priority,
	                 due_date, completed_at, assigned_to, created_by,
	                 is_workflow_task, source_template_id, order_index,
	                 required_documents, notes, created_at, updated_at
	          FROM tasks
	          WHERE case_id = $1`
	if workflowOnly {
		query += " AND is_workflow_task"
	}
	query += " ORDER BY is_workflow_task DESC, order_index ASC, created_at ASC"

	rows, err := s.pool.Query(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ReplaceWorkflowTasks swaps the case's workflow task set in one transaction.
// The case row is locked first so concurrent rewrites of one case serialize;
// the later transaction sees the earlier one's committed set, deletes it, and
// the last committed task set wins wholesale.
func (s *PgStore) ReplaceWorkflowTasks(ctx context.Context, tenantID, caseID string, tasks []model.Task) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace workflow tasks: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockCase(ctx, tx, tenantID, caseID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM tasks
		WHERE case_id = $1 AND is_workflow_task`,
		caseID,
	); err != nil {
		return fmt.Errorf("delete workflow tasks: %w", err)
	}
	for _, t := range tasks {
		if err := s.insertTask(ctx, tx, t); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// DeleteWorkflowTasks removes all workflow tasks on the case, under the same
// case row lock as ReplaceWorkflowTasks so a clear never interleaves with a
// rewrite.
func (s *PgStore) DeleteWorkflowTasks(ctx context.Context, tenantID, caseID string) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin delete workflow tasks: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockCase(ctx, tx, tenantID, caseID); err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM tasks
		WHERE case_id = $1 AND is_workflow_task`,
		caseID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete workflow tasks: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// lockCase takes a row lock on the case inside the transaction, scoped to
// tenant. Without it, two delete+insert transactions can each miss the
// other's inserts under READ COMMITTED and leave a merged task set behind.
func lockCase(ctx context.Context, tx pgx.Tx, tenantID, caseID string) error {
	var id string
	err := tx.QueryRow(ctx, `
		SELECT id FROM cases
		WHERE id = $1 AND tenant_id = $2
		FOR UPDATE`,
		caseID, tenantID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.NewNotFoundError(fmt.Sprintf("case %q not found", caseID))
	}
	if err != nil {
		return fmt.Errorf("lock case: %w", err)
	}
	return nil
}

// CountTasksForTemplate returns how many tasks reference the template.
func (s *PgStore) CountTasksForTemplate(ctx context.Context, templateID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM tasks WHERE source_template_id = $1`,
		templateID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count template tasks: %w", err)
	}
	return count, nil
}

// CreateTemplate inserts a new workflow template.
func (s *PgStore) CreateTemplate(ctx context.Context, tpl model.WorkflowTemplate) error {
	tasksJSON, err := json.Marshal(tpl.Tasks)
	if err != nil {
		return fmt.Errorf("marshal template tasks: %w", err)
	}

	owner, _ := tpl.Scope.Owner()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO workflow_templates (
			id, benefit_type, name, description, tasks,
			active, is_global, tenant_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, NULLIF($8, ''), $9, $10
		)`,
		tpl.ID, tpl.BenefitType, tpl.Name, tpl.Description, tasksJSON,
		tpl.Active, tpl.Scope.IsGlobal(), owner, tpl.CreatedAt, tpl.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

// GetTemplate retrieves a template by ID, honoring tenant visibility.
func (s *PgStore) GetTemplate(ctx context.Context, tenantID string, superAdmin bool, templateID string) (model.WorkflowTemplate, error) {
	query := `SELECT id, benefit_type, name, description, tasks,
	                 active, is_global, tenant_id, created_at, updated_at
	          FROM workflow_templates
	          WHERE id = $1`
	args := []any{templateID}
	if !superAdmin {
		query += " AND (is_global OR tenant_id = $2)"
		args = append(args, tenantID)
	}

	row := s.pool.QueryRow(ctx, query, args...)
	tpl, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.WorkflowTemplate{}, model.NewNotFoundError(
			fmt.Sprintf("workflow template %q not found", templateID),
		)
	}
	if err != nil {
		return model.WorkflowTemplate{}, fmt.Errorf("query template: %w", err)
	}
	return tpl, nil
}

// UpdateTemplate persists an updated template.
func (s *PgStore) UpdateTemplate(ctx context.Context, tpl model.WorkflowTemplate) error {
	tasksJSON, err := json.Marshal(tpl.Tasks)
	if err != nil {
		return fmt.Errorf("marshal template tasks: %w", err)
	}

	owner, _ := tpl.Scope.Owner()
	tag, err := s.pool.Exec(ctx, `
		UPDATE workflow_templates SET
			benefit_type = $1,
			name = $2,
			description = $3,
			tasks = $4,
			active = $5,
			is_global = $6,
			tenant_id = NULLIF($7, ''),
			updated_at = $8
		WHERE id = $9`,
		tpl.BenefitType, tpl.Name, tpl.Description, tasksJSON,
		tpl.Active, tpl.Scope.IsGlobal(), owner, time.Now().UTC(),
		tpl.ID,
	)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("workflow template %q not found", tpl.ID))
	}
	return nil
}

// DeleteTemplate removes a template.
func (s *PgStore) DeleteTemplate(ctx context.Context, templateID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM workflow_templates WHERE id = $1`,
		templateID,
	)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewNotFoundError(fmt.Sprintf("workflow template %q not found", templateID))
	}
	return nil
}

// ListTemplates returns templates visible to the tenant.
func (s *PgStore) ListTemplates(ctx context.Context, tenantID string, superAdmin bool) ([]model.WorkflowTemplate, error) {
	query := `SELECT id, benefit_type, name, description, tasks,
	                 active, is_global, tenant_id, created_at, updated_at
	          FROM workflow_templates`
	args := []any{}
	if !superAdmin {
		query += " WHERE is_global OR tenant_id = $1"
		args = append(args, tenantID)
	}
	query += " ORDER BY benefit_type ASC, name ASC"

	return s.queryTemplates(ctx, query, args...)
}

// FindTemplates returns active templates for a benefit type visible to the
// tenant.
func (s *PgStore) FindTemplates(ctx context.Context, tenantID, benefitType string) ([]model.WorkflowTemplate, error) {
	query := `SELECT id, benefit_type, name, description, tasks,
	                 active, is_global, tenant_id, created_at, updated_at
	          FROM workflow_templates
	          WHERE active AND benefit_type = $1 AND (is_global OR tenant_id = $2)`
	return s.queryTemplates(ctx, query, benefitType, tenantID)
}

func (s *PgStore) queryTemplates(ctx context.Context, query string, args ...any) ([]model.WorkflowTemplate, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	templates := make([]model.WorkflowTemplate, 0)
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

func scanTask(row pgx.Row) (model.Task, error) {
	var t model.Task
	var due *time.Time
	var docsJSON []byte
	err := row.Scan(
		&t.ID, &t.CaseID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&due, &t.CompletedAt, &t.AssignedTo, &t.CreatedBy,
		&t.IsWorkflowTask, &t.SourceTemplateID, &t.OrderIndex,
		&docsJSON, &t.Notes, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return model.Task{}, err
	}
	if due != nil {
		t.DueDate = *due
	}
	if docsJSON != nil {
		if err := json.Unmarshal(docsJSON, &t.RequiredDocuments); err != nil {
			return model.Task{}, fmt.Errorf("unmarshal required documents: %w", err)
		}
	}
	return t, nil
}

func scanTemplate(row pgx.Row) (model.WorkflowTemplate, error) {
	var tpl model.WorkflowTemplate
	var tasksJSON []byte
	var isGlobal bool
	var tenantID *string
	err := row.Scan(
		&tpl.ID, &tpl.BenefitType, &tpl.Name, &tpl.Description, &tasksJSON,
		&tpl.Active, &isGlobal, &tenantID, &tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err != nil {
		return model.WorkflowTemplate{}, err
	}
	if err := json.Unmarshal(tasksJSON, &tpl.Tasks); err != nil {
		return model.WorkflowTemplate{}, fmt.Errorf("unmarshal template tasks: %w", err)
	}
	if isGlobal {
		tpl.Scope = model.GlobalScope()
	} else if tenantID != nil {
		tpl.Scope = model.TenantScope(*tenantID)
	}
	return tpl, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// isDuplicateCaseNumber reports whether err is a unique violation on the
// case_number constraint specifically. Any other 23505 (an id collision, say)
// must surface as-is instead of sending the allocator through its retry loop.
func isDuplicateCaseNumber(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" &&
		pgErr.ConstraintName == "cases_case_number_key"
}
