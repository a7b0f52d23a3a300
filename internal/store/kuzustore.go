//go:build cgo

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	kuzu "github.com/kuzudb/go-kuzu"

	"github.com/dusk-indust/agentforge/internal/artifact"
)

// KuzuStore implements the Store interface using KuzuDB as the durable
// backend. It requires CGO because the go-kuzu driver wraps KuzuDB's C
// library.
type KuzuStore struct {
	db       *kuzu.Database
	conn     *kuzu.Connection
	stageIDs []string
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
// State does not survive the process; use NewKuzuFileStore for durability.
func NewKuzuStore(stageIDs []string) (*KuzuStore, error) {
	return openKuzu(":memory:", stageIDs)
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given path. KuzuDB creates the leaf directory itself for new databases.
func NewKuzuFileStore(dbPath string, stageIDs []string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath, stageIDs)
}

func openKuzu(path string, stageIDs []string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{
		db:       db,
		conn:     conn,
		stageIDs: append([]string(nil), stageIDs...),
	}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// StageIDs returns the recorded stage ids in pipeline order.
func (s *KuzuStore) StageIDs() []string {
	return append([]string(nil), s.stageIDs...)
}

// ---------- Schema setup ----------

// ddlStatements defines the Cypher DDL executed by Init.
// Node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Project(
		id STRING,
		name STRING,
		status STRING,
		current_stage INT64,
		created_at INT64,
		updated_at INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS StageStatus(
		id STRING,
		project_id STRING,
		stage STRING,
		stage_index INT64,
		completed BOOLEAN,
		error STRING,
		artifacts STRING,
		updated_at INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS HAS_STAGE(FROM Project TO StageStatus)`,
}

// Init creates the node and relationship tables if they do not exist.
func (s *KuzuStore) Init(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// stageRowID builds the composite primary key for a StageStatus row.
func stageRowID(projectID, stage string) string {
	return projectID + "/" + stage
}

// ---------- Store contract ----------

// CreateProject registers a project with one StageStatus row per sequenced
// stage. Idempotent: an existing id returns the stored project unchanged.
func (s *KuzuStore) CreateProject(ctx context.Context, id, name string) (*Project, error) {
	existing, err := s.GetProject(ctx, id)
	if err == nil {
		return existing, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	now := time.Now()
	usec := now.UnixMicro()

	err = s.exec(
		`CREATE (p:Project {
			id: $id, name: $name, status: $status,
			current_stage: $cur, created_at: $at, updated_at: $at
		})`,
		map[string]any{
			"id":     id,
			"name":   name,
			"status": string(StatusPending),
			"cur":    int64(0),
			"at":     usec,
		},
	)
	if err != nil {
		return nil, err
	}

	for i, stage := range s.stageIDs {
		err = s.exec(
			`CREATE (ss:StageStatus {
				id: $sid, project_id: $pid, stage: $stage, stage_index: $idx,
				completed: false, error: "", artifacts: "", updated_at: $at
			})`,
			map[string]any{
				"sid":   stageRowID(id, stage),
				"pid":   id,
				"stage": stage,
				"idx":   int64(i),
				"at":    usec,
			},
		)
		if err != nil {
			return nil, err
		}
		err = s.exec(
			`MATCH (p:Project {id: $pid}), (ss:StageStatus {id: $sid})
			 CREATE (p)-[:HAS_STAGE]->(ss)`,
			map[string]any{"pid": id, "sid": stageRowID(id, stage)},
		)
		if err != nil {
			return nil, err
		}
	}

	return s.GetProject(ctx, id)
}

// GetProject returns the project and its full stage list, or ErrNotFound.
func (s *KuzuStore) GetProject(_ context.Context, id string) (*Project, error) {
	rows, err := s.query(
		`MATCH (p:Project {id: $id})
		 RETURN p.id, p.name, p.status, p.current_stage, p.created_at, p.updated_at`,
		map[string]any{"id": id},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	p := rowToProject(rows[0])

	stageRows, err := s.query(
		`MATCH (ss:StageStatus {project_id: $pid})
		 RETURN ss.stage, ss.completed, ss.error, ss.artifacts, ss.updated_at
		 ORDER BY ss.stage_index`,
		map[string]any{"pid": id},
	)
	if err != nil {
		return nil, err
	}
	for _, r := range stageRows {
		ss, err := rowToStageStatus(r)
		if err != nil {
			return nil, err
		}
		p.Stages = append(p.Stages, ss)
	}

	return p, nil
}

// ListProjects returns all projects in creation order.
func (s *KuzuStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.query(
		`MATCH (p:Project) RETURN p.id ORDER BY p.created_at, p.id`, nil,
	)
	if err != nil {
		return nil, err
	}

	out := make([]Project, 0, len(rows))
	for _, r := range rows {
		p, err := s.GetProject(ctx, toString(r[0]))
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// SetProjectStatus updates the overall status and current stage index.
func (s *KuzuStore) SetProjectStatus(_ context.Context, id string, status ProjectStatus, currentStage int) error {
	rows, err := s.query(
		`MATCH (p:Project {id: $id})
		 SET p.status = $status, p.current_stage = $cur, p.updated_at = $at
		 RETURN p.id`,
		map[string]any{
			"id":     id,
			"status": string(status),
			"cur":    int64(currentStage),
			"at":     time.Now().UnixMicro(),
		},
	)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

// GetStageStatus returns one stage's status, or an UnknownStageError for a
// stage id outside the sequenced set.
func (s *KuzuStore) GetStageStatus(_ context.Context, id, stage string) (*StageStatus, error) {
	if !s.knownStage(stage) {
		return nil, &UnknownStageError{Stage: stage}
	}

	rows, err := s.query(
		`MATCH (ss:StageStatus {id: $sid})
		 RETURN ss.stage, ss.completed, ss.error, ss.artifacts, ss.updated_at`,
		map[string]any{"sid": stageRowID(id, stage)},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		if _, err := s.GetProject(context.Background(), id); err != nil {
			return nil, err
		}
		// Project exists but its status row is missing: the persisted state
		// is corrupt and must surface, not be skipped.
		return nil, &UnknownStageError{Stage: stage}
	}

	ss, err := rowToStageStatus(rows[0])
	if err != nil {
		return nil, err
	}
	return &ss, nil
}

// MarkStageCompleted records a completion with the produced artifact refs.
func (s *KuzuStore) MarkStageCompleted(ctx context.Context, id, stage string, artifacts []artifact.Ref) error {
	encoded, err := json.Marshal(artifacts)
	if err != nil {
		return fmt.Errorf("kuzu: encode artifacts: %w", err)
	}
	return s.updateStage(ctx, id, stage, map[string]any{
		"completed": true,
		"error":     "",
		"artifacts": string(encoded),
	})
}

// MarkStageFailed records a stage failure with its cause.
func (s *KuzuStore) MarkStageFailed(ctx context.Context, id, stage, cause string) error {
	return s.updateStage(ctx, id, stage, map[string]any{
		"completed": false,
		"error":     cause,
	})
}

// updateStage applies field updates to one StageStatus row, enforcing the
// loud-failure contract for unknown stage ids.
func (s *KuzuStore) updateStage(ctx context.Context, id, stage string, fields map[string]any) error {
	if !s.knownStage(stage) {
		return &UnknownStageError{Stage: stage}
	}

	params := map[string]any{
		"sid": stageRowID(id, stage),
		"at":  time.Now().UnixMicro(),
	}
	set := "SET ss.updated_at = $at"
	for k, v := range fields {
		params[k] = v
		set += fmt.Sprintf(", ss.%s = $%s", cypherField(k), k)
	}

	rows, err := s.query(
		`MATCH (ss:StageStatus {id: $sid}) `+set+` RETURN ss.id`,
		params,
	)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		if _, err := s.GetProject(ctx, id); err != nil {
			return err
		}
		return &UnknownStageError{Stage: stage}
	}

	return s.exec(
		`MATCH (p:Project {id: $id}) SET p.updated_at = $at`,
		map[string]any{"id": id, "at": params["at"]},
	)
}

// cypherField maps update parameter names onto StageStatus column names.
// The two sets coincide today; the indirection keeps the mapping explicit.
func cypherField(param string) string {
	return param
}

func (s *KuzuStore) knownStage(stage string) bool {
	for _, id := range s.stageIDs {
		if id == stage {
			return true
		}
	}
	return false
}

// ---------- Row decoding ----------

func rowToProject(r []any) *Project {
	return &Project{
		ID:           toString(r[0]),
		Name:         toString(r[1]),
		Status:       ProjectStatus(toString(r[2])),
		CurrentStage: int(toInt(r[3])),
		CreatedAt:    time.UnixMicro(toInt(r[4])),
		UpdatedAt:    time.UnixMicro(toInt(r[5])),
	}
}

func rowToStageStatus(r []any) (StageStatus, error) {
	ss := StageStatus{
		Stage:     toString(r[0]),
		Completed: toBool(r[1]),
		Error:     toString(r[2]),
		UpdatedAt: time.UnixMicro(toInt(r[4])),
	}
	if encoded := toString(r[3]); encoded != "" {
		if err := json.Unmarshal([]byte(encoded), &ss.Artifacts); err != nil {
			return ss, fmt.Errorf("kuzu: decode artifacts for stage %s: %w", ss.Stage, err)
		}
	}
	return ss, nil
}

// ---------- Query helpers ----------

// exec runs a parameterized Cypher statement and discards the result.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// toString converts a Kuzu value to a string, tolerating nil.
func toString(v any) string {
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// toInt converts a Kuzu numeric value to int64, tolerating nil.
func toInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// toBool converts a Kuzu value to bool, tolerating nil.
func toBool(v any) bool {
	b, _ := v.(bool)
	return b
}
