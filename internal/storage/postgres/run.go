package postgres

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/blake2b"
)

// ErrRunNotFound is returned when a run lookup yields no results.
var ErrRunNotFound = errors.New("combat run not found")

// ErrRunExists is returned when a run with the same ID was already recorded.
var ErrRunExists = errors.New("combat run already exists")

// Run is one finished combat session.
type Run struct {
	ID           uuid.UUID
	FarmingMode  string
	Mission      string
	ScriptDigest string
	Outcome      string
	Signal       string
	Turn         int
	Elapsed      time.Duration
	Retreated    bool
	Reason       string
	CreatedAt    time.Time
}

// RunRepository records and queries combat run history.
type RunRepository struct {
	db *pgxpool.Pool
}

// NewRunRepository creates a RunRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRunRepository(db *pgxpool.Pool) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, farming_mode, mission, script_digest, outcome, signal, turn, elapsed_ms, retreated, reason, created_at`

func scanRun(row pgx.Row) (Run, error) {
	var r Run
	var elapsedMS int64
	err := row.Scan(&r.ID, &r.FarmingMode, &r.Mission, &r.ScriptDigest, &r.Outcome, &r.Signal,
		&r.Turn, &elapsedMS, &r.Retreated, &r.Reason, &r.CreatedAt)
	r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return r, err
}

// Insert records a finished run.
//
// Precondition: run.ID must be set; run.Turn >= 1.
// Postcondition: Returns the stored Run with CreatedAt set, or ErrRunExists.
func (r *RunRepository) Insert(ctx context.Context, run Run) (Run, error) {
	stored, err := scanRun(r.db.QueryRow(ctx,
		`INSERT INTO combat_runs (id, farming_mode, mission, script_digest, outcome, signal, turn, elapsed_ms, retreated, reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+runColumns,
		run.ID, run.FarmingMode, run.Mission, run.ScriptDigest, run.Outcome, run.Signal,
		run.Turn, run.Elapsed.Milliseconds(), run.Retreated, run.Reason,
	))
	if err != nil {
		if isDuplicateKeyError(err) {
			return Run{}, ErrRunExists
		}
		return Run{}, fmt.Errorf("inserting combat run: %w", err)
	}
	return stored, nil
}

// Get retrieves a run by ID.
//
// Postcondition: Returns the Run or ErrRunNotFound.
func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (Run, error) {
	run, err := scanRun(r.db.QueryRow(ctx,
		`SELECT `+runColumns+` FROM combat_runs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, ErrRunNotFound
		}
		return Run{}, fmt.Errorf("querying combat run: %w", err)
	}
	return run, nil
}

// Recent returns up to limit runs, newest first. An empty mission matches
// every mission.
//
// Precondition: limit > 0.
func (r *RunRepository) Recent(ctx context.Context, mission string, limit int) ([]Run, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+runColumns+` FROM combat_runs
		 WHERE $1 = '' OR mission = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2`,
		mission, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent combat runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning combat run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating combat runs: %w", err)
	}
	return runs, nil
}

// ScriptDigest fingerprints a script as the hex BLAKE2b-256 of its lines
// joined by newlines. Callers pass canonical lines so formatting-only edits
// keep the same digest.
func ScriptDigest(lines []string) string {
	sum := blake2b.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
