package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the store needs.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists calls, conversation steps and order records in Postgres.
type Store struct {
	pool PgxPool
}

// NewStore initializes a store backed by pgx.
func NewStore(pool PgxPool) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

const callColumns = "id, call_sid, phone_number, language, status, created_at, updated_at"

// GetOrCreateCall returns the call for callSID, creating it on first contact.
// Duplicate webhook deliveries for the same call identifier reuse one row.
func (s *Store) GetOrCreateCall(ctx context.Context, callSID, phoneNumber, language string) (*Call, error) {
	call, err := s.getBySID(ctx, callSID)
	if err == nil {
		return call, nil
	}
	if !errors.Is(err, ErrCallNotFound) {
		return nil, err
	}
	query := `
		INSERT INTO calls (id, call_sid, phone_number, language, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (call_sid) DO UPDATE SET updated_at = now()
		RETURNING ` + callColumns
	row := s.pool.QueryRow(ctx, query, uuid.New(), callSID, phoneNumber, language, StatusProcessing)
	call, err = scanCall(row)
	if err != nil {
		return nil, fmt.Errorf("calls: insert call: %w", err)
	}
	return call, nil
}

func (s *Store) getBySID(ctx context.Context, callSID string) (*Call, error) {
	query := `SELECT ` + callColumns + ` FROM calls WHERE call_sid = $1`
	call, err := scanCall(s.pool.QueryRow(ctx, query, callSID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("calls: select by sid: %w", err)
	}
	return call, nil
}

// GetCall fetches a call by primary key.
func (s *Store) GetCall(ctx context.Context, id uuid.UUID) (*Call, error) {
	query := `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	call, err := scanCall(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("calls: select by id: %w", err)
	}
	return call, nil
}

// UpdateCallStatus mutates the lifecycle status of a call.
func (s *Store) UpdateCallStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE calls SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("calls: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCallNotFound
	}
	return nil
}

// AppendStep records one dialogue exchange. Steps are append-only and ordered
// by their insertion timestamp.
func (s *Store) AppendStep(ctx context.Context, callID uuid.UUID, step, userInput, botResponse string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversation_steps (id, call_id, step, user_input, bot_response)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), callID, step, userInput, botResponse)
	if err != nil {
		return fmt.Errorf("calls: append step: %w", err)
	}
	return nil
}

// LatestStep returns the most recent step entry with the given tag.
func (s *Store) LatestStep(ctx context.Context, callID uuid.UUID, step string) (*Step, error) {
	query := `
		SELECT id, call_id, step, user_input, bot_response, created_at
		FROM conversation_steps
		WHERE call_id = $1 AND step = $2
		ORDER BY created_at DESC
		LIMIT 1`
	var st Step
	err := s.pool.QueryRow(ctx, query, callID, step).Scan(
		&st.ID, &st.CallID, &st.Step, &st.UserInput, &st.BotResponse, &st.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStepNotFound
		}
		return nil, fmt.Errorf("calls: latest step: %w", err)
	}
	return &st, nil
}

// UpdateLatestStepInput replaces the user input of the most recent step with
// the given tag. Used when the transcription callback delivers the final text
// for an already-logged recording.
func (s *Store) UpdateLatestStepInput(ctx context.Context, callID uuid.UUID, step, userInput string) error {
	query := `
		UPDATE conversation_steps SET user_input = $3
		WHERE id = (
			SELECT id FROM conversation_steps
			WHERE call_id = $1 AND step = $2
			ORDER BY created_at DESC
			LIMIT 1
		)`
	tag, err := s.pool.Exec(ctx, query, callID, step, userInput)
	if err != nil {
		return fmt.Errorf("calls: update step input: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStepNotFound
	}
	return nil
}

// ListSteps returns all steps for a call in chronological order.
func (s *Store) ListSteps(ctx context.Context, callID uuid.UUID) ([]Step, error) {
	query := `
		SELECT id, call_id, step, user_input, bot_response, created_at
		FROM conversation_steps
		WHERE call_id = $1
		ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, callID)
	if err != nil {
		return nil, fmt.Errorf("calls: list steps: %w", err)
	}
	defer rows.Close()
	var steps []Step
	for rows.Next() {
		var st Step
		if err := rows.Scan(&st.ID, &st.CallID, &st.Step, &st.UserInput, &st.BotResponse, &st.Timestamp); err != nil {
			return nil, fmt.Errorf("calls: scan step: %w", err)
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

const orderColumns = "id, call_id, order_number, status, notes, promised_delivery_date, created_at, updated_at"

// InsertOrderRecord persists one lookup outcome.
func (s *Store) InsertOrderRecord(ctx context.Context, rec OrderRecord) (uuid.UUID, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO order_records (id, call_id, order_number, status, notes, promised_delivery_date)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.CallID, rec.OrderNumber, rec.Status, rec.Notes, rec.PromisedDeliveryDate)
	if err != nil {
		return uuid.Nil, fmt.Errorf("calls: insert order record: %w", err)
	}
	return rec.ID, nil
}

// LatestOrder returns the most recent order record for a call.
func (s *Store) LatestOrder(ctx context.Context, callID uuid.UUID) (*OrderRecord, error) {
	query := `SELECT ` + orderColumns + `
		FROM order_records WHERE call_id = $1
		ORDER BY created_at DESC LIMIT 1`
	rec, err := scanOrder(s.pool.QueryRow(ctx, query, callID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("calls: latest order: %w", err)
	}
	return rec, nil
}

// AppendOrderNotes appends text to the latest order record's notes, if any.
func (s *Store) AppendOrderNotes(ctx context.Context, callID uuid.UUID, text string) error {
	query := `
		UPDATE order_records
		SET notes = CASE WHEN notes = '' THEN $2 ELSE notes || E'\n' || $2 END,
		    updated_at = now()
		WHERE id = (
			SELECT id FROM order_records
			WHERE call_id = $1
			ORDER BY created_at DESC
			LIMIT 1
		)`
	tag, err := s.pool.Exec(ctx, query, callID, text)
	if err != nil {
		return fmt.Errorf("calls: append order notes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// UpdateOrderStatus mutates the status (and optionally notes) of an order record.
func (s *Store) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status, notes string) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if notes != "" {
		tag, err = s.pool.Exec(ctx,
			`UPDATE order_records SET status = $2, notes = $3, updated_at = now() WHERE id = $1`,
			id, status, notes)
	} else {
		tag, err = s.pool.Exec(ctx,
			`UPDATE order_records SET status = $2, updated_at = now() WHERE id = $1`,
			id, status)
	}
	if err != nil {
		return fmt.Errorf("calls: update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ListOrders returns all order records for a call, newest first.
func (s *Store) ListOrders(ctx context.Context, callID uuid.UUID) ([]OrderRecord, error) {
	query := `SELECT ` + orderColumns + `
		FROM order_records WHERE call_id = $1
		ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query, callID)
	if err != nil {
		return nil, fmt.Errorf("calls: list orders: %w", err)
	}
	defer rows.Close()
	var records []OrderRecord
	for rows.Next() {
		rec, err := scanOrderRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// ListFilter narrows ListCalls results. Zero values mean "no filter".
type ListFilter struct {
	Status   Status
	Language string
	Phone    string
	Since    time.Time
	Limit    int
	Offset   int
}

// ListCalls returns calls matching the filter, newest first.
func (s *Store) ListCalls(ctx context.Context, f ListFilter) ([]Call, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != "" {
		conds = append(conds, "status = "+arg(f.Status))
	}
	if f.Language != "" {
		conds = append(conds, "language = "+arg(f.Language))
	}
	if f.Phone != "" {
		conds = append(conds, "phone_number LIKE "+arg("%"+f.Phone+"%"))
	}
	if !f.Since.IsZero() {
		conds = append(conds, "created_at >= "+arg(f.Since))
	}
	query := `SELECT ` + callColumns + ` FROM calls`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	query += " LIMIT " + arg(f.Limit)
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("calls: list calls: %w", err)
	}
	defer rows.Close()
	var result []Call
	for rows.Next() {
		var c Call
		if err := rows.Scan(&c.ID, &c.CallSID, &c.PhoneNumber, &c.Language, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("calls: scan call: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// CountByStatus aggregates call counts for the audit API.
func (s *Store) CountByStatus(ctx context.Context) (*Stats, error) {
	query := `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'completed'),
			count(*) FILTER (WHERE status = 'processing'),
			count(*) FILTER (WHERE status = 'problem'),
			count(*) FILTER (WHERE status = 'handled')
		FROM calls`
	var st Stats
	if err := s.pool.QueryRow(ctx, query).Scan(
		&st.Total, &st.Completed, &st.Processing, &st.Problem, &st.Handled); err != nil {
		return nil, fmt.Errorf("calls: count by status: %w", err)
	}
	return &st, nil
}

func scanCall(row pgx.Row) (*Call, error) {
	var c Call
	if err := row.Scan(&c.ID, &c.CallSID, &c.PhoneNumber, &c.Language, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanOrder(row pgx.Row) (*OrderRecord, error) {
	var rec OrderRecord
	if err := row.Scan(&rec.ID, &rec.CallID, &rec.OrderNumber, &rec.Status, &rec.Notes,
		&rec.PromisedDeliveryDate, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanOrderRows(rows pgx.Rows) (*OrderRecord, error) {
	rec, err := scanOrder(rows)
	if err != nil {
		return nil, fmt.Errorf("calls: scan order record: %w", err)
	}
	return rec, nil
}
