package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/fleet-workorders/internal/domain"
)

var workOrderColumnList = []string{
	"id", "number", "status", "vehicle_id", "vehicle_display", "requester_id", "requester_display",
	"mechanic_id", "mechanic_display", "priority", "reported_defects", "parts_services", "notes",
	"execution_order", "history", "version", "created_at", "updated_at",
}

var workOrderColumns = strings.Join(workOrderColumnList, ", ")

// searchColumns are matched case-insensitively by WorkOrderFilter.SearchTerm.
var searchColumns = []string{"number", "vehicle_display", "requester_display", "mechanic_display", "status"}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Querier is the part of *pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore persists work orders in the work_orders table.
type PostgresStore struct {
	db Querier
}

// NewPostgresStore instantiates the pgx-backed store.
func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// workOrderRecord is a scanned work_orders row.
type workOrderRecord struct {
	ID               string    `db:"id"`
	Number           string    `db:"number"`
	Status           string    `db:"status"`
	VehicleID        string    `db:"vehicle_id"`
	VehicleDisplay   string    `db:"vehicle_display"`
	RequesterID      string    `db:"requester_id"`
	RequesterDisplay string    `db:"requester_display"`
	MechanicID       string    `db:"mechanic_id"`
	MechanicDisplay  string    `db:"mechanic_display"`
	Priority         string    `db:"priority"`
	ReportedDefects  string    `db:"reported_defects"`
	PartsServices    string    `db:"parts_services"`
	Notes            string    `db:"notes"`
	ExecutionOrder   *int      `db:"execution_order"`
	History          []byte    `db:"history"`
	Version          int64     `db:"version"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r workOrderRecord) toDomain() (*domain.WorkOrder, error) {
	history, err := decodeHistory(r.History)
	if err != nil {
		return nil, fmt.Errorf("work order %s: %w", r.ID, err)
	}
	return &domain.WorkOrder{
		ID:              r.ID,
		Number:          r.Number,
		Status:          domain.WorkOrderStatus(r.Status),
		Vehicle:         domain.SubjectRef{ID: r.VehicleID, Display: r.VehicleDisplay},
		Requester:       domain.SubjectRef{ID: r.RequesterID, Display: r.RequesterDisplay},
		Mechanic:        domain.SubjectRef{ID: r.MechanicID, Display: r.MechanicDisplay},
		Priority:        domain.Priority(r.Priority),
		ReportedDefects: r.ReportedDefects,
		PartsServices:   r.PartsServices,
		Notes:           r.Notes,
		ExecutionOrder:  r.ExecutionOrder,
		History:         history,
		Version:         r.Version,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}, nil
}

func (s *PostgresStore) NextSequence(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRow(ctx, `SELECT nextval('work_order_number_seq')`).Scan(&seq); err != nil {
		return 0, mapError(err, "next sequence", "work_order_number_seq")
	}
	return seq, nil
}

func (s *PostgresStore) Insert(ctx context.Context, wo *domain.WorkOrder) error {
	history, err := encodeHistory(wo.History)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO work_orders (id, number, status, vehicle_id, vehicle_display, requester_id, requester_display,
            mechanic_id, mechanic_display, priority, reported_defects, parts_services, notes,
            execution_order, history, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`
	_, err = s.db.Exec(ctx, query,
		wo.ID,
		wo.Number,
		string(wo.Status),
		wo.Vehicle.ID,
		wo.Vehicle.Display,
		wo.Requester.ID,
		wo.Requester.Display,
		wo.Mechanic.ID,
		wo.Mechanic.Display,
		string(wo.Priority),
		wo.ReportedDefects,
		wo.PartsServices,
		wo.Notes,
		wo.ExecutionOrder,
		string(history),
		wo.Version,
		wo.CreatedAt,
		wo.UpdatedAt,
	)
	return mapError(err, "insert work order", wo.ID)
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*domain.WorkOrder, error) {
	var rec workOrderRecord
	query := `SELECT ` + workOrderColumns + ` FROM work_orders WHERE id=$1`
	if err := pgxscan.Get(ctx, s.db, &rec, query, id); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("get work order %s: %w", id, ErrNotFound)
		}
		return nil, mapError(err, "get work order", id)
	}
	return rec.toDomain()
}

func (s *PostgresStore) Update(ctx context.Context, wo *domain.WorkOrder, expectedVersion int64) error {
	history, err := encodeHistory(wo.History)
	if err != nil {
		return err
	}
	const query = `
        UPDATE work_orders SET status=$1, vehicle_id=$2, vehicle_display=$3, requester_id=$4, requester_display=$5,
            mechanic_id=$6, mechanic_display=$7, priority=$8, reported_defects=$9, parts_services=$10,
            notes=$11, execution_order=$12, history=$13, updated_at=$14, version=version+1
        WHERE id=$15 AND version=$16
        RETURNING version`
	var version int64
	err = s.db.QueryRow(ctx, query,
		string(wo.Status),
		wo.Vehicle.ID,
		wo.Vehicle.Display,
		wo.Requester.ID,
		wo.Requester.Display,
		wo.Mechanic.ID,
		wo.Mechanic.Display,
		string(wo.Priority),
		wo.ReportedDefects,
		wo.PartsServices,
		wo.Notes,
		wo.ExecutionOrder,
		string(history),
		wo.UpdatedAt,
		wo.ID,
		expectedVersion,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		exists, existsErr := s.exists(ctx, wo.ID)
		if existsErr != nil {
			return existsErr
		}
		if exists {
			return fmt.Errorf("update work order %s at version %d: %w", wo.ID, expectedVersion, ErrVersionConflict)
		}
		return fmt.Errorf("update work order %s: %w", wo.ID, ErrNotFound)
	}
	if err != nil {
		return mapError(err, "update work order", wo.ID)
	}
	wo.Version = version
	return nil
}

func (s *PostgresStore) exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM work_orders WHERE id=$1)`, id).Scan(&ok); err != nil {
		return false, mapError(err, "probe work order", id)
	}
	return ok, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	cmd, err := s.db.Exec(ctx, `DELETE FROM work_orders WHERE id=$1`, id)
	if err != nil {
		return false, mapError(err, "delete work order", id)
	}
	return cmd.RowsAffected() > 0, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) List(ctx context.Context, filter WorkOrderFilter) ([]domain.WorkOrder, error) {
	query, args, err := listQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	var recs []workOrderRecord
	if err := pgxscan.Select(ctx, s.db, &recs, query, args...); err != nil {
		return nil, mapError(err, "list work orders", "*")
	}
	result := make([]domain.WorkOrder, 0, len(recs))
	for _, rec := range recs {
		wo, err := rec.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, *wo)
	}
	return result, nil
}

func listQuery(filter WorkOrderFilter) (string, []any, error) {
	q := psql.Select(workOrderColumnList...).
		From(WorkOrdersTable).
		OrderBy(orderClause(filter.OrderBy))

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		q = q.Where(squirrel.Eq{"status": statuses})
	}
	if len(filter.Priorities) > 0 {
		priorities := make([]string, 0, len(filter.Priorities))
		for _, pr := range filter.Priorities {
			priorities = append(priorities, string(pr))
		}
		q = q.Where(squirrel.Eq{"priority": priorities})
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(*filter.SearchTerm))) + "%"
		match := squirrel.Or{}
		for _, col := range searchColumns {
			match = append(match, squirrel.Expr("LOWER("+col+`) LIKE ? ESCAPE '\'`, pattern))
		}
		q = q.Where(match)
	}
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		q = q.Limit(uint64(filter.Limit)).Offset(uint64(offset))
	}
	return q.ToSql()
}

func orderClause(order WorkOrderOrder) string {
	switch order {
	case OrderExecutionAsc:
		return "execution_order ASC NULLS LAST, created_at ASC"
	case OrderCreatedAtDesc:
		return "created_at DESC"
	default:
		return "updated_at DESC, id ASC"
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
