package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/example/hospital-availability/internal/apperrors"
	"github.com/example/hospital-availability/internal/models"
)

const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
	pqCheckViolation      = "23514"
)

var (
	hospitalColumns  = []any{"id", "name", "bio", "rating", "photo", "user_id", "created_at", "updated_at"}
	bedColumns       = []any{"id", "bed_number", "is_available", "hospital_id", "bed_type", "created_at"}
	ambulanceColumns = []any{"id", "ambulance_number", "is_available", "hospital_id", "status", "location_lat", "location_lon", "location_updated_at", "created_at"}
	bookingColumns   = []any{"id", "resource_type", "resource_id", "hospital_id", "user_id", "price", "scheduled_for", "created_at"}
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type PostgresStore struct {
	db      *sql.DB
	dialect goqu.DialectWrapper
}

// NewPostgresStore opens the pool and pings it within ctx so an unreachable
// database is reported at startup.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgresStoreFromDB(db), nil
}

// NewPostgresStoreFromDB wraps an already opened pool.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, dialect: goqu.Dialect("postgres")}
}

func (p *PostgresStore) DB() *sql.DB { return p.db }

func (p *PostgresStore) Mode() Mode { return ModePersistent }

func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *PostgresStore) Close() error { return p.db.Close() }

// ---- hospitals ----

func (p *PostgresStore) GetHospital(ctx context.Context, id string) (*models.Hospital, error) {
	return p.getHospital(ctx, p.db, goqu.Ex{"id": id}, false)
}

func (p *PostgresStore) FindHospitalByName(ctx context.Context, name string) (*models.Hospital, error) {
	cond := goqu.Func("lower", goqu.C("name")).Eq(strings.ToLower(strings.TrimSpace(name)))
	h, err := p.getHospital(ctx, p.db, cond, false)
	if apperrors.Is(err, apperrors.KindNotFound) {
		return nil, apperrors.NotFound("hospital %q not found", name)
	}
	return h, err
}

func (p *PostgresStore) FindHospitalByUser(ctx context.Context, userID string) (*models.Hospital, error) {
	h, err := p.getHospital(ctx, p.db, goqu.Ex{"user_id": userID}, false)
	if apperrors.Is(err, apperrors.KindNotFound) {
		return nil, apperrors.NotFound("no hospital registered for this account")
	}
	return h, err
}

func (p *PostgresStore) getHospital(ctx context.Context, q querier, cond exp.Expression, lock bool) (*models.Hospital, error) {
	ds := p.dialect.From("hospitals").Select(hospitalColumns...).Where(cond).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).Limit(1)
	if lock {
		ds = ds.ForUpdate(exp.Wait)
	}
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.Internal("failed to build hospital query", err)
	}
	h, err := scanHospital(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("hospital not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get hospital", err)
	}
	return h, nil
}

func (p *PostgresStore) ListHospitals(ctx context.Context, page Page) ([]models.Hospital, error) {
	ds := p.dialect.From("hospitals").Select(hospitalColumns...).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc())
	if page.Limit > 0 {
		ds = ds.Limit(uint(page.Limit))
	}
	if page.Offset > 0 {
		ds = ds.Offset(uint(page.Offset))
	}
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.Internal("failed to build hospital list query", err)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Internal("failed to list hospitals", err)
	}
	defer rows.Close()
	out := make([]models.Hospital, 0)
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, apperrors.Internal("failed to scan hospital", err)
		}
		out = append(out, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to list hospitals", err)
	}
	return out, nil
}

func (p *PostgresStore) CreateHospital(ctx context.Context, h *models.Hospital) error {
	if err := validateHospital(h); err != nil {
		return err
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	h.CreatedAt = time.Now().UTC()
	h.UpdatedAt = h.CreatedAt
	query, args, err := p.dialect.Insert("hospitals").Rows(goqu.Record{
		"id":         h.ID,
		"name":       h.Name,
		"bio":        nullString(h.Bio),
		"rating":     nullFloat(h.Rating),
		"photo":      nullString(h.Photo),
		"user_id":    nullString(h.UserID),
		"created_at": h.CreatedAt,
		"updated_at": h.UpdatedAt,
	}).Prepared(true).ToSQL()
	if err != nil {
		return apperrors.Internal("failed to build hospital insert", err)
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return translateWriteError("hospital", err)
	}
	return nil
}

func (p *PostgresStore) UpdateHospital(ctx context.Context, id string, patch models.HospitalPatch) (*models.Hospital, error) {
	if err := validateRating(patch.Rating); err != nil {
		return nil, err
	}
	var out *models.Hospital
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		h, err := p.getHospital(ctx, tx, goqu.Ex{"id": id}, true)
		if err != nil {
			if apperrors.Is(err, apperrors.KindNotFound) {
				return apperrors.NotFound("hospital %s not found", id)
			}
			return err
		}
		applyHospitalPatch(h, patch)
		if err := validateHospital(h); err != nil {
			return err
		}
		h.UpdatedAt = time.Now().UTC()
		query, args, err := p.dialect.Update("hospitals").Set(goqu.Record{
			"name":       h.Name,
			"bio":        nullString(h.Bio),
			"rating":     nullFloat(h.Rating),
			"photo":      nullString(h.Photo),
			"updated_at": h.UpdatedAt,
		}).Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
		if err != nil {
			return apperrors.Internal("failed to build hospital update", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return translateWriteError("hospital", err)
		}
		out = h
		return nil
	})
	return out, err
}

func (p *PostgresStore) DeleteHospital(ctx context.Context, id string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := p.getHospital(ctx, tx, goqu.Ex{"id": id}, true); err != nil {
			if apperrors.Is(err, apperrors.KindNotFound) {
				return apperrors.NotFound("hospital %s not found", id)
			}
			return err
		}
		for _, child := range []struct{ table, what string }{
			{"beds", "beds"},
			{"ambulances", "ambulances"},
			{"bookings", "booking history"},
		} {
			n, err := p.count(ctx, tx, child.table, goqu.Ex{"hospital_id": id})
			if err != nil {
				return err
			}
			if n > 0 {
				return apperrors.Conflict("hospital %s still has %s", id, child.what)
			}
		}
		return p.deleteByID(ctx, tx, "hospitals", "hospital", id)
	})
}

// ---- beds ----

func (p *PostgresStore) GetBed(ctx context.Context, id string) (*models.Bed, error) {
	return p.getBed(ctx, p.db, id, false)
}

func (p *PostgresStore) getBed(ctx context.Context, q querier, id string, lock bool) (*models.Bed, error) {
	ds := p.dialect.From("beds").Select(bedColumns...).Where(goqu.Ex{"id": id})
	if lock {
		ds = ds.ForUpdate(exp.Wait)
	}
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.Internal("failed to build bed query", err)
	}
	b, err := scanBed(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("bed %s not found", id)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get bed", err)
	}
	return b, nil
}

func (p *PostgresStore) ListBeds(ctx context.Context, f BedFilter) ([]models.Bed, error) {
	ex := goqu.Ex{}
	if f.HospitalID != "" {
		ex["hospital_id"] = f.HospitalID
	}
	if f.Available != nil {
		ex["is_available"] = *f.Available
	}
	query, args, err := p.dialect.From("beds").Select(bedColumns...).Where(ex).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.Internal("failed to build bed list query", err)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Internal("failed to list beds", err)
	}
	defer rows.Close()
	out := make([]models.Bed, 0)
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, apperrors.Internal("failed to scan bed", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to list beds", err)
	}
	return out, nil
}

func (p *PostgresStore) CreateBed(ctx context.Context, b *models.Bed) error {
	if err := validateBed(b); err != nil {
		return err
	}
	return p.withTx(ctx, func(tx *sql.Tx) error {
		if err := p.requireHospital(ctx, tx, b.HospitalID); err != nil {
			return err
		}
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		b.CreatedAt = time.Now().UTC()
		query, args, err := p.dialect.Insert("beds").Rows(goqu.Record{
			"id":           b.ID,
			"bed_number":   b.BedNumber,
			"is_available": b.IsAvailable,
			"hospital_id":  b.HospitalID,
			"bed_type":     nullString(b.BedType),
			"created_at":   b.CreatedAt,
		}).Prepared(true).ToSQL()
		if err != nil {
			return apperrors.Internal("failed to build bed insert", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return translateWriteError("bed", err)
		}
		return nil
	})
}

func (p *PostgresStore) SetBedAvailability(ctx context.Context, id string, available bool) (*models.Bed, error) {
	query, args, err := p.dialect.Update("beds").Set(goqu.Record{"is_available": available}).
		Where(goqu.Ex{"id": id}).Returning(bedColumns...).Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.Internal("failed to build bed update", err)
	}
	b, err := scanBed(p.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("bed %s not found", id)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to update bed", err)
	}
	return b, nil
}

func (p *PostgresStore) DeleteBed(ctx context.Context, id string) error {
	return p.deleteByID(ctx, p.db, "beds", "bed", id)
}

// ---- ambulances ----

func (p *PostgresStore) GetAmbulance(ctx context.Context, id string) (*models.Ambulance, error) {
	return p.getAmbulance(ctx, p.db, id, false)
}

func (p *PostgresStore) getAmbulance(ctx context.Context, q querier, id string, lock bool) (*models.Ambulance, error) {
	ds := p.dialect.From("ambulances").Select(ambulanceColumns...).Where(goqu.Ex{"id": id})
	if lock {
		ds = ds.ForUpdate(exp.Wait)
	}
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.Internal("failed to build ambulance query", err)
	}
	a, err := scanAmbulance(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("ambulance %s not found", id)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get ambulance", err)
	}
	return a, nil
}

func (p *PostgresStore) ListAmbulances(ctx context.Context, f AmbulanceFilter) ([]models.Ambulance, error) {
	ex := goqu.Ex{}
	if f.HospitalID != "" {
		ex["hospital_id"] = f.HospitalID
	}
	if f.Available != nil {
		ex["is_available"] = *f.Available
	}
	query, args, err := p.dialect.From("ambulances").Select(ambulanceColumns...).Where(ex).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.Internal("failed to build ambulance list query", err)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Internal("failed to list ambulances", err)
	}
	defer rows.Close()
	out := make([]models.Ambulance, 0)
	for rows.Next() {
		a, err := scanAmbulance(rows)
		if err != nil {
			return nil, apperrors.Internal("failed to scan ambulance", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to list ambulances", err)
	}
	return out, nil
}

func (p *PostgresStore) CreateAmbulance(ctx context.Context, a *models.Ambulance) error {
	if err := validateAmbulance(a); err != nil {
		return err
	}
	return p.withTx(ctx, func(tx *sql.Tx) error {
		if err := p.requireHospital(ctx, tx, a.HospitalID); err != nil {
			return err
		}
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.CreatedAt = time.Now().UTC()
		rec := goqu.Record{
			"id":               a.ID,
			"ambulance_number": a.AmbulanceNumber,
			"is_available":     a.IsAvailable,
			"hospital_id":      a.HospitalID,
			"status":           nullString(string(a.Status)),
			"created_at":       a.CreatedAt,
		}
		if c, ok := a.CurrentLocation.Coord(); ok {
			rec["location_lat"] = c.Lat
			rec["location_lon"] = c.Lon
			rec["location_updated_at"] = a.CreatedAt
			a.LocationUpdatedAt = &a.CreatedAt
		}
		query, args, err := p.dialect.Insert("ambulances").Rows(rec).Prepared(true).ToSQL()
		if err != nil {
			return apperrors.Internal("failed to build ambulance insert", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return translateWriteError("ambulance", err)
		}
		return nil
	})
}

// SetAmbulanceAvailability frees or holds an ambulance. Freeing it also
// clears a dispatched or busy status.
func (p *PostgresStore) SetAmbulanceAvailability(ctx context.Context, id string, available bool) (*models.Ambulance, error) {
	rec := goqu.Record{"is_available": available}
	if available {
		rec["status"] = string(models.StatusAvailable)
	}
	return p.updateAmbulance(ctx, id, rec)
}

func (p *PostgresStore) UpdateAmbulanceLocation(ctx context.Context, id string, u models.LocationUpdate) (*models.Ambulance, error) {
	at := u.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	rec := goqu.Record{
		"location_lat":        u.Loc.Lat,
		"location_lon":        u.Loc.Lon,
		"location_updated_at": at,
	}
	if u.Status != "" {
		rec["status"] = string(u.Status)
	}
	return p.updateAmbulance(ctx, id, rec)
}

func (p *PostgresStore) updateAmbulance(ctx context.Context, id string, rec goqu.Record) (*models.Ambulance, error) {
	query, args, err := p.dialect.Update("ambulances").Set(rec).
		Where(goqu.Ex{"id": id}).Returning(ambulanceColumns...).Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.Internal("failed to build ambulance update", err)
	}
	a, err := scanAmbulance(p.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("ambulance %s not found", id)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to update ambulance", err)
	}
	return a, nil
}

func (p *PostgresStore) DeleteAmbulance(ctx context.Context, id string) error {
	return p.deleteByID(ctx, p.db, "ambulances", "ambulance", id)
}

// ---- bookings ----

func (p *PostgresStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query, args, err := p.dialect.From("bookings").Select(bookingColumns...).
		Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.Internal("failed to build booking query", err)
	}
	b, err := scanBooking(p.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("booking %s not found", id)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to get booking", err)
	}
	return b, nil
}

func (p *PostgresStore) ListBookings(ctx context.Context, f BookingFilter) ([]models.Booking, error) {
	ex := goqu.Ex{}
	if f.UserID != "" {
		ex["user_id"] = f.UserID
	}
	if f.HospitalID != "" {
		ex["hospital_id"] = f.HospitalID
	}
	query, args, err := p.dialect.From("bookings").Select(bookingColumns...).Where(ex).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.Internal("failed to build booking list query", err)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Internal("failed to list bookings", err)
	}
	defer rows.Close()
	out := make([]models.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, apperrors.Internal("failed to scan booking", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to list bookings", err)
	}
	return out, nil
}

func (p *PostgresStore) ReserveBed(ctx context.Context, bk *models.Booking) (*models.Bed, error) {
	bk.ResourceType = models.ResourceBed
	if err := validateBooking(bk); err != nil {
		return nil, err
	}
	var out *models.Bed
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		bed, err := p.getBed(ctx, tx, bk.ResourceID, true)
		if err != nil {
			if apperrors.Is(err, apperrors.KindNotFound) {
				return apperrors.Validation("bed %s does not exist", bk.ResourceID)
			}
			return err
		}
		if !bed.IsAvailable {
			return apperrors.Validation("bed %s is not available", bed.BedNumber)
		}
		query, args, err := p.dialect.Update("beds").Set(goqu.Record{"is_available": false}).
			Where(goqu.Ex{"id": bed.ID}).Prepared(true).ToSQL()
		if err != nil {
			return apperrors.Internal("failed to build bed update", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return apperrors.Internal("failed to reserve bed", err)
		}
		bed.IsAvailable = false
		bk.HospitalID = bed.HospitalID
		if err := p.insertBooking(ctx, tx, bk); err != nil {
			return err
		}
		out = bed
		return nil
	})
	return out, err
}

func (p *PostgresStore) ReserveAmbulance(ctx context.Context, bk *models.Booking, status models.AmbulanceStatus) (*models.Ambulance, error) {
	bk.ResourceType = models.ResourceAmbulance
	if err := validateBooking(bk); err != nil {
		return nil, err
	}
	var out *models.Ambulance
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		amb, err := p.getAmbulance(ctx, tx, bk.ResourceID, true)
		if err != nil {
			if apperrors.Is(err, apperrors.KindNotFound) {
				return apperrors.Validation("ambulance %s does not exist", bk.ResourceID)
			}
			return err
		}
		if !amb.IsAvailable {
			return apperrors.Validation("ambulance %s is not available", amb.AmbulanceNumber)
		}
		rec := goqu.Record{"is_available": false}
		if status != "" {
			rec["status"] = string(status)
			amb.Status = status
		}
		query, args, err := p.dialect.Update("ambulances").Set(rec).
			Where(goqu.Ex{"id": amb.ID}).Prepared(true).ToSQL()
		if err != nil {
			return apperrors.Internal("failed to build ambulance update", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return apperrors.Internal("failed to reserve ambulance", err)
		}
		amb.IsAvailable = false
		bk.HospitalID = amb.HospitalID
		if err := p.insertBooking(ctx, tx, bk); err != nil {
			return err
		}
		out = amb
		return nil
	})
	return out, err
}

func (p *PostgresStore) insertBooking(ctx context.Context, q querier, bk *models.Booking) error {
	if bk.ID == "" {
		bk.ID = uuid.NewString()
	}
	bk.CreatedAt = time.Now().UTC()
	var scheduled any
	if bk.ScheduledFor != nil {
		scheduled = *bk.ScheduledFor
	}
	query, args, err := p.dialect.Insert("bookings").Rows(goqu.Record{
		"id":            bk.ID,
		"resource_type": string(bk.ResourceType),
		"resource_id":   bk.ResourceID,
		"hospital_id":   bk.HospitalID,
		"user_id":       bk.UserID,
		"price":         bk.Price,
		"scheduled_for": scheduled,
		"created_at":    bk.CreatedAt,
	}).Prepared(true).ToSQL()
	if err != nil {
		return apperrors.Internal("failed to build booking insert", err)
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return translateWriteError("booking", err)
	}
	return nil
}

// ---- helpers ----

func (p *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Internal("failed to begin transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Internal("failed to commit transaction", err)
	}
	return nil
}

// requireHospital locks the hospital row so it cannot be deleted while a
// child record is being attached to it.
func (p *PostgresStore) requireHospital(ctx context.Context, q querier, id string) error {
	if _, err := p.getHospital(ctx, q, goqu.Ex{"id": id}, true); err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return unknownHospital(id)
		}
		return err
	}
	return nil
}

func (p *PostgresStore) count(ctx context.Context, q querier, table string, cond goqu.Ex) (int, error) {
	query, args, err := p.dialect.From(table).Select(goqu.COUNT("*")).Where(cond).Prepared(true).ToSQL()
	if err != nil {
		return 0, apperrors.Internal("failed to build count query", err)
	}
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, apperrors.Internal("failed to count "+table, err)
	}
	return n, nil
}

func (p *PostgresStore) deleteByID(ctx context.Context, q querier, table, what, id string) error {
	query, args, err := p.dialect.Delete(table).Where(goqu.Ex{"id": id}).Prepared(true).ToSQL()
	if err != nil {
		return apperrors.Internal("failed to build delete", err)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return translateWriteError(what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Internal("failed to delete "+what, err)
	}
	if n == 0 {
		return apperrors.NotFound("%s %s not found", what, id)
	}
	return nil
}

func translateWriteError(what string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqForeignKeyViolation:
			return apperrors.Conflict("%s references a missing or in-use record", what)
		case pqUniqueViolation:
			return apperrors.Conflict("%s already exists", what)
		case pqCheckViolation:
			return apperrors.Validation("%s failed a constraint: %s", what, pqErr.Constraint)
		}
	}
	return apperrors.Internal("failed to write "+what, err)
}

func scanHospital(s rowScanner) (*models.Hospital, error) {
	var h models.Hospital
	var bio, photo, userID sql.NullString
	var rating sql.NullFloat64
	if err := s.Scan(&h.ID, &h.Name, &bio, &rating, &photo, &userID, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return nil, err
	}
	h.Bio = bio.String
	h.Photo = photo.String
	h.UserID = userID.String
	if rating.Valid {
		r := rating.Float64
		h.Rating = &r
	}
	return &h, nil
}

func scanBed(s rowScanner) (*models.Bed, error) {
	var b models.Bed
	var bedType sql.NullString
	if err := s.Scan(&b.ID, &b.BedNumber, &b.IsAvailable, &b.HospitalID, &bedType, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.BedType = bedType.String
	return &b, nil
}

func scanAmbulance(s rowScanner) (*models.Ambulance, error) {
	var a models.Ambulance
	var status sql.NullString
	var lat, lon sql.NullFloat64
	var locAt sql.NullTime
	if err := s.Scan(&a.ID, &a.AmbulanceNumber, &a.IsAvailable, &a.HospitalID, &status, &lat, &lon, &locAt, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Status = models.AmbulanceStatus(status.String)
	if lat.Valid && lon.Valid {
		a.CurrentLocation = models.PointFrom(models.Coord{Lat: lat.Float64, Lon: lon.Float64})
	}
	if locAt.Valid {
		t := locAt.Time
		a.LocationUpdatedAt = &t
	}
	return &a, nil
}

func scanBooking(s rowScanner) (*models.Booking, error) {
	var b models.Booking
	var rt string
	var scheduled sql.NullTime
	if err := s.Scan(&b.ID, &rt, &b.ResourceID, &b.HospitalID, &b.UserID, &b.Price, &scheduled, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.ResourceType = models.ResourceType(rt)
	if scheduled.Valid {
		t := scheduled.Time
		b.ScheduledFor = &t
	}
	return &b, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
