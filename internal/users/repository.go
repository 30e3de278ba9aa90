package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frizbank/frizbank/internal/face"
)

// Repository persists users. Create and Update must reject a duplicate
// email with ErrEmailTaken atomically.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, user User) error
	SetFace(ctx context.Context, id string, d *face.Descriptor) error
	// AddFace stores d only when no descriptor is enrolled yet.
	AddFace(ctx context.Context, id string, d face.Descriptor) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
	// UpdateTokenVersion increments the version and returns the new value.
	UpdateTokenVersion(ctx context.Context, id string) (int, error)
}

const uniqueViolation = "23505"

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed user repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectUser = `SELECT id, name, email, password_hash, face_descriptor, token_version, created_at, updated_at, last_login_at FROM users`

func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (id, name, email, password_hash, face_descriptor, token_version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		userID, user.Name, user.Email, string(user.PasswordHash), encodeFace(user.Face), user.TokenVersion, user.CreatedAt.UTC(), user.UpdatedAt.UTC())
	return mapWriteErr(err)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	return scanUser(r.db.QueryRow(ctx, selectUser+` WHERE id = $1`, userID))
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, selectUser+` WHERE lower(email) = lower($1)`, email))
}

func (r *PostgresRepository) Update(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE users SET name = $1, email = $2, password_hash = $3, updated_at = $4 WHERE id = $5`,
		user.Name, user.Email, string(user.PasswordHash), user.UpdatedAt.UTC(), userID)
	if err != nil {
		return mapWriteErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) SetFace(ctx context.Context, id string, d *face.Descriptor) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE users SET face_descriptor = $1, updated_at = now() WHERE id = $2`, encodeFace(d), userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) AddFace(ctx context.Context, id string, d face.Descriptor) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE users SET face_descriptor = $1, updated_at = now() WHERE id = $2 AND face_descriptor IS NULL`, encodeFace(&d), userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrFaceEnrolled
	}
	return nil
}

func (r *PostgresRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	_, err = r.db.Exec(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, at.UTC(), userID)
	return err
}

func (r *PostgresRepository) UpdateTokenVersion(ctx context.Context, id string) (int, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return 0, ErrNotFound
	}
	var version int
	err = r.db.QueryRow(ctx, `UPDATE users SET token_version = token_version + 1 WHERE id = $1 RETURNING token_version`, userID).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return version, err
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id        uuid.UUID
		user      User
		hash      string
		faceRaw   *string
		createdAt time.Time
		updatedAt time.Time
		lastLogin *time.Time
	)
	if err := row.Scan(&id, &user.Name, &user.Email, &hash, &faceRaw, &user.TokenVersion, &createdAt, &updatedAt, &lastLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.ID = id.String()
	user.PasswordHash = []byte(hash)
	user.CreatedAt = createdAt.UTC()
	user.UpdatedAt = updatedAt.UTC()
	if lastLogin != nil {
		t := lastLogin.UTC()
		user.LastLogin = &t
	}
	if faceRaw != nil {
		d, err := face.Decode(*faceRaw)
		if err != nil {
			return User{}, err
		}
		user.Face = &d
	}
	return user, nil
}

func encodeFace(d *face.Descriptor) *string {
	if d == nil {
		return nil
	}
	s := d.Encode()
	return &s
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailTaken
	}
	return err
}
