package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/psw-tryout/tryout-backend/internal/model"
)

var ErrDuplicateUsername = errors.New("participant with this username already exists")

// ParticipantRepository handles participant data access.
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

const participantColumns = `id, username, email, full_name, school, day, blocked, password_hash, raw_password, created_at, updated_at`

// GetByID retrieves a participant by ID.
func (r *ParticipantRepository) GetByID(ctx context.Context, id int) (*model.Participant, error) {
	p := &model.Participant{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id = $1`, id,
	).Scan(&p.ID, &p.Username, &p.Email, &p.FullName, &p.School, &p.Day, &p.Blocked,
		&p.PasswordHash, &p.RawPassword, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByUsername retrieves a participant by their unique username.
func (r *ParticipantRepository) GetByUsername(ctx context.Context, username string) (*model.Participant, error) {
	p := &model.Participant{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE username = $1`, username,
	).Scan(&p.ID, &p.Username, &p.Email, &p.FullName, &p.School, &p.Day, &p.Blocked,
		&p.PasswordHash, &p.RawPassword, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPaginated retrieves participants ordered by day then name, with an
// optional day filter.
func (r *ParticipantRepository) ListPaginated(ctx context.Context, day *int, limit, offset int) ([]model.Participant, int, error) {
	countQuery := `SELECT COUNT(*) FROM participants`
	var countArgs []interface{}
	if day != nil {
		countQuery += ` WHERE day = $1`
		countArgs = append(countArgs, *day)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + participantColumns + ` FROM participants`
	var args []interface{}
	argIdx := 1

	if day != nil {
		query += ` WHERE day = $1`
		args = append(args, *day)
		argIdx++
	}

	query += ` ORDER BY day, full_name LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.ID, &p.Username, &p.Email, &p.FullName, &p.School, &p.Day, &p.Blocked,
			&p.PasswordHash, &p.RawPassword, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		participants = append(participants, p)
	}
	return participants, total, rows.Err()
}

// ListAll retrieves every participant, used by the send-all-cards job.
func (r *ParticipantRepository) ListAll(ctx context.Context) ([]model.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+participantColumns+` FROM participants ORDER BY day, full_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.ID, &p.Username, &p.Email, &p.FullName, &p.School, &p.Day, &p.Blocked,
			&p.PasswordHash, &p.RawPassword, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// Create inserts a new participant.
func (r *ParticipantRepository) Create(ctx context.Context, p *model.Participant) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO participants (username, email, full_name, school, day, password_hash, raw_password)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		p.Username, p.Email, p.FullName, p.School, p.Day, p.PasswordHash, p.RawPassword,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateUsername
		}
		return err
	}
	return nil
}

// Update modifies a participant's profile fields.
func (r *ParticipantRepository) Update(ctx context.Context, p *model.Participant) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE participants
		 SET email = $1, full_name = $2, school = $3, day = $4, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $5`,
		p.Email, p.FullName, p.School, p.Day, p.ID)
	return err
}

// SetBlocked flips the blocked flag.
func (r *ParticipantRepository) SetBlocked(ctx context.Context, id int, blocked bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE participants SET blocked = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		blocked, id)
	return err
}

// Delete removes a participant. Attempts cascade.
func (r *ParticipantRepository) Delete(ctx context.Context, id int) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM participants WHERE id = $1`, id)
	return err
}

// CountAll returns the total number of participants.
func (r *ParticipantRepository) CountAll(ctx context.Context) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM participants`).Scan(&total)
	return total, err
}
