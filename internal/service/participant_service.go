package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/psw-tryout/tryout-backend/internal/config"
	"github.com/psw-tryout/tryout-backend/internal/model"
	"github.com/psw-tryout/tryout-backend/internal/repository"
	"github.com/psw-tryout/tryout-backend/internal/response"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrParticipantNotFound is returned when a participant ID or username
// does not exist.
var ErrParticipantNotFound = errors.New("participant not found")

// Ambiguous characters (0/O, 1/l/I) are excluded so printed cards stay
// readable.
const passwordAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

const passwordLength = 8

// ParticipantService handles participant roster management and
// credential distribution.
type ParticipantService struct {
	participantRepo *repository.ParticipantRepository
	authService     *AuthService
	rdb             *redis.Client
	cfg             *config.Config
	log             zerolog.Logger
}

// NewParticipantService creates a new ParticipantService.
func NewParticipantService(
	participantRepo *repository.ParticipantRepository,
	authService *AuthService,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *ParticipantService {
	return &ParticipantService{
		participantRepo: participantRepo,
		authService:     authService,
		rdb:             rdb,
		cfg:             cfg,
		log:             log.With().Str("component", "participant_service").Logger(),
	}
}

// GetByID retrieves a participant by ID.
func (s *ParticipantService) GetByID(ctx context.Context, id int) (*model.Participant, error) {
	p, err := s.participantRepo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

// GetByUsername retrieves a participant by username, for login.
func (s *ParticipantService) GetByUsername(ctx context.Context, username string) (*model.Participant, error) {
	p, err := s.participantRepo.GetByUsername(ctx, username)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

// List retrieves participants with pagination and optional day filter.
func (s *ParticipantService) List(ctx context.Context, day *int, page, perPage int) ([]model.Participant, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	limit := perPage
	offset := (page - 1) * perPage

	participants, total, err := s.participantRepo.ListPaginated(ctx, day, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	if participants == nil {
		participants = []model.Participant{}
	}

	return participants, response.NewPagination(page, perPage, total), nil
}

// Create registers a participant with generated credentials: the
// username comes from the email's local part, the password is random.
// The credential email is queued, not sent inline.
func (s *ParticipantService) Create(ctx context.Context, req *model.CreateParticipantRequest) (*model.Participant, error) {
	password, err := generatePassword()
	if err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}
	hash, err := s.authService.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	base := usernameFromEmail(req.Email)
	p := &model.Participant{
		Username:     base,
		Email:        req.Email,
		FullName:     req.FullName,
		School:       req.School,
		Day:          req.Day,
		PasswordHash: hash,
		RawPassword:  password,
	}

	// On a username collision, retry with a numeric suffix.
	for suffix := 2; ; suffix++ {
		err := s.participantRepo.Create(ctx, p)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, fmt.Errorf("create participant: %w", err)
		}
		if suffix > 20 {
			return nil, repository.ErrDuplicateUsername
		}
		p.Username = fmt.Sprintf("%s%d", base, suffix)
	}

	if err := s.QueueCredentialMail(ctx, p); err != nil {
		// The account exists; the committee can resend from the roster.
		s.log.Warn().Err(err).Int("participant_id", p.ID).Msg("Failed to queue credential mail")
	}

	s.log.Info().
		Int("participant_id", p.ID).
		Str("username", p.Username).
		Int("day", p.Day).
		Msg("Participant registered")
	return p, nil
}

// Update modifies a participant's profile. Credentials are not touched.
func (s *ParticipantService) Update(ctx context.Context, id int, req *model.UpdateParticipantRequest) (*model.Participant, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p.Email = req.Email
	p.FullName = req.FullName
	p.School = req.School
	p.Day = req.Day

	if err := s.participantRepo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update participant: %w", err)
	}
	return p, nil
}

// SetBlocked flips the blocked flag. Blocking also kills the active
// session so the participant is ejected immediately, not at next login.
func (s *ParticipantService) SetBlocked(ctx context.Context, id int, blocked bool) (*model.Participant, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.participantRepo.SetBlocked(ctx, id, blocked); err != nil {
		return nil, fmt.Errorf("set blocked: %w", err)
	}
	p.Blocked = blocked

	if blocked {
		if err := s.authService.ResetParticipantSession(ctx, id); err != nil {
			s.log.Warn().Err(err).Int("participant_id", id).Msg("Failed to reset session on block")
		}
	}

	s.log.Info().Int("participant_id", id).Bool("blocked", blocked).Msg("Participant block flag changed")
	return p, nil
}

// Delete removes a participant. Their attempts cascade.
func (s *ParticipantService) Delete(ctx context.Context, id int) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.participantRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	s.log.Info().Int("participant_id", id).Msg("Participant deleted")
	return nil
}

// Card returns the printable credential card for a participant.
func (s *ParticipantService) Card(ctx context.Context, id int) (*model.ParticipantCard, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.cardFor(p), nil
}

// QueueCredentialMail pushes one credential email job onto the Redis
// mail queue. The SMTP worker drains it asynchronously.
func (s *ParticipantService) QueueCredentialMail(ctx context.Context, p *model.Participant) error {
	card := s.cardFor(p)
	job := model.CredentialMailJob{
		To:       p.Email,
		FullName: card.FullName,
		School:   card.School,
		Day:      card.Day,
		Username: card.Username,
		Password: card.Password,
		LoginURL: card.LoginURL,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal mail job: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.MailQueue, data).Err(); err != nil {
		return fmt.Errorf("queue mail job: %w", err)
	}
	return nil
}

// SendAllCards queues a credential email for every participant on the
// roster. Returns the number of jobs queued.
func (s *ParticipantService) SendAllCards(ctx context.Context) (int, error) {
	participants, err := s.participantRepo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list participants: %w", err)
	}

	queued := 0
	for i := range participants {
		if err := s.QueueCredentialMail(ctx, &participants[i]); err != nil {
			s.log.Warn().Err(err).Int("participant_id", participants[i].ID).Msg("Failed to queue credential mail")
			continue
		}
		queued++
	}

	s.log.Info().Int("queued", queued).Int("total", len(participants)).Msg("Credential mail batch queued")
	return queued, nil
}

func (s *ParticipantService) cardFor(p *model.Participant) *model.ParticipantCard {
	return &model.ParticipantCard{
		FullName: p.FullName,
		School:   p.School,
		Day:      p.Day,
		Username: p.Username,
		Password: p.RawPassword,
		LoginURL: s.cfg.BaseURL + "/login",
	}
}

// usernameFromEmail lowercases the email's local part and strips
// anything outside [a-z0-9.].
func usernameFromEmail(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}
	local = strings.ToLower(local)

	var b strings.Builder
	for _, r := range local {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "peserta"
	}
	return b.String()
}

func generatePassword() (string, error) {
	buf := make([]byte, passwordLength)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = passwordAlphabet[n.Int64()]
	}
	return string(buf), nil
}
