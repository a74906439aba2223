package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"

	"github.com/dispatchworks/fieldserve/internal/core"
	"github.com/dispatchworks/fieldserve/internal/data/pgxutil"
	"github.com/dispatchworks/fieldserve/internal/domain/model"
	"github.com/dispatchworks/fieldserve/internal/domain/reputation"
)

const partnerColumns = `id, quality_history, reliability_history, warranty_history,
	quality_score, reliability_score, warranty_score, unified_score,
	suspension_count, banned_at, permanently_banned, created_at, updated_at`

// Advisory lock namespace for per-partner recalculation.
const advisoryLockRecalcMajor int64 = 2001

func advisoryLockRecalcMinor(partnerID string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(partnerID))
	hashValue := h.Sum32()
	maxInt32 := uint32(math.MaxInt32)
	if hashValue > maxInt32 {
		hashValue &= maxInt32
	}
	return int64(hashValue)
}

// PartnerRepoOptions groups dependencies for PartnerRepo.
type PartnerRepoOptions struct {
	DB           *sql.DB
	TimeProvider TimeProvider
	Logger       *slog.Logger
}

// PartnerRepo is the PostgreSQL adapter for partner accounts. Score
// recalculation is a read-merge-write serialized per partner with a
// transaction-scoped advisory lock so concurrent rating events never lose
// updates.
type PartnerRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewPartnerRepo constructs a PartnerRepo.
func NewPartnerRepo(opts PartnerRepoOptions) *PartnerRepo {
	if opts.DB == nil {
		panic("PartnerRepo requires a database")
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &PartnerRepo{DB: opts.DB, timeProvider: tp, logger: opts.Logger}
}

var _ core.PartnerRepository = (*PartnerRepo)(nil)

// GetByID retrieves a partner account by its ID.
func (r *PartnerRepo) GetByID(ctx context.Context, id string) (*model.PartnerAccount, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+partnerColumns+` FROM partners WHERE id = $1`, id)
	account, err := scanPartner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPartnerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get partner: %w", err)
	}
	return account, nil
}

// Recalculate loads the account under a per-partner advisory lock, runs fn,
// and persists the returned account in the same transaction. The histories
// and derived fields are written atomically.
func (r *PartnerRepo) Recalculate(
	ctx context.Context,
	partnerID string,
	fn func(current model.PartnerAccount) (reputation.Result, error),
) (*model.PartnerAccount, error) {
	var updated *model.PartnerAccount

	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{Fn: func(tx *sql.Tx) error {
		minorKey := advisoryLockRecalcMinor(partnerID)
		if _, lockErr := tx.ExecContext(ctx,
			"SELECT pg_advisory_xact_lock($1::integer, $2::integer)",
			advisoryLockRecalcMajor, minorKey,
		); lockErr != nil {
			return fmt.Errorf("acquire advisory lock: %w", lockErr)
		}

		row := tx.QueryRowContext(ctx, `SELECT `+partnerColumns+` FROM partners WHERE id = $1`, partnerID)
		current, scanErr := scanPartner(row)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return ErrPartnerNotFound
		}
		if scanErr != nil {
			return fmt.Errorf("read partner: %w", scanErr)
		}

		result, fnErr := fn(*current)
		if fnErr != nil {
			return fnErr
		}
		account := result.Account

		quality, reliability, warranty, marshalErr := marshalHistories(&account)
		if marshalErr != nil {
			return marshalErr
		}

		now := r.timeProvider.Now().UTC()
		if _, execErr := tx.ExecContext(ctx, `
			UPDATE partners
			SET quality_history = $2,
			    reliability_history = $3,
			    warranty_history = $4,
			    quality_score = $5,
			    reliability_score = $6,
			    warranty_score = $7,
			    unified_score = $8,
			    suspension_count = $9,
			    banned_at = $10,
			    permanently_banned = $11,
			    updated_at = $12
			WHERE id = $1
		`,
			partnerID, quality, reliability, warranty,
			account.QualityScore, account.ReliabilityScore, account.WarrantyScore,
			account.UnifiedScore, account.SuspensionCount, account.BannedAt,
			account.PermanentlyBanned, now,
		); execErr != nil {
			return fmt.Errorf("persist partner: %w", execErr)
		}

		account.UpdatedAt = now
		updated = &account
		return nil
	}})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func marshalHistories(account *model.PartnerAccount) ([]byte, []byte, []byte, error) {
	quality, err := json.Marshal(emptyAsList(account.QualityHistory))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal quality history: %w", err)
	}
	reliability, err := json.Marshal(emptyAsList(account.ReliabilityHistory))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal reliability history: %w", err)
	}
	warranty, err := json.Marshal(emptyAsList(account.WarrantyHistory))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal warranty history: %w", err)
	}
	return quality, reliability, warranty, nil
}

// emptyAsList keeps nil histories as empty JSON arrays rather than null.
func emptyAsList(history []float64) []float64 {
	if history == nil {
		return []float64{}
	}
	return history
}

func scanPartner(scanner rowScanner) (*model.PartnerAccount, error) {
	var (
		account     model.PartnerAccount
		quality     []byte
		reliability []byte
		warranty    []byte
		bannedAt    sql.NullTime
	)
	if err := scanner.Scan(
		&account.ID,
		&quality,
		&reliability,
		&warranty,
		&account.QualityScore,
		&account.ReliabilityScore,
		&account.WarrantyScore,
		&account.UnifiedScore,
		&account.SuspensionCount,
		&bannedAt,
		&account.PermanentlyBanned,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := unmarshalHistory(quality, &account.QualityHistory); err != nil {
		return nil, fmt.Errorf("unmarshal quality history: %w", err)
	}
	if err := unmarshalHistory(reliability, &account.ReliabilityHistory); err != nil {
		return nil, fmt.Errorf("unmarshal reliability history: %w", err)
	}
	if err := unmarshalHistory(warranty, &account.WarrantyHistory); err != nil {
		return nil, fmt.Errorf("unmarshal warranty history: %w", err)
	}
	account.BannedAt = cloneNullableTime(bannedAt)
	return &account, nil
}

func unmarshalHistory(raw []byte, dst *[]float64) error {
	if len(raw) == 0 {
		*dst = nil
		return nil
	}
	return json.Unmarshal(raw, dst)
}
