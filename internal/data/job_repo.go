package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dispatchworks/fieldserve/internal/core"
	"github.com/dispatchworks/fieldserve/internal/data/pgxutil"
	"github.com/dispatchworks/fieldserve/internal/domain/model"
)

const jobColumns = `id, status, owner_partner_id, scheduled_date, shift, items,
	contracted_value_cents, items_confirmed, before_photos, after_photos, report,
	external_authorized, reliability_credited, points, claimed_at, finalized_at,
	created_at, updated_at`

const paymentColumns = `id, job_id, seq, amount_cents, method, verification_id,
	confirmed_amount_cents, verification_error, verified, locked, created_at, updated_at`

// JobRepoOptions groups dependencies for JobRepo.
type JobRepoOptions struct {
	DB           *sql.DB
	TimeProvider TimeProvider
	Logger       *slog.Logger
}

// JobRepo is the PostgreSQL adapter for jobs and their payment records.
// The database is the serialization point for claim and transition races:
// every conditional write re-checks its status precondition inside the
// statement itself.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo constructs a JobRepo.
func NewJobRepo(opts JobRepoOptions) *JobRepo {
	if opts.DB == nil {
		panic("JobRepo requires a database")
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &JobRepo{DB: opts.DB, timeProvider: tp, logger: opts.Logger}
}

var _ core.JobRepository = (*JobRepo)(nil)

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// claimSQL atomically claims an available job. The status check lives in
// the UPDATE itself so two concurrent claimers cannot both pass it.
const claimSQL = `
	UPDATE jobs
	SET status = 'claimed',
	    owner_partner_id = $2,
	    claimed_at = $3,
	    updated_at = $3
	WHERE id = $1 AND status = 'available'
	RETURNING ` + jobColumns

// Claim reserves the job for the partner. Exactly one concurrent caller
// wins; the rest observe ErrJobUnavailable. A failed claim leaves the job
// unchanged.
func (r *JobRepo) Claim(ctx context.Context, jobID, partnerID string) (*model.Job, error) {
	now := r.timeProvider.Now().UTC()

	row := r.DB.QueryRowContext(ctx, claimSQL, jobID, partnerID, now)
	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	// Zero rows: distinguish a missing job from a lost race.
	if _, getErr := r.GetByID(ctx, jobID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrJobUnavailable
}

// UpdateStatus applies a conditional status change. Zero affected rows
// means the precondition no longer held (lost race or repeated call); the
// caller maps that to an invalid-transition error.
func (r *JobRepo) UpdateStatus(ctx context.Context, change core.StatusChange) (*model.Job, error) {
	now := r.timeProvider.Now().UTC()

	query := `
		UPDATE jobs
		SET status = $3,
		    finalized_at = CASE WHEN $3 = 'finalized' THEN $4 ELSE finalized_at END,
		    updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + jobColumns

	row := r.DB.QueryRowContext(ctx, query, change.JobID, change.From, change.To, now)
	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update job status: %w", err)
	}

	if _, getErr := r.GetByID(ctx, change.JobID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrJobUnavailable
}

// Release returns a claimed or en-route job to the available pool. Jobs
// already on site or further along cannot be released.
func (r *JobRepo) Release(ctx context.Context, jobID string) (*model.Job, error) {
	now := r.timeProvider.Now().UTC()

	query := `
		UPDATE jobs
		SET status = 'available',
		    owner_partner_id = NULL,
		    claimed_at = NULL,
		    updated_at = $2
		WHERE id = $1 AND status IN ('claimed', 'en_route')
		RETURNING ` + jobColumns

	row := r.DB.QueryRowContext(ctx, query, jobID, now)
	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("release job: %w", err)
	}

	if _, getErr := r.GetByID(ctx, jobID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrJobUnavailable
}

// SetExternalAuthorized flips the manual authorization flag covering cash
// and remote payments.
func (r *JobRepo) SetExternalAuthorized(ctx context.Context, jobID string) (*model.Job, error) {
	now := r.timeProvider.Now().UTC()

	query := `
		UPDATE jobs
		SET external_authorized = TRUE, updated_at = $2
		WHERE id = $1
		RETURNING ` + jobColumns

	row := r.DB.QueryRowContext(ctx, query, jobID, now)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("set external authorization: %w", err)
	}
	return job, nil
}

// SetChecklist applies checklist field updates while the job is on site.
// Photo counts never decrease.
func (r *JobRepo) SetChecklist(
	ctx context.Context,
	jobID string,
	update core.ChecklistUpdate,
) (*model.Job, error) {
	now := r.timeProvider.Now().UTC()

	query := `
		UPDATE jobs
		SET items_confirmed = COALESCE($2, items_confirmed),
		    before_photos = GREATEST(before_photos, COALESCE($3, before_photos)),
		    after_photos = GREATEST(after_photos, COALESCE($4, after_photos)),
		    report = COALESCE($5, report),
		    updated_at = $6
		WHERE id = $1 AND status = 'arrived'
		RETURNING ` + jobColumns

	row := r.DB.QueryRowContext(ctx, query,
		jobID, update.ConfirmItems, update.BeforePhotos, update.AfterPhotos, update.Report, now)
	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("set checklist: %w", err)
	}

	if _, getErr := r.GetByID(ctx, jobID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrJobUnavailable
}

// UpdateItems replaces the item list while the job is on site. The upward-
// only value policy is enforced by the service layer before calling.
func (r *JobRepo) UpdateItems(
	ctx context.Context,
	jobID string,
	items []model.LineItem,
) (*model.Job, error) {
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal items: %w", err)
	}
	now := r.timeProvider.Now().UTC()

	query := `
		UPDATE jobs
		SET items = $2, updated_at = $3
		WHERE id = $1 AND status = 'arrived'
		RETURNING ` + jobColumns

	row := r.DB.QueryRowContext(ctx, query, jobID, payload, now)
	job, scanErr := scanJob(row)
	if scanErr == nil {
		return job, nil
	}
	if !errors.Is(scanErr, sql.ErrNoRows) {
		return nil, fmt.Errorf("update items: %w", scanErr)
	}

	if _, getErr := r.GetByID(ctx, jobID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrJobUnavailable
}

// FinalizeAward persists the points value and flips the one-shot
// reliability-credit flag. The WHERE clause makes the credit first-writer-
// wins: duplicate finalization observers lose here and skip the
// reliability event.
func (r *JobRepo) FinalizeAward(ctx context.Context, jobID string, points int64) (bool, error) {
	now := r.timeProvider.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET points = $2, reliability_credited = TRUE, updated_at = $3
		WHERE id = $1 AND reliability_credited = FALSE
	`, jobID, points, now)
	if err != nil {
		return false, fmt.Errorf("finalize award: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finalize award rows affected: %w", err)
	}
	return affected == 1, nil
}

// AddPayment appends a technician-entered payment record to the job. The
// sequence number is derived inside the insert; the unique constraint on
// (job_id, seq) rejects the loser of a concurrent append.
func (r *JobRepo) AddPayment(
	ctx context.Context,
	jobID string,
	req *model.AddPaymentRequest,
) (*model.PaymentRecord, error) {
	if req == nil {
		return nil, errors.New("add payment request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := r.timeProvider.Now().UTC()

	query := `
		INSERT INTO job_payments (job_id, seq, amount_cents, method, verification_id, created_at, updated_at)
		SELECT $1, COALESCE(MAX(seq) + 1, 0), $2, $3, $4, $5, $5
		FROM job_payments WHERE job_id = $1
		RETURNING ` + paymentColumns

	row := r.DB.QueryRowContext(ctx, query, jobID, req.AmountCents, req.Method, req.VerificationID, now)
	rec, err := scanPayment(row)
	if err != nil {
		return nil, fmt.Errorf("add payment: %w", err)
	}
	return rec, nil
}

// GetPayments lists the job's payment records in sequence order.
func (r *JobRepo) GetPayments(ctx context.Context, jobID string) ([]model.PaymentRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM job_payments
		WHERE job_id = $1
		ORDER BY seq
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var records []model.PaymentRecord
	for rows.Next() {
		rec, scanErr := scanPayment(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan payment: %w", scanErr)
		}
		records = append(records, *rec)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("list payments: %w", rowsErr)
	}
	return records, nil
}

// GetPayment retrieves one payment record by job and sequence.
func (r *JobRepo) GetPayment(ctx context.Context, jobID string, seq int) (*model.PaymentRecord, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM job_payments
		WHERE job_id = $1 AND seq = $2
	`, jobID, seq)
	rec, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return rec, nil
}

// MarkPaymentVerified marks a record verified and locks it against any
// further mutation. Calling it again for an already verified record is a
// no-op.
func (r *JobRepo) MarkPaymentVerified(ctx context.Context, jobID string, seq int) error {
	now := r.timeProvider.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE job_payments
		SET verified = TRUE, locked = TRUE, verification_error = NULL, updated_at = $3
		WHERE job_id = $1 AND seq = $2 AND locked = FALSE
	`, jobID, seq, now)
	if err != nil {
		return fmt.Errorf("mark payment verified: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark payment verified rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	rec, getErr := r.GetPayment(ctx, jobID, seq)
	if getErr != nil {
		return getErr
	}
	if rec.Verified {
		return nil
	}
	return ErrPaymentLocked
}

// paymentChannel returns the LISTEN/NOTIFY channel for a job's payment
// updates.
func paymentChannel(jobID string) string {
	return "payment_update_" + jobID
}

// RecordExternalConfirmation stores the verifier's asynchronous write-back
// and notifies bounded waiters. Locked (already verified) records are left
// untouched.
func (r *JobRepo) RecordExternalConfirmation(ctx context.Context, conf core.ExternalConfirmation) error {
	now := r.timeProvider.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE job_payments
		SET confirmed_amount_cents = $3,
		    verification_error = $4,
		    updated_at = $5
		WHERE job_id = $1 AND seq = $2 AND locked = FALSE
	`, conf.JobID, conf.Seq, conf.ConfirmedAmountCents, conf.VerificationError, now)
	if err != nil {
		return fmt.Errorf("record confirmation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record confirmation rows affected: %w", err)
	}
	if affected == 0 {
		rec, getErr := r.GetPayment(ctx, conf.JobID, conf.Seq)
		if getErr != nil {
			return getErr
		}
		if rec.Locked {
			// Verified records are immutable; a late write-back is dropped.
			return nil
		}
		return ErrPaymentNotFound
	}

	if _, notifyErr := r.DB.ExecContext(ctx,
		`SELECT pg_notify($1::text, $2::text)`,
		paymentChannel(conf.JobID), fmt.Sprintf("%d", conf.Seq),
	); notifyErr != nil {
		return fmt.Errorf("send payment notification: %w", notifyErr)
	}
	return nil
}

// WaitForPaymentUpdate blocks until a payment record of the job changes or
// the context is done. Callers bound the wait with a context deadline.
func (r *JobRepo) WaitForPaymentUpdate(ctx context.Context, jobID string) error {
	channel := paymentChannel(jobID)
	quoted := pgx.Identifier{channel}.Sanitize()

	return pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		if _, execErr := conn.Exec(ctx, "LISTEN "+quoted); execErr != nil {
			return fmt.Errorf("listen %s: %w", channel, execErr)
		}
		defer func() {
			if _, execErr := conn.Exec(context.Background(), "UNLISTEN "+quoted); execErr != nil {
				_ = execErr
			}
		}()

		_, notifyErr := conn.WaitForNotification(ctx)
		return notifyErr
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (*model.Job, error) {
	var (
		job       model.Job
		items     []byte
		owner     sql.NullString
		claimedAt sql.NullTime
		finalAt   sql.NullTime
	)
	if err := scanner.Scan(
		&job.ID,
		&job.Status,
		&owner,
		&job.ScheduledDate,
		&job.Shift,
		&items,
		&job.ContractedValueCents,
		&job.ItemsConfirmed,
		&job.BeforePhotos,
		&job.AfterPhotos,
		&job.Report,
		&job.ExternalAuthorized,
		&job.ReliabilityCredited,
		&job.Points,
		&claimedAt,
		&finalAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(items) > 0 {
		if err := json.Unmarshal(items, &job.Items); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
	}
	job.OwnerPartnerID = cloneNullableString(owner)
	job.ClaimedAt = cloneNullableTime(claimedAt)
	job.FinalizedAt = cloneNullableTime(finalAt)
	return &job, nil
}

func scanPayment(scanner rowScanner) (*model.PaymentRecord, error) {
	var (
		rec       model.PaymentRecord
		confirmed sql.NullInt64
		verErr    sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.JobID,
		&rec.Seq,
		&rec.AmountCents,
		&rec.Method,
		&rec.VerificationID,
		&confirmed,
		&verErr,
		&rec.Verified,
		&rec.Locked,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if confirmed.Valid {
		v := confirmed.Int64
		rec.ConfirmedAmountCents = &v
	}
	rec.VerificationError = cloneNullableString(verErr)
	return &rec, nil
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
