package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Megaphone/internal/domain"
)

// PushStatusRepo — репозиторий записей PushStatus.
//
// Все мутации счётчиков — одиночные UPDATE с вычислением новых значений
// внутри стейтмента: Postgres берёт блокировку строки, поэтому конкурентные
// инкременты разных сканеров не теряются. Полная перезапись записи после
// чтения здесь намеренно отсутствует.
type PushStatusRepo struct {
	pool *pgxpool.Pool
}

// NewPushStatusRepo создаёт новый PushStatusRepo.
func NewPushStatusRepo(pool *pgxpool.Pool) *PushStatusRepo {
	return &PushStatusRepo{pool: pool}
}

const pushStatusColumns = `
	id, push_time, query, payload, source, push_hash, status,
	sent_per_offset, failed_per_offset, num_sent, num_failed, count,
	distribution, campaign_id, created_at, updated_at
`

// Create создаёт новую запись.
func (r *PushStatusRepo) Create(ctx context.Context, st *domain.PushStatus) error {
	sentJSON, err := offsetMapJSON(st.SentPerOffset)
	if err != nil {
		return fmt.Errorf("marshal sentPerOffset: %w", err)
	}
	failedJSON, err := offsetMapJSON(st.FailedPerOffset)
	if err != nil {
		return fmt.Errorf("marshal failedPerOffset: %w", err)
	}

	var distJSON []byte
	if st.Distribution != nil {
		distJSON, err = json.Marshal(st.Distribution)
		if err != nil {
			return fmt.Errorf("marshal distribution: %w", err)
		}
	}

	query := `
		INSERT INTO push_status (id, push_time, query, payload, source, push_hash, status,
		                         sent_per_offset, failed_per_offset, num_sent, num_failed, count,
		                         distribution, campaign_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = r.pool.Exec(ctx, query,
		st.ID,
		st.PushTime,
		st.Query,
		st.Payload,
		nullString(st.Source),
		nullString(st.PushHash),
		string(st.Status),
		sentJSON,
		failedJSON,
		st.NumSent,
		st.NumFailed,
		st.Count,
		distJSON,
		st.CampaignID,
		st.CreatedAt,
		st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert push status: %w", err)
	}
	return nil
}

// GetByID возвращает запись по ID.
func (r *PushStatusRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PushStatus, error) {
	query := `SELECT ` + pushStatusColumns + ` FROM push_status WHERE id = $1`
	return scanPushStatus(r.pool.QueryRow(ctx, query, id))
}

// ListScheduled возвращает кандидатов скана: записи в статусах scheduled и
// running, от новых к старым. Записи running без per-offset счётчиков —
// "немедленные" pushes, их отфильтровывает вызывающая сторона
// (domain.PushStatus.HasOffsetCounts).
func (r *PushStatusRepo) ListScheduled(ctx context.Context, limit int) ([]domain.PushStatus, error) {
	query := `
		SELECT ` + pushStatusColumns + `
		FROM push_status
		WHERE status IN ($1, $2)
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query,
		string(domain.PushStateScheduled),
		string(domain.PushStateRunning),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list scheduled pushes: %w", err)
	}
	defer rows.Close()

	return collectPushStatuses(rows)
}

// ListByCampaign возвращает записи кампании.
func (r *PushStatusRepo) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]domain.PushStatus, error) {
	query := `
		SELECT ` + pushStatusColumns + `
		FROM push_status
		WHERE campaign_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list pushes by campaign: %w", err)
	}
	defer rows.Close()

	return collectPushStatuses(rows)
}

// Delete удаляет запись. Используется только чисткой дубликатов.
func (r *PushStatusRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM push_status WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete push status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimOffset гарантирует присутствие ключей sentPerOffset[offset] и
// failedPerOffset[offset] (инкремент на ноль), не трогая существующие
// значения.
func (r *PushStatusRepo) ClaimOffset(ctx context.Context, id uuid.UUID, offset domain.UTCOffset) error {
	return r.IncrementOffsetCounts(ctx, id, offset, 0, 0)
}

// IncrementOffsetCounts атомарно прибавляет дельты к per-offset счётчикам.
func (r *PushStatusRepo) IncrementOffsetCounts(ctx context.Context, id uuid.UUID, offset domain.UTCOffset, sent, failed int) error {
	key := strconv.Itoa(int(offset))

	query := `
		UPDATE push_status
		SET sent_per_offset = jsonb_set(
		        COALESCE(sent_per_offset, '{}'::jsonb),
		        ARRAY[$2],
		        to_jsonb(COALESCE((sent_per_offset ->> $2)::int, 0) + $3)
		    ),
		    failed_per_offset = jsonb_set(
		        COALESCE(failed_per_offset, '{}'::jsonb),
		        ARRAY[$2],
		        to_jsonb(COALESCE((failed_per_offset ->> $2)::int, 0) + $4)
		    ),
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, key, sent, failed)
	if err != nil {
		return fmt.Errorf("increment offset counts: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimAbsolute инкрементирует count и numSent на ноль (материализуя поля)
// и переводит запись в running.
func (r *PushStatusRepo) ClaimAbsolute(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE push_status
		SET count      = COALESCE(count, 0),
		    num_sent   = COALESCE(num_sent, 0),
		    status     = $2,
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, string(domain.PushStateRunning))
	if err != nil {
		return fmt.Errorf("claim absolute push: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementAbsoluteCounts атомарно прибавляет дельты к суммарным счётчикам
// и countDelta к in-flight счётчику.
func (r *PushStatusRepo) IncrementAbsoluteCounts(ctx context.Context, id uuid.UUID, sent, failed, countDelta int) error {
	query := `
		UPDATE push_status
		SET num_sent   = COALESCE(num_sent, 0) + $2,
		    num_failed = COALESCE(num_failed, 0) + $3,
		    count      = COALESCE(count, 0) + $4,
		    updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, sent, failed, countDelta)
	if err != nil {
		return fmt.Errorf("increment absolute counts: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus выставляет статус записи. Терминальный статус (succeeded/failed)
// не перезаписывается: повторная финализация конкурентным сканом — no-op
// с ErrInvalidState.
func (r *PushStatusRepo) SetStatus(ctx context.Context, id uuid.UUID, state domain.PushState) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE push_status
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('succeeded', 'failed')
	`, id, string(state))
	if err != nil {
		return fmt.Errorf("set push status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// --- Helpers ---

func collectPushStatuses(rows pgx.Rows) ([]domain.PushStatus, error) {
	var out []domain.PushStatus
	for rows.Next() {
		st, err := scanPushStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func scanPushStatus(row pgx.Row) (*domain.PushStatus, error) {
	var st domain.PushStatus
	var source, pushHash *string
	var status string
	var sentJSON, failedJSON, distJSON []byte

	err := row.Scan(
		&st.ID,
		&st.PushTime,
		&st.Query,
		&st.Payload,
		&source,
		&pushHash,
		&status,
		&sentJSON,
		&failedJSON,
		&st.NumSent,
		&st.NumFailed,
		&st.Count,
		&distJSON,
		&st.CampaignID,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan push status: %w", err)
	}

	if source != nil {
		st.Source = *source
	}
	if pushHash != nil {
		st.PushHash = *pushHash
	}
	st.Status = domain.PushState(status)

	if st.SentPerOffset, err = offsetMapFromJSON(sentJSON); err != nil {
		return nil, fmt.Errorf("unmarshal sentPerOffset: %w", err)
	}
	if st.FailedPerOffset, err = offsetMapFromJSON(failedJSON); err != nil {
		return nil, fmt.Errorf("unmarshal failedPerOffset: %w", err)
	}

	if len(distJSON) > 0 {
		st.Distribution = &domain.Distribution{}
		if err := json.Unmarshal(distJSON, st.Distribution); err != nil {
			return nil, fmt.Errorf("unmarshal distribution: %w", err)
		}
	}

	return &st, nil
}

// offsetMapJSON сериализует per-offset карту; nil для пустой,
// чтобы в БД оставался NULL, а не пустой объект.
func offsetMapJSON(m map[domain.UTCOffset]int) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func offsetMapFromJSON(b []byte) (map[domain.UTCOffset]int, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[domain.UTCOffset]int
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
