package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Megaphone/internal/domain"
)

// CampaignRepo — репозиторий кампаний.
type CampaignRepo struct {
	pool *pgxpool.Pool
}

// NewCampaignRepo создаёт новый CampaignRepo.
func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

const campaignColumns = `
	id, name, interval, send_time, day_of_week, day_of_month, cron_expr,
	query, payload, variants, status, next_push_ids, created_at, updated_at
`

// Create создаёт новую кампанию.
func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	variantsJSON, err := json.Marshal(c.Variants)
	if err != nil {
		return fmt.Errorf("marshal variants: %w", err)
	}

	query := `
		INSERT INTO campaigns (id, name, interval, send_time, day_of_week, day_of_month,
		                       cron_expr, query, payload, variants, status, next_push_ids,
		                       created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.pool.Exec(ctx, query,
		c.ID,
		nullString(c.Name),
		nullString(string(c.Interval)),
		c.SendTime,
		c.DayOfWeek,
		c.DayOfMonth,
		nullString(c.CronExpr),
		c.Query,
		nullString(c.Payload),
		variantsJSON,
		string(c.Status),
		c.NextPushIDs,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

// GetByID возвращает кампанию по ID.
func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	return scanCampaign(r.pool.QueryRow(ctx, query, id))
}

// List возвращает кампании, от новых к старым.
func (r *CampaignRepo) List(ctx context.Context, limit, offset int) ([]domain.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	return collectCampaigns(rows)
}

// ListActive возвращает активные кампании.
func (r *CampaignRepo) ListActive(ctx context.Context) ([]domain.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, string(domain.CampaignStateActive))
	if err != nil {
		return nil, fmt.Errorf("list active campaigns: %w", err)
	}
	defer rows.Close()

	return collectCampaigns(rows)
}

// SetStatus переводит кампанию в active/paused.
func (r *CampaignRepo) SetStatus(ctx context.Context, id uuid.UUID, state domain.CampaignState) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, string(state))
	if err != nil {
		return fmt.Errorf("set campaign status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetNextPushes записывает ссылки на свежезапланированные записи PushStatus.
func (r *CampaignRepo) SetNextPushes(ctx context.Context, id uuid.UUID, pushIDs []uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET next_push_ids = $2, updated_at = NOW() WHERE id = $1
	`, id, pushIDs)
	if err != nil {
		return fmt.Errorf("set next pushes: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет кампанию.
func (r *CampaignRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func collectCampaigns(rows pgx.Rows) ([]domain.Campaign, error) {
	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCampaign(row pgx.Row) (*domain.Campaign, error) {
	var c domain.Campaign
	var name, interval, cronExpr, payload *string
	var status string
	var variantsJSON []byte

	err := row.Scan(
		&c.ID,
		&name,
		&interval,
		&c.SendTime,
		&c.DayOfWeek,
		&c.DayOfMonth,
		&cronExpr,
		&c.Query,
		&payload,
		&variantsJSON,
		&status,
		&c.NextPushIDs,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan campaign: %w", err)
	}

	if name != nil {
		c.Name = *name
	}
	if interval != nil {
		c.Interval = domain.Interval(*interval)
	}
	if cronExpr != nil {
		c.CronExpr = *cronExpr
	}
	if payload != nil {
		c.Payload = *payload
	}
	c.Status = domain.CampaignState(status)

	if len(variantsJSON) > 0 {
		if err := json.Unmarshal(variantsJSON, &c.Variants); err != nil {
			return nil, fmt.Errorf("unmarshal variants: %w", err)
		}
	}

	return &c, nil
}
