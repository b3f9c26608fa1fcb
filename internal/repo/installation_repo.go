package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InstallationFilter — предикат выборки получателей.
type InstallationFilter struct {
	// Where — сериализованный предикат записи PushStatus (JSON-объект);
	// сопоставляется с полем data установки. Пустая строка — без ограничения.
	Where string

	// Timezones — ограничение по зонам (per-offset work items).
	// Пустой список — без ограничения.
	Timezones []string
}

// InstallationRepo — доступ к справочнику установок (получателей).
//
// Справочник — внешний ресурс; ядру от него нужны только keyset-страницы
// идентификаторов и счётчик.
type InstallationRepo struct {
	pool *pgxpool.Pool
}

// NewInstallationRepo создаёт новый InstallationRepo.
func NewInstallationRepo(pool *pgxpool.Pool) *InstallationRepo {
	return &InstallationRepo{pool: pool}
}

// ListPage возвращает страницу идентификаторов по возрастанию id,
// строго после afterID. Страница короче limit означает конец выборки.
func (r *InstallationRepo) ListPage(ctx context.Context, f InstallationFilter, afterID string, limit int) ([]string, error) {
	query := `
		SELECT id
		FROM installations
		WHERE ($1 = '' OR data @> $1::jsonb)
		  AND (cardinality($2::text[]) = 0 OR timezone = ANY($2))
		  AND id > $3
		ORDER BY id ASC
		LIMIT $4
	`
	rows, err := r.pool.Query(ctx, query, f.Where, f.Timezones, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list installations page: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan installation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count возвращает размер аудитории фильтра.
func (r *InstallationRepo) Count(ctx context.Context, f InstallationFilter) (int, error) {
	query := `
		SELECT count(*)
		FROM installations
		WHERE ($1 = '' OR data @> $1::jsonb)
		  AND (cardinality($2::text[]) = 0 OR timezone = ANY($2))
	`
	var n int
	if err := r.pool.QueryRow(ctx, query, f.Where, f.Timezones).Scan(&n); err != nil {
		return 0, fmt.Errorf("count installations: %w", err)
	}
	return n, nil
}

// ListTokens возвращает device tokens для батча идентификаторов.
// Используется воркером доставки.
func (r *InstallationRepo) ListTokens(ctx context.Context, ids []string) (map[string]string, error) {
	query := `
		SELECT id, device_token
		FROM installations
		WHERE id = ANY($1::text[])
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list installation tokens: %w", err)
	}
	defer rows.Close()

	tokens := make(map[string]string, len(ids))
	for rows.Next() {
		var id, token string
		if err := rows.Scan(&id, &token); err != nil {
			return nil, fmt.Errorf("scan installation token: %w", err)
		}
		tokens[id] = token
	}
	return tokens, rows.Err()
}
