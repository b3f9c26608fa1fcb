package cli

import (
	"context"
	"fmt"

	"github.com/shaiso/Megaphone/internal/repo"
)

// Store — доступ CLI к репозиториям.
type Store struct {
	Campaigns     *repo.CampaignRepo
	Pushes        *repo.PushStatusRepo
	Installations *repo.InstallationRepo
}

// OpenStore подключается к БД (DB_URL) и строит репозитории.
func OpenStore(ctx context.Context) (*Store, error) {
	pool, err := repo.NewPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	return &Store{
		Campaigns:     repo.NewCampaignRepo(pool),
		Pushes:        repo.NewPushStatusRepo(pool),
		Installations: repo.NewInstallationRepo(pool),
	}, nil
}
