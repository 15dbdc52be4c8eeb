package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"blogapi/internal/repository"
)

// BlocklistPruner periodically deletes blocklist rows whose token has expired
// on its own. Such tokens are already rejected as expired.
type BlocklistPruner struct {
	repo    repository.BlocklistRepository
	cron    *cron.Cron
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

func NewBlocklistPruner(repo repository.BlocklistRepository, schedule string, logger *zap.Logger) (*BlocklistPruner, error) {
	p := &BlocklistPruner{
		repo:    repo,
		cron:    cron.New(),
		timeout: 30 * time.Second,
		now:     time.Now,
		logger:  logger,
	}

	if _, err := p.cron.AddFunc(schedule, p.run); err != nil {
		return nil, fmt.Errorf("invalid blocklist prune schedule %q: %w", schedule, err)
	}
	return p, nil
}

func (p *BlocklistPruner) Start() {
	p.cron.Start()
	p.logger.Info("Blocklist pruner started")
}

// Stop waits for a running prune to finish.
func (p *BlocklistPruner) Stop() {
	<-p.cron.Stop().Done()
	p.logger.Info("Blocklist pruner stopped")
}

// Prune deletes every row whose token expired before now.
func (p *BlocklistPruner) Prune(ctx context.Context) (int64, error) {
	return p.repo.DeleteExpired(ctx, p.now())
}

func (p *BlocklistPruner) run() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	deleted, err := p.Prune(ctx)
	if err != nil {
		p.logger.Error("Failed to prune blocklist", zap.Error(err))
		return
	}
	p.logger.Info("Pruned expired blocklist entries", zap.Int64("deleted", deleted))
}
