package services

import (
	"github.com/ternarybob/arbor"

	"tract-sync/internal/common"
	"tract-sync/internal/gitrepo"
	"tract-sync/internal/interfaces"
	"tract-sync/internal/schema"
)

// SyncEngine bundles the four sync services around one shared repo,
// document store, schema mapper, and per-ticket lock table.
type SyncEngine struct {
	inbound  *InboundSync
	outbound *OutboundSync
	creator  *Creator
	worklogs *WorklogService
}

func NewSyncEngine(cfg *common.Config, remote interfaces.Remote, store interfaces.Store, logger arbor.ILogger) (*SyncEngine, error) {
	mapper := schema.NewMapper(logger)
	repo := gitrepo.New(cfg.Repo.Path, cfg.Identity)
	locks := newTicketLocks()

	docs, err := newDocStore(cfg.IssuesPath())
	if err != nil {
		return nil, err
	}

	worklogs, err := NewWorklogService(cfg, remote, repo, logger)
	if err != nil {
		return nil, err
	}

	return &SyncEngine{
		inbound:  NewInboundSync(cfg, remote, store, mapper, repo, docs, locks, logger),
		outbound: NewOutboundSync(cfg, remote, store, mapper, locks, logger),
		creator:  NewCreator(cfg, remote, store, mapper, repo, docs, locks, logger),
		worklogs: worklogs,
	}, nil
}

func (e *SyncEngine) Inbound() interfaces.Inbound   { return e.inbound }
func (e *SyncEngine) Outbound() interfaces.Outbound { return e.outbound }
func (e *SyncEngine) Creator() interfaces.Creator   { return e.creator }
func (e *SyncEngine) Worklogs() interfaces.Worklogs { return e.worklogs }
