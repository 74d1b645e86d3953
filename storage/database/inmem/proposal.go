package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/thesisman/backend/core/application"
	"github.com/thesisman/backend/core/proposal"
)

type proposalRepository struct {
	db *DB
}

var _ proposal.Repository = (*proposalRepository)(nil) // interface compliance check

func NewProposalRepository(db *DB) *proposalRepository {
	return &proposalRepository{db: db}
}

func (repo *proposalRepository) store(p proposal.Proposal) proposal.Proposal {
	p.CoSupervisors = copyStrings(p.CoSupervisors)
	p.Groups = copyStrings(p.Groups)
	p.Keywords = copyStrings(p.Keywords)
	repo.db.tables.proposals[p.ID] = p
	return p
}

func (repo *proposalRepository) CreateProposal(ctx context.Context, p proposal.Proposal) (proposal.Proposal, error) {
	defer repo.db.lock(ctx)()
	return repo.store(p), nil
}

func (repo *proposalRepository) GetProposal(ctx context.Context, id string) (proposal.Proposal, error) {
	defer repo.db.lock(ctx)()

	if p, ok := repo.db.tables.proposals[id]; ok {
		return p, nil
	}
	return proposal.Proposal{}, proposal.ErrNotFound
}

// LockProposal is GetProposal: the unit of work already holds the whole store.
func (repo *proposalRepository) LockProposal(ctx context.Context, id string) (proposal.Proposal, error) {
	return repo.GetProposal(ctx, id)
}

func (repo *proposalRepository) QueryProposals(ctx context.Context, filter proposal.QueryFilter) ([]proposal.Proposal, error) {
	defer repo.db.lock(ctx)()

	search := strings.ToLower(filter.Search)
	props := make([]proposal.Proposal, 0)
	for _, p := range repo.db.tables.proposals {
		if len(filter.IDs) > 0 && !contains(filter.IDs, p.ID) {
			continue
		}
		if filter.SupervisorID != "" && p.SupervisorID != filter.SupervisorID {
			continue
		}
		if search != "" && !matches(p, search) {
			continue
		}
		if filter.Level != "" && p.Level != filter.Level {
			continue
		}
		if filter.CdS != "" && p.CdS != filter.CdS {
			continue
		}
		if !filter.ActiveOn.IsZero() && !p.IsActive(filter.ActiveOn, repo.hasAccepted(p.ID)) {
			continue
		}
		if !filter.ExpiringFrom.IsZero() && p.ExpirationDate.Before(filter.ExpiringFrom) {
			continue
		}
		if !filter.ExpiringTo.IsZero() && p.ExpirationDate.After(filter.ExpiringTo) {
			continue
		}
		if !filter.IncludeDeleted && p.Deleted {
			continue
		}
		if filter.ExcludeArchived && p.ManuallyArchived {
			continue
		}
		props = append(props, p)
	}

	sort.Slice(props, func(i, j int) bool {
		a, b := props[i], props[j]
		if !a.ExpirationDate.Equal(b.ExpirationDate) {
			return a.ExpirationDate.Before(b.ExpirationDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return props, nil
}

func (repo *proposalRepository) UpdateProposal(ctx context.Context, p proposal.Proposal) (proposal.Proposal, error) {
	defer repo.db.lock(ctx)()

	orig, ok := repo.db.tables.proposals[p.ID]
	if !ok {
		return proposal.Proposal{}, proposal.ErrNotFound
	}
	p.SupervisorID = orig.SupervisorID
	p.CreatedAt = orig.CreatedAt
	return repo.store(p), nil
}

func (repo *proposalRepository) hasAccepted(proposalID string) bool {
	for _, app := range repo.db.tables.applications {
		if app.ProposalID == proposalID && app.State == application.StateAccepted {
			return true
		}
	}
	return false
}

func matches(p proposal.Proposal, search string) bool {
	return strings.Contains(strings.ToLower(p.Title), search) ||
		strings.Contains(strings.ToLower(p.Description), search) ||
		strings.Contains(strings.ToLower(strings.Join(p.Keywords, " ")), search)
}
