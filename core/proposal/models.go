package proposal

import (
	"time"

	"github.com/thesisman/backend/core"
)

type Level string

const (
	LevelBachelor Level = "BSC"
	LevelMaster   Level = "MSC"
)

func (l Level) Valid() bool {
	return l == LevelBachelor || l == LevelMaster
}

type Proposal struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	SupervisorID     string    `json:"supervisor_id"`
	CoSupervisors    []string  `json:"co_supervisors"` // teacher emails
	Groups           []string  `json:"groups"`
	Keywords         []string  `json:"keywords"`
	Level            Level     `json:"level"`
	CdS              string    `json:"cds"`
	ExpirationDate   time.Time `json:"expiration_date"` // calendar date, midnight UTC
	Deleted          bool      `json:"deleted"`
	ManuallyArchived bool      `json:"manually_archived"`
	CreatedAt        time.Time `json:"created_at"` // UTC
}

// IsActive reports whether students may apply to p on the given date.
// hasAccepted tells whether an application to p has been accepted.
func (p Proposal) IsActive(today time.Time, hasAccepted bool) bool {
	return !p.Deleted && !p.ManuallyArchived && !p.ExpirationDate.Before(today) && !hasAccepted
}

// NewProposal contains information needed to create a new Proposal.
type NewProposal struct {
	Title          string   `json:"title" validate:"required"`
	Description    string   `json:"description" validate:"required"`
	CoSupervisors  []string `json:"co_supervisors" validate:"omitempty,dive,email"`
	Groups         []string `json:"groups" validate:"omitempty,dive,required"`
	Keywords       []string `json:"keywords"`
	Level          Level    `json:"level" validate:"required,level"`
	CdS            string   `json:"cds" validate:"required"`
	ExpirationDate string   `json:"expiration_date" validate:"required,date"`
}

func (np *NewProposal) Clean() {
	np.Title = core.CleanString(np.Title)
	np.Description = core.CleanString(np.Description)
	np.CoSupervisors = core.CleanList(np.CoSupervisors, true /* lower */)
	np.Groups = core.CleanList(np.Groups)
	np.Keywords = core.CleanList(np.Keywords)
	np.Level = Level(core.CleanString(string(np.Level)))
	np.CdS = core.CleanString(np.CdS)
	np.ExpirationDate = core.CleanString(np.ExpirationDate)
}

// UpdateProposal defines what information may be provided to modify an existing Proposal.
// It replaces every field.
type UpdateProposal = NewProposal

type QueryFilter struct {
	IDs          []string
	SupervisorID string
	Search       string // case-insensitive match on title, description or keywords
	Level        Level
	CdS          string

	// ActiveOn keeps the proposals that are active on that date.
	ActiveOn time.Time
	// ExpiringFrom and ExpiringTo bound the expiration date, both inclusive.
	ExpiringFrom time.Time
	ExpiringTo   time.Time

	IncludeDeleted  bool
	ExcludeArchived bool // drop manually archived ones
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.CdS = core.CleanString(qf.CdS)
}
