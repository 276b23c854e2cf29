package chain

import (
	"fmt"
	"log/slog"

	"github.com/kirychukyurii/faculty-scheduler/internal/config"
	"github.com/kirychukyurii/faculty-scheduler/internal/directory"
	"github.com/kirychukyurii/faculty-scheduler/internal/ledger"
)

// Dependencies are the collaborators remote validators may need
type Dependencies struct {
	Directory directory.FacultyDirectory
	Quota     directory.QuotaProvider
	Ledger    ledger.Ledger
}

// Build assembles a chain from the configured remote validator names.
// The local demand and identity checks always come first.
func Build(names []string, deps Dependencies, logger *slog.Logger) (*Chain, error) {
	validators := []Validator{DemandValidator{}, IdentityValidator{}}

	for _, name := range names {
		switch name {
		case config.ValidatorFaculty:
			if deps.Directory == nil {
				return nil, fmt.Errorf("validator %q requires a faculty directory", name)
			}
			validators = append(validators, NewFacultyValidator(deps.Directory, logger))
		case config.ValidatorResource:
			if deps.Quota == nil || deps.Ledger == nil {
				return nil, fmt.Errorf("validator %q requires a quota provider and a ledger", name)
			}
			validators = append(validators, NewResourceValidator(deps.Quota, deps.Ledger, logger))
		default:
			return nil, fmt.Errorf("unknown validator %q", name)
		}
	}

	return New(logger, validators...), nil
}
