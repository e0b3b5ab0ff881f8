package persona

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
)

// OrderingFields are the fields personas can be ordered by.
var OrderingFields = []string{"name", "age", "created_at", "updated_at"}

type Persona struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Age        *int      `json:"age"`
	Gender     string    `json:"gender"`
	Occupation string    `json:"occupation"`
	Location   string    `json:"location"`
	Bio        string    `json:"bio"`
	Traits     []string  `json:"traits"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

// NewPersona contains information needed to create a new Persona.
type NewPersona struct {
	Name       string   `json:"name" validate:"required,notblank,max=100"`
	Age        *int     `json:"age" validate:"omitempty,gt=0,lte=120"`
	Gender     string   `json:"gender" validate:"max=50"`
	Occupation string   `json:"occupation" validate:"max=100"`
	Location   string   `json:"location" validate:"max=100"`
	Bio        string   `json:"bio" validate:"max=2000"`
	Traits     []string `json:"traits" validate:"omitempty,max=20,unique,dive,notblank,max=50"`
}

func (np *NewPersona) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.Gender = core.CleanString(np.Gender)
	np.Occupation = core.CleanString(np.Occupation)
	np.Location = core.CleanString(np.Location)
	np.Bio = core.CleanString(np.Bio)
	np.Traits = core.CleanStrings(np.Traits, true /* lower */)
	return validate.Struct(np)
}

// UpdatePersona defines what information may be provided to modify an existing Persona.
// nil fields are left untouched.
type UpdatePersona struct {
	Name       *string  `json:"name" validate:"omitempty,notblank,max=100"`
	Age        *int     `json:"age" validate:"omitempty,gt=0,lte=120"`
	ClearAge   bool     `json:"clear_age"`
	Gender     *string  `json:"gender" validate:"omitempty,max=50"`
	Occupation *string  `json:"occupation" validate:"omitempty,max=100"`
	Location   *string  `json:"location" validate:"omitempty,max=100"`
	Bio        *string  `json:"bio" validate:"omitempty,max=2000"`
	Traits     []string `json:"traits" validate:"omitempty,max=20,unique,dive,notblank,max=50"`
}

func (up *UpdatePersona) Validate(validate *validator.Validate) error {
	for _, s := range []*string{up.Name, up.Gender, up.Occupation, up.Location, up.Bio} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	up.Traits = core.CleanStrings(up.Traits, true /* lower */)
	return validate.Struct(up)
}

// apply patches prs with the provided fields.
func (up UpdatePersona) apply(prs Persona) Persona {
	if up.Name != nil {
		prs.Name = *up.Name
	}
	if up.ClearAge {
		prs.Age = nil
	} else if up.Age != nil {
		age := *up.Age
		prs.Age = &age
	}
	if up.Gender != nil {
		prs.Gender = *up.Gender
	}
	if up.Occupation != nil {
		prs.Occupation = *up.Occupation
	}
	if up.Location != nil {
		prs.Location = *up.Location
	}
	if up.Bio != nil {
		prs.Bio = *up.Bio
	}
	if up.Traits != nil {
		prs.Traits = up.Traits
	}
	return prs
}

type QueryFilter struct {
	Search string   `query:"search"`
	IDs    []string `query:"id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	if qf.IDs = core.CleanStrings(qf.IDs, true /* lower */); len(qf.IDs) == 0 {
		qf.IDs = nil
	}
}
