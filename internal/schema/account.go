package schema

import (
	"errors"

	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

type Role string

const (
	RoleDoctor Role = "doctor"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleDoctor || r == RoleAdmin
}

// ClinicConfig is the branding of one clinic the account works at.
type ClinicConfig struct {
	Name                  string `json:"name"`
	DoctorName            string `json:"doctorName"`
	PrimaryColor          string `json:"primaryColor"`
	RecipeTemplateURL     string `json:"recipeTemplateUrl,omitempty"`
	LetterheadTemplateURL string `json:"letterheadTemplateUrl,omitempty"`
}

// Account is the profile document of an operator.
type Account struct {
	UID      string                  `json:"uid"`
	Username string                  `json:"username"`
	Email    string                  `json:"email"`
	Role     Role                    `json:"role"`
	Clinics  map[string]ClinicConfig `json:"clinics"`
}

var ErrNoClinics = errors.New("account has no clinics")

func (a Account) Fields() (map[string]any, error) {
	return toFields(a)
}

func AccountFromDoc(d docstore.Document) (Account, error) {
	var a Account
	if err := fromFields(d.Fields, &a); err != nil {
		return Account{}, err
	}
	if a.UID == "" {
		a.UID = d.ID
	}
	return a, nil
}

// HasClinic reports whether id is one of the account's clinics.
func (a Account) HasClinic(id string) bool {
	_, ok := a.Clinics[id]
	return ok
}

// Credential maps a canonical login to an account and its password hash.
type Credential struct {
	UID          string `json:"uid"`
	PasswordHash string `json:"passwordHash"`
}

func (c Credential) Fields() (map[string]any, error) {
	return toFields(c)
}

func CredentialFromDoc(d docstore.Document) (Credential, error) {
	var c Credential
	err := fromFields(d.Fields, &c)
	return c, err
}
