// Package schema defines the documents persisted in the document store and
// the collection paths they live under.
//
//	users/<uid>                                       Account
//	users/<uid>/patients/<pid>                        Patient
//	users/<uid>/patients/<pid>/consultations/<eid>    ClinicalEvent
//	auth_credentials/<login>                          Credential
//	error_logs/<id>                                   diagnostic record
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/Alijeyrad/consultorio_backend/pkg/docstore"
)

const (
	PatientsCollection = "patients"
	EventsCollection   = "consultations"
)

// ProfileParent is the collection holding account profiles.
const ProfileParent = docstore.UsersCollection

func PatientsPath(uid string) string {
	return docstore.Join(docstore.UsersCollection, uid, PatientsCollection)
}

func EventsPath(uid, patientID string) string {
	return docstore.Join(PatientsPath(uid), patientID, EventsCollection)
}

// toFields converts a tagged struct into document fields, dropping the keys
// that only exist in API payloads.
func toFields(v any, drop ...string) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	for _, k := range drop {
		delete(out, k)
	}
	return out, nil
}

func fromFields(fields map[string]any, v any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
