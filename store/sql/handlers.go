package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func driverDataHandlers() repository.ModelHandlers[*driverDataRecord] {
	return repository.ModelHandlers[*driverDataRecord]{
		NewRecord: func() *driverDataRecord {
			return &driverDataRecord{}
		},
		GetID: func(record *driverDataRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *driverDataRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "driver"
		},
		GetIdentifierValue: func(record *driverDataRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.Driver)
		},
	}
}

func oauthStateHandlers() repository.ModelHandlers[*oauthStateRecord] {
	return repository.ModelHandlers[*oauthStateRecord]{
		NewRecord: func() *oauthStateRecord {
			return &oauthStateRecord{}
		},
		GetID: func(record *oauthStateRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *oauthStateRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "state"
		},
		GetIdentifierValue: func(record *oauthStateRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.State)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
