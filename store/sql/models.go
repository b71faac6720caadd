package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

// driverDataRecord holds the persisted payload of one deploy driver. Data is
// the encoded credential, sealed when a cipher is configured.
type driverDataRecord struct {
	bun.BaseModel `bun:"table:deployer_driver_data,alias:ddd"`

	ID                string     `bun:"id,pk"`
	Driver            string     `bun:"driver,notnull"`
	Data              []byte     `bun:"data,notnull"`
	PayloadFormat     string     `bun:"payload_format,notnull"`
	PayloadVersion    int        `bun:"payload_version,notnull"`
	EncryptionKeyID   string     `bun:"encryption_key_id,notnull"`
	EncryptionVersion int        `bun:"encryption_version,notnull"`
	ExpiresAt         *time.Time `bun:"expires_at,nullzero"`
	CreatedAt         time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type oauthStateRecord struct {
	bun.BaseModel `bun:"table:deployer_oauth_states,alias:dos"`

	ID          string    `bun:"id,pk"`
	State       string    `bun:"state,notnull"`
	SessionID   string    `bun:"session_id,notnull"`
	RedirectURI string    `bun:"redirect_uri,notnull"`
	ExpiresAt   time.Time `bun:"expires_at,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
