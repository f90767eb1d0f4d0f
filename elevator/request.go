package elevator

import (
	uuid "github.com/nu7hatch/gouuid"
	log "github.com/sirupsen/logrus"

	"github.com/fshh520/osio-iosched/iosched"
)

// NewRequest makes a request with a fresh random ID.
func NewRequest(dir iosched.Direction, sync bool, sector uint64, sectors uint32) *iosched.Request {
	return &iosched.Request{
		Dir:     dir,
		Sync:    sync,
		ID:      newID(),
		Sector:  sector,
		Sectors: sectors,
	}
}

func newID() string {
	for {
		id, err := uuid.NewV4()
		if err == nil {
			return id.String()
		}
		log.Errorf("Failed to generate request id, retrying: %v", err)
	}
}
