package providers

import (
	"errors"
	"fmt"
	"github.com/gookit/validate"
	"iotd/internal/structures"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

func (v *CnfValidator) Validate() error {
	sections := []any{
		&v.conf.WebServer,
		&v.conf.Logger,
		&v.conf.Mqtt,
		&v.conf.Database,
		&v.conf.Monitoring,
		&v.conf.Archive,
	}
	for _, section := range sections {
		vd := validate.Struct(section)
		if !vd.Validate() {
			return fmt.Errorf("invalid configuration: %s", vd.Errors.One())
		}
	}

	if v.conf.Archive.DeleteAfterDays < v.conf.Archive.ArchiveAfterDays {
		return errors.New("invalid configuration: archive.deleteAfterDays must not be less than archive.archiveAfterDays")
	}
	if v.conf.Redis.Enabled && v.conf.Redis.Addr == "" {
		return errors.New("invalid configuration: redis.addr is required when redis is enabled")
	}
	if v.conf.Redis.Enabled && v.conf.Mqtt.ClientID == "" {
		return errors.New("invalid configuration: mqtt.clientId is required when redis is enabled")
	}
	return nil
}
