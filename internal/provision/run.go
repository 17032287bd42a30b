package provision

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/onalabs/biotupload/internal/biot"
	"github.com/onalabs/biotupload/internal/config"
)

// Client is the subset of the BioT API the pipeline uses.
type Client interface {
	Login(ctx context.Context, username, password string) error
	Organizations(ctx context.Context) ([]biot.Organization, error)
	RegistrationCodeTemplateID(ctx context.Context) (string, error)
	DeviceTemplateID(ctx context.Context) (string, error)
	CreateRegistrationCode(ctx context.Context, ownerID *string, code, templateID string) (string, error)
	CreateDevice(ctx context.Context, ownerID *string, registrationCodeID, templateID string, spec biot.DeviceSpec) error
}

// Runner executes the provisioning pipeline for one device.
type Runner struct {
	client      Client
	settleDelay time.Duration
}

// NewRunner creates a runner. settleDelay is waited between registration-code
// and device creation.
func NewRunner(client Client, settleDelay time.Duration) *Runner {
	return &Runner{
		client:      client,
		settleDelay: settleDelay,
	}
}

// Run walks the pipeline in order: login, organization list, template
// lookups, registration-code creation, device creation. It stops at the
// first failure and returns the error tagged with its status code; later
// steps are never attempted after a failure. There are no retries and no
// rollback: a registration code orphaned by a device-creation failure stays
// on the platform.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) error {
	if !cfg.SerialValid {
		return step(CodeInvalidSerial, fmt.Errorf("serial number %q is not a 10-digit number in [1000000000, 9999999999]", cfg.SerialNumber))
	}

	if err := r.client.Login(ctx, cfg.Username, cfg.Password); err != nil {
		return step(CodeLogin, err)
	}
	log.Printf("Logged in to %s environment as %s", cfg.Environment, cfg.Username)

	orgs, err := r.client.Organizations(ctx)
	if err != nil {
		return step(CodeOrganizationFetch, err)
	}
	dir := NewDirectory(orgs)

	rcTemplateID, err := r.client.RegistrationCodeTemplateID(ctx)
	if err != nil {
		return step(CodeRegistrationCodeTemplate, err)
	}

	deviceTemplateID, err := r.client.DeviceTemplateID(ctx)
	if err != nil {
		return step(CodeDeviceTemplate, err)
	}

	ownerID := dir.Resolve(cfg.Organization)
	if ownerID == nil {
		log.Printf("Organization %q not found in platform list, creating with null owner", cfg.Organization)
	}

	rcID, err := r.client.CreateRegistrationCode(ctx, ownerID, cfg.RegistrationCode, rcTemplateID)
	if err != nil {
		return step(CodeEntityCreation, err)
	}
	log.Printf("Registration code created: %s", rcID)

	// The platform needs a moment before the new registration code is
	// referenceable from a device create (eventual-consistency allowance,
	// not a documented contract).
	if r.settleDelay > 0 {
		select {
		case <-ctx.Done():
			return step(CodeEntityCreation, ctx.Err())
		case <-time.After(r.settleDelay):
		}
	}

	err = r.client.CreateDevice(ctx, ownerID, rcID, deviceTemplateID, biot.DeviceSpec{
		SerialNumber:  cfg.SerialNumber,
		Description:   cfg.Description,
		DeviceVersion: cfg.Version,
	})
	if err != nil {
		return step(CodeEntityCreation, err)
	}
	log.Printf("Device %s created", cfg.SerialNumber)

	return nil
}
