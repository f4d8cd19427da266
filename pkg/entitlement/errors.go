package entitlement

import "errors"

var (
	ErrPlanNotFound = errors.New("entitlement: plan not found in catalog")

	ErrSpeculationInProgress = errors.New("entitlement: speculation already in progress")

	ErrUnknownEventType = errors.New("entitlement: unknown sync event type")
	ErrMalformedEvent   = errors.New("entitlement: malformed sync event payload")
	ErrMissingTenant    = errors.New("entitlement: sync event is missing a tenant ID")
)
