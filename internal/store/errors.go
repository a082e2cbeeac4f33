package store

import "errors"

var (
	// ErrDuplicateEndpoint is returned by Create when the endpoint is already
	// registered, by any tenant and in any state.
	ErrDuplicateEndpoint = errors.New("push endpoint already subscribed")
	// ErrCampaignNotFound is returned when a campaign does not exist or belongs to another tenant.
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrTrackingLinkNotFound is returned when no tracking link has the given id.
	ErrTrackingLinkNotFound = errors.New("tracking link not found")
	// ErrIncompleteDeliveries is returned by FinalizeCampaign when the delivery
	// records do not account for every subscriber the campaign was sent to.
	ErrIncompleteDeliveries = errors.New("delivery records do not match campaign total")
	// ErrCampaignNotDispatching is returned when a campaign was already
	// finalized or discarded and can no longer change state.
	ErrCampaignNotDispatching = errors.New("campaign is not dispatching")
)
