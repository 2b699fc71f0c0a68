package core

import (
	"fmt"
	"math"
	"strings"
)

// Notices shown to the user for input validation and lookup failures.
const (
	NoticeMissingAddresses = "Please enter both starting and destination addresses"
	NoticeMissingAddress   = "Please enter an address"
	NoticeAddressNotFound  = "Address not found"
	NoticeMissingImage     = "Please select an image."
)

// ValidateCoords checks if latitude and longitude are within valid ranges
func ValidateCoords(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return NewValidationError(ErrInvalidLatitude,
			fmt.Sprintf("Latitude must be between -90 and 90, got %f", lat)).
			WithGuidance("Ensure latitude is in decimal degrees")
	}
	if lon < -180 || lon > 180 {
		return NewValidationError(ErrInvalidLongitude,
			fmt.Sprintf("Longitude must be between -180 and 180, got %f", lon)).
			WithGuidance("Ensure longitude is in decimal degrees")
	}
	return nil
}

// ValidateAddresses rejects a trip request unless both addresses carry text.
func ValidateAddresses(start, end string) error {
	var missing []string
	if strings.TrimSpace(start) == "" {
		missing = append(missing, "start_address")
	}
	if strings.TrimSpace(end) == "" {
		missing = append(missing, "end_address")
	}
	if len(missing) == 0 {
		return nil
	}
	return NewValidationError(ErrEmptyParameter,
		fmt.Sprintf("empty address: %s", strings.Join(missing, ", "))).
		WithNotice(NoticeMissingAddresses)
}

// ValidateAddress rejects a single address that is empty or only whitespace.
func ValidateAddress(address string) error {
	if strings.TrimSpace(address) == "" {
		return NewValidationError(ErrEmptyParameter, "empty address").
			WithNotice(NoticeMissingAddress)
	}
	return nil
}

// ValidateDistance rejects negative or non-finite distances.
func ValidateDistance(meters float64) error {
	if meters < 0 || math.IsNaN(meters) || math.IsInf(meters, 0) {
		return NewValidationError(ErrInvalidParameter,
			fmt.Sprintf("distance must be a non-negative number of meters, got %f", meters))
	}
	return nil
}
