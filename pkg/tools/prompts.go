package tools

import (
	"fmt"
	"strings"

	"github.com/NERVsystems/ecoroute/pkg/trip"
)

// TripPlanningPromptName is the name the prompt is registered under.
const TripPlanningPromptName = "trip_planning"

// TripPlanningPrompt explains the tools to an assistant.
func TripPlanningPrompt() string {
	var b strings.Builder
	b.WriteString("You help users plan trips and see the carbon cost of how they travel.\n\n")
	b.WriteString("Call plan_trip with start_address, end_address and mode. It geocodes both ")
	b.WriteString("addresses (first Nominatim match only), fetches the OSRM route, draws it on the ")
	b.WriteString("session map and returns distance, carbon emissions and reward points.\n\n")
	b.WriteString("Modes, emission factors and reward points:\n")
	for _, m := range trip.Modes() {
		factor, _ := m.EmissionFactor()
		points, _ := m.RewardPoints()
		fmt.Fprintf(&b, "- %s: %d g CO2 per km, %d points (%s profile)\n", m, factor, points, m.Profile())
	}
	b.WriteString("\nIf plan_trip reports ADDRESS_NOT_FOUND, ask the user for a more specific address. ")
	b.WriteString("Network failures and empty routes are not the user's fault; suggest trying again later.\n")
	b.WriteString("Use get_map_view to show the drawn route as GeoJSON and get_emissions to read the last stored value.\n")
	b.WriteString("For crop photos, call detect_crop_disease and relay the precautions, solution, pesticide type and brand.\n")
	return b.String()
}
