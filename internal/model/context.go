package model

// Weather is the environmental context consumed by the planner. A cycle treats
// one value as valid for its whole duration.
type Weather struct {
	Temperature        float64 `json:"temperature"`
	Condition          string  `json:"condition"`
	SuitableForOutdoor bool    `json:"suitable_for_outdoor"`
}

// Occupancy describes who else is in the home and where the user is.
type Occupancy struct {
	UserAlone   bool   `json:"user_alone"`
	PeopleCount int    `json:"people_count"`
	Room        string `json:"room,omitempty"`
}
