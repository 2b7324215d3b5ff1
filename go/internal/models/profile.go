package models

// Team is the faction a player captures for.
type Team struct {
	Color string `json:"color"`
}

// PlayerProfile is the signed-in player as resolved by the session lookup.
type PlayerProfile struct {
	ID                ID   `json:"id"`
	Team              Team `json:"team"`
	RemainingCaptures int  `json:"remaining_captures"`
}

// CanCapture reports whether the profile still has allowance left.
func (p *PlayerProfile) CanCapture() bool {
	return p != nil && p.RemainingCaptures > 0
}
