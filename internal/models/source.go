package models

// SourceRecord is one normalized row from the external home-run feed:
// a player's season-to-date home run counts as reported by the provider.
type SourceRecord struct {
	ExternalID      string `json:"PlayerID"`
	Name            string `json:"Name"`
	TeamAbbr        string `json:"Team"`
	PhotoRef        string `json:"PhotoUrl,omitempty"`
	RegularSeasonHR int    `json:"HomeRuns"`
	PostseasonHR    int    `json:"PostseasonHomeRuns"`
}

// TotalHR returns regular season plus postseason home runs.
func (r SourceRecord) TotalHR() int {
	return r.RegularSeasonHR + r.PostseasonHR
}
