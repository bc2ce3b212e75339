package model

// Holiday is a public holiday on a given date (YYYY-MM-DD).
type Holiday struct {
	Date        string `json:"date"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Year        int    `json:"year"`
	IsNational  bool   `json:"isNational"`
	IsState     bool   `json:"isState"`
	IsMunicipal bool   `json:"isMunicipal"`
}
