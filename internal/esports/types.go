package esports

import "time"

// Game is a title covered by the provider (CS2, League of Legends, ...).
type Game struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// LeagueRef is the league a match or tournament belongs to.
type LeagueRef struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	ImageURL string `json:"image_url,omitempty"`
}

// TournamentRef is the short tournament form embedded in matches.
type TournamentRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Tier string `json:"tier,omitempty"`
}

// TeamRef is the short team form embedded in players.
type TeamRef struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Acronym string `json:"acronym,omitempty"`
}

// Team is a competing roster.
type Team struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Acronym  string   `json:"acronym,omitempty"`
	Slug     string   `json:"slug"`
	Location string   `json:"location,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	Players  []Player `json:"players,omitempty"`
}

// Player is a professional player.
type Player struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	FirstName   string   `json:"first_name,omitempty"`
	LastName    string   `json:"last_name,omitempty"`
	Role        string   `json:"role,omitempty"`
	Nationality string   `json:"nationality,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	CurrentTeam *TeamRef `json:"current_team,omitempty"`
}

// Opponent is one side of a match.
type Opponent struct {
	Type     string `json:"type"`
	Opponent Team   `json:"opponent"`
}

// Score is a side's map or game count in a match.
type Score struct {
	TeamID int `json:"team_id"`
	Score  int `json:"score"`
}

// Stream is a broadcast of a match.
type Stream struct {
	Language string `json:"language"`
	RawURL   string `json:"raw_url"`
	Main     bool   `json:"main"`
	Official bool   `json:"official"`
}

// Match is a scheduled, running or finished series.
type Match struct {
	ID            int           `json:"id"`
	Name          string        `json:"name"`
	Slug          string        `json:"slug"`
	Status        string        `json:"status"`
	MatchType     string        `json:"match_type,omitempty"`
	NumberOfGames int           `json:"number_of_games"`
	ScheduledAt   *time.Time    `json:"scheduled_at,omitempty"`
	BeginAt       *time.Time    `json:"begin_at,omitempty"`
	EndAt         *time.Time    `json:"end_at,omitempty"`
	Videogame     Game          `json:"videogame"`
	League        LeagueRef     `json:"league"`
	Tournament    TournamentRef `json:"tournament"`
	Opponents     []Opponent    `json:"opponents"`
	Results       []Score       `json:"results"`
	WinnerID      *int          `json:"winner_id,omitempty"`
	Streams       []Stream      `json:"streams_list,omitempty"`
}

// Teams returns the two competing teams when both are known.
func (m Match) Teams() (Team, Team, bool) {
	if len(m.Opponents) < 2 {
		return Team{}, Team{}, false
	}
	return m.Opponents[0].Opponent, m.Opponents[1].Opponent, true
}

// Tournament is a stage of a league season.
type Tournament struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	Slug      string     `json:"slug"`
	Tier      string     `json:"tier,omitempty"`
	PrizePool string     `json:"prizepool,omitempty"`
	BeginAt   *time.Time `json:"begin_at,omitempty"`
	EndAt     *time.Time `json:"end_at,omitempty"`
	Videogame Game       `json:"videogame"`
	League    LeagueRef  `json:"league"`
	Teams     []Team     `json:"teams,omitempty"`
}

// Standing is one row of a tournament table.
type Standing struct {
	Rank   int  `json:"rank"`
	Team   Team `json:"team"`
	Wins   int  `json:"wins"`
	Losses int  `json:"losses"`
	Ties   int  `json:"ties,omitempty"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Items   []T `json:"items"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	// Total is the provider-reported item count, or 0 when unknown.
	Total int `json:"total"`
}

// Match and tournament status buckets accepted by the listing endpoints.
const (
	StatusRunning  = "running"
	StatusUpcoming = "upcoming"
	StatusPast     = "past"
)

// ValidStatus reports whether status is empty or a known bucket.
func ValidStatus(status string) bool {
	switch status {
	case "", StatusRunning, StatusUpcoming, StatusPast:
		return true
	default:
		return false
	}
}
