package chessdto

type LinkAccountRequest struct {
	ChessComUsername string `json:"chess_com_username" validate:"required,min=2,max=50"`
}

type LinkAccountResponse struct {
	UserID           string `json:"id"`
	ChessComUsername string `json:"chess_com_username"`
}

// FetchGamesRequest selects the archive window. Unknown game types are
// ignored; an empty or all-unknown list means rapid, blitz and bullet.
type FetchGamesRequest struct {
	Timeframe string   `json:"timeframe" validate:"omitempty,oneof=3_months 1_year 5_years 10_years"`
	GameTypes []string `json:"game_types" validate:"omitempty,max=8,dive,max=16"`
}

type FetchGamesResponse struct {
	Fetched    int `json:"fetched"`
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

type AnalysisRequest struct {
	PGN string `json:"pgn" validate:"required,max=200000"`
}
