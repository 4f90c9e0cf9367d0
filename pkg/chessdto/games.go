package chessdto

import "time"

type GamePlayer struct {
	Username string `json:"username,omitempty"`
	Result   string `json:"result,omitempty"`
}

type Game struct {
	ID               string     `json:"id"`
	ChessComGameUUID string     `json:"chess_com_game_uuid,omitempty"`
	ChessComUsername string     `json:"chess_com_username"`
	PGN              string     `json:"pgn"`
	TCN              string     `json:"tcn,omitempty"`
	EndTime          *int64     `json:"end_time,omitempty"`
	TimeClass        string     `json:"time_class,omitempty"`
	TimeControl      string     `json:"time_control,omitempty"`
	White            GamePlayer `json:"white"`
	Black            GamePlayer `json:"black"`
	CreatedAt        time.Time  `json:"created_at"`
}

type GamesPage struct {
	Games  []Game `json:"games"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}
