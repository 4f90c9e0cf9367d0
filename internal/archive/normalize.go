package archive

import (
	"strings"

	"github.com/park285/chess-insight/internal/domain"
)

type archiveMonth struct {
	Games []ArchiveGame `json:"games"`
}

// ArchiveGame mirrors one entry of a monthly archive response.
type ArchiveGame struct {
	URL         string        `json:"url"`
	PGN         string        `json:"pgn"`
	TCN         string        `json:"tcn"`
	UUID        string        `json:"uuid"`
	TimeControl string        `json:"time_control"`
	TimeClass   string        `json:"time_class"`
	Rules       string        `json:"rules"`
	Rated       bool          `json:"rated"`
	EndTime     *int64        `json:"end_time"`
	White       ArchivePlayer `json:"white"`
	Black       ArchivePlayer `json:"black"`
}

type ArchivePlayer struct {
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Result   string `json:"result"`
}

// normalizeMonth keeps games inside the speed filter that carry a PGN.
func normalizeMonth(games []ArchiveGame, owner string, speeds domain.SpeedSet) []domain.NormalizedGame {
	out := make([]domain.NormalizedGame, 0, len(games))
	for _, g := range games {
		class := domain.SpeedCategory(strings.ToLower(strings.TrimSpace(g.TimeClass)))
		if !speeds.Contains(class) {
			continue
		}
		if strings.TrimSpace(g.PGN) == "" {
			continue
		}
		out = append(out, normalize(g, owner, class))
	}
	return out
}

func normalize(g ArchiveGame, owner string, class domain.SpeedCategory) domain.NormalizedGame {
	n := domain.NormalizedGame{
		ExternalID:    strings.TrimSpace(g.UUID),
		PGN:           g.PGN,
		TCN:           g.TCN,
		OwnerUsername: owner,
		TimeClass:     class,
		TimeControl:   g.TimeControl,
		WhiteUsername: g.White.Username,
		WhiteResult:   g.White.Result,
		BlackUsername: g.Black.Username,
		BlackResult:   g.Black.Result,
	}
	if g.EndTime != nil {
		end := *g.EndTime
		n.EndTime = &end
	}
	return n
}
