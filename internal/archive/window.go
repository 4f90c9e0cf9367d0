package archive

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/park285/chess-insight/internal/domain"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{2,50}$`)

type YearMonth struct {
	Year  int
	Month time.Month
}

func (ym YearMonth) String() string { return fmt.Sprintf("%04d/%02d", ym.Year, int(ym.Month)) }

// MonthsBack lists n calendar months ending with the month of now (UTC),
// newest first.
func MonthsBack(now time.Time, n int) []YearMonth {
	if n <= 0 {
		return nil
	}
	now = now.UTC()
	year, month := now.Year(), now.Month()
	out := make([]YearMonth, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, YearMonth{Year: year, Month: month})
		month--
		if month < time.January {
			month = time.December
			year--
		}
	}
	return out
}

// ValidateUsername trims and checks that username can address the archive.
func ValidateUsername(username string) (string, error) {
	u := strings.TrimSpace(username)
	if !usernamePattern.MatchString(u) {
		return "", fmt.Errorf("%w: malformed username %q", domain.ErrUpstreamUnavailable, username)
	}
	return u, nil
}
