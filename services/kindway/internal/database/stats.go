package database

import (
	"math"
	"time"

	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

// DayCount is a per-day counter; Day is formatted YYYY-MM-DD (UTC).
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// CategoryCount counts offers per category.
type CategoryCount struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	Count      int    `json:"count"`
}

// Stats is the admin dashboard snapshot.
type Stats struct {
	TotalUsers       int             `json:"total_users"`
	NewUsers7d       int             `json:"new_users_7d"`
	TotalOffers      int             `json:"total_offers"`
	AcceptedOffers   int             `json:"accepted_offers"`
	AcceptanceRate   float64         `json:"acceptance_rate"`
	TotalNGOs        int             `json:"total_ngos"`
	VerifiedNGOs     int             `json:"verified_ngos"`
	VerificationRate float64         `json:"verification_rate"`
	OffersPerDay     []DayCount      `json:"offers_per_day"`
	AcceptedPerDay   []DayCount      `json:"accepted_per_day"`
	OffersByCategory []CategoryCount `json:"offers_by_category"`
	PendingNGOs      int             `json:"pending_ngos"`
	RecentPending    []models.NGO    `json:"recent_pending"`
}

const statsDays = 7

// Stats computes the dashboard snapshot as of at.
func (db *DB) Stats(at time.Time) (*Stats, error) {
	at = at.UTC()
	weekAgo := at.AddDate(0, 0, -statsDays)
	firstDay := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(statsDays - 1))

	s := &Stats{}
	counts := []struct {
		dst  *int
		q    string
		args []interface{}
	}{
		{&s.TotalUsers, `SELECT COUNT(*) FROM users`, nil},
		{&s.NewUsers7d, `SELECT COUNT(*) FROM users WHERE created_at >= ?`, []interface{}{weekAgo}},
		{&s.TotalOffers, `SELECT COUNT(*) FROM offers`, nil},
		{&s.AcceptedOffers, `SELECT COUNT(*) FROM offers WHERE status = 'ACCEPTED'`, nil},
		{&s.TotalNGOs, `SELECT COUNT(*) FROM ngo_profiles`, nil},
		{&s.VerifiedNGOs, `SELECT COUNT(*) FROM ngo_profiles WHERE verification_status = 'VERIFIED'`, nil},
		{&s.PendingNGOs, `SELECT COUNT(*) FROM ngo_profiles WHERE verification_status = 'PENDING'`, nil},
	}
	for _, c := range counts {
		if err := db.conn.QueryRow(c.q, c.args...).Scan(c.dst); err != nil {
			return nil, err
		}
	}
	s.AcceptanceRate = percent(s.AcceptedOffers, s.TotalOffers)
	s.VerificationRate = percent(s.VerifiedNGOs, s.TotalNGOs)

	var err error
	s.OffersPerDay, err = db.perDay(`SELECT substr(created_at, 1, 10), COUNT(*) FROM offers
	                                 WHERE created_at >= ? GROUP BY 1`, firstDay)
	if err != nil {
		return nil, err
	}
	s.AcceptedPerDay, err = db.perDay(`SELECT substr(updated_at, 1, 10), COUNT(*) FROM offers
	                                   WHERE status = 'ACCEPTED' AND updated_at >= ? GROUP BY 1`, firstDay)
	if err != nil {
		return nil, err
	}
	s.OffersByCategory, err = db.offersByCategory()
	if err != nil {
		return nil, err
	}

	pending, err := db.ListNGOs(models.VerificationPending)
	if err != nil {
		return nil, err
	}
	if len(pending) > 5 {
		pending = pending[:5]
	}
	s.RecentPending = pending
	return s, nil
}

// HomeSummary is the public landing page snapshot.
type HomeSummary struct {
	LatestNeeds        []models.Need  `json:"latest_needs"`
	DonationsCompleted int            `json:"donations_completed"`
	VerifiedNGOs       int            `json:"verified_ngos"`
	RegisteredDonors   int            `json:"registered_donors"`
	UpcomingEvents     []models.Event `json:"upcoming_events"`
}

// Home returns the limit newest open needs, the limit next events from at
// onwards and the headline counters.
func (db *DB) Home(at time.Time, limit int) (*HomeSummary, error) {
	h := &HomeSummary{}
	counts := []struct {
		dst *int
		q   string
	}{
		{&h.DonationsCompleted, `SELECT COUNT(*) FROM offers WHERE status = 'ACCEPTED'`},
		{&h.VerifiedNGOs, `SELECT COUNT(*) FROM ngo_profiles WHERE verification_status = 'VERIFIED'`},
		{&h.RegisteredDonors, `SELECT COUNT(*) FROM users WHERE role = 'DONOR'`},
	}
	for _, c := range counts {
		if err := db.conn.QueryRow(c.q).Scan(c.dst); err != nil {
			return nil, err
		}
	}

	var err error
	h.LatestNeeds, err = db.queryNeeds(`SELECT `+needColumns+needFrom+`
	      WHERE n.active = 1 AND p.verification_status = 'VERIFIED'
	      ORDER BY n.created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	h.UpcomingEvents, err = db.queryEvents(eventSelect+` WHERE e.event_date >= ? ORDER BY e.event_date ASC LIMIT ?`,
		at.UTC(), limit)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// perDay runs a (day, count) query and fills in the days with no rows.
func (db *DB) perDay(query string, firstDay time.Time) ([]DayCount, error) {
	rows, err := db.conn.Query(query, firstDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byDay := map[string]int{}
	for rows.Next() {
		var day string
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return nil, err
		}
		byDay[day] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]DayCount, statsDays)
	for i := range out {
		day := firstDay.AddDate(0, 0, i).Format("2006-01-02")
		out[i] = DayCount{Day: day, Count: byDay[day]}
	}
	return out, nil
}

func (db *DB) offersByCategory() ([]CategoryCount, error) {
	rows, err := db.conn.Query(`SELECT c.id, c.name, COUNT(o.id) FROM categories c
	                            JOIN offers o ON o.category_id = c.id
	                            GROUP BY c.id, c.name ORDER BY COUNT(o.id) DESC, c.name_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []CategoryCount{}
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.CategoryID, &c.Name, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// percent returns part/total as a percentage rounded to one decimal.
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}
