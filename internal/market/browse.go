package market

import (
	"sort"
	"strings"

	"crypto-portfolio-tracker/internal/models"
)

const (
	defaultPerPage = 50
	maxPerPage     = 250
)

// Page is one page of a filtered market listing.
type Page struct {
	Coins      []models.MarketRow `json:"coins"`
	Page       int                `json:"page"`
	PerPage    int                `json:"per_page"`
	Total      int                `json:"total"`
	TotalPages int                `json:"total_pages"`
}

// Search filters the snapshot by a case-insensitive match on name or symbol
// and returns the requested page. Out-of-range pages and page sizes are clamped.
func Search(rows []models.MarketRow, term string, page, perPage int) Page {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	term = strings.ToLower(strings.TrimSpace(term))

	matched := rows
	if term != "" {
		matched = make([]models.MarketRow, 0, len(rows))
		for _, r := range rows {
			if strings.Contains(strings.ToLower(r.Name), term) || strings.Contains(strings.ToLower(r.Symbol), term) {
				matched = append(matched, r)
			}
		}
	}

	total := len(matched)
	totalPages := (total + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > total {
		end = total
	}

	return Page{
		Coins:      append([]models.MarketRow{}, matched[start:end]...),
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}

// Unowned returns the coins among the n best ranked that the owner holds no
// asset of, ordered by rank. Holdings match on name or symbol, case-insensitively.
func Unowned(rows []models.MarketRow, assets []models.Asset, n int) []models.MarketRow {
	ownedNames := make(map[string]struct{}, len(assets))
	ownedSymbols := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		ownedNames[strings.ToLower(a.Name)] = struct{}{}
		ownedSymbols[strings.ToLower(a.Symbol)] = struct{}{}
	}

	ranked := append([]models.MarketRow{}, rows...)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := ranked[i].Rank(), ranked[j].Rank()
		// unranked coins go last
		if ri == 0 || rj == 0 {
			return ri != 0 && rj == 0
		}
		return ri < rj
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}

	out := make([]models.MarketRow, 0, len(ranked))
	for _, r := range ranked {
		if _, ok := ownedNames[strings.ToLower(r.Name)]; ok {
			continue
		}
		if _, ok := ownedSymbols[strings.ToLower(r.Symbol)]; ok {
			continue
		}
		out = append(out, r)
	}
	return out
}
