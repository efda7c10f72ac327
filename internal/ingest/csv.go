package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Column synonym sets for the supported ad platform exports. Ordered by
// priority: the first present, non-empty header wins.
var (
	campaignNameColumns = []string{
		"Campaign name", "Campaign Name", "campaign_name", "Campaign",
	}
	amountSpentColumns = []string{
		"Campaign Amount spent (", "Amount spent (CAD)", "Amount Spent",
		"Spend", "Cost", "Amount spent",
	}
	revenueColumns = []string{
		"Purchase ROAS (return on ad spend)", "Revenue", "Purchase Value",
		"Conversion Value", "Conv. value",
	}
	// Link clicks are the closest thing the exports have to leads.
	leadsColumns = []string{
		"Unique link clicks", "Link clicks", "Clicks", "Link Clicks", "Leads",
	}
	conversionsColumns = []string{
		"Results", "Purchases", "Conversions", "Orders",
	}
	clicksColumns = []string{
		"Clicks (all)", "Clicks", "Link clicks",
	}
	reachColumns = []string{
		"Reach", "Unique Reach",
	}
	impressionsColumns = []string{
		"Impressio", "Impressions", "Impr.",
	}
	reportingStartsColumns = []string{
		"Reporting starts", "Reporting Starts", "Day", "Date", "Start Date",
	}
	reportingEndsColumns = []string{
		"Reporting ends", "Reporting Ends", "End Date",
	}
)

// GetColumnValue returns the first candidate column present in the row
// with a non-empty value, in priority order.
func GetColumnValue(row map[string]string, candidates []string) string {
	for _, name := range candidates {
		if v, ok := row[name]; ok && v != "" {
			return v
		}
	}
	return ""
}

// ParseNumber strips everything but digits, dots and minus signs before
// parsing, so "$1,234.56" comes out as 1234.56. Unparseable values are 0.
func ParseNumber(s string) decimal.Decimal {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ExtractProduct returns the trimmed segment of the campaign name before
// the first " - " separator. "Serum X - FB - Scale" → "Serum X".
func ExtractProduct(campaignName string) string {
	name, _, _ := strings.Cut(campaignName, " - ")
	return strings.TrimSpace(name)
}

// ExtractPlatform returns the lower-cased second segment of the campaign
// name, or "" when the naming convention was not followed.
func ExtractPlatform(campaignName string) string {
	parts := strings.Split(campaignName, " - ")
	if len(parts) < 2 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(parts[1]))
}

// isDataRow rejects summary and footer rows that platform exports append
// below the campaign data.
func isDataRow(campaignName string) bool {
	name := strings.TrimSpace(campaignName)
	if name == "" {
		return false
	}
	if strings.Contains(name, "Total:") {
		return false
	}
	if strings.Contains(strings.ToLower(name), "summary") {
		return false
	}
	return true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"Jan 2, 2006",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// readRows parses the CSV into header-keyed maps. Exports pad some rows
// short, so the field count is not enforced.
func readRows(data []byte) ([]map[string]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("can't parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, v := range rec {
			if i >= len(header) {
				break
			}
			row[header[i]] = strings.TrimSpace(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
