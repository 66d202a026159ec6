package assistant

import (
	"math"
	"strconv"
	"strings"

	"github.com/spherical-ai/ev-assistant/internal/dataset"
)

// Fixed replies.
const (
	MsgPriceUnavailable = "Price prediction unavailable (model file missing)."
	MsgPriceMissing     = "Please provide both **battery size (kWh)** and **range (km)**."
	MsgBudgetMissing    = "Please provide a budget like **under 15 lakh**."
	MsgNoBudgetMatches  = "No EVs match this budget."
	MsgNoModel          = "I couldn't identify a specific EV model."
	MsgModelNotFound    = "Model not found in dataset."
	MsgNoRecommendation = "No EVs available to recommend."
	MsgHelp             = "I didn't understand. Try asking about **price**, **budget**, **recommendations**, or **EV details**."

	notAvailable = "N/A"
)

// FormatRupees rounds half to even and groups thousands with commas.
func FormatRupees(v float64) string {
	r := math.RoundToEven(v)
	if r == 0 {
		return "0"
	}

	digits := strconv.FormatFloat(math.Abs(r), 'f', 0, 64)
	var b strings.Builder
	if r < 0 {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func orNA(v dataset.Value) string {
	if !v.Valid || strings.TrimSpace(v.Str) == "" {
		return notAvailable
	}
	return v.Str
}
