package metadomain

import (
	"strconv"
)

// InsightRow é uma linha de insights como retornada pela API do Meta.
// A Graph API serializa os valores numéricos como strings.
type InsightRow struct {
	Impressions string `json:"impressions"`
	Clicks      string `json:"clicks"`
	Spend       string `json:"spend"`
	Reach       string `json:"reach"`
	CTR         string `json:"ctr"`
	CPC         string `json:"cpc"`
	Actions     []struct {
		ActionType string `json:"action_type"`
		Value      string `json:"value"`
	} `json:"actions,omitempty"`
	DateStart string `json:"date_start"`
	DateStop  string `json:"date_stop"`
}

// ImpressionsValue converte o campo impressions para inteiro
func (r *InsightRow) ImpressionsValue() int64 {
	return parseInt(r.Impressions)
}

// ClicksValue converte o campo clicks para inteiro
func (r *InsightRow) ClicksValue() int64 {
	return parseInt(r.Clicks)
}

// ReachValue converte o campo reach para inteiro
func (r *InsightRow) ReachValue() int64 {
	return parseInt(r.Reach)
}

// SpendValue converte o campo spend para float
func (r *InsightRow) SpendValue() float64 {
	return parseFloat(r.Spend)
}

// CPCValue converte o campo cpc para float
func (r *InsightRow) CPCValue() float64 {
	return parseFloat(r.CPC)
}

// ConversionsValue soma as ações de conversão offsite reportadas
func (r *InsightRow) ConversionsValue() int64 {
	var total int64
	for _, action := range r.Actions {
		if action.ActionType == "offsite_conversion" || action.ActionType == "offsite_conversion.fb_pixel_purchase" {
			total += parseInt(action.Value)
		}
	}
	return total
}

func parseInt(value string) int64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseFloat(value string) float64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return parsed
}
