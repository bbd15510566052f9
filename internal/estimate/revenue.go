// Package estimate projects generation and feed-in-tariff revenue for plants.
package estimate

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/luminous-energy/plant-cli/internal/model"
)

// RevenueEstimate is the projected output and income for one plant.
// AnnualKWh and AnnualRevenue are first-year figures; ContractRevenue sums
// the PPA term with output degradation applied.
type RevenueEstimate struct {
	AnnualKWh           float64 `json:"annual_kwh"`
	AnnualRevenue       float64 `json:"annual_revenue"`
	AnnualRevenueText   string  `json:"annual_revenue_text"`
	ContractRevenue     float64 `json:"contract_revenue"`
	ContractRevenueText string  `json:"contract_revenue_text"`
	ContractYears       int     `json:"contract_years"`
	FiTRate             float64 `json:"fit_rate"`
	SunHours            float64 `json:"sun_hours"`
	Region              string  `json:"region"`
	Confidence          float64 `json:"confidence"`
}

// sunHoursByCity maps a city to average daily peak sun hours. Southern
// counties see materially more irradiation than the north.
var sunHoursByCity = map[string]float64{
	"台北市": 2.7,
	"新北市": 2.7,
	"桃園市": 2.9,
	"新竹縣": 3.0,
	"苗栗縣": 3.2,
	"台中市": 3.5,
	"彰化縣": 3.6,
	"南投縣": 3.3,
	"雲林縣": 3.6,
	"嘉義縣": 3.7,
	"台南市": 3.8,
	"高雄市": 3.8,
	"屏東縣": 3.9,
	"宜蘭縣": 2.6,
	"花蓮縣": 3.0,
	"台東縣": 3.3,
	"澎湖縣": 3.7,
}

const (
	defaultSunHours = 3.3
	// performanceRatio discounts inverter, wiring, soiling, and temperature losses.
	performanceRatio = 0.8
	// annualDegradation is the per-year module output decline.
	annualDegradation = 0.007
	// defaultContractYears is the standard Taipower PPA term.
	defaultContractYears = 20
)

// Revenue projects generation and FiT income for a project. The project needs
// a positive capacity and FiT rate; sun hours fall back to a national average
// when the city is unknown.
func Revenue(p *model.Project) (*RevenueEstimate, error) {
	if p.CapacityKW <= 0 {
		return nil, eris.Errorf("estimate: project %s has no capacity", p.ID)
	}
	if p.FiTRate <= 0 {
		return nil, eris.Errorf("estimate: project %s has no FiT rate", p.ID)
	}

	sunHours, cityKnown := sunHoursByCity[p.City]
	region := p.City
	if !cityKnown {
		sunHours = defaultSunHours
		region = ""
	}

	annualKWh := p.CapacityKW * sunHours * 365 * performanceRatio
	annualRevenue := annualKWh * p.FiTRate

	// Sum the PPA term with compounding degradation.
	var contractRevenue float64
	output := annualRevenue
	for year := 0; year < defaultContractYears; year++ {
		contractRevenue += output
		output *= 1 - annualDegradation
	}

	confidence := 0.6
	if cityKnown {
		confidence += 0.2
	}
	if p.GridConnectedAt != nil {
		confidence += 0.1 // operating plant, capacity is as-built
	}
	confidence = math.Min(confidence, 0.9)

	zap.L().Debug("estimate: revenue projected",
		zap.String("project_id", p.ID),
		zap.Float64("capacity_kw", p.CapacityKW),
		zap.Float64("sun_hours", sunHours),
		zap.Float64("annual_kwh", annualKWh),
		zap.Float64("annual_revenue", annualRevenue),
	)

	return &RevenueEstimate{
		AnnualKWh:           math.Round(annualKWh),
		AnnualRevenue:       math.Round(annualRevenue),
		AnnualRevenueText:   FormatNTD(math.Round(annualRevenue)),
		ContractRevenue:     math.Round(contractRevenue),
		ContractRevenueText: FormatNTD(math.Round(contractRevenue)),
		ContractYears:       defaultContractYears,
		FiTRate:             p.FiTRate,
		SunHours:            sunHours,
		Region:              region,
		Confidence:          confidence,
	}, nil
}

// SunHours returns the daily peak sun hours used for a city.
func SunHours(city string) float64 {
	if h, ok := sunHoursByCity[city]; ok {
		return h
	}
	return defaultSunHours
}

// FormatNTD formats an NTD amount in human-readable form.
func FormatNTD(amount float64) string {
	switch {
	case amount >= 100_000_000:
		return fmt.Sprintf("NT$%.1f億", amount/100_000_000)
	case amount >= 10_000:
		return fmt.Sprintf("NT$%.1f萬", amount/10_000)
	default:
		return fmt.Sprintf("NT$%.0f", amount)
	}
}
