package nutrition

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/recomp/backend/internal/stats"
)

const (
	kcalPerGramProtein = 4
	kcalPerGramCarb    = 4
	kcalPerGramFat     = 9

	fatGramsPerKg        = 1.0
	reducedFatGramsPerKg = 0.8
	minCarbGrams         = 50

	MinWeightKg = 30
	MaxWeightKg = 300
)

var proteinGramsPerKg = map[Objective]float64{
	ObjectiveCutting:       2.2,
	ObjectiveBulking:       1.8,
	ObjectiveRecomposition: 2.0,
	ObjectiveMaintenance:   1.8,
}

// Macros is a daily macronutrient split in grams.
type Macros struct {
	ProteinG int `json:"protein_g"`
	CarbG    int `json:"carb_g"`
	FatG     int `json:"fat_g"`
}

// Kcal returns the energy of the split at 4/4/9 kcal per gram.
func (m Macros) Kcal() int {
	return CaloriesFromMacros(m.ProteinG, m.CarbG, m.FatG)
}

// CaloriesFromMacros converts gram targets into kcal.
func CaloriesFromMacros(proteinG, carbG, fatG int) int {
	return proteinG*kcalPerGramProtein + carbG*kcalPerGramCarb + fatG*kcalPerGramFat
}

// MacroSplit allocates protein by body weight first, then fat, and fills the rest with
// carbohydrates. Fat drops to 0.8 g/kg when carbohydrates would fall under 50 g. No
// macro goes negative: when the target cannot cover protein and fat, carbohydrates are
// zero and fat takes what is left, and protein alone is capped at the target.
// leanMassKg is accepted for callers that track it; the split is weight based.
func MacroSplit(targetCalories int, weightKg float64, leanMassKg *float64, objective Objective) (Macros, error) {
	if targetCalories < MinTDEEKcal {
		return Macros{}, fmt.Errorf("%w: target %d below %d", ErrInvalidInput, targetCalories, MinTDEEKcal)
	}
	if weightKg < MinWeightKg || weightKg > MaxWeightKg {
		return Macros{}, fmt.Errorf("%w: weight %.1f outside [%d, %d]", ErrInvalidInput, weightKg, MinWeightKg, MaxWeightKg)
	}
	perKg, ok := proteinGramsPerKg[objective]
	if !ok {
		perKg = proteinGramsPerKg[ObjectiveMaintenance]
	}
	protein := stats.RoundInt(weightKg * perKg)
	if protein*kcalPerGramProtein > targetCalories {
		return Macros{ProteinG: stats.RoundInt(float64(targetCalories) / kcalPerGramProtein)}, nil
	}
	fat := stats.RoundInt(weightKg * fatGramsPerKg)
	carbs := carbGrams(targetCalories, protein, fat)
	if carbs < minCarbGrams {
		fat = stats.RoundInt(weightKg * reducedFatGramsPerKg)
		carbs = carbGrams(targetCalories, protein, fat)
	}
	if carbs < 0 {
		carbs = 0
		fat = stats.RoundInt(float64(targetCalories-protein*kcalPerGramProtein) / kcalPerGramFat)
	}
	return Macros{ProteinG: protein, CarbG: carbs, FatG: fat}, nil
}

func carbGrams(targetCalories, proteinG, fatG int) int {
	remaining := targetCalories - proteinG*kcalPerGramProtein - fatG*kcalPerGramFat
	return stats.RoundInt(float64(remaining) / kcalPerGramCarb)
}
