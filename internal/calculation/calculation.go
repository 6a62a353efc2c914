// Package calculation holds the domain model reconstructed by the snapshot
// backfill: a benefit calculation for a period, its rate classification and
// the deductions that reduce it.
package calculation

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownClassification is returned when a stored rate or deduction type
// does not map to a known value. There is no default substitution.
var ErrUnknownClassification = errors.New("unknown classification")

// Rate is the benefit rate tier applied to a calculation.
type Rate string

const (
	RateHigh     Rate = "HØY"
	RateOrdinary Rate = "ORDINÆR"
)

var rates = map[string]Rate{
	string(RateHigh):     RateHigh,
	string(RateOrdinary): RateOrdinary,
}

// ParseRate resolves a stored rate code. Matching is exact.
func ParseRate(s string) (Rate, error) {
	r, ok := rates[s]
	if !ok {
		return "", fmt.Errorf("%w: rate %q", ErrUnknownClassification, s)
	}
	return r, nil
}

// DeductionType is the category of a deduction.
type DeductionType string

const (
	DeductionWorkIncome              DeductionType = "Arbeidsinntekt"
	DeductionPublicPension           DeductionType = "OffentligPensjon"
	DeductionPrivatePension          DeductionType = "PrivatPensjon"
	DeductionSocialAssistance        DeductionType = "Sosialstønad"
	DeductionDisabilityBenefit       DeductionType = "Uføretrygd"
	DeductionRetirementPension       DeductionType = "Alderspensjon"
	DeductionCapitalIncome           DeductionType = "Kapitalinntekt"
	DeductionCashBenefit             DeductionType = "Kontantstøtte"
	DeductionIntroductionBenefit     DeductionType = "Introduksjonsstønad"
	DeductionUnemploymentBenefit     DeductionType = "Dagpenger"
	DeductionSpousalSupport          DeductionType = "BidragEtterEkteskapsloven"
	DeductionFosterCareAllowance     DeductionType = "Fosterhjemsgodtgjørelse"
	DeductionExpectedIncome          DeductionType = "ForventetInntekt"
	DeductionComputedSpouseDeduction DeductionType = "BeregnetFradragEPS"
	DeductionBelowMinimumLevel       DeductionType = "UnderMinstenivå"
	DeductionStayAbroadReduction     DeductionType = "AvkortingUtenlandsopphold"
	DeductionOther                   DeductionType = "Annet"
)

// DeductionTypes lists every known deduction type in declaration order.
var DeductionTypes = []DeductionType{
	DeductionWorkIncome,
	DeductionPublicPension,
	DeductionPrivatePension,
	DeductionSocialAssistance,
	DeductionDisabilityBenefit,
	DeductionRetirementPension,
	DeductionCapitalIncome,
	DeductionCashBenefit,
	DeductionIntroductionBenefit,
	DeductionUnemploymentBenefit,
	DeductionSpousalSupport,
	DeductionFosterCareAllowance,
	DeductionExpectedIncome,
	DeductionComputedSpouseDeduction,
	DeductionBelowMinimumLevel,
	DeductionStayAbroadReduction,
	DeductionOther,
}

var deductionTypes = func() map[string]DeductionType {
	m := make(map[string]DeductionType, len(DeductionTypes))
	for _, t := range DeductionTypes {
		m[string(t)] = t
	}
	return m
}()

// ParseDeductionType resolves a stored deduction type. Matching is exact.
func ParseDeductionType(s string) (DeductionType, error) {
	t, ok := deductionTypes[s]
	if !ok {
		return "", fmt.Errorf("%w: deduction type %q", ErrUnknownClassification, s)
	}
	return t, nil
}

// Period is an inclusive date range. Start <= End is assumed, not checked.
type Period struct {
	Start Date
	End   Date
}

// Deduction reduces a calculation's benefit. Its Period always equals the
// owning calculation's period.
type Deduction struct {
	Type          DeductionType
	Amount        int64
	Period        Period
	ForeignIncome *ForeignIncome
}

// Calculation is a benefit computation for a period.
//
// ID and CreatedAt are generated when the calculation is reconstructed. They
// do not describe the legacy row the calculation was rebuilt from.
type Calculation struct {
	ID         string
	CreatedAt  time.Time
	Period     Period
	Rate       Rate
	Deductions []Deduction
}
