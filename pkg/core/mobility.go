package core

import "math"

// Regression coefficients of the 1/K0 predictor.
const (
	mobilityIntercept    = -1.660e+00
	mobilityLogMZ        = -3.798e-01
	mobilityMZ           = -2.389e-04
	mobilityLogSqMZOverZ = 3.957e-01
	mobilitySqMZOverZ    = 4.157e-07
	mobilityCharge       = 1.417e-01
)

// PredictMobility returns a coarse 1/K0 estimate from precursor m/z and charge.
// It has a mean absolute percentage error of about 1.8%, so the prediction
// plus a 10% window is a reasonable extraction range when nothing else is
// known about the peptide.
func PredictMobility(mz float64, charge int) float64 {
	sqMZOverCharge := mz * mz / float64(charge)

	return mobilityIntercept +
		mobilityLogMZ*math.Log1p(mz) +
		mobilityMZ*mz +
		mobilityLogSqMZOverZ*math.Log1p(sqMZOverCharge) +
		mobilitySqMZOverZ*sqMZOverCharge +
		mobilityCharge*float64(charge)
}
