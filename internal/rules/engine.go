// Package rules evaluates claims against the fixed reimbursement policy
// thresholds. Evaluation is a pure function of the claim.
package rules

import (
	"fmt"
	"math"
	"slices"

	"reimburse/internal/claim"
)

// Policy thresholds. Amounts are compared as given, without currency conversion.
const (
	SubmissionDeadlineDays = 30
	ReceiptThreshold       = 25.0
	LodgingNightCap        = 180.0
	MileageRatePerKM       = 0.42
	MileageTolerance       = 0.5
	FinanceApprovalAbove   = 1000.0
)

// MealCaps maps meal types to their per-meal cap; unknown or unset types use MealOther.
var MealCaps = map[claim.MealType]float64{
	claim.MealBreakfast: 15.0,
	claim.MealLunch:     25.0,
	claim.MealDinner:    40.0,
	claim.MealOther:     40.0,
}

// Evaluate checks every line of c and aggregates the verdict. The claim is
// validated first; an invalid claim fails the whole evaluation.
func Evaluate(c claim.Claim) (EvaluationResult, error) {
	if err := c.Validate(); err != nil {
		return EvaluationResult{}, err
	}

	res := EvaluationResult{
		LineResults: make([]LineResult, 0, len(c.Lines)),
	}
	var missing []string
	for _, ln := range c.Lines {
		res.ClaimTotal += ln.Amount
		lr, notes := evaluateLine(c.SubmissionDate, ln)
		res.LineResults = append(res.LineResults, lr)
		missing = append(missing, notes...)
	}

	res.ApprovalRoute = []string{RoleManager}
	if res.ClaimTotal > FinanceApprovalAbove {
		res.ApprovalRoute = append(res.ApprovalRoute, RoleFinance)
	}

	res.Decision = DecisionApprove
	for _, lr := range res.LineResults {
		if lr.Status == StatusNonCompliant {
			res.Decision = DecisionNeedsMoreInfo
			break
		}
	}

	slices.Sort(missing)
	res.MissingInfo = slices.Compact(missing)
	if res.MissingInfo == nil {
		res.MissingInfo = []string{}
	}
	return res, nil
}

func evaluateLine(submitted claim.Date, ln claim.Line) (LineResult, []string) {
	var issues []Issue
	var missing []string
	raise := func(code, format string, args ...any) {
		issues = append(issues, Issue{Code: code, Message: fmt.Sprintf(format, args...)})
	}
	receipt := ln.HasReceipt()

	if daysLate := submitted.DaysSince(ln.Date); daysLate > SubmissionDeadlineDays {
		raise(CodeSubmissionLate, "Submitted %d days after expense date (policy limit: %d days).", daysLate, SubmissionDeadlineDays)
	}

	if ln.Amount >= ReceiptThreshold && !receipt {
		raise(CodeMissingReceipt, "Receipt required for single line >= %.0f %s.", ReceiptThreshold, ln.Currency)
		missing = append(missing, fmt.Sprintf("Receipt (or Missing Receipt Declaration) for line %s", ln.LineID))
	}

	switch ln.Category {
	case claim.CategoryMeals:
		mealType := ln.MealType
		limit, ok := MealCaps[mealType]
		if !ok {
			mealType = claim.MealOther
			limit = MealCaps[claim.MealOther]
		}
		if ln.Amount > limit {
			raise(CodeMealCapExceeded, "Meal amount %.2f exceeds cap %.2f for %s.", ln.Amount, limit, mealType)
		}

	case claim.CategoryLodging:
		// The amount is treated as one night; lines carry no nights count.
		if ln.Amount > LodgingNightCap && !ln.HasPreApproval() {
			raise(CodeLodgingCapExceededNoPreapproval, "Lodging exceeds nightly cap %.2f without pre-approval.", LodgingNightCap)
		}
		if !receipt {
			raise(CodeMissingItemizedInvoice, "Lodging requires an itemized hotel invoice.")
			missing = append(missing, fmt.Sprintf("Itemized hotel invoice for line %s", ln.LineID))
		}

	case claim.CategoryClientEntertainment:
		if len(ln.Attendees) == 0 {
			raise(CodeMissingAttendees, "Client entertainment requires attendee names and business purpose.")
			missing = append(missing, fmt.Sprintf("Attendees list for line %s", ln.LineID))
		}
		if !receipt {
			raise(CodeMissingReceiptEntertainment, "Client entertainment requires itemized receipt regardless of amount.")
			missing = append(missing, fmt.Sprintf("Itemized receipt for entertainment line %s", ln.LineID))
		}

	case claim.CategoryMileage:
		km, ok := ln.KM()
		if !ok {
			raise(CodeMissingMileageKM, "Mileage requires km distance.")
			missing = append(missing, fmt.Sprintf("Mileage km for line %s", ln.LineID))
			break
		}
		expected := km * MileageRatePerKM
		if math.Abs(ln.Amount-expected) > MileageTolerance {
			raise(CodeMileageAmountMismatch, "Amount %.2f does not match km*rate (%.2f).", ln.Amount, expected)
		}
	}

	lr := LineResult{LineID: ln.LineID, Status: StatusCompliant, Issues: issues}
	if len(issues) > 0 {
		lr.Status = StatusNonCompliant
	} else {
		lr.Issues = []Issue{}
	}
	return lr, missing
}
