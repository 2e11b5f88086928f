package priority

import (
	"strings"

	"github.com/Abraj743/opd-token-allocation-sub000/models"
)

type ruleInput struct {
	Source         models.TokenSource
	Info           *models.PatientInfo
	WaitingMinutes int
}

// rule produces zero or more labeled adjustments for a request.
type rule func(ruleInput) []Adjustment

// adjustmentRules compose additively, in order. Keeping them as data makes
// the breakdown visible in results and testable rule by rule.
var adjustmentRules = []rule{
	waitingTimeRule,
	ageRule,
	medicalHistoryRule,
	conditionCountRule,
	namedConditionRule,
	urgencyLevelRule,
	pregnancyRule,
	disabilityRule,
	followupUrgencyRule,
}

func one(label string, delta int) []Adjustment {
	return []Adjustment{{Label: label, Delta: delta}}
}

func waitingTimeRule(in ruleInput) []Adjustment {
	w := in.WaitingMinutes
	switch {
	case w >= 180:
		return one("waiting_3h_plus", 250)
	case w >= 120:
		return one("waiting_2h_plus", 150)
	case w >= 60:
		return one("waiting_1h_plus", 100)
	case w > 0:
		delta := int(float64(w) * 0.8)
		if delta > 40 {
			delta = 40
		}
		return one("waiting_under_1h", delta)
	}
	return nil
}

func ageRule(in ruleInput) []Adjustment {
	age := in.Info.Age
	switch {
	case age >= 80:
		return one("age_80_plus", 60)
	case age >= 65:
		return one("age_65_plus", 20)
	case age > 0 && age <= 12:
		return one("age_child", 30)
	}
	return nil
}

func medicalHistoryRule(in ruleInput) []Adjustment {
	var adjs []Adjustment
	if in.Info.MedicalHistory.Critical {
		adjs = append(adjs, Adjustment{Label: "history_critical", Delta: 100})
	}
	if in.Info.MedicalHistory.Chronic {
		adjs = append(adjs, Adjustment{Label: "history_chronic", Delta: 30})
	}
	return adjs
}

func conditionCountRule(in ruleInput) []Adjustment {
	n := len(in.Info.MedicalHistory.Conditions)
	switch {
	case n >= 3:
		return one("conditions_3_plus", 75)
	case n >= 2:
		return one("conditions_2", 40)
	}
	return nil
}

// normalizeCondition folds case and treats underscores as spaces so that
// "Heart_Disease" and "heart disease" match the same entry.
func normalizeCondition(c string) string {
	return strings.TrimSpace(strings.ToLower(strings.ReplaceAll(c, "_", " ")))
}

func namedConditionRule(in ruleInput) []Adjustment {
	var adjs []Adjustment
	for _, c := range in.Info.MedicalHistory.Conditions {
		switch normalizeCondition(c) {
		case "diabetes", "hypertension":
			adjs = append(adjs, Adjustment{Label: "condition_" + normalizeCondition(c), Delta: 20})
		case "heart disease", "kidney disease":
			adjs = append(adjs, Adjustment{Label: "condition_" + normalizeCondition(c), Delta: 40})
		}
	}
	return adjs
}

func urgencyLevelRule(in ruleInput) []Adjustment {
	switch strings.ToLower(in.Info.UrgencyLevel) {
	case "emergency":
		return one("urgency_emergency", 200)
	case "critical":
		return one("urgency_critical", 150)
	case "urgent":
		return one("urgency_urgent", 40)
	case "moderate":
		return one("urgency_moderate", 30)
	}
	return nil
}

func pregnancyRule(in ruleInput) []Adjustment {
	if in.Info.IsPregnant {
		return one("pregnant", 75)
	}
	return nil
}

func disabilityRule(in ruleInput) []Adjustment {
	if in.Info.HasDisability {
		return one("disability", 50)
	}
	return nil
}

func followupUrgencyRule(in ruleInput) []Adjustment {
	switch strings.ToLower(in.Info.FollowupUrgency) {
	case "urgent":
		return one("followup_urgent", 75)
	case "moderate":
		return one("followup_moderate", 40)
	case "routine":
		return one("followup_routine", 20)
	}
	return nil
}
