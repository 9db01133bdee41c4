package cvss

import "math"

// v3Grammar covers the mandatory base metrics of CVSS v3.0 and v3.1.
var v3Grammar = metricGrammar{
	order: []string{"AV", "AC", "PR", "UI", "S", "C", "I", "A"},
	values: map[string][]string{
		"AV": {"N", "A", "L", "P"},
		"AC": {"L", "H"},
		"PR": {"N", "L", "H"},
		"UI": {"N", "R"},
		"S":  {"U", "C"},
		"C":  {"H", "L", "N"},
		"I":  {"H", "L", "N"},
		"A":  {"H", "L", "N"},
	},
}

var (
	v3AttackVector     = map[string]float64{"N": 0.85, "A": 0.62, "L": 0.55, "P": 0.2}
	v3AttackComplexity = map[string]float64{"L": 0.77, "H": 0.44}
	v3UserInteraction  = map[string]float64{"N": 0.85, "R": 0.62}
	v3Impact           = map[string]float64{"H": 0.56, "L": 0.22, "N": 0}

	// Privileges Required weighs differently when scope changes.
	v3PrivilegesRequired             = map[string]float64{"N": 0.85, "L": 0.62, "H": 0.27}
	v3PrivilegesRequiredScopeChanged = map[string]float64{"N": 0.85, "L": 0.68, "H": 0.5}
)

// scoreV3 computes the CVSS v3.x base score per the FIRST specification.
func scoreV3(m map[string]string, version Version) float64 {
	scopeChanged := m["S"] == "C"

	prWeights := v3PrivilegesRequired
	if scopeChanged {
		prWeights = v3PrivilegesRequiredScopeChanged
	}

	iss := 1 - (1-v3Impact[m["C"]])*(1-v3Impact[m["I"]])*(1-v3Impact[m["A"]])

	var impact float64
	if scopeChanged {
		impact = 7.52*(iss-0.029) - 3.25*math.Pow(iss-0.02, 15)
	} else {
		impact = 6.42 * iss
	}

	exploitability := 8.22 *
		v3AttackVector[m["AV"]] *
		v3AttackComplexity[m["AC"]] *
		prWeights[m["PR"]] *
		v3UserInteraction[m["UI"]]

	if impact <= 0 {
		return 0
	}

	score := impact + exploitability
	if scopeChanged {
		score = 1.08 * score
	}
	if score > 10 {
		score = 10
	}

	if version == Version31 {
		return roundUp31(score)
	}
	return roundUp30(score)
}

// roundUp30 rounds up to one decimal place (v3.0 "round up" definition).
// Intermediate rounding removes IEEE 754 noise before the ceiling.
func roundUp30(value float64) float64 {
	v := math.Round(value*1e5) / 1e5
	return math.Ceil(v*10) / 10
}

// roundUp31 implements the integer-based Roundup function from the v3.1
// specification appendix, which avoids the floating-point artifacts the
// v3.0 definition is prone to.
func roundUp31(value float64) float64 {
	intInput := int64(math.Round(value * 100000))
	if intInput%10000 == 0 {
		return float64(intInput) / 100000
	}
	return (math.Floor(float64(intInput)/10000) + 1) / 10
}
