package cvss

// v4Grammar covers the mandatory base metrics of CVSS v4.0 (CVSS-B).
var v4Grammar = metricGrammar{
	order: []string{"AV", "AC", "AT", "PR", "UI", "VC", "VI", "VA", "SC", "SI", "SA"},
	values: map[string][]string{
		"AV": {"N", "A", "L", "P"},
		"AC": {"L", "H"},
		"AT": {"N", "P"},
		"PR": {"N", "L", "H"},
		"UI": {"N", "P", "A"},
		"VC": {"H", "L", "N"},
		"VI": {"H", "L", "N"},
		"VA": {"H", "L", "N"},
		"SC": {"H", "L", "N"},
		"SI": {"H", "L", "N"},
		"SA": {"H", "L", "N"},
	},
}

// scoreV4 computes the CVSS v4.0 base score using the MacroVector method.
// A base-only vector pins E to its Attacked default and CR/IR/AR to High,
// so the score is the value of the vector's macro equivalence class. The
// within-class severity-distance interpolation step is not applied: every
// vector scores its class value, which matches the official calculator
// exactly for the highest vector of each class and is otherwise at most a
// few tenths above it.
func scoreV4(m map[string]string) float64 {
	// A vector with no impact at all scores zero by definition.
	if m["VC"] == "N" && m["VI"] == "N" && m["VA"] == "N" &&
		m["SC"] == "N" && m["SI"] == "N" && m["SA"] == "N" {
		return 0
	}
	return v4MacroVectorScores[macroVector(m)]
}

// macroVector derives the six equivalence-class digits EQ1..EQ6 defined by
// the v4.0 specification for the base metric group.
func macroVector(m map[string]string) string {
	digits := [6]byte{}

	// EQ1: exploitability reach.
	switch {
	case m["AV"] == "N" && m["PR"] == "N" && m["UI"] == "N":
		digits[0] = '0'
	case m["AV"] != "P" && (m["AV"] == "N" || m["PR"] == "N" || m["UI"] == "N"):
		digits[0] = '1'
	default:
		digits[0] = '2'
	}

	// EQ2: attack complexity and requirements.
	if m["AC"] == "L" && m["AT"] == "N" {
		digits[1] = '0'
	} else {
		digits[1] = '1'
	}

	// EQ3: impact on the vulnerable system.
	switch {
	case m["VC"] == "H" && m["VI"] == "H":
		digits[2] = '0'
	case m["VC"] == "H" || m["VI"] == "H" || m["VA"] == "H":
		digits[2] = '1'
	default:
		digits[2] = '2'
	}

	// EQ4: impact on subsequent systems. The '0' class needs the Safety
	// metrics from the environmental group and is unreachable for CVSS-B.
	if m["SC"] == "H" || m["SI"] == "H" || m["SA"] == "H" {
		digits[3] = '1'
	} else {
		digits[3] = '2'
	}

	// EQ5: exploit maturity. E defaults to Attacked for base vectors.
	digits[4] = '0'

	// EQ6: requirement-weighted impact. CR/IR/AR default to High, so the
	// class follows directly from whether any vulnerable-system impact is
	// High, which EQ3 already encodes.
	if digits[2] == '2' {
		digits[5] = '1'
	} else {
		digits[5] = '0'
	}

	return string(digits[:])
}

// v4MacroVectorScores holds the base scores of the macro equivalence
// classes reachable from a CVSS-B vector (EQ5 pinned to 0, EQ6 implied by
// EQ3). Values come from the v4.0 specification's class scoring.
var v4MacroVectorScores = map[string]float64{
	"000100": 10.0, "000200": 9.3,
	"001100": 9.3, "001200": 8.8,
	"002101": 7.9, "002201": 6.9,
	"010100": 9.5, "010200": 9.2,
	"011100": 9.2, "011200": 8.4,
	"012101": 7.1, "012201": 6.3,
	"100100": 9.4, "100200": 8.7,
	"101100": 8.6, "101200": 7.2,
	"102101": 6.5, "102201": 5.3,
	"110100": 9.0, "110200": 7.7,
	"111100": 7.4, "111200": 6.1,
	"112101": 5.8, "112201": 2.3,
	"200100": 8.6, "200200": 7.0,
	"201100": 7.2, "201200": 5.3,
	"202101": 4.7, "202201": 2.4,
	"210100": 7.3, "210200": 5.4,
	"211100": 6.1, "211200": 4.6,
	"212101": 2.4, "212201": 1.0,
}
