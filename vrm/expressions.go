package vrm

// ExpressionPresets are the VRM 1.0 expression preset names.
var ExpressionPresets = []string{
	"happy", "angry", "sad", "relaxed", "surprised",
	"aa", "ih", "ou", "ee", "oh",
	"blink", "blinkLeft", "blinkRight",
	"lookUp", "lookDown", "lookLeft", "lookRight",
	"neutral",
}

var preset0To1 = map[string]string{
	"neutral":   "neutral",
	"a":         "aa",
	"i":         "ih",
	"u":         "ou",
	"e":         "ee",
	"o":         "oh",
	"blink":     "blink",
	"joy":       "happy",
	"angry":     "angry",
	"sorrow":    "sad",
	"fun":       "relaxed",
	"lookup":    "lookUp",
	"lookdown":  "lookDown",
	"lookleft":  "lookLeft",
	"lookright": "lookRight",
	"blink_l":   "blinkLeft",
	"blink_r":   "blinkRight",
}

var preset1To0 = map[string]string{}

func init() {
	for k, v := range preset0To1 {
		preset1To0[v] = k
	}
}

// Preset0To1 maps a VRM 0.x blend shape preset to a VRM 1.0 expression
// preset. "unknown" and unmapped names report false.
func Preset0To1(name string) (string, bool) {
	p, ok := preset0To1[name]
	return p, ok
}

// Preset1To0 maps a VRM 1.0 expression preset to a VRM 0.x preset.
// Presets with no VRM 0.x counterpart, such as surprised, report false.
func Preset1To0(name string) (string, bool) {
	p, ok := preset1To0[name]
	return p, ok
}

func IsExpressionPreset(name string) bool {
	for _, p := range ExpressionPresets {
		if p == name {
			return true
		}
	}
	return false
}

// MaterialColorProperties maps VRM 1.0 material color bind types to the
// legacy MToon vector properties.
var MaterialColorProperties = map[string]string{
	"color":         "_Color",
	"emissionColor": "_EmissionColor",
	"shadeColor":    "_ShadeColor",
	"rimColor":      "_RimColor",
	"outlineColor":  "_OutlineColor",
}
