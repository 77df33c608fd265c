package llm

// Model presets let callers pick a capability tier without hardcoding
// model names that rotate every few months.
const (
	PresetPowerful  = "powerful"
	PresetFast      = "fast"
	PresetEfficient = "efficient"

	DefaultPreset = PresetFast
)

var presetModels = map[string]string{
	PresetPowerful:  "gemini-3-pro-preview",
	PresetFast:      "gemini-flash-latest",
	PresetEfficient: "gemini-flash-lite-latest",
}

// ModelForPreset resolves a preset name to a concrete model identifier.
// Unknown or empty presets fall back to the default tier.
func ModelForPreset(preset string) string {
	if model, ok := presetModels[preset]; ok {
		return model
	}
	return presetModels[DefaultPreset]
}
