package digest

// Temperature constants.
// Temperature controls the randomness of completion replies.
const (
	// TemperatureUnset indicates that no temperature has been explicitly set.
	// A zero-value float32 (0.0) is also treated as unset.
	TemperatureUnset float32 = -1

	// TemperatureZero provides an explicitly near-zero temperature.
	// Use this instead of 0.0 since zero is treated as "unset".
	TemperatureZero float32 = 0.0001

	// DefaultTemperature is used by both pipelines unless overridden.
	DefaultTemperature float32 = 0.7
)

// resolveTemperature maps unset values to DefaultTemperature.
func resolveTemperature(t float32) float32 {
	if t == TemperatureUnset || t <= 0 {
		return DefaultTemperature
	}
	return t
}
