package effect

import "math"

// RequiredPaddingPx returns the margin, in device pixels, that a buffer blur
// needs beyond the visible frame so edge pixels see real neighbours instead
// of the blur filter's edge extension.
func RequiredPaddingPx(cfg Config) int {
	if cfg.BlurRadius <= SharpRadius {
		return 0
	}
	// 3*sigma captures the vast majority of the kernel energy.
	pad := int(math.Ceil(math.Max(Sigma(cfg.BlurRadius)*3, cfg.BlurRadius))) + 2
	if pad < 1 {
		pad = 1
	}
	return pad
}
