package featureflag

type Flag string

const (
	// Lets an object be added to a frame visible set more than once when
	// several accepted nodes hold it.
	FlagAllowDuplicateVisible Flag = "ALLOW_DUPLICATE_VISIBLE"

	// Stops a culling pass at the root when the whole world is outside the
	// frustum, instead of inspecting the root children anyway.
	FlagDisableRootOutsideFallback Flag = "DISABLE_ROOT_OUTSIDE_FALLBACK"

	FlagDisableObjectDynamics Flag = "DISABLE_OBJECT_DYNAMICS"
	FlagDisableFrameBroadcast Flag = "DISABLE_FRAME_BROADCAST"
)
