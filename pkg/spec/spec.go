package spec

const (
	// === IDENTITY & VERSIONING ===
	ProgramName = "Annotix"
	Version     = "1.0.0"

	// === ANNOTATION FILES ===
	AnnotationFileExtension          = "ann"
	TemporaryAnnotationFileExtension = "tmp"

	// === WAVEFORM BUFFERING ===
	ChunkSizeSeconds        = 10
	PreRollSeconds          = 0.25
	ZoomlessPixelsPerSecond = 200

	// === PLAYBACK ===
	ReplayWindowMillis = 200

	// === ANNOTATION CLASSIFICATION ===
	// Marker that identifies an annotation as an intrusion when the file
	// carries no explicit type tag.
	DefaultIntrusionMarker = "<IU>"

	// === WAVEFORM RENDERING ===
	DefaultMinBandHz = 40
	DefaultMaxBandHz = 8000
)
